package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for all great-circle
// math. Ellipsoidal correction is not modelled; at the distances involved
// (tens to hundreds of meters) the spherical error is far below the
// matching thresholds applied downstream.
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoordinate reports a latitude/longitude outside its valid
// range, or a non-finite component. Non-finite values must be caught here:
// once they reach the trig functions they produce silently wrong results
// instead of failures.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a geographic point in decimal degrees (WGS 84 style).
// It is a plain value; two coordinates with equal fields are the same
// point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that both components are finite and within range:
// latitude in [-90, 90], longitude in [-180, 180].
func (c Coordinate) Validate() error {
	if !isFinite(c.Lat) || !isFinite(c.Lon) {
		return fmt.Errorf("%w: non-finite components (%v, %v)", ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

// ValidateAll validates every coordinate in points, reporting the index of
// the first invalid one.
func ValidateAll(points []Coordinate) error {
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}

// Distance returns the great-circle distance between a and b in meters,
// computed with the haversine formula. Symmetric in its arguments and zero
// for identical points.
//
// Inputs are assumed valid; run Coordinate.Validate at the boundary before
// values reach the trigonometry.
func Distance(a, b Coordinate) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Project solves the direct geodetic problem: the point reached by
// travelling distanceMeters along a great circle from origin with the
// given initial bearing (degrees clockwise from north).
//
// The bearing is wrapped onto [0, 360) first, so negative and >360 inputs
// are accepted. The output longitude is normalized to [-180, 180); a
// projection across the antimeridian yields a valid coordinate rather
// than a longitude past ±180.
func Project(origin Coordinate, bearingDeg, distanceMeters float64) Coordinate {
	bearing := radians(NormalizeBearing(bearingDeg))
	lat1 := radians(origin.Lat)
	lon1 := radians(origin.Lon)
	ang := distanceMeters / EarthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) +
		math.Cos(lat1)*math.Sin(ang)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(ang)*math.Cos(lat1),
		math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2))

	return Coordinate{Lat: degrees(lat2), Lon: NormalizeLon(degrees(lon2))}
}

// NormalizeBearing wraps a bearing in degrees onto [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// NormalizeLon wraps a longitude in degrees onto [-180, 180).
func NormalizeLon(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
