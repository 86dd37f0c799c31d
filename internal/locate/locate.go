// Package locate derives absolute object coordinates from vehicle poses
// and camera pixel measurements.
//
// It composes the camera ground-distance model with the direct geodetic
// solve: the object sits at the projected ground distance along the
// vehicle heading. Pure composition; no state beyond the camera
// configuration, and identical inputs always give identical outputs.
package locate

import (
	"errors"
	"fmt"
	"math"

	"github.com/sentinelmap/signaudit/internal/camera"
	"github.com/sentinelmap/signaudit/internal/geo"
)

// ErrInvalidPose reports a pose with an invalid position or a non-finite
// heading.
var ErrInvalidPose = errors.New("invalid vehicle pose")

// Pose is the camera-bearing vehicle at the moment a measurement was
// taken. Heading is degrees clockwise from north; values outside [0, 360)
// are wrapped, not rejected.
type Pose struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Heading float64 `json:"heading"`
}

// Position returns the pose location as a coordinate.
func (p Pose) Position() geo.Coordinate {
	return geo.Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// Validate checks the position range and that the heading is finite.
func (p Pose) Validate() error {
	if err := p.Position().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPose, err)
	}
	if math.IsNaN(p.Heading) || math.IsInf(p.Heading, 0) {
		return fmt.Errorf("%w: non-finite heading %v", ErrInvalidPose, p.Heading)
	}
	return nil
}

// Object is a detection resolved to an absolute coordinate. Index refers
// back to the source sample in the input order, so reports can tie a
// coordinate to the detection that produced it.
type Object struct {
	Index          int            `json:"index"`
	Position       geo.Coordinate `json:"position"`
	GroundDistance float64        `json:"ground_distance_meters"`
}

// Sample pairs a vehicle pose with the pixel measurement taken from it.
type Sample struct {
	Pose        Pose               `json:"pose"`
	Measurement camera.Measurement `json:"measurement"`
}

// Locator resolves samples against a fixed camera configuration.
type Locator struct {
	cam camera.Config
}

// NewLocator validates the camera configuration and returns a locator.
func NewLocator(cfg camera.Config) (*Locator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Locator{cam: cfg}, nil
}

// Camera returns the configuration the locator was built with.
func (l *Locator) Camera() camera.Config {
	return l.cam
}

// Locate resolves one measurement to an absolute coordinate. A nil Object
// with a nil error means the measurement was at or above the horizon: no
// coordinate can be derived and the caller must skip the detection.
func (l *Locator) Locate(pose Pose, m camera.Measurement) (*Object, error) {
	if err := pose.Validate(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	d, ok := camera.GroundDistance(m, l.cam)
	if !ok {
		return nil, nil
	}

	return &Object{
		Position:       geo.Project(pose.Position(), pose.Heading, d),
		GroundDistance: d,
	}, nil
}

// LocateAll resolves each sample in order, dropping above-horizon
// measurements. Object.Index preserves the position of the source sample
// in samples, so gaps reveal which detections were skipped.
func (l *Locator) LocateAll(samples []Sample) ([]Object, error) {
	objects := make([]Object, 0, len(samples))
	for i, s := range samples {
		obj, err := l.Locate(s.Pose, s.Measurement)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		if obj == nil {
			continue
		}
		obj.Index = i
		objects = append(objects, *obj)
	}
	return objects, nil
}

// Coordinates strips located objects down to bare coordinates in input
// order, the shape the reconciler consumes.
func Coordinates(objects []Object) []geo.Coordinate {
	coords := make([]geo.Coordinate, len(objects))
	for i, o := range objects {
		coords[i] = o.Position
	}
	return coords
}
