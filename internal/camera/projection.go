// Package camera converts vertical pixel positions into ground distances
// for a forward-facing camera mounted roughly parallel to the ground.
//
// The model: a pixel row below the horizon subtends an angle proportional
// to its offset from the horizon row, scaled by half the vertical field of
// view. The ground distance is then mount height over the tangent of that
// angle. Pixels at or above the horizon have no ground intersection; that
// is a first-class outcome, not an error, because elevated objects (signs
// on poles) legitimately image above the horizon.
package camera

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig reports a camera configuration that cannot produce
// meaningful distances.
var ErrInvalidConfig = errors.New("invalid camera config")

// ErrInvalidMeasurement reports a pixel measurement with non-finite or
// out-of-range fields.
var ErrInvalidMeasurement = errors.New("invalid pixel measurement")

// Config describes the mounted camera. It is constant for the duration of
// a computation; never mutate it mid-run.
type Config struct {
	// HeightMeters is the camera mount height above the ground.
	HeightMeters float64 `json:"height_meters"`
	// VerticalFOVDegrees is the full vertical field of view.
	VerticalFOVDegrees float64 `json:"vertical_fov_degrees"`
	// HorizonRow is the pixel row of the horizon, counted from the image
	// top. Zero means "half the image height", the mount-parallel default.
	HorizonRow float64 `json:"horizon_row,omitempty"`
}

// Validate checks the configuration for finite, physically meaningful
// values.
func (c Config) Validate() error {
	if !isFinite(c.HeightMeters) || c.HeightMeters <= 0 {
		return fmt.Errorf("%w: height %v, want > 0", ErrInvalidConfig, c.HeightMeters)
	}
	if !isFinite(c.VerticalFOVDegrees) || c.VerticalFOVDegrees <= 0 || c.VerticalFOVDegrees >= 180 {
		return fmt.Errorf("%w: vertical FOV %v, want (0, 180)", ErrInvalidConfig, c.VerticalFOVDegrees)
	}
	if !isFinite(c.HorizonRow) || c.HorizonRow < 0 {
		return fmt.Errorf("%w: horizon row %v, want >= 0", ErrInvalidConfig, c.HorizonRow)
	}
	return nil
}

// horizonFor resolves the effective horizon row for an image of the given
// height.
func (c Config) horizonFor(imageHeight float64) float64 {
	if c.HorizonRow > 0 {
		return c.HorizonRow
	}
	return imageHeight / 2
}

// Measurement is a single vertical pixel observation. Row counts down from
// the top of the image, so larger rows are closer to the vehicle.
type Measurement struct {
	Row         float64 `json:"row"`
	ImageHeight float64 `json:"image_height"`
}

// Validate checks the measurement for finite values and a positive image
// height.
func (m Measurement) Validate() error {
	if !isFinite(m.Row) {
		return fmt.Errorf("%w: row %v", ErrInvalidMeasurement, m.Row)
	}
	if !isFinite(m.ImageHeight) || m.ImageHeight <= 0 {
		return fmt.Errorf("%w: image height %v, want > 0", ErrInvalidMeasurement, m.ImageHeight)
	}
	return nil
}

// GroundDistance returns the distance in meters from the camera to the
// point on the ground imaged at the measured pixel row. ok is false when
// the pixel sits at or above the horizon (no ground intersection; the
// distance is unbounded) — callers must skip such measurements rather
// than fabricate a coordinate.
//
// Inputs are assumed validated via Config.Validate and
// Measurement.Validate.
func GroundDistance(m Measurement, cfg Config) (meters float64, ok bool) {
	delta := m.Row - cfg.horizonFor(m.ImageHeight)
	if delta <= 0 {
		return 0, false
	}

	halfFOV := cfg.VerticalFOVDegrees / 2 * math.Pi / 180
	alpha := math.Atan(delta / (m.ImageHeight / 2) * math.Tan(halfFOV))
	if alpha <= 0 {
		// Degenerate angle; treat as unbounded instead of dividing by zero.
		return 0, false
	}

	return cfg.HeightMeters / math.Tan(alpha), true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
