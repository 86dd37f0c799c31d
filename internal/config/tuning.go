package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sentinelmap/signaudit/internal/camera"
	"github.com/sentinelmap/signaudit/internal/geo"
	"github.com/sentinelmap/signaudit/internal/match"
	"github.com/sentinelmap/signaudit/internal/reconcile"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for default thresholds and camera
// geometry; the core packages take these as explicit parameters and never
// substitute defaults themselves.
const DefaultConfigPath = "config/signaudit.defaults.json"

// Tuning holds the adjustable parameters for a survey run. All fields are
// pointers so a partial JSON file only overrides what it names; the Get*
// methods supply the fallback defaults.
type Tuning struct {
	// Reconciliation thresholds
	VerifyThresholdMeters  *float64 `json:"verify_threshold_meters,omitempty"`
	MissingThresholdMeters *float64 `json:"missing_threshold_meters,omitempty"`
	StrictCoverage         *bool    `json:"strict_coverage,omitempty"`

	// Camera geometry
	CameraHeightMeters *float64 `json:"camera_height_meters,omitempty"`
	VerticalFOVDegrees *float64 `json:"vertical_fov_degrees,omitempty"`
	HorizonRow         *float64 `json:"horizon_row,omitempty"`
	ImageHeight        *float64 `json:"image_height,omitempty"`

	// Nearest-neighbour strategy: cell size for the grid index, or 0 to
	// use the linear scan.
	GridCellSizeMeters *float64 `json:"grid_cell_size_meters,omitempty"`
}

// Default values, matching the recording rig the pipeline was calibrated
// on and the thresholds used for the survey test data.
const (
	defaultVerifyThresholdMeters  = 10.0
	defaultMissingThresholdMeters = 15.0
	defaultCameraHeightMeters     = 1.4
	defaultVerticalFOVDegrees     = 92.0
	defaultImageHeight            = 1440.0
)

// EmptyTuning returns a Tuning with all fields unset, so every getter
// falls back to its default.
func EmptyTuning() *Tuning {
	return &Tuning{}
}

func (t *Tuning) GetVerifyThresholdMeters() float64 {
	if t.VerifyThresholdMeters != nil {
		return *t.VerifyThresholdMeters
	}
	return defaultVerifyThresholdMeters
}

func (t *Tuning) GetMissingThresholdMeters() float64 {
	if t.MissingThresholdMeters != nil {
		return *t.MissingThresholdMeters
	}
	return defaultMissingThresholdMeters
}

func (t *Tuning) GetStrictCoverage() bool {
	if t.StrictCoverage != nil {
		return *t.StrictCoverage
	}
	return false
}

func (t *Tuning) GetCameraHeightMeters() float64 {
	if t.CameraHeightMeters != nil {
		return *t.CameraHeightMeters
	}
	return defaultCameraHeightMeters
}

func (t *Tuning) GetVerticalFOVDegrees() float64 {
	if t.VerticalFOVDegrees != nil {
		return *t.VerticalFOVDegrees
	}
	return defaultVerticalFOVDegrees
}

// GetHorizonRow returns 0 when unset, which the camera package reads as
// "half the image height".
func (t *Tuning) GetHorizonRow() float64 {
	if t.HorizonRow != nil {
		return *t.HorizonRow
	}
	return 0
}

func (t *Tuning) GetImageHeight() float64 {
	if t.ImageHeight != nil {
		return *t.ImageHeight
	}
	return defaultImageHeight
}

func (t *Tuning) GetGridCellSizeMeters() float64 {
	if t.GridCellSizeMeters != nil {
		return *t.GridCellSizeMeters
	}
	return 0
}

// CameraConfig assembles the camera geometry for the locator.
func (t *Tuning) CameraConfig() camera.Config {
	return camera.Config{
		HeightMeters:       t.GetCameraHeightMeters(),
		VerticalFOVDegrees: t.GetVerticalFOVDegrees(),
		HorizonRow:         t.GetHorizonRow(),
	}
}

// ReconcileParams assembles the reconciler parameters, selecting the grid
// index when a cell size is configured.
func (t *Tuning) ReconcileParams() reconcile.Params {
	p := reconcile.Params{
		VerifyThresholdMeters:  t.GetVerifyThresholdMeters(),
		MissingThresholdMeters: t.GetMissingThresholdMeters(),
		StrictCoverage:         t.GetStrictCoverage(),
	}
	if cell := t.GetGridCellSizeMeters(); cell > 0 {
		p.NewIndex = func(c []geo.Coordinate) match.Index { return match.NewGrid(c, cell) }
	}
	return p
}

// Validate checks the configuration for internally consistent values.
func (t *Tuning) Validate() error {
	if v := t.GetVerifyThresholdMeters(); v <= 0 {
		return fmt.Errorf("verify_threshold_meters must be positive, got %v", v)
	}
	if v := t.GetMissingThresholdMeters(); v <= 0 {
		return fmt.Errorf("missing_threshold_meters must be positive, got %v", v)
	}
	if t.GetVerifyThresholdMeters() > t.GetMissingThresholdMeters() {
		return fmt.Errorf("verify_threshold_meters (%v) must not exceed missing_threshold_meters (%v)",
			t.GetVerifyThresholdMeters(), t.GetMissingThresholdMeters())
	}
	if err := t.CameraConfig().Validate(); err != nil {
		return err
	}
	if v := t.GetImageHeight(); v <= 0 {
		return fmt.Errorf("image_height must be positive, got %v", v)
	}
	if v := t.GetGridCellSizeMeters(); v < 0 {
		return fmt.Errorf("grid_cell_size_meters must not be negative, got %v", v)
	}
	return nil
}

// LoadTuning loads a Tuning from a JSON file. Fields omitted from the
// file keep their defaults, so partial configs are safe.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuning()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
