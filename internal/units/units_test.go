package units

import (
	"math"
	"testing"
)

func TestConvertDistance(t *testing.T) {
	tests := []struct {
		name     string
		meters   float64
		units    string
		expected float64
	}{
		{"1000 m to km", 1000.0, KM, 1.0},
		{"1 m to ft", 1.0, FT, 3.28084},
		{"1609.344 m to mi", 1609.344, MI, 1.0},
		{"10 m to m", 10.0, M, 10.0},
		{"unknown units default to m", 10.0, "unknown", 10.0},
		{"0 m to ft", 0.0, FT, 0.0},
		{"verify threshold 10 m to ft", 10.0, FT, 32.8084},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertDistance(tt.meters, tt.units)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ConvertDistance(%f, %s) = %f, want %f", tt.meters, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid m", M, true},
		{"valid km", KM, true},
		{"valid ft", FT, true},
		{"valid mi", MI, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "KM", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	expected := "m, km, ft, mi"
	if got := GetValidUnitsString(); got != expected {
		t.Errorf("GetValidUnitsString() = %s, want %s", got, expected)
	}
}
