// Package units provides shared constants and validation for distance units
package units

// Unit constants
const (
	M  = "m"
	KM = "km"
	FT = "ft"
	MI = "mi"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{M, KM, FT, MI}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "m, km, ft, mi"
}

// ConvertDistance converts a distance from meters to the target units.
// All core math and storage work in meters; conversion happens only at
// the reporting edge.
func ConvertDistance(meters float64, targetUnits string) float64 {
	switch targetUnits {
	case KM:
		return meters / 1000
	case FT:
		return meters * 3.28084 // meters to feet
	case MI:
		return meters / 1609.344 // meters to miles
	case M:
		return meters // no conversion needed
	default:
		return meters // default to meters if unknown unit
	}
}
