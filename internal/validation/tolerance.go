package validation

import (
	"math"
	"strings"
)

// Tolerances for matching a recorded vendor amount against the expected one.
const (
	AbsoluteTolerance = 10.0
	JapanTolerance    = 0.15

	// LegacyGraceDays is how long after a legacy schedule ends a sale may still be billed under it.
	LegacyGraceDays = 180
)

// WithinTolerance reports whether actual matches expected: within ±10 in vendor
// currency, or ±15% for Japanese customers. A zero actual amount never matches a
// positive expected one.
func WithinTolerance(actual, expected float64, country string) bool {
	if actual == 0 && expected > 0 {
		return false
	}

	if strings.EqualFold(strings.TrimSpace(country), "Japan") {
		low := expected * (1 - JapanTolerance)
		high := expected * (1 + JapanTolerance)
		if low > high {
			low, high = high, low
		}
		return actual >= low && actual <= high
	}

	return math.Abs(actual-expected) <= AbsoluteTolerance
}
