// Package nisab compares a wealth figure against a threshold figure.  It is
// stateless: where the threshold comes from (gold or silver reference,
// frozen at Hawl start) is the caller's concern.
package nisab

import "github.com/shopspring/decimal"

// Comparison is the verdict for one wealth/threshold pair.
type Comparison struct {
	// IsAbove is true when wealth >= threshold.  Equality counts as
	// meeting Nisab.
	IsAbove bool

	// Delta is wealth - threshold, signed.
	Delta decimal.Decimal

	// PercentOfThreshold is 100 * wealth / threshold.  A zero threshold is
	// a valid-but-degenerate external input and maps to 0, never an error.
	PercentOfThreshold float64
}

// Compare evaluates wealth against threshold.
func Compare(wealth, threshold decimal.Decimal) Comparison {
	c := Comparison{
		IsAbove: wealth.GreaterThanOrEqual(threshold),
		Delta:   wealth.Sub(threshold),
	}
	if !threshold.IsZero() {
		c.PercentOfThreshold = wealth.Div(threshold).InexactFloat64() * 100
	}
	return c
}
