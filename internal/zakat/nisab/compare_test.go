package nisab_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mizan-app/mizan/server/internal/zakat/nisab"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompare_AboveBelowEqual(t *testing.T) {
	cases := []struct {
		name      string
		wealth    string
		threshold string
		above     bool
		delta     string
	}{
		{"above", "50000", "5000", true, "45000"},
		{"below", "4000", "5000", false, "-1000"},
		{"equal counts as meeting nisab", "5000", "5000", true, "0"},
		{"fractional", "5000.01", "5000", true, "0.01"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := nisab.Compare(dec(tc.wealth), dec(tc.threshold))
			if c.IsAbove != tc.above {
				t.Errorf("IsAbove: expected %v, got %v", tc.above, c.IsAbove)
			}
			if !c.Delta.Equal(dec(tc.delta)) {
				t.Errorf("Delta: expected %s, got %s", tc.delta, c.Delta)
			}
		})
	}
}

func TestCompare_PercentOfThreshold(t *testing.T) {
	c := nisab.Compare(dec("2500"), dec("5000"))
	if c.PercentOfThreshold != 50 {
		t.Errorf("expected 50%%, got %v", c.PercentOfThreshold)
	}
}

func TestCompare_ZeroThresholdNeverErrors(t *testing.T) {
	c := nisab.Compare(dec("1000"), decimal.Zero)
	if !c.IsAbove {
		t.Error("any wealth meets a zero threshold")
	}
	if c.PercentOfThreshold != 0 {
		t.Errorf("zero threshold must map percent to 0, got %v", c.PercentOfThreshold)
	}
	if !c.Delta.Equal(dec("1000")) {
		t.Errorf("expected delta 1000, got %s", c.Delta)
	}
}
