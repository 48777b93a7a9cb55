package hijri_test

import (
	"testing"
	"time"

	"github.com/mizan-app/mizan/server/internal/zakat/hijri"
)

func greg(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestFromTime_Epoch(t *testing.T) {
	// 19 July 622 CE (proleptic Gregorian) is 1 Muharram 1 AH in the civil
	// tabular calendar.
	got := hijri.FromTime(greg(622, time.July, 19))
	want := hijri.Date{Year: 1, Month: 1, Day: 1}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFromTime_MonthLengthsAlternate(t *testing.T) {
	epoch := greg(622, time.July, 19)

	// Muharram has 30 days, so day 30 is still month 1 and the next day
	// rolls into Safar.
	got := hijri.FromTime(epoch.AddDate(0, 0, 29))
	if (got != hijri.Date{Year: 1, Month: 1, Day: 30}) {
		t.Errorf("epoch+29d: expected 0001-01-30, got %v", got)
	}

	got = hijri.FromTime(epoch.AddDate(0, 0, 30))
	if (got != hijri.Date{Year: 1, Month: 2, Day: 1}) {
		t.Errorf("epoch+30d: expected 0001-02-01, got %v", got)
	}
}

func TestFromTime_CommonYearIs354Days(t *testing.T) {
	// Year 1 AH is a common year in the 30-year tabular cycle.
	epoch := greg(622, time.July, 19)
	got := hijri.FromTime(epoch.AddDate(0, 0, 354))
	want := hijri.Date{Year: 2, Month: 1, Day: 1}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestString_ZeroPadded(t *testing.T) {
	d := hijri.Date{Year: 1446, Month: 9, Day: 5}
	if d.String() != "1446-09-05" {
		t.Errorf("expected 1446-09-05, got %s", d.String())
	}
}
