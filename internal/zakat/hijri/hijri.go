// Package hijri converts Gregorian instants to tabular (civil) Islamic
// calendar dates.  The record keeps Hijri mirrors of the Hawl start and
// completion dates purely for display; all arithmetic on the Hawl itself is
// done on the Gregorian timeline.
package hijri

import (
	"fmt"
	"time"
)

// civilEpoch is the Julian day number of 1 Muharram 1 AH in the civil
// (Friday) variant of the tabular calendar: 19 July 622 CE.
const civilEpoch = 1948440

// Date is a tabular Islamic calendar date.
type Date struct {
	Year  int
	Month int // 1..12
	Day   int // 1..30
}

// String renders the date as YYYY-MM-DD, zero-padded.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// FromTime converts t (interpreted in UTC) to its tabular Islamic date.
func FromTime(t time.Time) Date {
	t = t.UTC()
	jdn := gregorianJDN(t.Year(), int(t.Month()), t.Day())

	l := jdn - civilEpoch + 10632
	n := (l - 1) / 10631
	l = l - 10631*n + 354
	j := ((10985-l)/5316)*((50*l)/17719) + (l/5670)*((43*l)/15238)
	l = l - ((30-j)/15)*((17719*j)/50) - (j/16)*((15238*j)/43) + 29

	month := (24 * l) / 709
	day := l - (709*month)/24
	year := 30*n + j - 30

	return Date{Year: year, Month: month, Day: day}
}

// gregorianJDN returns the Julian day number for a proleptic Gregorian date.
func gregorianJDN(year, month, day int) int {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3
	return day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}
