// Package hijri converts Gregorian dates to the civil tabular Islamic
// calendar. The tabular calendar is arithmetic, not observational: it serves
// as a display companion for hawl dates, never as the source of duration
// math.
package hijri

import (
	"fmt"
	"time"
)

// Date is a civil tabular Hijri date.
type Date struct {
	Year  int
	Month int // 1..12
	Day   int // 1..30
}

var monthNames = [12]string{
	"Muharram", "Safar", "Rabi' al-Awwal", "Rabi' al-Thani",
	"Jumada al-Awwal", "Jumada al-Thani", "Rajab", "Sha'ban",
	"Ramadan", "Shawwal", "Dhu al-Qi'dah", "Dhu al-Hijjah",
}

// MonthName returns the transliterated month name.
func (d Date) MonthName() string {
	if d.Month < 1 || d.Month > 12 {
		return ""
	}
	return monthNames[d.Month-1]
}

// String formats as "15 Ramadan 1447 AH".
func (d Date) String() string {
	return fmt.Sprintf("%d %s %d AH", d.Day, d.MonthName(), d.Year)
}

// jdnEpoch is the Julian day number of 1 Muharram 1 AH in the civil
// (Friday-epoch) tabular calendar.
const jdnEpoch = 1948440

// FromTime converts a Gregorian instant to its tabular Hijri date. The
// conversion uses the calendar date in t's location.
func FromTime(t time.Time) Date {
	year, month, day := t.Date()
	return fromJDN(gregorianToJDN(year, int(month), day))
}

func gregorianToJDN(year, month, day int) int {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3
	return day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

// fromJDN is the standard arithmetic inverse for the civil tabular calendar
// over its 30-year leap cycle (leap years 2, 5, 7, 10, 13, 16, 18, 21, 24,
// 26, 29).
func fromJDN(jdn int) Date {
	days := jdn - jdnEpoch + 10632
	n := (days - 1) / 10631
	days = days - 10631*n + 354
	j := ((10985-days)/5316)*((50*days)/17719) + (days/5670)*((43*days)/15238)
	days = days - ((30-j)/15)*((17719*j)/50) - (j/16)*((15238*j)/43) + 29
	month := (24 * days) / 709
	day := days - (709*month)/24
	year := 30*n + j - 30
	return Date{Year: year, Month: month, Day: day}
}
