// Package domain calendar.go converts between Gregorian instants and the
// Solar Hijri (Persian) date strings used to name journal entries.
package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Valid Solar Hijri year range supported by the break table below.
const (
	MinYear = 1
	MaxYear = 3177
)

// breaks holds the Solar Hijri years at which the 33-year leap cycle shifts.
var breaks = [...]int{
	-61, 9, 38, 199, 426, 686, 756, 818, 1111, 1181, 1210,
	1635, 2060, 2097, 2192, 2262, 2324, 2394, 2456, 3178,
}

var monthNames = [...]string{
	"Farvardin", "Ordibehesht", "Khordad",
	"Tir", "Mordad", "Shahrivar",
	"Mehr", "Aban", "Azar",
	"Dey", "Bahman", "Esfand",
}

var dateRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// yearInfo describes where a Solar Hijri year starts in the Gregorian calendar.
// leap is the number of years since the last leap year (0 means jy is leap).
type yearInfo struct {
	gy    int
	march int
	leap  int
}

func jalCal(jy int) (yearInfo, bool) {
	if jy < breaks[0] || jy >= breaks[len(breaks)-1] {
		return yearInfo{}, false
	}
	gy := jy + 621
	leapJ := -14
	jp := breaks[0]
	jump := 0
	for i := 1; i < len(breaks); i++ {
		jm := breaks[i]
		jump = jm - jp
		if jy < jm {
			break
		}
		leapJ += jump/33*8 + (jump%33)/4
		jp = jm
	}
	n := jy - jp
	leapJ += n/33*8 + (n%33+3)/4
	if jump%33 == 4 && jump-n == 4 {
		leapJ++
	}
	leapG := gy/4 - (gy/100+1)*3/4 - 150
	march := 20 + leapJ - leapG
	if jump-n < 6 {
		n = n - jump + (jump+4)/33*33
	}
	leap := ((n+1)%33 - 1) % 4
	if leap == -1 {
		leap = 4
	}
	return yearInfo{gy: gy, march: march, leap: leap}, true
}

// IsLeapYear reports whether the Solar Hijri year has a 30-day Esfand.
func IsLeapYear(year int) bool {
	info, ok := jalCal(year)
	return ok && info.leap == 0
}

// DaysInMonth returns the length of a Solar Hijri month, or 0 if out of range.
func DaysInMonth(year, month int) int {
	switch {
	case month < 1 || month > 12:
		return 0
	case month <= 6:
		return 31
	case month <= 11:
		return 30
	case IsLeapYear(year):
		return 30
	default:
		return 29
	}
}

// MonthName returns the Solar Hijri month name for 1..12.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return "Invalid Month"
	}
	return monthNames[month-1]
}

// civil converts t to its Y/M/D in t's own location and returns UTC midnight.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// toPersian returns the Solar Hijri year, month and day for t's calendar day.
func toPersian(t time.Time) (int, int, int) {
	day := civil(t)
	jy := day.Year() - 621
	info, ok := jalCal(jy)
	if !ok {
		return 0, 0, 0
	}
	start := time.Date(info.gy, time.March, info.march, 0, 0, 0, 0, time.UTC)
	k := int(day.Sub(start).Hours() / 24)
	if k >= 0 {
		if k <= 185 {
			return jy, 1 + k/31, k%31 + 1
		}
		k -= 186
	} else {
		jy--
		k += 179
		if info.leap == 1 {
			k++
		}
	}
	return jy, 7 + k/30, k%30 + 1
}

// fromPersian returns UTC midnight of the given Solar Hijri day. Components
// must already be validated.
func fromPersian(jy, jm, jd int) time.Time {
	info, _ := jalCal(jy)
	start := time.Date(info.gy, time.March, info.march, 0, 0, 0, 0, time.UTC)
	offset := (jm-1)*31 - jm/7*(jm-7) + jd - 1
	return start.AddDate(0, 0, offset)
}

// DateToString renders t's calendar day as a zero-padded Solar Hijri
// YYYY-MM-DD string.
func DateToString(t time.Time) string {
	y, m, d := toPersian(t)
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

// StringToDate parses a Solar Hijri YYYY-MM-DD string and returns UTC midnight
// of that day. Out-of-range components yield ErrInvalidDate.
func StringToDate(s string) (time.Time, error) {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, ErrInvalidDate
	}
	// The regexp guarantees digits, so Atoi cannot fail.
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if year < MinYear || year > MaxYear {
		return time.Time{}, ErrInvalidDate
	}
	if day < 1 || day > DaysInMonth(year, month) {
		return time.Time{}, ErrInvalidDate
	}
	return fromPersian(year, month, day), nil
}

// YearOf returns the Solar Hijri year of t's calendar day.
func YearOf(t time.Time) int {
	y, _, _ := toPersian(t)
	return y
}

// MonthOf returns the Solar Hijri month (1..12) of t's calendar day.
func MonthOf(t time.Time) int {
	_, m, _ := toPersian(t)
	return m
}

// DayOf returns the Solar Hijri day of month of t's calendar day.
func DayOf(t time.Time) int {
	_, _, d := toPersian(t)
	return d
}
