// Package domain entry.go defines journal entries and their file naming rules.
package domain

import (
	"slices"
	"strings"
	"time"
)

// FileExt is the fixed suffix of every entry file.
const FileExt = ".txt"

// Entry is the logical view of one day's journal file. It is derived from the
// file name on every listing and never persisted on its own.
type Entry struct {
	FileName    string    // canonical date string plus FileExt
	Date        time.Time // UTC midnight of the Gregorian day
	DisplayName string    // FileName without FileExt
}

// FileNameFor returns the canonical entry file name for t's calendar day.
func FileNameFor(t time.Time) string { return DateToString(t) + FileExt }

// ParseFileName validates name as a canonical entry file name and returns the
// decoded Entry. Names with path separators, a different suffix or a date that
// does not round-trip are rejected with ErrInvalidFileName.
func ParseFileName(name string) (Entry, error) {
	if !strings.HasSuffix(name, FileExt) {
		return Entry{}, ErrInvalidFileName
	}
	stem := strings.TrimSuffix(name, FileExt)
	date, err := StringToDate(stem)
	if err != nil {
		return Entry{}, ErrInvalidFileName
	}
	return Entry{FileName: name, Date: date, DisplayName: stem}, nil
}

// SortNewestFirst orders entries by date descending, breaking ties by name.
func SortNewestFirst(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(a.FileName, b.FileName)
	})
}

// FilterYear returns the entries whose Solar Hijri year equals year,
// preserving order.
func FilterYear(entries []Entry, year int) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if YearOf(e.Date) == year {
			out = append(out, e)
		}
	}
	return out
}

// MonthGroup is a run of entries sharing a Solar Hijri year and month.
type MonthGroup struct {
	Year    int
	Month   int
	Name    string
	Entries []Entry
}

// GroupByMonth splits already-sorted entries into consecutive year/month
// groups, keeping the input order within and across groups.
func GroupByMonth(entries []Entry) []MonthGroup {
	var groups []MonthGroup
	for _, e := range entries {
		y, m := YearOf(e.Date), MonthOf(e.Date)
		if n := len(groups); n > 0 && groups[n-1].Year == y && groups[n-1].Month == m {
			groups[n-1].Entries = append(groups[n-1].Entries, e)
			continue
		}
		groups = append(groups, MonthGroup{Year: y, Month: m, Name: MonthName(m), Entries: []Entry{e}})
	}
	return groups
}
