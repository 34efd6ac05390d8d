// Package domain mood.go contains the mood scale and the new-entry template.
package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Moods is the ordered mood scale, worst to best. The 1-based position is the
// mood number written into an entry header.
var Moods = []string{"🌩️", "🌧️", "🌥️", "☀️", "🌈"}

// DefaultMood is used when a caller creates an entry without picking a mood.
const DefaultMood = "🌥️"

// MoodIndex returns the 1-based number of mood, or 0 if it is not on the scale.
func MoodIndex(mood string) int {
	for i, m := range Moods {
		if m == mood {
			return i + 1
		}
	}
	return 0
}

// MoodByNumber returns the mood for a 1-based number.
func MoodByNumber(n int) (string, bool) {
	if n < 1 || n > len(Moods) {
		return "", false
	}
	return Moods[n-1], true
}

// Template returns the initial plaintext for a new entry: one header line with
// the date, weekday and mood, followed by a blank body.
func Template(date time.Time, mood string) string {
	num := "?"
	if n := MoodIndex(mood); n > 0 {
		num = strconv.Itoa(n)
	}
	return fmt.Sprintf("📅 %s  🗓️ %s  %s %s\n\n", DateToString(date), date.Weekday(), mood, num)
}
