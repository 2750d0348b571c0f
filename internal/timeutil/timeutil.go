// Package timeutil handles the two string formats the API speaks: "HH:MM"
// clock times on report entries and "yyyyMMdd" day keys in URLs and
// daily-duration maps. Days are UTC calendar days with no time component.
package timeutil

import (
	"fmt"
	"time"
)

// dayKeyLayout is the compact calendar-day key used in routes and the
// daily-durations response, e.g. "20240304".
const dayKeyLayout = "20060102"

// MinutesOf converts an "HH:MM" clock time to minutes since midnight.
// The hour field is not range-checked beyond being two digits; "25:00" is 1500
// minutes, matching how durations are derived from raw wall-clock strings.
func MinutesOf(clock string) (int, error) {
	var hh, mm int
	if len(clock) != 5 || clock[2] != ':' {
		return 0, fmt.Errorf("timeutil: invalid time %q, expected hh:mm", clock)
	}
	if _, err := fmt.Sscanf(clock, "%02d:%02d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("timeutil: invalid time %q, expected hh:mm", clock)
	}
	if hh < 0 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("timeutil: invalid time %q, expected hh:mm", clock)
	}
	return hh*60 + mm, nil
}

// IsClockTime reports whether s has the "HH:MM" shape accepted by MinutesOf.
func IsClockTime(s string) bool {
	_, err := MinutesOf(s)
	return err == nil
}

// ParseDayKey parses a "yyyyMMdd" day key into a UTC midnight time.Time.
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(dayKeyLayout, key, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: invalid date %q, expected yyyyMMdd", key)
	}
	return t, nil
}

// FormatDayKey renders a time as its "yyyyMMdd" day key, in UTC.
func FormatDayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// StartOfDay truncates t to UTC midnight. Reports are keyed by this value so
// that any timestamp within a day addresses the same report.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
