package model

import (
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ParseDate parses a calendar date as midnight in loc.
func ParseDate(field, raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, Invalid(field, "is required")
	}
	d, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, Invalid(field, "must be YYYY-MM-DD (got %q)", raw)
	}
	return d, nil
}

// ParseClock parses "HH:mm" into minutes after midnight.
func ParseClock(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(ClockLayout, raw)
	if err != nil {
		return 0, Invalid(field, "must be HH:mm (got %q)", raw)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// At returns the instant minute minutes after the local midnight of day.
func At(day time.Time, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, day.Location())
}
