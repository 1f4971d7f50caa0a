// Package bucket provides pure functions for time-bucket keys.
// Day keys are "YYYY-MM-DD" and hour keys are "YYYY-MM-DD_HH".
// Both encodings sort lexicographically in time order, which the
// retention logic relies on.
package bucket

import (
	"strings"
	"time"
)

const (
	dayLayout  = "2006-01-02"
	hourLayout = "2006-01-02_15"
)

// DayKey returns the day bucket key for t.
func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}

// HourKey returns the hour bucket key for t. The hour is zero-padded 00-23.
func HourKey(t time.Time) string {
	return t.Format(hourLayout)
}

// DayOf returns the date component of an hour key (the part before the
// underscore). A key without a separator is returned unchanged.
func DayOf(hourKey string) string {
	if i := strings.IndexByte(hourKey, '_'); i >= 0 {
		return hourKey[:i]
	}
	return hourKey
}

// CutoffDay returns the oldest day key still inside the retention window.
// Day keys lexicographically below the cutoff are stale.
func CutoffDay(now time.Time, retentionDays int) string {
	return DayKey(now.AddDate(0, 0, -retentionDays))
}
