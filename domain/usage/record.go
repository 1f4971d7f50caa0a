// Package usage provides the per-user usage record and pure mutations on it.
// All functions are deterministic with no side effects.
package usage

import (
	"time"

	"github.com/printforge/genmeter/domain/bucket"
)

// Record holds the metering state for one user (value type).
// Bucket maps are keyed by day ("YYYY-MM-DD") and hour ("YYYY-MM-DD_HH").
type Record struct {
	UserID      string
	DailyUsage  map[string]int64
	HourlyUsage map[string]int64
	TotalUsage  int64     // lifetime count, never decremented
	LastCleanup time.Time // zero = retention sweep never ran
	CreatedAt   time.Time
	LastUpdate  time.Time
}

// Empty returns a zero-usage record for a user. Absence of a stored record
// is equivalent to this: all limits fully available.
func Empty(userID string) Record {
	return Record{
		UserID:      userID,
		DailyUsage:  map[string]int64{},
		HourlyUsage: map[string]int64{},
	}
}

// Normalize repairs a record that came back from storage in a malformed
// shape: nil bucket maps become empty maps and negative counts are dropped.
// A record that cannot be trusted degrades to zero usage rather than
// blocking the user.
func Normalize(r Record) Record {
	if r.DailyUsage == nil {
		r.DailyUsage = map[string]int64{}
	}
	if r.HourlyUsage == nil {
		r.HourlyUsage = map[string]int64{}
	}
	for k, v := range r.DailyUsage {
		if v < 0 {
			delete(r.DailyUsage, k)
		}
	}
	for k, v := range r.HourlyUsage {
		if v < 0 {
			delete(r.HourlyUsage, k)
		}
	}
	if r.TotalUsage < 0 {
		r.TotalUsage = 0
	}
	return r
}

// Increment returns a copy of r with the day and hour buckets for now and
// the lifetime total each bumped by one, and LastUpdate stamped.
func Increment(r Record, now time.Time) Record {
	out := clone(r)
	out.DailyUsage[bucket.DayKey(now)]++
	out.HourlyUsage[bucket.HourKey(now)]++
	out.TotalUsage++
	out.LastUpdate = now
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	return out
}

// clone copies r including its bucket maps so callers can mutate freely.
func clone(r Record) Record {
	out := r
	out.DailyUsage = make(map[string]int64, len(r.DailyUsage)+1)
	for k, v := range r.DailyUsage {
		out.DailyUsage[k] = v
	}
	out.HourlyUsage = make(map[string]int64, len(r.HourlyUsage)+1)
	for k, v := range r.HourlyUsage {
		out.HourlyUsage[k] = v
	}
	return out
}
