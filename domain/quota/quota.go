// Package quota provides pure functions for quota decisions.
// All functions are deterministic with no side effects.
package quota

import (
	"time"

	"github.com/printforge/genmeter/domain/bucket"
	"github.com/printforge/genmeter/domain/usage"
)

// Config holds the metering limits (value type).
type Config struct {
	HourlyLimit int64 // 0 or negative = unlimited
	DailyLimit  int64 // 0 or negative = unlimited
}

// Denial reasons. These are user-facing messages; infrastructure failures
// must never surface through them.
const (
	ReasonHourlyLimit = "hourly limit reached"
	ReasonDailyLimit  = "daily limit reached"
)

// Decision represents the outcome of a quota check (value type).
type Decision struct {
	Allowed    bool
	Reason     string // empty when allowed
	HourlyUsed int64
	DailyUsed  int64
}

// Check decides whether one more generation is allowed for the record's
// user at time now. The hourly cap is evaluated before the daily cap, so
// the hourly message wins when both are exhausted.
// This is a PURE function.
func Check(rec usage.Record, cfg Config, now time.Time) Decision {
	hourly := rec.HourlyUsage[bucket.HourKey(now)]
	daily := rec.DailyUsage[bucket.DayKey(now)]

	d := Decision{HourlyUsed: hourly, DailyUsed: daily}
	switch {
	case cfg.HourlyLimit > 0 && hourly >= cfg.HourlyLimit:
		d.Reason = ReasonHourlyLimit
	case cfg.DailyLimit > 0 && daily >= cfg.DailyLimit:
		d.Reason = ReasonDailyLimit
	default:
		d.Allowed = true
	}
	return d
}

// Window summarizes one quota window for display.
type Window struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// Stats is a display-ready usage summary (value type).
type Stats struct {
	Hourly Window `json:"hourly"`
	Daily  Window `json:"daily"`
	Total  int64  `json:"total"`
}

// StatsFor derives the stats summary for a record at time now, using the
// same lookups as Check. Remaining counts clamp at zero.
// This is a PURE function.
func StatsFor(rec usage.Record, cfg Config, now time.Time) Stats {
	return Stats{
		Hourly: window(rec.HourlyUsage[bucket.HourKey(now)], cfg.HourlyLimit),
		Daily:  window(rec.DailyUsage[bucket.DayKey(now)], cfg.DailyLimit),
		Total:  rec.TotalUsage,
	}
}

func window(used, limit int64) Window {
	w := Window{Used: used, Limit: limit}
	if remaining := limit - used; remaining > 0 {
		w.Remaining = remaining
	}
	return w
}
