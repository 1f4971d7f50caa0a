package usage

import (
	"time"

	"github.com/printforge/genmeter/domain/bucket"
)

// PruneResult reports how many entries a retention prune removed.
type PruneResult struct {
	Daily  int
	Hourly int
}

// Prune returns a copy of r with bucket entries older than the retention
// window removed and LastCleanup stamped. Daily keys below the cutoff day
// are dropped; hourly keys are dropped when their date component is below
// the cutoff. TotalUsage is never reduced.
func Prune(r Record, now time.Time, retentionDays int) (Record, PruneResult) {
	cutoff := bucket.CutoffDay(now, retentionDays)
	out := clone(r)

	var res PruneResult
	for k := range out.DailyUsage {
		if k < cutoff {
			delete(out.DailyUsage, k)
			res.Daily++
		}
	}
	for k := range out.HourlyUsage {
		if bucket.DayOf(k) < cutoff {
			delete(out.HourlyUsage, k)
			res.Hourly++
		}
	}

	out.LastCleanup = now
	return out, res
}

// SweepDue reports whether a retention sweep should run for r: either one
// has never run, or at least minInterval has elapsed since the last one.
func SweepDue(r Record, now time.Time, minInterval time.Duration) bool {
	if r.LastCleanup.IsZero() {
		return true
	}
	return now.Sub(r.LastCleanup) >= minInterval
}
