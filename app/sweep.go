package app

import (
	"context"
	"errors"

	"github.com/printforge/genmeter/domain/usage"
	"github.com/printforge/genmeter/ports"
)

// SweepResult reports the outcome of one per-user retention sweep.
type SweepResult struct {
	Ran           bool `json:"ran"`
	RemovedDaily  int  `json:"removed_daily"`
	RemovedHourly int  `json:"removed_hourly"`
}

// SweepIfStale prunes a user's stale bucket entries if their last sweep is
// at least the minimum interval old (or never ran). Failures are logged
// and swallowed; LastCleanup stays unchanged in the store so the sweep is
// retried on the next eligible trigger.
func (s *MeterService) SweepIfStale(ctx context.Context, userID string) (SweepResult, error) {
	if err := validateUserID(userID); err != nil {
		return SweepResult{}, err
	}

	now := s.clock.Now()

	opCtx, cancel := s.opContext(ctx)
	rec, err := s.store.Get(opCtx, userID)
	cancel()
	if errors.Is(err, ports.ErrNotFound) {
		return SweepResult{}, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("sweep skipped, usage store unreachable")
		s.countStoreError("get")
		return SweepResult{}, nil
	}
	rec = usage.Normalize(rec)

	if !usage.SweepDue(rec, now, s.sweepMinInterval) {
		if s.metrics != nil {
			s.metrics.SweepSkipped.Inc()
		}
		return SweepResult{}, nil
	}

	pruned, res := usage.Prune(rec, now, s.retentionDays)

	opCtx, cancel = s.opContext(ctx)
	err = s.store.SaveBuckets(opCtx, userID, pruned.DailyUsage, pruned.HourlyUsage, pruned.LastCleanup)
	cancel()
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to persist sweep, will retry")
		s.countStoreError("save_buckets")
		return SweepResult{}, nil
	}

	if s.metrics != nil {
		s.metrics.SweepRuns.Inc()
		s.metrics.SweepRemoved.WithLabelValues("daily").Add(float64(res.Daily))
		s.metrics.SweepRemoved.WithLabelValues("hourly").Add(float64(res.Hourly))
	}
	s.logger.Info().Str("user_id", userID).
		Int("removed_daily", res.Daily).Int("removed_hourly", res.Hourly).
		Msg("retention sweep completed")

	return SweepResult{Ran: true, RemovedDaily: res.Daily, RemovedHourly: res.Hourly}, nil
}

// SweepAllResult reports the outcome of an administrative global sweep.
type SweepAllResult struct {
	Users         int   `json:"users"`
	Swept         int   `json:"swept"`
	RemovedDaily  int   `json:"removed_daily"`
	RemovedHourly int   `json:"removed_hourly"`
	EventsRemoved int64 `json:"events_removed"`
}

// SweepAll applies the per-user sweep to every stored record, then prunes
// the audit log with the same retention window. Intended for batch or
// administrative use, not per-login triggering.
func (s *MeterService) SweepAll(ctx context.Context) (SweepAllResult, error) {
	opCtx, cancel := s.opContext(ctx)
	ids, err := s.store.ListUserIDs(opCtx)
	cancel()
	if err != nil {
		s.countStoreError("list")
		return SweepAllResult{}, err
	}

	res := SweepAllResult{Users: len(ids)}
	for _, id := range ids {
		r, err := s.SweepIfStale(ctx, id)
		if err != nil {
			continue
		}
		if r.Ran {
			res.Swept++
			res.RemovedDaily += r.RemovedDaily
			res.RemovedHourly += r.RemovedHourly
		}
	}

	if s.events != nil {
		cutoff := s.clock.Now().AddDate(0, 0, -s.retentionDays)
		opCtx, cancel := s.opContext(ctx)
		removed, err := s.events.DeleteOlderThan(opCtx, cutoff)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Time("cutoff", cutoff).Msg("failed to prune usage events")
		} else {
			res.EventsRemoved = removed
		}
	}

	return res, nil
}
