// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/printforge/genmeter/adapters/metrics"
	"github.com/printforge/genmeter/domain/bucket"
	"github.com/printforge/genmeter/domain/quota"
	"github.com/printforge/genmeter/domain/usage"
	"github.com/printforge/genmeter/ports"
	"github.com/rs/zerolog"
)

// ErrInvalidUserID is returned when a caller passes an empty user ID.
// It signals a caller contract violation, never a quota denial.
var ErrInvalidUserID = errors.New("user id is required")

// DefaultStoreTimeout bounds each usage store round-trip. A timed-out call
// is treated the same as an unreachable store.
const DefaultStoreTimeout = 5 * time.Second

// MeterService meters generation actions per user: quota checks, usage
// recording, retention sweeps, and display stats.
//
// Failure policy (deliberate, availability over strictness): checks fail
// open on store errors, recordings are logged and dropped, sweeps are
// retried on the next trigger. Infrastructure failures never surface to
// the end user as a quota denial.
type MeterService struct {
	store   ports.UsageStore
	events  ports.EventStore
	clock   ports.Clock
	idGen   ports.IDGenerator
	logger  zerolog.Logger
	metrics *metrics.Collector

	retentionDays    int
	sweepMinInterval time.Duration
	storeTimeout     time.Duration

	// Limits are hot-reloadable while requests are in flight.
	limits atomic.Pointer[quota.Config]
}

// MeterDeps contains dependencies for MeterService.
type MeterDeps struct {
	Store   ports.UsageStore
	Events  ports.EventStore // optional; nil disables the audit log
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  zerolog.Logger
	Metrics *metrics.Collector // optional
}

// MeterConfig contains configuration for MeterService.
type MeterConfig struct {
	Limits           quota.Config
	RetentionDays    int
	SweepMinInterval time.Duration
	StoreTimeout     time.Duration
}

// NewMeterService creates a new metering service.
func NewMeterService(deps MeterDeps, cfg MeterConfig) *MeterService {
	s := &MeterService{
		store:            deps.Store,
		events:           deps.Events,
		clock:            deps.Clock,
		idGen:            deps.IDGen,
		logger:           deps.Logger,
		metrics:          deps.Metrics,
		retentionDays:    cfg.RetentionDays,
		sweepMinInterval: cfg.SweepMinInterval,
		storeTimeout:     cfg.StoreTimeout,
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = DefaultStoreTimeout
	}
	s.UpdateLimits(cfg.Limits)
	return s
}

// UpdateLimits swaps the quota limits. Thread-safe; used by config hot
// reload.
func (s *MeterService) UpdateLimits(limits quota.Config) {
	s.limits.Store(&limits)
}

// Limits returns the current quota limits.
func (s *MeterService) Limits() quota.Config {
	return *s.limits.Load()
}

// CheckQuota decides whether one more generation is allowed for a user.
// Read-only. When the usage store is unreachable the check fails open:
// the user is allowed and the error is logged for operators.
func (s *MeterService) CheckQuota(ctx context.Context, userID string) (quota.Decision, error) {
	if err := validateUserID(userID); err != nil {
		return quota.Decision{}, err
	}

	now := s.clock.Now()
	rec, err := s.loadRecord(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).
			Msg("usage store unreachable during quota check, failing open")
		s.countStoreError("get")
		if s.metrics != nil {
			s.metrics.FailOpenTotal.Inc()
			s.metrics.ChecksTotal.WithLabelValues("fail_open").Inc()
		}
		return quota.Decision{Allowed: true}, nil
	}

	d := quota.Check(rec, s.Limits(), now)
	if s.metrics != nil {
		if d.Allowed {
			s.metrics.ChecksTotal.WithLabelValues("allowed").Inc()
		} else {
			s.metrics.ChecksTotal.WithLabelValues("denied").Inc()
			s.metrics.DenialsTotal.WithLabelValues(d.Reason).Inc()
		}
	}
	if !d.Allowed {
		s.logger.Debug().Str("user_id", userID).Str("reason", d.Reason).
			Int64("hourly_used", d.HourlyUsed).Int64("daily_used", d.DailyUsed).
			Msg("generation denied by quota")
	}
	return d, nil
}

// RecordUsage charges one generation to the user's current hour and day
// buckets and the lifetime total. Callers invoke it as soon as a check
// passes; a later failure of the generation action is not rolled back.
// Storage failures are logged and dropped so the calling workflow is
// never blocked by metering.
func (s *MeterService) RecordUsage(ctx context.Context, userID, source string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	now := s.clock.Now()
	opCtx, cancel := s.opContext(ctx)
	err := s.store.Increment(opCtx, userID, bucket.DayKey(now), bucket.HourKey(now), now)
	cancel()
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).
			Msg("failed to record usage, dropping")
		s.countStoreError("increment")
		if s.metrics != nil {
			s.metrics.RecordDrops.Inc()
		}
		return nil
	}

	if s.metrics != nil {
		s.metrics.RecordingsTotal.Inc()
	}
	s.appendEvent(ctx, userID, source, now)
	return nil
}

// GetStats derives the display summary for a user. Pure read; a store
// failure degrades to zero usage so UI badges keep rendering.
func (s *MeterService) GetStats(ctx context.Context, userID string) (quota.Stats, error) {
	if err := validateUserID(userID); err != nil {
		return quota.Stats{}, err
	}

	now := s.clock.Now()
	rec, err := s.loadRecord(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).
			Msg("usage store unreachable during stats read, returning zero usage")
		s.countStoreError("get")
		rec = usage.Empty(userID)
	}
	return quota.StatsFor(rec, s.Limits(), now), nil
}

// RecentEvents returns the newest audit entries for a user.
func (s *MeterService) RecentEvents(ctx context.Context, userID string, limit int) ([]usage.Event, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	return s.events.ListByUser(opCtx, userID, limit)
}

// loadRecord fetches and normalizes a user's record; absence reads as
// zero usage.
func (s *MeterService) loadRecord(ctx context.Context, userID string) (usage.Record, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	rec, err := s.store.Get(opCtx, userID)
	if errors.Is(err, ports.ErrNotFound) {
		return usage.Empty(userID), nil
	}
	if err != nil {
		return usage.Record{}, err
	}
	return usage.Normalize(rec), nil
}

func (s *MeterService) appendEvent(ctx context.Context, userID, source string, now time.Time) {
	if s.events == nil {
		return
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	e := usage.Event{ID: s.idGen.New(), UserID: userID, Source: source, CreatedAt: now}
	if err := s.events.Append(opCtx, e); err != nil {
		// Audit is best-effort; the counter increment already succeeded.
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to append usage event")
	}
}

func (s *MeterService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *MeterService) countStoreError(op string) {
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	return nil
}
