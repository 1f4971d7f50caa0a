package memory

import (
	"context"
	"errors"
	"time"

	"github.com/printforge/genmeter/domain/usage"
	"github.com/printforge/genmeter/ports"
)

// ErrUnavailable simulates an unreachable backend.
var ErrUnavailable = errors.New("store unavailable")

// FailingUsageStore is a ports.UsageStore that fails every operation
// (for testing the fail-open and log-and-drop policies).
type FailingUsageStore struct{}

// Get always fails.
func (FailingUsageStore) Get(ctx context.Context, userID string) (usage.Record, error) {
	return usage.Record{}, ErrUnavailable
}

// Increment always fails.
func (FailingUsageStore) Increment(ctx context.Context, userID, dayKey, hourKey string, now time.Time) error {
	return ErrUnavailable
}

// SaveBuckets always fails.
func (FailingUsageStore) SaveBuckets(ctx context.Context, userID string, daily, hourly map[string]int64, lastCleanup time.Time) error {
	return ErrUnavailable
}

// ListUserIDs always fails.
func (FailingUsageStore) ListUserIDs(ctx context.Context) ([]string, error) {
	return nil, ErrUnavailable
}

// Ensure interface compliance.
var _ ports.UsageStore = FailingUsageStore{}
