// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/printforge/genmeter/domain/usage"
)

// ErrNotFound is returned by stores when a record does not exist.
// For usage records, absence means zero usage, not an error condition.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability. The service clock is the only time
// source for bucket keys; callers never supply timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// UsageStore persists one usage record per user.
type UsageStore interface {
	// Get retrieves the record for a user.
	// Returns ErrNotFound when the user has never recorded usage.
	Get(ctx context.Context, userID string) (usage.Record, error)

	// Increment atomically bumps the given day and hour buckets and the
	// lifetime total by one, creating the record if absent. Concurrent
	// increments for the same bucket must not lose updates.
	Increment(ctx context.Context, userID, dayKey, hourKey string, now time.Time) error

	// SaveBuckets merge-writes pruned bucket maps and the cleanup timestamp,
	// leaving the lifetime total and creation time untouched.
	SaveBuckets(ctx context.Context, userID string, daily, hourly map[string]int64, lastCleanup time.Time) error

	// ListUserIDs enumerates every user with a stored record (for the
	// administrative global sweep).
	ListUserIDs(ctx context.Context) ([]string, error)
}

// EventStore persists the generation audit log.
type EventStore interface {
	// Append stores one event.
	Append(ctx context.Context, e usage.Event) error

	// ListByUser returns the most recent events for a user, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]usage.Event, error)

	// DeleteOlderThan removes events created before cutoff, returning the
	// number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
