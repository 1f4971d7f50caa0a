// Package memory provides in-memory implementations of storage ports,
// used for tests and for running without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/printforge/genmeter/domain/usage"
	"github.com/printforge/genmeter/ports"
)

// UsageStore is an in-memory implementation of ports.UsageStore.
// All mutations happen under a single write lock, so increments are atomic.
type UsageStore struct {
	mu      sync.RWMutex
	records map[string]usage.Record
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{
		records: make(map[string]usage.Record),
	}
}

// Get retrieves the record for a user.
func (s *UsageStore) Get(ctx context.Context, userID string) (usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return usage.Record{}, ports.ErrNotFound
	}
	return copyRecord(rec), nil
}

// Increment bumps the day and hour buckets and the lifetime total by one,
// creating the record if absent.
func (s *UsageStore) Increment(ctx context.Context, userID, dayKey, hourKey string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		rec = usage.Empty(userID)
		rec.CreatedAt = now
	}
	rec = copyRecord(rec)
	rec.DailyUsage[dayKey]++
	rec.HourlyUsage[hourKey]++
	rec.TotalUsage++
	rec.LastUpdate = now
	s.records[userID] = rec
	return nil
}

// SaveBuckets replaces the bucket maps and the cleanup timestamp for a user,
// leaving the lifetime total and creation time untouched.
func (s *UsageStore) SaveBuckets(ctx context.Context, userID string, daily, hourly map[string]int64, lastCleanup time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return ports.ErrNotFound
	}
	rec.DailyUsage = copyCounts(daily)
	rec.HourlyUsage = copyCounts(hourly)
	rec.LastCleanup = lastCleanup
	rec.LastUpdate = lastCleanup
	s.records[userID] = rec
	return nil
}

// ListUserIDs enumerates every user with a stored record, sorted for
// deterministic iteration.
func (s *UsageStore) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Put stores a record directly (for testing).
func (s *UsageStore) Put(rec usage.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = copyRecord(rec)
}

func copyRecord(rec usage.Record) usage.Record {
	out := rec
	out.DailyUsage = copyCounts(rec.DailyUsage)
	out.HourlyUsage = copyCounts(rec.HourlyUsage)
	return out
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
