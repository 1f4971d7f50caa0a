package memory

import (
	"context"
	"sync"
	"time"

	"github.com/printforge/genmeter/domain/usage"
	"github.com/printforge/genmeter/ports"
)

// EventStore is an in-memory implementation of ports.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	events []usage.Event
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Append stores one event.
func (s *EventStore) Append(ctx context.Context, e usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// ListByUser returns the most recent events for a user, newest first.
func (s *EventStore) ListByUser(ctx context.Context, userID string, limit int) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []usage.Event
	for i := len(s.events) - 1; i >= 0 && len(matching) < limit; i-- {
		if s.events[i].UserID == userID {
			matching = append(matching, s.events[i])
		}
	}
	return matching, nil
}

// DeleteOlderThan removes events created before cutoff.
func (s *EventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var removed int64
	for _, e := range s.events {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

// Ensure interface compliance.
var _ ports.EventStore = (*EventStore)(nil)
