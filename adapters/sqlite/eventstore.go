package sqlite

import (
	"context"
	"time"

	"github.com/printforge/genmeter/domain/usage"
	"github.com/printforge/genmeter/ports"
)

// EventStore implements ports.EventStore using SQLite.
type EventStore struct {
	db *DB
}

// NewEventStore creates a new SQLite event store.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Append stores one event.
func (s *EventStore) Append(ctx context.Context, e usage.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_events (id, user_id, source, created_at)
		VALUES (?, ?, ?, ?)
	`, e.ID, e.UserID, e.Source, e.CreatedAt.UTC())
	return err
}

// ListByUser returns the most recent events for a user, newest first.
func (s *EventStore) ListByUser(ctx context.Context, userID string, limit int) ([]usage.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, source, created_at
		FROM usage_events
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []usage.Event
	for rows.Next() {
		var e usage.Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.Source, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteOlderThan removes events created before cutoff.
func (s *EventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM usage_events WHERE created_at < ?
	`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ensure interface compliance.
var _ ports.EventStore = (*EventStore)(nil)
