package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/printforge/genmeter/domain/usage"
	"github.com/printforge/genmeter/ports"
)

// UsageStore implements ports.UsageStore using SQLite.
// Increments run as a single SQL transaction against JSON bucket columns,
// so concurrent recordings for the same bucket cannot lose updates.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Get retrieves the record for a user.
func (s *UsageStore) Get(ctx context.Context, userID string) (usage.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, daily_usage, hourly_usage, total_usage, last_cleanup, created_at, last_update
		FROM usage_records
		WHERE user_id = ?
	`, userID)

	var (
		rec         usage.Record
		dailyJSON   string
		hourlyJSON  string
		lastCleanup sql.NullTime
	)
	err := row.Scan(&rec.UserID, &dailyJSON, &hourlyJSON, &rec.TotalUsage, &lastCleanup, &rec.CreatedAt, &rec.LastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return usage.Record{}, ports.ErrNotFound
	}
	if err != nil {
		return usage.Record{}, err
	}

	// Corrupt bucket JSON degrades to zero usage rather than failing the read.
	rec.DailyUsage = decodeCounts(dailyJSON)
	rec.HourlyUsage = decodeCounts(hourlyJSON)
	if lastCleanup.Valid {
		rec.LastCleanup = lastCleanup.Time
	}
	return usage.Normalize(rec), nil
}

// Increment bumps the day and hour buckets and the lifetime total by one,
// creating the record if absent. The whole operation is one transaction.
func (s *UsageStore) Increment(ctx context.Context, userID, dayKey, hourKey string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := now.UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_records (user_id, daily_usage, hourly_usage, total_usage, created_at, last_update)
		VALUES (?, '{}', '{}', 0, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, ts, ts)
	if err != nil {
		return err
	}

	// json_set rebuilds the column in place; a malformed column is replaced
	// with a fresh object so recording recovers from corrupt data.
	_, err = tx.ExecContext(ctx, `
		UPDATE usage_records SET
			daily_usage = json_set(
				CASE WHEN json_valid(daily_usage) THEN daily_usage ELSE '{}' END,
				?, COALESCE(CASE WHEN json_valid(daily_usage) THEN json_extract(daily_usage, ?) END, 0) + 1),
			hourly_usage = json_set(
				CASE WHEN json_valid(hourly_usage) THEN hourly_usage ELSE '{}' END,
				?, COALESCE(CASE WHEN json_valid(hourly_usage) THEN json_extract(hourly_usage, ?) END, 0) + 1),
			total_usage = total_usage + 1,
			last_update = ?
		WHERE user_id = ?
	`, jsonPath(dayKey), jsonPath(dayKey), jsonPath(hourKey), jsonPath(hourKey), ts, userID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// SaveBuckets replaces the bucket maps and the cleanup timestamp for a user,
// leaving the lifetime total and creation time untouched.
func (s *UsageStore) SaveBuckets(ctx context.Context, userID string, daily, hourly map[string]int64, lastCleanup time.Time) error {
	dailyJSON, err := encodeCounts(daily)
	if err != nil {
		return fmt.Errorf("encode daily buckets: %w", err)
	}
	hourlyJSON, err := encodeCounts(hourly)
	if err != nil {
		return fmt.Errorf("encode hourly buckets: %w", err)
	}

	ts := lastCleanup.UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE usage_records
		SET daily_usage = ?, hourly_usage = ?, last_cleanup = ?, last_update = ?
		WHERE user_id = ?
	`, dailyJSON, hourlyJSON, ts, ts, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// ListUserIDs enumerates every user with a stored record.
func (s *UsageStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM usage_records ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// jsonPath quotes a bucket key as a JSON1 object path. Keys only contain
// digits, dashes and underscores, so no escaping is needed.
func jsonPath(key string) string {
	return `$."` + key + `"`
}

func decodeCounts(raw string) map[string]int64 {
	var m map[string]int64
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return map[string]int64{}
	}
	return m
}

func encodeCounts(m map[string]int64) (string, error) {
	if m == nil {
		m = map[string]int64{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
