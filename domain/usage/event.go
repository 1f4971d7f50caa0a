package usage

import "time"

// Event is an append-only audit entry for one recorded generation action.
type Event struct {
	ID        string
	UserID    string
	Source    string // caller-supplied origin, e.g. "wizard" or "api"
	CreatedAt time.Time
}
