// Package strikes implements the escalating-punishment ledger: repeat
// offenders work up a fixed ladder of warn, timeouts of increasing length,
// and finally a ban. Strikes expire after a rolling window, checked lazily
// on read and write.
package strikes

import (
	"context"
	"time"
)

type Action string

const (
	ActionWarn    Action = "warn"
	ActionTimeout Action = "timeout"
	ActionBan     Action = "ban"
)

// Record is the live strike state for one user.
type Record struct {
	UserID     string
	Count      int
	LastReason string
	LastStrike time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the record's window has lapsed. Expired records
// read as empty and reset on the next increment.
func (r Record) Expired(now time.Time) bool {
	return r.Count > 0 && !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// HistoryEntry is one row of the per-user audit trail. ActionTaken is the
// compact "action" or "action:seconds" form ("warn", "timeout:600").
type HistoryEntry struct {
	UserID      string
	Username    string
	Reason      string
	ActionTaken string
	Moderator   string
	Channel     string
	CreatedAt   time.Time
}

// Store persists strike state. Increment must be atomic per user:
// implementations may not lose counts under concurrent calls for the same
// user, and must reset an expired record before counting. Clear is
// idempotent and reports whether anything was removed.
type Store interface {
	Get(ctx context.Context, userID string) (Record, error)
	Increment(ctx context.Context, userID, reason string, expiresAt time.Time) (Record, error)
	Clear(ctx context.Context, userID string) (bool, error)
	History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error)
	AppendHistory(ctx context.Context, entry HistoryEntry) error
}
