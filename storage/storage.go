// Package storage is the durable record store behind the moderation engine:
// per-user trust state, the enforcement audit log, link permits, strike
// state, and per-channel filter settings. The gorm implementation speaks
// sqlite or postgres; MemStore serves tests and dry runs.
package storage

import (
	"context"
	"time"

	"github.com/streamguard/streamguard/automod/strikes"
)

// ActionStats is the 24h enforcement summary shown by the status command.
type ActionStats struct {
	Total  int
	ByKind map[string]int
}

type Store interface {
	// users
	GetOrCreateUser(ctx context.Context, userID, username string) (*User, error)
	// GetUser returns nil without error when the user is unknown.
	GetUser(ctx context.Context, userID string) (*User, error)
	RecordUserMessage(ctx context.Context, userID string) error
	AdjustTrust(ctx context.Context, userID string, delta int) (int, error)
	SetWhitelisted(ctx context.Context, userID, username string, whitelisted bool) error
	IsWhitelisted(ctx context.Context, userID string) (bool, error)

	// audit log
	LogAction(ctx context.Context, action *ModAction) error
	RecentActions(ctx context.Context, limit int) ([]ModAction, error)
	UserActions(ctx context.Context, userID string, limit int) ([]ModAction, error)
	GetActionStats(ctx context.Context, window time.Duration) (ActionStats, error)

	// permits
	GrantPermit(ctx context.Context, userID, grantedBy string, duration time.Duration) error
	HasValidPermit(ctx context.Context, userID string) (bool, error)
	RevokePermit(ctx context.Context, userID string) (bool, error)
	CleanupExpiredPermits(ctx context.Context) (int, error)

	// filter settings
	GetFilterSettings(ctx context.Context, channel string) (FilterSettings, error)
	UpdateFilterSettings(ctx context.Context, settings FilterSettings) error

	// strike state, satisfying the ledger's store contract
	strikes.Store
}
