package storage

import (
	"context"
	"sync"
	"time"

	"github.com/streamguard/streamguard/automod/strikes"
)

// MemStore is a process-local Store for tests and dry runs. Strike state is
// delegated to the strikes package's own mem store.
type MemStore struct {
	*strikes.MemStrikeStore

	mu       sync.Mutex
	users    map[string]*User
	actions  []ModAction
	permits  map[string]Permit
	settings map[string]FilterSettings
}

func NewMemStore() *MemStore {
	return &MemStore{
		MemStrikeStore: strikes.NewMemStrikeStore(),
		users:          make(map[string]*User),
		permits:        make(map[string]Permit),
		settings:       make(map[string]FilterSettings),
	}
}

var _ Store = (*MemStore)(nil)

func (s *MemStore) GetOrCreateUser(ctx context.Context, userID, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		if username != "" {
			u.Username = username
		}
		cp := *u
		return &cp, nil
	}
	u := &User{
		UserID:     userID,
		Username:   username,
		TrustScore: 50,
		FirstSeen:  time.Now(),
	}
	s.users[userID] = u
	cp := *u
	return &cp, nil
}

func (s *MemStore) GetUser(ctx context.Context, userID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) RecordUserMessage(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.MessageCount++
		now := time.Now()
		u.LastMessage = &now
	}
	return nil
}

func (s *MemStore) AdjustTrust(ctx context.Context, userID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 50, nil
	}
	u.TrustScore += delta
	if u.TrustScore < 0 {
		u.TrustScore = 0
	} else if u.TrustScore > 100 {
		u.TrustScore = 100
	}
	return u.TrustScore, nil
}

func (s *MemStore) SetWhitelisted(ctx context.Context, userID, username string, whitelisted bool) error {
	if _, err := s.GetOrCreateUser(ctx, userID, username); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID].Whitelisted = whitelisted
	return nil
}

func (s *MemStore) IsWhitelisted(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u.Whitelisted, nil
	}
	return false, nil
}

func (s *MemStore) LogAction(ctx context.Context, action *ModAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := *action
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.ID = uint(len(s.actions) + 1)
	s.actions = append(s.actions, a)
	return nil
}

func (s *MemStore) RecentActions(ctx context.Context, limit int) ([]ModAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActions(limit, func(ModAction) bool { return true }), nil
}

func (s *MemStore) UserActions(ctx context.Context, userID string, limit int) ([]ModAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActions(limit, func(a ModAction) bool { return a.UserID == userID }), nil
}

// lastActions walks newest-first; caller holds the lock.
func (s *MemStore) lastActions(limit int, match func(ModAction) bool) []ModAction {
	var out []ModAction
	for i := len(s.actions) - 1; i >= 0 && len(out) < limit; i-- {
		if match(s.actions[i]) {
			out = append(out, s.actions[i])
		}
	}
	return out
}

func (s *MemStore) GetActionStats(ctx context.Context, window time.Duration) (ActionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	since := time.Now().Add(-window)
	stats := ActionStats{ByKind: make(map[string]int)}
	for _, a := range s.actions {
		if a.CreatedAt.After(since) {
			stats.ByKind[a.Action]++
			stats.Total++
		}
	}
	return stats, nil
}

func (s *MemStore) GrantPermit(ctx context.Context, userID, grantedBy string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permits[userID] = Permit{
		UserID:    userID,
		GrantedBy: grantedBy,
		ExpiresAt: time.Now().Add(duration),
	}
	return nil
}

func (s *MemStore) HasValidPermit(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.permits[userID]
	return ok && p.ExpiresAt.After(time.Now()), nil
}

func (s *MemStore) RevokePermit(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.permits[userID]
	delete(s.permits, userID)
	return ok, nil
}

func (s *MemStore) CleanupExpiredPermits(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, p := range s.permits {
		if !p.ExpiresAt.After(now) {
			delete(s.permits, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemStore) GetFilterSettings(ctx context.Context, channel string) (FilterSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings, ok := s.settings[channel]; ok {
		return settings, nil
	}
	return DefaultFilterSettings(channel), nil
}

func (s *MemStore) UpdateFilterSettings(ctx context.Context, settings FilterSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.Channel] = settings
	return nil
}
