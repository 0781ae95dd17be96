package strikes

import (
	"context"
	"sync"
	"time"
)

// MemStrikeStore is a process-local Store for single-instance deployments
// and tests. A single mutex covers the read-modify-write in Increment.
type MemStrikeStore struct {
	mu      sync.Mutex
	records map[string]Record
	history map[string][]HistoryEntry
}

func NewMemStrikeStore() *MemStrikeStore {
	return &MemStrikeStore{
		records: make(map[string]Record),
		history: make(map[string][]HistoryEntry),
	}
}

var _ Store = (*MemStrikeStore)(nil)

func (s *MemStrikeStore) Get(ctx context.Context, userID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return Record{UserID: userID}, nil
	}
	if rec.Expired(time.Now()) {
		delete(s.records, userID)
		return Record{UserID: userID}, nil
	}
	return rec, nil
}

func (s *MemStrikeStore) Increment(ctx context.Context, userID, reason string, expiresAt time.Time) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	rec := s.records[userID]
	if rec.Expired(now) {
		rec = Record{}
	}
	rec.UserID = userID
	rec.Count++
	rec.LastReason = reason
	rec.LastStrike = now
	rec.ExpiresAt = expiresAt
	s.records[userID] = rec
	return rec, nil
}

func (s *MemStrikeStore) Clear(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.records[userID]
	delete(s.records, userID)
	return existed, nil
}

func (s *MemStrikeStore) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.history[userID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	// newest first
	out := make([]HistoryEntry, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *MemStrikeStore) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entry.UserID] = append(s.history[entry.UserID], entry)
	return nil
}
