// Package setstore holds named string sets: the user whitelist and the
// operator-supplied domain list extensions. Sets can be seeded from a JSON
// file and mutated at runtime by moderator commands.
package setstore

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
	Add(ctx context.Context, name, val string) error
	// Remove reports whether the value was present.
	Remove(ctx context.Context, name, val string) (bool, error)
}

// MemSetStore is safe for concurrent use; commands mutate sets while the
// consumer goroutine reads them.
type MemSetStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]bool
}

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		sets: make(map[string]map[string]bool),
	}
}

var _ SetStore = (*MemSetStore)(nil)

// InSet returns false for an unknown set name.
func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[name]
	if !ok {
		return false, nil
	}
	return set[val], nil
}

func (s *MemSetStore) Add(ctx context.Context, name, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[name]
	if !ok {
		set = make(map[string]bool)
		s.sets[name] = set
	}
	set[val] = true
	return nil
}

func (s *MemSetStore) Remove(ctx context.Context, name, val string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[name]
	if !ok || !set[val] {
		return false, nil
	}
	delete(set, val)
	return true, nil
}

// Values returns a sorted snapshot of the named set, empty for an unknown
// name. Used at startup to hand loaded domain lists to the URL classifier.
func (s *MemSetStore) Values(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.sets[name]
	vals := make([]string, 0, len(set))
	for val := range set {
		vals = append(vals, val)
	}
	sort.Strings(vals)
	return vals
}

// LoadFromFileJSON seeds sets from a file of {"set-name": ["val", ...]},
// replacing any sets with the same names.
func (s *MemSetStore) LoadFromFileJSON(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var lists map[string][]string
	if err := json.Unmarshal(raw, &lists); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, l := range lists {
		m := make(map[string]bool, len(l))
		for _, val := range l {
			m[val] = true
		}
		s.sets[name] = m
	}
	return nil
}
