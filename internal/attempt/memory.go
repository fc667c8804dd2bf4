package attempt

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps attempts in process memory. It is used when no database
// is configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts []Attempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(_ context.Context, a Attempt) error {
	if err := a.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]Attempt, error) {
	limit = normalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	sorted := slices.Clone(s.attempts)
	s.mu.RUnlock()

	slices.SortStableFunc(sorted, func(a, b Attempt) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if offset >= len(sorted) {
		return []Attempt{}, nil
	}
	end := min(offset+limit, len(sorted))
	return sorted[offset:end], nil
}
