package statstore

import (
	"context"
	"sort"
	"sync"

	"github.com/membo-ai/studykit/study"
)

// MemoryStore is an in-memory Store. It is safe for concurrent use and
// suitable for development, testing, and single-process deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]study.Statistics
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]study.Statistics),
	}
}

// Save persists one statistics record. Saving an existing session ID
// overwrites it.
func (s *MemoryStore) Save(_ context.Context, stats study.Statistics) error {
	if stats.SessionID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[stats.SessionID] = stats
	return nil
}

// Load retrieves a record by session ID.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (study.Statistics, error) {
	if sessionID == "" {
		return study.Statistics{}, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.records[sessionID]
	if !ok {
		return study.Statistics{}, ErrNotFound
	}
	return stats, nil
}

// List returns records newest first.
func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]study.Statistics, error) {
	s.mu.RLock()
	out := make([]study.Statistics, 0, len(s.records))
	for _, stats := range s.records {
		if opts.Mode != "" && stats.Mode != opts.Mode {
			continue
		}
		out = append(out, stats)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return paginate(out, opts.Offset, opts.Limit), nil
}

// Delete removes a record by session ID.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.records, sessionID)
	return nil
}

func paginate(records []study.Statistics, offset, limit int) []study.Statistics {
	if offset >= len(records) {
		return nil
	}
	records = records[offset:]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}
