// Package store keeps the history of sync runs.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/example/assetsync/internal/types"
)

// ErrMissingRunID is returned when saving a report without a run id.
var ErrMissingRunID = errors.New("missing run id")

// RunStore persists sync reports and provides a health ping.
type RunStore interface {
	Save(ctx context.Context, r types.SyncReport) error
	Recent(ctx context.Context, limit int) ([]types.SyncReport, error)
	Ping(ctx context.Context) error
}

// MemoryRunStore keeps the last max reports in process. Used when no Mongo URI
// is configured.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs []types.SyncReport
	max  int
}

func NewMemoryRunStore(max int) *MemoryRunStore {
	if max < 1 {
		max = 1
	}
	return &MemoryRunStore{max: max}
}

func (s *MemoryRunStore) Save(_ context.Context, r types.SyncReport) error {
	if r.RunID == "" {
		return ErrMissingRunID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].RunID == r.RunID {
			s.runs[i] = r
			return nil
		}
	}
	s.runs = append(s.runs, r)
	if len(s.runs) > s.max {
		s.runs = s.runs[len(s.runs)-s.max:]
	}
	return nil
}

// Recent returns up to limit reports, newest first.
func (s *MemoryRunStore) Recent(_ context.Context, limit int) ([]types.SyncReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	out := make([]types.SyncReport, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

func (s *MemoryRunStore) Ping(context.Context) error { return nil }
