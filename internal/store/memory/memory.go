// Package memory is an in-process SummaryStore for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

type Store struct {
	mu     sync.RWMutex
	byID   map[string]domain.Summary
	byCall map[string]string
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{
		byID:   make(map[string]domain.Summary),
		byCall: make(map[string]string),
		now:    time.Now,
	}
}

// Save upserts by CallID. A new record gets an id; every save stamps CreatedAt.
func (s *Store) Save(_ context.Context, summary domain.Summary) (domain.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byCall[summary.CallID]; ok {
		summary.ID = id
	} else {
		summary.ID = uuid.NewString()
		s.byCall[summary.CallID] = summary.ID
	}
	summary.CreatedAt = s.now()
	s.byID[summary.ID] = summary
	return summary, nil
}

func (s *Store) Get(_ context.Context, id string) (domain.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.byID[id]
	if !ok {
		return domain.Summary{}, domain.ErrNotFound
	}
	return sum, nil
}

func (s *Store) GetByCallID(ctx context.Context, callID string) (domain.Summary, error) {
	s.mu.RLock()
	id, ok := s.byCall[callID]
	s.mu.RUnlock()
	if !ok {
		return domain.Summary{}, domain.ErrNotFound
	}
	return s.Get(ctx, id)
}

// List returns all records, most recent first.
func (s *Store) List(_ context.Context) ([]domain.Summary, error) {
	return s.filter(func(domain.Summary) bool { return true }), nil
}

// ListByCaller returns the caller's records, most recent first.
func (s *Store) ListByCaller(_ context.Context, callerID string) ([]domain.Summary, error) {
	return s.filter(func(sum domain.Summary) bool { return sum.CallerID == callerID }), nil
}

func (s *Store) filter(keep func(domain.Summary) bool) []domain.Summary {
	s.mu.RLock()
	out := make([]domain.Summary, 0, len(s.byID))
	for _, sum := range s.byID {
		if keep(sum) {
			out = append(out, sum)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
