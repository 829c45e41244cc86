package memory

import (
	"context"
	"sync"

	"vuedu-quiz-service/internal/domain"
)

// ResultStore keeps the last-result summary in process memory, mirroring the
// Redis-backed slot for redis-less runs.
type ResultStore struct {
	mu   sync.RWMutex
	last *domain.ResultSummary
}

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (s *ResultStore) SaveLastResult(_ context.Context, summary domain.ResultSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &summary
	return nil
}

// LastResult returns the most recently saved summary, if any.
func (s *ResultStore) LastResult(_ context.Context) (domain.ResultSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return domain.ResultSummary{}, false
	}
	return *s.last, true
}
