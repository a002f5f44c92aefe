package memory

import (
	"context"
	"sync"

	"assessment-session-service/internal/domain"
)

// ResponseStore is an in-memory implementation of app.ResponseStore.
type ResponseStore struct {
	mu        sync.RWMutex
	byAttempt map[string][]domain.Response
}

func NewResponseStore() *ResponseStore {
	return &ResponseStore{byAttempt: make(map[string][]domain.Response)}
}

func (s *ResponseStore) InsertResponse(_ context.Context, response domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.byAttempt[response.AttemptID] {
		if r.ItemID == response.ItemID {
			return domain.ErrConstraintViolation
		}
	}
	s.byAttempt[response.AttemptID] = append(s.byAttempt[response.AttemptID], response)
	return nil
}

func (s *ResponseStore) ListResponses(_ context.Context, attemptID string) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	responses := s.byAttempt[attemptID]
	out := make([]domain.Response, len(responses))
	copy(out, responses)
	return out, nil
}

func (s *ResponseStore) DeleteResponses(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byAttempt, attemptID)
	return nil
}
