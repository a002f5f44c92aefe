package memory

import (
	"context"
	"sync"
	"time"

	"assessment-session-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore. The pair index plays
// the role of the unique (assessment_id, participant_id) constraint.
type AttemptStore struct {
	mu     sync.Mutex
	byID   map[string]domain.Attempt
	byPair map[string]string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		byID:   make(map[string]domain.Attempt),
		byPair: make(map[string]string),
	}
}

func (s *AttemptStore) FindAttempt(_ context.Context, assessmentID, participantID string) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPair[pairKey(assessmentID, participantID)]
	if !ok {
		return domain.Attempt{}, domain.ErrNotFound
	}
	return cloneAttempt(s.byID[id]), nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrNotFound
	}
	return cloneAttempt(a), nil
}

func (s *AttemptStore) InsertAttempt(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(attempt.AssessmentID, attempt.ParticipantID)
	if _, ok := s.byPair[key]; ok {
		return domain.ErrConstraintViolation
	}
	if _, ok := s.byID[attempt.ID]; ok {
		return domain.ErrConstraintViolation
	}
	s.byID[attempt.ID] = cloneAttempt(attempt)
	s.byPair[key] = attempt.ID
	return nil
}

func (s *AttemptStore) DeleteAttempt(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[attemptID]
	if !ok || a.Completed() {
		return domain.ErrNotFound
	}
	delete(s.byID, attemptID)
	key := pairKey(a.AssessmentID, a.ParticipantID)
	if s.byPair[key] == attemptID {
		delete(s.byPair, key)
	}
	return nil
}

func (s *AttemptStore) CompleteAttempt(_ context.Context, attemptID string, correctCount, score int, completedAt time.Time) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrNotFound
	}
	if a.Completed() {
		return domain.Attempt{}, domain.ErrAlreadyFinalized
	}
	a.CorrectCount = correctCount
	a.Score = score
	a.CompletedAt = &completedAt
	s.byID[attemptID] = a
	return cloneAttempt(a), nil
}

func (s *AttemptStore) ListAttempts(_ context.Context, assessmentID string) ([]domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Attempt, 0)
	for _, a := range s.byID {
		if a.AssessmentID == assessmentID {
			out = append(out, cloneAttempt(a))
		}
	}
	return out, nil
}

func pairKey(assessmentID, participantID string) string {
	return assessmentID + "\x00" + participantID
}

func cloneAttempt(a domain.Attempt) domain.Attempt {
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		a.CompletedAt = &t
	}
	return a
}
