package app

import (
	"context"
	"time"

	"assessment-session-service/internal/domain"
)

// AssessmentCatalog is the read-mostly store of assessment metadata.
type AssessmentCatalog interface {
	GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error)
	ListAssessments(ctx context.Context) ([]domain.Assessment, error)
	ArchiveAssessment(ctx context.Context, assessmentID string) error
}

// ItemBank returns the items of an assessment ordered by creation time.
type ItemBank interface {
	ListItems(ctx context.Context, assessmentID string) ([]domain.Item, error)
}

// AttemptStore persists attempts. InsertAttempt must return domain.ErrConstraintViolation
// when another attempt already exists for the same (assessment, participant) pair.
// CompleteAttempt and DeleteAttempt touch only rows whose completed_at is still null;
// DeleteAttempt returns domain.ErrNotFound when no such row exists.
type AttemptStore interface {
	FindAttempt(ctx context.Context, assessmentID, participantID string) (domain.Attempt, error)
	GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	InsertAttempt(ctx context.Context, attempt domain.Attempt) error
	DeleteAttempt(ctx context.Context, attemptID string) error
	CompleteAttempt(ctx context.Context, attemptID string, correctCount, score int, completedAt time.Time) (domain.Attempt, error)
	ListAttempts(ctx context.Context, assessmentID string) ([]domain.Attempt, error)
}

// ResponseStore persists responses. InsertResponse must return domain.ErrConstraintViolation
// when the (attempt, item) pair already has a response.
type ResponseStore interface {
	InsertResponse(ctx context.Context, response domain.Response) error
	ListResponses(ctx context.Context, attemptID string) ([]domain.Response, error)
	DeleteResponses(ctx context.Context, attemptID string) error
}

// SessionRegistry keeps live attempt sessions (in-memory, Redis-marked, etc).
type SessionRegistry interface {
	Put(session *Session)
	Get(attemptID string) (*Session, bool)
	Delete(attemptID string)
}

// LivenessChecker is implemented by registries that can see sessions running in other
// processes.
type LivenessChecker interface {
	Live(ctx context.Context, attemptID string) (bool, error)
}
