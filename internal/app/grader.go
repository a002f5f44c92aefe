package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"assessment-session-service/internal/domain"
)

// Grader turns the recorded responses of an attempt into its final score.
type Grader struct {
	attempts  AttemptStore
	responses ResponseStore
	now       func() time.Time
}

func NewGrader(attempts AttemptStore, responses ResponseStore) *Grader {
	return NewGraderWithClock(attempts, responses, time.Now)
}

// NewGraderWithClock allows deterministic completion timestamps in tests.
func NewGraderWithClock(attempts AttemptStore, responses ResponseStore, now func() time.Time) *Grader {
	return &Grader{attempts: attempts, responses: responses, now: now}
}

// Score is round(correct / total * 100). An attempt with no items scores 0.
func Score(correctCount, totalItems int) int {
	if totalItems <= 0 {
		return 0
	}
	if correctCount < 0 {
		correctCount = 0
	}
	if correctCount > totalItems {
		correctCount = totalItems
	}
	return int(math.Round(float64(correctCount) / float64(totalItems) * 100))
}

// Finalize grades and closes the attempt. A completed attempt is never regraded.
func (g *Grader) Finalize(ctx context.Context, attemptID string) (domain.FinalizedAttempt, error) {
	attempt, err := g.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.FinalizedAttempt{}, err
	}
	if attempt.Completed() {
		return domain.FinalizedAttempt{}, domain.ErrAlreadyFinalized
	}

	responses, err := g.responses.ListResponses(ctx, attemptID)
	if err != nil {
		return domain.FinalizedAttempt{}, fmt.Errorf("finalize: %w", err)
	}
	correct := 0
	for _, r := range responses {
		if r.IsCorrect {
			correct++
		}
	}

	completed, err := g.attempts.CompleteAttempt(ctx, attemptID, correct, Score(correct, attempt.TotalItems), g.now())
	if err != nil {
		return domain.FinalizedAttempt{}, err
	}
	return domain.FinalizedAttempt{Attempt: completed, Responses: len(responses)}, nil
}
