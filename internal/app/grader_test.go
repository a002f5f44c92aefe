package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"assessment-session-service/internal/app"
	"assessment-session-service/internal/domain"
	"assessment-session-service/internal/infra/memory"
)

func TestScore(t *testing.T) {
	tests := []struct {
		correct, total, want int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 2, 50},
		{1, 8, 13},
		{0, 0, 0},
		{5, 3, 100},
	}
	for _, tt := range tests {
		if got := app.Score(tt.correct, tt.total); got != tt.want {
			t.Fatalf("Score(%d, %d) = %d, want %d", tt.correct, tt.total, got, tt.want)
		}
	}
}

func TestFinalizeIsOneWay(t *testing.T) {
	ctx := context.Background()
	attempts := memory.NewAttemptStore()
	responses := memory.NewResponseStore()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	grader := app.NewGraderWithClock(attempts, responses, func() time.Time { return now })

	attempt := domain.Attempt{ID: "a1", AssessmentID: "go-basics", ParticipantID: "p1", StartedAt: now.Add(-time.Minute), TotalItems: 3}
	if err := attempts.InsertAttempt(ctx, attempt); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for _, r := range []domain.Response{
		{AttemptID: "a1", ItemID: "q1", SelectedOption: 1, IsCorrect: true},
		{AttemptID: "a1", ItemID: "q2", SelectedOption: 2, IsCorrect: false},
	} {
		if err := responses.InsertResponse(ctx, r); err != nil {
			t.Fatalf("insert response: %v", err)
		}
	}

	first, err := grader.Finalize(ctx, "a1")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if first.Attempt.CorrectCount != 1 || first.Attempt.Score != 33 || !first.Attempt.CompletedAt.Equal(now) || first.Responses != 2 {
		t.Fatalf("unexpected grade: %+v", first)
	}

	// a late response must not change a completed grade
	_ = responses.InsertResponse(ctx, domain.Response{AttemptID: "a1", ItemID: "q3", SelectedOption: 1, IsCorrect: true})
	if _, err := grader.Finalize(ctx, "a1"); !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("expected already finalized, got %v", err)
	}
	stored, _ := attempts.GetAttempt(ctx, "a1")
	if stored.Score != 33 || stored.CorrectCount != 1 {
		t.Fatalf("completed attempt was regraded: %+v", stored)
	}

	if _, err := grader.Finalize(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecorderGradesSelection(t *testing.T) {
	ctx := context.Background()
	recorder := app.NewResponseRecorder(memory.NewResponseStore())
	item := domain.Item{ID: "q1", Options: []string{"a", "b", "c"}, CorrectOption: 2}

	response, err := recorder.Record(ctx, "a1", item, 2, 17)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !response.IsCorrect || response.TimeTakenSeconds != 17 {
		t.Fatalf("unexpected response: %+v", response)
	}
	if _, err := recorder.Record(ctx, "a1", item, 0, 20); !errors.Is(err, domain.ErrDuplicateResponse) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := recorder.Record(ctx, "a1", item, -1, 20); !errors.Is(err, domain.ErrInvalidOption) {
		t.Fatalf("expected invalid option, got %v", err)
	}
}
