package app_test

import (
	"context"
	"errors"
	"testing"

	"assessment-session-service/internal/domain"
)

func TestParticipantResultAfterCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	viewer, view := f.start(t, "p1", "go-basics")

	if _, err := f.service.ParticipantResult(ctx, viewer, "go-basics"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no result while running, got %v", err)
	}
	if _, err := f.service.Answer(ctx, viewer, view.AttemptID, "q1", 1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := f.service.Submit(ctx, viewer, view.AttemptID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	result, err := f.service.ParticipantResult(ctx, viewer, "go-basics")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.Score != 33 || result.CorrectCount != 1 || result.TotalItems != 3 || result.Title != "Go basics" || result.CompletedAt == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := f.service.ParticipantResult(ctx, authority("t1"), "go-basics"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for authority, got %v", err)
	}
}

func TestAuthorityOverviewStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// p1 gets 2 of 2, p2 gets 1 of 2, p3 never finishes
	for _, p := range []struct {
		id      string
		options []int
	}{
		{"p1", []int{1, 0}},
		{"p2", []int{1, 1}},
		{"p3", nil},
	} {
		viewer, view := f.start(t, p.id, "one-minute")
		items := []string{"l1", "l2"}
		for i, option := range p.options {
			if _, err := f.service.Answer(ctx, viewer, view.AttemptID, items[i], option); err != nil {
				t.Fatalf("%s answer %s: %v", p.id, items[i], err)
			}
		}
	}

	if _, err := f.service.AuthorityOverview(ctx, participant("p1"), "one-minute"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for participant, got %v", err)
	}
	overview, err := f.service.AuthorityOverview(ctx, authority("t1"), "one-minute")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(overview.Attempts) != 3 || overview.Completed != 2 {
		t.Fatalf("expected 3 rows and 2 completed, got %d and %d", len(overview.Attempts), overview.Completed)
	}
	if overview.Highest != 100 || overview.Lowest != 50 || overview.Average != 75 {
		t.Fatalf("unexpected stats: high=%d low=%d avg=%v", overview.Highest, overview.Lowest, overview.Average)
	}
	for _, row := range overview.Attempts {
		if row.Live != (row.ParticipantID == "p3") {
			t.Fatalf("only the running attempt is live: %+v", row)
		}
	}
	for i := 1; i < len(overview.Attempts); i++ {
		if overview.Attempts[i].StartedAt.After(overview.Attempts[i-1].StartedAt) {
			t.Fatalf("rows not newest first: %+v", overview.Attempts)
		}
	}
}

func TestDashboardByRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	viewer, view := f.start(t, "p1", "one-minute")
	if _, err := f.service.Submit(ctx, viewer, view.AttemptID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	board, err := f.service.Dashboard(viewer)
	if err != nil {
		t.Fatalf("participant dashboard: %v", err)
	}
	cards, err := board.Assessments(ctx)
	if err != nil {
		t.Fatalf("assessments: %v", err)
	}
	seen := map[string]domain.AssessmentCard{}
	for _, c := range cards {
		seen[c.Assessment.ID] = c
	}
	if _, ok := seen["retired"]; ok {
		t.Fatalf("participant sees archived assessment")
	}
	if !seen["one-minute"].Attempted || seen["go-basics"].Attempted {
		t.Fatalf("unexpected attempted flags: %+v", cards)
	}

	board, err = f.service.Dashboard(authority("t1"))
	if err != nil {
		t.Fatalf("authority dashboard: %v", err)
	}
	cards, err = board.Assessments(ctx)
	if err != nil {
		t.Fatalf("assessments: %v", err)
	}
	if len(cards) != 4 {
		t.Fatalf("authority should see all 4 assessments, got %d", len(cards))
	}
	for _, c := range cards {
		if c.Assessment.ID == "one-minute" && c.AttemptCount != 1 {
			t.Fatalf("expected 1 attempt, got %d", c.AttemptCount)
		}
	}

	if _, err := f.service.Dashboard(domain.Viewer{ID: "x", Role: "guest"}); !errors.Is(err, domain.ErrUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
}

func TestArchiveIsAuthorityOnlyAndStopsStarts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.service.Archive(ctx, participant("p1"), "go-basics"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.service.Archive(ctx, authority("t1"), "go-basics"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := f.service.Start(ctx, participant("p1"), "go-basics"); !errors.Is(err, domain.ErrArchived) {
		t.Fatalf("expected archived, got %v", err)
	}
	if err := f.service.Archive(ctx, authority("t1"), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAuthorityOverviewFlagsAbandonedAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	viewer, view := f.start(t, "p1", "one-minute")
	f.session(t, viewer, view.AttemptID).Close("process stopped")

	overview, err := f.service.AuthorityOverview(ctx, authority("t1"), "one-minute")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(overview.Attempts) != 1 {
		t.Fatalf("expected one row, got %+v", overview.Attempts)
	}
	if row := overview.Attempts[0]; row.Completed || row.Live {
		t.Fatalf("expected an abandoned row, got %+v", row)
	}
}
