package app

import (
	"context"
	"sort"

	"assessment-session-service/internal/domain"
)

// ParticipantResult returns the viewer's own completed attempt.
func (s *AttemptService) ParticipantResult(ctx context.Context, viewer domain.Viewer, assessmentID string) (domain.ParticipantResult, error) {
	if viewer.Role != domain.RoleParticipant {
		return domain.ParticipantResult{}, domain.ErrForbidden
	}
	assessment, err := s.catalog.GetAssessment(ctx, assessmentID)
	if err != nil {
		return domain.ParticipantResult{}, err
	}
	attempt, err := s.attempts.FindAttempt(ctx, assessmentID, viewer.ID)
	if err != nil {
		return domain.ParticipantResult{}, err
	}
	if !attempt.Completed() {
		return domain.ParticipantResult{}, domain.ErrNotFound
	}
	return domain.ParticipantResult{
		AssessmentID: assessmentID,
		Title:        assessment.Title,
		AttemptID:    attempt.ID,
		Score:        attempt.Score,
		CorrectCount: attempt.CorrectCount,
		TotalItems:   attempt.TotalItems,
		StartedAt:    attempt.StartedAt,
		CompletedAt:  attempt.CompletedAt,
	}, nil
}

// AuthorityOverview lists every attempt at an assessment, newest first, with score statistics.
// Incomplete rows are flagged live while a session clock is still running for them.
func (s *AttemptService) AuthorityOverview(ctx context.Context, viewer domain.Viewer, assessmentID string) (domain.AuthorityOverview, error) {
	if viewer.Role != domain.RoleAuthority {
		return domain.AuthorityOverview{}, domain.ErrForbidden
	}
	assessment, err := s.catalog.GetAssessment(ctx, assessmentID)
	if err != nil {
		return domain.AuthorityOverview{}, err
	}
	attempts, err := s.attempts.ListAttempts(ctx, assessmentID)
	if err != nil {
		return domain.AuthorityOverview{}, err
	}
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].StartedAt.After(attempts[j].StartedAt)
	})

	overview := domain.AuthorityOverview{
		Assessment: assessment,
		Attempts:   make([]domain.AttemptRow, 0, len(attempts)),
	}
	sum := 0
	for _, a := range attempts {
		overview.Attempts = append(overview.Attempts, domain.AttemptRow{
			AttemptID:     a.ID,
			ParticipantID: a.ParticipantID,
			Score:         a.Score,
			CorrectCount:  a.CorrectCount,
			TotalItems:    a.TotalItems,
			StartedAt:     a.StartedAt,
			CompletedAt:   a.CompletedAt,
			Completed:     a.Completed(),
			Live:          !a.Completed() && s.live(ctx, a.ID),
		})
		if !a.Completed() {
			continue
		}
		if overview.Completed == 0 || a.Score > overview.Highest {
			overview.Highest = a.Score
		}
		if overview.Completed == 0 || a.Score < overview.Lowest {
			overview.Lowest = a.Score
		}
		overview.Completed++
		sum += a.Score
	}
	if overview.Completed > 0 {
		overview.Average = float64(sum) / float64(overview.Completed)
	}
	return overview, nil
}
