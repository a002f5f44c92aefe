package app

import (
	"context"

	"assessment-session-service/internal/domain"
)

// Dashboard lists assessments as a given kind of viewer sees them.
type Dashboard interface {
	Assessments(ctx context.Context) ([]domain.AssessmentCard, error)
}

// Dashboard picks the view for the viewer's role once, at entry.
func (s *AttemptService) Dashboard(viewer domain.Viewer) (Dashboard, error) {
	switch viewer.Role {
	case domain.RoleParticipant:
		return participantDashboard{service: s, participantID: viewer.ID}, nil
	case domain.RoleAuthority:
		return authorityDashboard{service: s}, nil
	}
	return nil, domain.ErrUnknownRole
}

// participantDashboard shows open assessments and whether the participant already took them.
type participantDashboard struct {
	service       *AttemptService
	participantID string
}

func (d participantDashboard) Assessments(ctx context.Context) ([]domain.AssessmentCard, error) {
	all, err := d.service.catalog.ListAssessments(ctx)
	if err != nil {
		return nil, err
	}
	cards := make([]domain.AssessmentCard, 0, len(all))
	for _, a := range all {
		if a.Archived {
			continue
		}
		attempt, err := d.service.attempts.FindAttempt(ctx, a.ID, d.participantID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		cards = append(cards, domain.AssessmentCard{
			Assessment: a,
			Attempted:  err == nil && attempt.Completed(),
		})
	}
	return cards, nil
}

// authorityDashboard shows every assessment, archived included, with attempt counts.
type authorityDashboard struct {
	service *AttemptService
}

func (d authorityDashboard) Assessments(ctx context.Context) ([]domain.AssessmentCard, error) {
	all, err := d.service.catalog.ListAssessments(ctx)
	if err != nil {
		return nil, err
	}
	cards := make([]domain.AssessmentCard, 0, len(all))
	for _, a := range all {
		attempts, err := d.service.attempts.ListAttempts(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		cards = append(cards, domain.AssessmentCard{Assessment: a, AttemptCount: len(attempts)})
	}
	return cards, nil
}
