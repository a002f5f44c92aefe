package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-session-service/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Started is what a successful start hands to the session layer.
type Started struct {
	Attempt    domain.Attempt
	Assessment domain.Assessment
	Items      []domain.Item
}

// SessionInitiator creates the single attempt of a participant at an assessment.
type SessionInitiator struct {
	catalog   AssessmentCatalog
	items     ItemBank
	attempts  AttemptStore
	responses ResponseStore
	now       func() time.Time
	newID     func() string
	log       logrus.FieldLogger

	// grace is how long a fresh incomplete attempt counts as a concurrent start rather
	// than one a reload may discard.
	grace time.Duration

	// onTeardown is told about incomplete attempts discarded by a restart.
	onTeardown func(attemptID string)
	// onOverdue finalizes an incomplete attempt whose time ran out without a grade.
	onOverdue func(ctx context.Context, attempt domain.Attempt) error
}

// DefaultRestartGrace is the window in which a second start is treated as concurrent.
const DefaultRestartGrace = 3 * time.Second

func NewSessionInitiator(catalog AssessmentCatalog, items ItemBank, attempts AttemptStore, responses ResponseStore, log logrus.FieldLogger) *SessionInitiator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SessionInitiator{
		catalog:   catalog,
		items:     items,
		attempts:  attempts,
		responses: responses,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		log:       log,
		grace:     DefaultRestartGrace,
	}
}

// Start validates the assessment and writes a fresh attempt. Any concurrent loser of the
// uniqueness race receives domain.ErrAlreadyAttempted. An incomplete attempt is discarded
// only when it is older than the grace window and still inside its time limit; an attempt
// whose time ran out is graded instead and counts as attempted.
func (i *SessionInitiator) Start(ctx context.Context, assessmentID, participantID string) (Started, error) {
	assessment, err := i.catalog.GetAssessment(ctx, assessmentID)
	if err != nil {
		return Started{}, err
	}
	if assessment.Archived {
		return Started{}, domain.ErrArchived
	}
	items, err := i.items.ListItems(ctx, assessmentID)
	if err != nil {
		return Started{}, err
	}
	if len(items) == 0 {
		return Started{}, fmt.Errorf("assessment %s has no items: %w", assessmentID, domain.ErrNotFound)
	}

	existing, err := i.attempts.FindAttempt(ctx, assessmentID, participantID)
	switch {
	case err == nil && existing.Completed():
		return Started{}, domain.ErrAlreadyAttempted
	case err == nil:
		if err := i.restart(ctx, assessment, existing); err != nil {
			return Started{}, err
		}
	case !errors.Is(err, domain.ErrNotFound):
		return Started{}, err
	}

	attempt := domain.Attempt{
		ID:            i.newID(),
		AssessmentID:  assessmentID,
		ParticipantID: participantID,
		StartedAt:     i.now(),
		TotalItems:    len(items),
	}
	if err := i.attempts.InsertAttempt(ctx, attempt); err != nil {
		if errors.Is(err, domain.ErrConstraintViolation) {
			return Started{}, domain.ErrAlreadyAttempted
		}
		return Started{}, err
	}

	i.log.WithFields(logrus.Fields{
		"attempt":     attempt.ID,
		"assessment":  assessmentID,
		"participant": participantID,
	}).Info("attempt started")
	return Started{Attempt: attempt, Assessment: assessment, Items: items}, nil
}

func (i *SessionInitiator) restart(ctx context.Context, assessment domain.Assessment, existing domain.Attempt) error {
	now := i.now()
	if now.Sub(existing.StartedAt) < i.grace {
		return domain.ErrAlreadyAttempted
	}
	deadline := existing.StartedAt.Add(time.Duration(assessment.DurationSeconds()) * time.Second)
	if !now.Before(deadline) {
		if i.onOverdue != nil {
			if err := i.onOverdue(ctx, existing); err != nil {
				return err
			}
		}
		return domain.ErrAlreadyAttempted
	}
	return i.teardown(ctx, existing)
}

// teardown discards an incomplete attempt. The delete is conditional on the row still being
// incomplete, so a request that lost the row to a finalize or to another restart stops here
// with domain.ErrAlreadyAttempted instead of inserting.
func (i *SessionInitiator) teardown(ctx context.Context, attempt domain.Attempt) error {
	if err := i.attempts.DeleteAttempt(ctx, attempt.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrAlreadyAttempted
		}
		return err
	}
	if i.onTeardown != nil {
		i.onTeardown(attempt.ID)
	}
	if err := i.responses.DeleteResponses(ctx, attempt.ID); err != nil {
		return err
	}
	i.log.WithFields(logrus.Fields{
		"attempt":     attempt.ID,
		"assessment":  attempt.AssessmentID,
		"participant": attempt.ParticipantID,
	}).Warn("incomplete attempt discarded on restart")
	return nil
}
