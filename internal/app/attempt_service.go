package app

import (
	"context"
	"errors"
	"time"

	"assessment-session-service/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Options tunes the timing behaviour of the service.
type Options struct {
	TickInterval time.Duration
	NewTicker    TickerFactory
	Finalize     FinalizePolicy
	// RestartGrace defaults to DefaultRestartGrace.
	RestartGrace time.Duration
	Now          func() time.Time
	Log          logrus.FieldLogger
}

// AttemptService contains the attempt use cases consumed by transports.
type AttemptService struct {
	catalog   AssessmentCatalog
	attempts  AttemptStore
	sessions  SessionRegistry
	initiator *SessionInitiator
	recorder  *ResponseRecorder
	grader    *Grader
	opts      Options
	log       logrus.FieldLogger

	// starts merges overlapping starts of one (assessment, participant) pair.
	starts singleflight.Group
}

func NewAttemptService(catalog AssessmentCatalog, items ItemBank, attempts AttemptStore, responses ResponseStore, sessions SessionRegistry, opts Options) *AttemptService {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Finalize == (FinalizePolicy{}) {
		opts.Finalize = DefaultFinalizePolicy()
	}
	if opts.RestartGrace <= 0 {
		opts.RestartGrace = DefaultRestartGrace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &AttemptService{
		catalog:   catalog,
		attempts:  attempts,
		sessions:  sessions,
		initiator: NewSessionInitiator(catalog, items, attempts, responses, opts.Log),
		recorder:  NewResponseRecorder(responses),
		grader:    NewGraderWithClock(attempts, responses, opts.Now),
		opts:      opts,
		log:       opts.Log,
	}
	s.initiator.now = opts.Now
	s.initiator.grace = opts.RestartGrace
	s.initiator.onTeardown = s.closeDiscarded
	s.initiator.onOverdue = s.finalizeOverdue
	return s
}

// Start begins the participant's single timed attempt at an assessment. Of the starts that
// overlap in this process only the first runs; the others get domain.ErrAlreadyAttempted
// once it succeeds, or its error when it fails.
func (s *AttemptService) Start(ctx context.Context, viewer domain.Viewer, assessmentID string) (domain.SessionView, error) {
	if viewer.Role != domain.RoleParticipant {
		return domain.SessionView{}, domain.ErrForbidden
	}
	leader := false
	v, err, _ := s.starts.Do(assessmentID+"\x00"+viewer.ID, func() (interface{}, error) {
		leader = true
		return s.start(ctx, viewer, assessmentID)
	})
	if err != nil {
		return domain.SessionView{}, err
	}
	if !leader {
		return domain.SessionView{}, domain.ErrAlreadyAttempted
	}
	return v.(domain.SessionView), nil
}

func (s *AttemptService) start(ctx context.Context, viewer domain.Viewer, assessmentID string) (domain.SessionView, error) {
	started, err := s.initiator.Start(ctx, assessmentID, viewer.ID)
	if err != nil {
		return domain.SessionView{}, err
	}

	session := NewSession(started, SessionConfig{
		Recorder:     s.recorder,
		Grader:       s.grader,
		Policy:       s.opts.Finalize,
		TickInterval: s.opts.TickInterval,
		NewTicker:    s.opts.NewTicker,
		Now:          s.opts.Now,
		Log:          s.log,
		OnTerminated: s.sessions.Delete,
	})
	s.sessions.Put(session)
	// a concurrent restart may have discarded the attempt before it was registered
	if _, err := s.attempts.GetAttempt(ctx, started.Attempt.ID); err != nil {
		session.Close("attempt restarted")
		if isNotFound(err) {
			return domain.SessionView{}, domain.ErrAlreadyAttempted
		}
		return domain.SessionView{}, err
	}
	if err := session.Begin(); err != nil {
		// closed by a restart between registration and the first tick
		s.sessions.Delete(session.AttemptID())
		return domain.SessionView{}, domain.ErrAlreadyAttempted
	}
	return session.View(), nil
}

// Session returns the live session of an attempt owned by the viewer.
func (s *AttemptService) Session(ctx context.Context, viewer domain.Viewer, attemptID string) (*Session, error) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		attempt, err := s.attempts.GetAttempt(ctx, attemptID)
		if err != nil {
			return nil, err
		}
		if attempt.ParticipantID != viewer.ID {
			return nil, domain.ErrForbidden
		}
		// completed, or incomplete with no clock in this process (abandoned)
		return nil, domain.ErrAttemptClosed
	}
	if session.ParticipantID() != viewer.ID {
		return nil, domain.ErrForbidden
	}
	return session, nil
}

// Answer records the viewer's selection for the current item of a live attempt.
func (s *AttemptService) Answer(ctx context.Context, viewer domain.Viewer, attemptID, itemID string, option int) (domain.AnswerOutcome, error) {
	session, err := s.Session(ctx, viewer, attemptID)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}
	return session.Answer(ctx, itemID, option)
}

// Submit finalizes a live attempt on the viewer's request.
func (s *AttemptService) Submit(ctx context.Context, viewer domain.Viewer, attemptID string) (domain.FinalizedAttempt, error) {
	session, err := s.Session(ctx, viewer, attemptID)
	if err != nil {
		return domain.FinalizedAttempt{}, err
	}
	return session.Submit(ctx)
}

// Subscribe streams countdown and finalize events of a live attempt.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AttemptService) Subscribe(ctx context.Context, viewer domain.Viewer, attemptID string) (<-chan SessionEvent, func(), error) {
	session, err := s.Session(ctx, viewer, attemptID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Archive stops an assessment from accepting new attempts. One-way.
func (s *AttemptService) Archive(ctx context.Context, viewer domain.Viewer, assessmentID string) error {
	if viewer.Role != domain.RoleAuthority {
		return domain.ErrForbidden
	}
	if err := s.catalog.ArchiveAssessment(ctx, assessmentID); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"assessment": assessmentID, "by": viewer.ID}).Info("assessment archived")
	return nil
}

func (s *AttemptService) closeDiscarded(attemptID string) {
	if session, ok := s.sessions.Get(attemptID); ok {
		session.Close("attempt restarted")
	}
	s.sessions.Delete(attemptID)
}

// finalizeOverdue grades an attempt whose time ran out while no session finished it, e.g.
// after a crash or an expiry whose retries were exhausted. A session still live anywhere
// finishes the attempt on its own clock.
func (s *AttemptService) finalizeOverdue(ctx context.Context, attempt domain.Attempt) error {
	if s.live(ctx, attempt.ID) {
		return nil
	}
	completed, err := s.grader.Finalize(ctx, attempt.ID)
	if err != nil && !errors.Is(err, domain.ErrAlreadyFinalized) {
		return err
	}
	if err == nil {
		s.log.WithFields(logrus.Fields{
			"attempt":     attempt.ID,
			"assessment":  attempt.AssessmentID,
			"participant": attempt.ParticipantID,
			"score":       completed.Attempt.Score,
		}).Warn("overdue attempt graded on restart")
	}
	return nil
}

// live reports whether an incomplete attempt still has a running clock anywhere.
func (s *AttemptService) live(ctx context.Context, attemptID string) bool {
	if _, ok := s.sessions.Get(attemptID); ok {
		return true
	}
	checker, ok := s.sessions.(LivenessChecker)
	if !ok {
		return false
	}
	live, err := checker.Live(ctx, attemptID)
	if err != nil {
		s.log.WithError(err).WithField("attempt", attemptID).Warn("liveness lookup failed")
		return false
	}
	return live
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
