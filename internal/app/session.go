package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"assessment-session-service/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// EventType names a session event pushed to subscribers.
type EventType string

const (
	EventTick      EventType = "tick"
	EventFinalized EventType = "finalized"
	EventClosed    EventType = "closed"
)

// SessionEvent is a snapshot pushed to subscribers of a live attempt.
type SessionEvent struct {
	Type      EventType                `json:"type"`
	AttemptID string                   `json:"attemptId"`
	Remaining int                      `json:"remaining"`
	Finalized *domain.FinalizedAttempt `json:"finalized,omitempty"`
	Reason    string                   `json:"reason,omitempty"`
}

// FinalizePolicy bounds the automatic retries of a failed finalize.
type FinalizePolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	MaxRetries      uint64
}

// DefaultFinalizePolicy retries for up to a minute.
func DefaultFinalizePolicy() FinalizePolicy {
	return FinalizePolicy{
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsed:      time.Minute,
	}
}

func (p FinalizePolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	if p.MaxElapsed > 0 {
		exp.MaxElapsedTime = p.MaxElapsed
	}
	exp.Reset()

	var b backoff.BackOff = exp
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	return backoff.WithContext(b, ctx)
}

// Session is one live attempt: one countdown, one cursor, one in-flight persistence call.
type Session struct {
	attempt    domain.Attempt
	assessment domain.Assessment
	items      []domain.Item
	countdown  *Countdown
	recorder   *ResponseRecorder
	grader     *Grader
	policy     FinalizePolicy
	log        logrus.FieldLogger

	onTerminated func(attemptID string)

	// mu serializes answers with finalization.
	mu     sync.Mutex
	cursor int
	result *domain.FinalizedAttempt

	subMu       sync.Mutex
	subscribers map[chan SessionEvent]struct{}
	done        chan struct{}
	finishOnce  sync.Once
}

// SessionConfig carries the collaborators of a Session.
type SessionConfig struct {
	Recorder     *ResponseRecorder
	Grader       *Grader
	Policy       FinalizePolicy
	TickInterval time.Duration
	NewTicker    TickerFactory
	Now          func() time.Time
	Log          logrus.FieldLogger
	OnTerminated func(attemptID string)
}

// NewSession builds an idle session for a freshly started attempt.
func NewSession(started Started, cfg SessionConfig) *Session {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Session{
		attempt:      started.Attempt,
		assessment:   started.Assessment,
		items:        started.Items,
		countdown:    NewCountdown(started.Assessment.DurationSeconds(), cfg.TickInterval, cfg.NewTicker),
		recorder:     cfg.Recorder,
		grader:       cfg.Grader,
		policy:       cfg.Policy,
		onTerminated: cfg.OnTerminated,
		log: log.WithFields(logrus.Fields{
			"attempt":     started.Attempt.ID,
			"assessment":  started.Attempt.AssessmentID,
			"participant": started.Attempt.ParticipantID,
		}),
		subscribers: make(map[chan SessionEvent]struct{}),
		done:        make(chan struct{}),
	}
	s.countdown.UseClock(cfg.Now)
	s.countdown.OnTick(s.tick)
	s.countdown.OnExpire(s.expire)
	return s
}

// Begin starts the countdown.
func (s *Session) Begin() error {
	return s.countdown.Start()
}

func (s *Session) AttemptID() string     { return s.attempt.ID }
func (s *Session) ParticipantID() string { return s.attempt.ParticipantID }
func (s *Session) AssessmentID() string  { return s.attempt.AssessmentID }
func (s *Session) State() CountdownState { return s.countdown.State() }
func (s *Session) Remaining() int        { return s.countdown.Remaining() }

// Done is closed once the session is finalized or closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the grading outcome once finalized.
func (s *Session) Result() (domain.FinalizedAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.FinalizedAttempt{}, false
	}
	return *s.result, true
}

// View is the participant-safe snapshot of the session.
func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := domain.SessionView{
		AttemptID:        s.attempt.ID,
		AssessmentID:     s.attempt.AssessmentID,
		Title:            s.assessment.Title,
		TotalItems:       s.attempt.TotalItems,
		DurationSeconds:  s.countdown.Total(),
		RemainingSeconds: s.countdown.Remaining(),
	}
	if s.cursor < len(s.items) {
		current := s.items[s.cursor].Present(s.cursor)
		view.Current = &current
	}
	return view
}

// Answer records the selection for the current item. The cursor moves only when the
// response is persisted; answering the last item submits the attempt.
func (s *Session) Answer(ctx context.Context, itemID string, option int) (domain.AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.countdown.State() != CountdownRunning {
		return domain.AnswerOutcome{}, domain.ErrAttemptClosed
	}
	pos := s.indexOf(itemID)
	switch {
	case pos < 0:
		return domain.AnswerOutcome{}, domain.ErrNotFound
	case pos < s.cursor:
		return domain.AnswerOutcome{}, domain.ErrDuplicateResponse
	case pos > s.cursor:
		return domain.AnswerOutcome{}, domain.ErrOutOfOrder
	}

	if _, err := s.recorder.Record(ctx, s.attempt.ID, s.items[pos], option, s.countdown.Elapsed()); err != nil {
		return domain.AnswerOutcome{}, err
	}
	s.cursor++

	outcome := domain.AnswerOutcome{ItemID: itemID}
	if s.cursor < len(s.items) {
		next := s.items[s.cursor].Present(s.cursor)
		outcome.Next = &next
		return outcome, nil
	}
	if !s.countdown.Claim() {
		// expiry got there first and is waiting on mu
		return outcome, nil
	}
	result, err := s.finalizeLocked(ctx, domain.TriggerSubmit)
	if err != nil {
		return outcome, err
	}
	outcome.Finalized = &result
	return outcome, nil
}

// Submit finalizes on the participant's request. It loses to an expiry already in progress.
func (s *Session) Submit(ctx context.Context) (domain.FinalizedAttempt, error) {
	if !s.countdown.Claim() {
		return domain.FinalizedAttempt{}, domain.ErrAttemptClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizeLocked(ctx, domain.TriggerSubmit)
}

// Close terminates the session without grading, e.g. when its attempt was discarded.
func (s *Session) Close(reason string) {
	s.countdown.Terminate()
	s.broadcast(SessionEvent{Type: EventClosed, AttemptID: s.attempt.ID, Remaining: s.countdown.Remaining(), Reason: reason})
	s.finish()
}

// Subscribe returns a channel of session events. The caller must invoke cancel.
func (s *Session) Subscribe() (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 8)

	s.subMu.Lock()
	select {
	case <-s.done:
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Session) tick(remaining int) {
	s.broadcast(SessionEvent{Type: EventTick, AttemptID: s.attempt.ID, Remaining: remaining})
}

// expire runs on the countdown goroutine once remaining reaches zero.
func (s *Session) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.finalizeLocked(context.Background(), domain.TriggerExpiry); err != nil {
		s.log.WithError(err).Error("forced submission failed")
	}
}

func (s *Session) finalizeLocked(ctx context.Context, trigger domain.FinalizeTrigger) (domain.FinalizedAttempt, error) {
	result, err := s.gradeWithRetry(ctx)
	if err != nil {
		if trigger == domain.TriggerSubmit && errors.Is(err, domain.ErrPersistence) {
			// hand the clock back, minus the time spent retrying
			if s.countdown.Release() {
				// runs once the caller drops mu
				go s.expire()
			}
			return domain.FinalizedAttempt{}, err
		}
		s.countdown.Terminate()
		s.broadcast(SessionEvent{Type: EventClosed, AttemptID: s.attempt.ID, Reason: "finalize failed"})
		s.finish()
		return domain.FinalizedAttempt{}, err
	}

	result.Trigger = trigger
	s.result = &result
	s.countdown.Terminate()
	s.log.WithFields(logrus.Fields{
		"trigger": trigger,
		"score":   result.Attempt.Score,
		"correct": result.Attempt.CorrectCount,
		"total":   result.Attempt.TotalItems,
	}).Info("attempt finalized")
	s.broadcast(SessionEvent{Type: EventFinalized, AttemptID: s.attempt.ID, Remaining: s.countdown.Remaining(), Finalized: &result})
	s.finish()
	return result, nil
}

func (s *Session) gradeWithRetry(ctx context.Context) (domain.FinalizedAttempt, error) {
	op := func() (domain.FinalizedAttempt, error) {
		result, err := s.grader.Finalize(ctx, s.attempt.ID)
		if err != nil && !errors.Is(err, domain.ErrPersistence) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}
	notify := func(err error, wait time.Duration) {
		s.log.WithError(err).WithField("retryIn", wait).Warn("finalize failed, retrying")
	}
	return backoff.RetryNotifyWithData(op, s.policy.backOff(ctx), notify)
}

func (s *Session) finish() {
	s.finishOnce.Do(func() {
		s.subMu.Lock()
		close(s.done)
		for ch := range s.subscribers {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.subMu.Unlock()
		if s.onTerminated != nil {
			s.onTerminated(s.attempt.ID)
		}
	})
}

func (s *Session) broadcast(event SessionEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// drop the oldest so a slow reader never blocks the clock
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

func (s *Session) indexOf(itemID string) int {
	for i := range s.items {
		if s.items[i].ID == itemID {
			return i
		}
	}
	return -1
}
