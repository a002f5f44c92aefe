package app_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"assessment-session-service/internal/app"
	"assessment-session-service/internal/domain"
	"assessment-session-service/internal/infra/memory"
	"github.com/sirupsen/logrus"
)

// manualClock hands out tickers that only fire when the test says so.
type manualClock struct {
	mu      sync.Mutex
	current *manualTicker
	created int
}

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

func (c *manualClock) factory(time.Duration) app.Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	c.mu.Lock()
	c.current = t
	c.created++
	c.mu.Unlock()
	return t
}

// tryTick delivers one tick and reports whether a countdown loop took it.
func (c *manualClock) tryTick(wait time.Duration) bool {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return false
	}
	select {
	case cur.ch <- time.Now():
		return true
	case <-time.After(wait):
		return false
	}
}

func (c *manualClock) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if !c.tryTick(time.Second) {
			t.Fatalf("tick %d of %d not consumed", i+1, n)
		}
	}
}

func (c *manualClock) tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

// wallClock is a settable time source for start times and claimed intervals.
type wallClock struct {
	mu  sync.Mutex
	now time.Time
}

func newWallClock() *wallClock {
	return &wallClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
}

func (c *wallClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *wallClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	catalog   *memory.Catalog
	attempts  app.AttemptStore
	responses app.ResponseStore
	sessions  *memory.SessionRegistry
	clock     *manualClock
	wall      *wallClock
	policy    app.FinalizePolicy
	service   *app.AttemptService
}

// newFixture builds a service over in-memory stores. Hooks may swap stores before wiring.
func newFixture(t *testing.T, hooks ...func(*fixture)) *fixture {
	t.Helper()
	assessments, items := sampleCatalog()
	f := &fixture{
		catalog:   memory.NewCatalog(assessments, items),
		attempts:  memory.NewAttemptStore(),
		responses: memory.NewResponseStore(),
		sessions:  memory.NewSessionRegistry(),
		clock:     &manualClock{},
		wall:      newWallClock(),
		policy:    app.FinalizePolicy{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, MaxRetries: 3},
	}
	for _, hook := range hooks {
		hook(f)
	}
	f.service = f.peer()
	return f
}

// peer builds another service over the same stores, standing in for a second process.
func (f *fixture) peer() *app.AttemptService {
	return app.NewAttemptService(f.catalog, f.catalog, f.attempts, f.responses, f.sessions, app.Options{
		TickInterval: time.Second,
		NewTicker:    f.clock.factory,
		Finalize:     f.policy,
		Now:          f.wall.Now,
		Log:          quietLogger(),
	})
}

func (f *fixture) start(t *testing.T, participantID, assessmentID string) (domain.Viewer, domain.SessionView) {
	t.Helper()
	viewer := participant(participantID)
	view, err := f.service.Start(context.Background(), viewer, assessmentID)
	if err != nil {
		t.Fatalf("start %s/%s: %v", assessmentID, participantID, err)
	}
	return viewer, view
}

func (f *fixture) session(t *testing.T, viewer domain.Viewer, attemptID string) *app.Session {
	t.Helper()
	session, err := f.service.Session(context.Background(), viewer, attemptID)
	if err != nil {
		t.Fatalf("session %s: %v", attemptID, err)
	}
	return session
}

func waitDone(t *testing.T, session *app.Session) domain.FinalizedAttempt {
	t.Helper()
	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session %s did not finish", session.AttemptID())
	}
	result, ok := session.Result()
	if !ok {
		t.Fatalf("session %s finished without a result", session.AttemptID())
	}
	return result
}

func waitRemaining(t *testing.T, events <-chan app.SessionEvent, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("events closed before remaining=%d", want)
			}
			if ev.Type == app.EventTick && ev.Remaining == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for remaining=%d", want)
		}
	}
}

func participant(id string) domain.Viewer {
	return domain.Viewer{ID: id, Role: domain.RoleParticipant}
}

func authority(id string) domain.Viewer {
	return domain.Viewer{ID: id, Role: domain.RoleAuthority}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sampleCatalog() ([]domain.Assessment, []domain.Item) {
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	assessments := []domain.Assessment{
		{ID: "go-basics", Title: "Go basics", DurationMinutes: 10, CreatedBy: "author-1", CreatedAt: base},
		{ID: "one-minute", Title: "Lightning round", DurationMinutes: 1, CreatedBy: "author-1", CreatedAt: base.Add(time.Hour)},
		{ID: "retired", Title: "Retired", DurationMinutes: 5, Archived: true, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "empty", Title: "No questions yet", DurationMinutes: 5, CreatedAt: base.Add(3 * time.Hour)},
	}
	items := []domain.Item{
		{ID: "q1", AssessmentID: "go-basics", Prompt: "Zero value of an int?", Options: []string{"nil", "0", "undefined"}, CorrectOption: 1, CreatedAt: base.Add(time.Minute)},
		{ID: "q2", AssessmentID: "go-basics", Prompt: "Keyword to start a goroutine?", Options: []string{"go", "async", "spawn"}, CorrectOption: 0, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "q3", AssessmentID: "go-basics", Prompt: "Does a map keep insertion order?", Options: []string{"yes", "no"}, CorrectOption: 1, CreatedAt: base.Add(3 * time.Minute)},
		{ID: "l1", AssessmentID: "one-minute", Prompt: "2 + 2?", Options: []string{"3", "4"}, CorrectOption: 1, CreatedAt: base.Add(time.Hour)},
		{ID: "l2", AssessmentID: "one-minute", Prompt: "3 * 3?", Options: []string{"9", "6"}, CorrectOption: 0, CreatedAt: base.Add(time.Hour + time.Minute)},
		{ID: "r1", AssessmentID: "retired", Prompt: "Old question", Options: []string{"a", "b"}, CorrectOption: 0, CreatedAt: base},
	}
	return assessments, items
}

// countingAttempts counts finalize writes and can fail them on demand.
type countingAttempts struct {
	app.AttemptStore

	mu        sync.Mutex
	completes int
	failNext  int
	// onFail runs after each injected failure
	onFail func()
}

func (c *countingAttempts) CompleteAttempt(ctx context.Context, attemptID string, correctCount, score int, completedAt time.Time) (domain.Attempt, error) {
	c.mu.Lock()
	c.completes++
	fail := c.failNext > 0
	if fail {
		c.failNext--
	}
	onFail := c.onFail
	c.mu.Unlock()
	if fail {
		if onFail != nil {
			onFail()
		}
		return domain.Attempt{}, domain.ErrPersistence
	}
	return c.AttemptStore.CompleteAttempt(ctx, attemptID, correctCount, score, completedAt)
}

func (c *countingAttempts) setFailures(n int) {
	c.mu.Lock()
	c.failNext = n
	c.mu.Unlock()
}

func (c *countingAttempts) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completes
}

// flakyResponses fails the next n inserts with a persistence error.
type flakyResponses struct {
	app.ResponseStore

	mu       sync.Mutex
	failNext int
}

func (f *flakyResponses) InsertResponse(ctx context.Context, response domain.Response) error {
	f.mu.Lock()
	fail := f.failNext > 0
	if fail {
		f.failNext--
	}
	f.mu.Unlock()
	if fail {
		return domain.ErrPersistence
	}
	return f.ResponseStore.InsertResponse(ctx, response)
}
