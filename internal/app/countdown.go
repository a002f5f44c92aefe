package app

import (
	"errors"
	"sync"
	"time"
)

// CountdownState is a state of the attempt clock.
type CountdownState int

const (
	CountdownIdle CountdownState = iota
	CountdownRunning
	CountdownExpired
	CountdownFinalizing
	CountdownTerminated
)

func (s CountdownState) String() string {
	switch s {
	case CountdownIdle:
		return "idle"
	case CountdownRunning:
		return "running"
	case CountdownExpired:
		return "expired"
	case CountdownFinalizing:
		return "finalizing"
	case CountdownTerminated:
		return "terminated"
	}
	return "unknown"
}

var errCountdownStarted = errors.New("countdown already started")

// Ticker is a periodic tick source.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

// NewTimeTicker wraps time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}

func (t *timeTicker) C() <-chan time.Time { return t.t.C }
func (t *timeTicker) Stop()               { t.t.Stop() }

// Countdown is the single authoritative clock of one attempt. Ticks are consumed by one
// goroutine, which is the only writer of the remaining time.
type Countdown struct {
	interval  time.Duration
	newTicker TickerFactory
	now       func() time.Time

	mu        sync.Mutex
	state     CountdownState
	total     int
	remaining int
	ticker    Ticker
	quit      chan struct{}
	gen       int
	claimedAt time.Time

	onTick   func(remaining int)
	onExpire func()
}

// NewCountdown creates an idle countdown of totalSeconds.
func NewCountdown(totalSeconds int, interval time.Duration, newTicker TickerFactory) *Countdown {
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		interval:  interval,
		newTicker: newTicker,
		now:       time.Now,
		state:     CountdownIdle,
		total:     totalSeconds,
		remaining: totalSeconds,
	}
}

// OnTick registers a callback run on the tick goroutine after each decrement. Set before Start.
func (c *Countdown) OnTick(fn func(remaining int)) { c.onTick = fn }

// OnExpire registers the forced-submission hook. Set before Start.
func (c *Countdown) OnExpire(fn func()) { c.onExpire = fn }

// UseClock replaces the wall clock used to charge time spent claimed. Set before Start.
func (c *Countdown) UseClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Start moves Idle to Running and begins ticking.
func (c *Countdown) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CountdownIdle {
		return errCountdownStarted
	}
	c.state = CountdownRunning
	c.runLocked()
	return nil
}

// Claim moves Running to Finalizing for an explicit submission. It returns false when
// the countdown is not running, i.e. expiry or another submission won.
func (c *Countdown) Claim() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CountdownRunning {
		return false
	}
	c.state = CountdownFinalizing
	c.claimedAt = c.now()
	c.stopLocked()
	return true
}

// Release returns a claimed countdown to Running after a failed submission. Every whole
// interval spent claimed is charged against the remaining time. When that uses up the
// clock the countdown is left Expired, Release reports true and the caller owns the
// forced submission.
func (c *Countdown) Release() (expired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CountdownFinalizing {
		return false
	}
	if missed := int(c.now().Sub(c.claimedAt) / c.interval); missed > 0 {
		c.remaining -= missed
	}
	if c.remaining <= 0 {
		c.remaining = 0
		c.state = CountdownExpired
		return true
	}
	c.state = CountdownRunning
	c.runLocked()
	return false
}

// Terminate stops the countdown for good.
func (c *Countdown) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = CountdownTerminated
	c.stopLocked()
}

func (c *Countdown) State() CountdownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Elapsed is the number of seconds consumed since Start.
func (c *Countdown) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total - c.remaining
}

func (c *Countdown) Total() int {
	return c.total
}

func (c *Countdown) runLocked() {
	c.ticker = c.newTicker(c.interval)
	c.quit = make(chan struct{})
	c.gen++
	go c.loop(c.gen, c.ticker.C(), c.quit)
}

func (c *Countdown) stopLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.quit)
	c.ticker = nil
	c.quit = nil
}

func (c *Countdown) loop(gen int, ticks <-chan time.Time, quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case <-ticks:
			remaining, expired, ok := c.step(gen)
			if !ok {
				return
			}
			if c.onTick != nil {
				c.onTick(remaining)
			}
			if expired {
				if c.onExpire != nil {
					c.onExpire()
				}
				return
			}
		}
	}
}

// step applies one tick. ok is false when the tick lost the race against a claim
// or belongs to a loop that has since been replaced.
func (c *Countdown) step(gen int) (remaining int, expired bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CountdownRunning || gen != c.gen {
		return c.remaining, false, false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining > 0 {
		return c.remaining, false, true
	}
	c.state = CountdownExpired
	c.stopLocked()
	return 0, true, true
}
