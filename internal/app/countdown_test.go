package app_test

import (
	"testing"
	"time"

	"assessment-session-service/internal/app"
)

func TestCountdownDecrementsOncePerTickAndExpiresOnce(t *testing.T) {
	clock := &manualClock{}
	countdown := app.NewCountdown(3, time.Second, clock.factory)

	ticks := make(chan int, 8)
	expired := make(chan struct{}, 4)
	countdown.OnTick(func(remaining int) { ticks <- remaining })
	countdown.OnExpire(func() { expired <- struct{}{} })

	if err := countdown.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := countdown.Start(); err == nil {
		t.Fatalf("expected second start to fail")
	}

	clock.tick(t, 3)
	for _, want := range []int{2, 1, 0} {
		select {
		case got := <-ticks:
			if got != want {
				t.Fatalf("expected remaining %d, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing tick for remaining %d", want)
		}
	}
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatalf("expiry hook not called")
	}

	if clock.tryTick(50 * time.Millisecond) {
		t.Fatalf("expired countdown accepted another tick")
	}
	if countdown.State() != app.CountdownExpired || countdown.Remaining() != 0 {
		t.Fatalf("expected expired at 0, got %s at %d", countdown.State(), countdown.Remaining())
	}
	if len(expired) != 0 {
		t.Fatalf("expiry hook called more than once")
	}
}

func TestCountdownClaimStopsTicksAndReleaseResumes(t *testing.T) {
	clock := &manualClock{}
	countdown := app.NewCountdown(5, time.Second, clock.factory)
	ticks := make(chan int, 8)
	countdown.OnTick(func(remaining int) { ticks <- remaining })
	if err := countdown.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.tick(t, 1)
	if got := <-ticks; got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}

	if !countdown.Claim() {
		t.Fatalf("expected claim on running countdown")
	}
	if countdown.Claim() {
		t.Fatalf("second claim must lose")
	}
	if countdown.State() != app.CountdownFinalizing {
		t.Fatalf("expected finalizing, got %s", countdown.State())
	}
	if clock.tryTick(50 * time.Millisecond) {
		t.Fatalf("claimed countdown accepted a tick")
	}

	if countdown.Release() {
		t.Fatalf("release must not expire a countdown with time left")
	}
	if countdown.State() != app.CountdownRunning || clock.tickers() != 2 {
		t.Fatalf("expected running with a fresh ticker, got %s with %d tickers", countdown.State(), clock.tickers())
	}
	clock.tick(t, 1)
	if got := <-ticks; got != 3 {
		t.Fatalf("expected countdown to resume at 3, got %d", got)
	}
	if countdown.Elapsed() != 2 {
		t.Fatalf("expected 2s elapsed, got %d", countdown.Elapsed())
	}

	countdown.Terminate()
	if countdown.Claim() {
		t.Fatalf("terminated countdown must not be claimable")
	}
}

func TestCountdownReleaseChargesClaimedTime(t *testing.T) {
	clock := &manualClock{}
	wall := newWallClock()
	countdown := app.NewCountdown(10, time.Second, clock.factory)
	countdown.UseClock(wall.Now)
	if err := countdown.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if !countdown.Claim() {
		t.Fatalf("expected claim")
	}
	wall.Advance(3500 * time.Millisecond)
	if countdown.Release() {
		t.Fatalf("release must not expire with time left")
	}
	if countdown.Remaining() != 7 || countdown.State() != app.CountdownRunning {
		t.Fatalf("expected 7s left and running, got %d and %s", countdown.Remaining(), countdown.State())
	}

	if !countdown.Claim() {
		t.Fatalf("expected second claim")
	}
	wall.Advance(time.Minute)
	if !countdown.Release() {
		t.Fatalf("release past the deadline must report expiry")
	}
	if countdown.Remaining() != 0 || countdown.State() != app.CountdownExpired {
		t.Fatalf("expected expired at 0, got %d and %s", countdown.Remaining(), countdown.State())
	}
	if clock.tryTick(50 * time.Millisecond) {
		t.Fatalf("expired countdown accepted a tick")
	}
}
