package session

import (
	"fmt"
	"time"
)

// Clock supplies wall-clock time to the session core.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Timer counts down to a fixed deadline. Remaining time is recomputed from
// the deadline on every tick, so late or skipped ticks self-correct.
type Timer struct {
	deadline time.Time
	running  bool
}

// Start sets the deadline to now + durationSec.
func (t *Timer) Start(now time.Time, durationSec int) {
	t.deadline = now.Add(time.Duration(durationSec) * time.Second)
	t.running = true
}

// Stop halts the timer. Further ticks report no expiry.
func (t *Timer) Stop() { t.running = false }

// Running reports whether the timer is counting down.
func (t *Timer) Running() bool { return t.running }

// Deadline returns the deadline set by Start.
func (t *Timer) Deadline() time.Time { return t.deadline }

// Remaining returns the whole seconds left, never negative.
func (t *Timer) Remaining(now time.Time) int64 {
	left := t.deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int64(left / time.Second)
}

// Tick returns the remaining seconds. expired is true exactly once: on the
// first tick that observes zero while running, after which the timer stops.
func (t *Timer) Tick(now time.Time) (remaining int64, expired bool) {
	remaining = t.Remaining(now)
	if !t.running {
		return remaining, false
	}
	if remaining == 0 {
		t.running = false
		return 0, true
	}
	return remaining, false
}

// FormatHMS renders seconds as HH:MM:SS. Hours grow past two digits.
func FormatHMS(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}
