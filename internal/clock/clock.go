// Package clock abstracts time operations so session timing can be
// driven deterministically in tests. Production code injects Real();
// tests inject NewFake() and advance it explicitly.
package clock

import "time"

// Clock is the time source used by all session timing: the tick loop,
// grace-period timers, and backoff sleeps.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc schedules f to run after d. The returned Timer cancels
	// the pending call with Stop; its C field is nil, matching
	// time.AfterFunc.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering ticks on C at interval d.
	// Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker

	// Sleep pauses the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Timer is a scheduled one-shot event. C is nil for AfterFunc timers.
type Timer struct {
	C <-chan time.Time

	stop func() bool
}

// Stop prevents the timer from firing. It returns false if the timer
// already fired or was stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Ticker delivers periodic ticks on C. The channel has capacity 1, so
// a slow consumer drops ticks instead of queueing them.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. It does not close C.
func (t *Ticker) Stop() { t.stop() }
