package clock

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock for tests. Time only moves
// when Advance is called; timers and tickers fire in deadline order,
// and AfterFunc callbacks run synchronously inside Advance so tests
// never need to sleep or poll.
type FakeClock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	waiters []*waiter
}

// waiter is a pending timer, ticker, or After channel. Exactly one of
// ch and fn is set. interval > 0 marks a ticker, which is rescheduled
// after each fire instead of being removed.
type waiter struct {
	deadline time.Time
	ch       chan time.Time
	fn       func()
	interval time.Duration
	stopped  bool
}

// NewFake returns a FakeClock whose Now starts at initial. A zero
// initial defaults to a fixed arbitrary instant so successive test
// runs observe identical timestamps.
func NewFake(initial time.Time) *FakeClock {
	if initial.IsZero() {
		initial = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	c := &FakeClock{now: initial}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.addLocked(&waiter{deadline: c.now.Add(d), ch: ch})
	return ch
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &waiter{deadline: c.now.Add(d), fn: f}
	c.addLocked(w)
	return &Timer{stop: func() bool { return c.stopWaiter(w) }}
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &waiter{deadline: c.now.Add(d), ch: make(chan time.Time, 1), interval: d}
	c.addLocked(w)
	return &Ticker{C: w.ch, stop: func() { c.stopWaiter(w) }}
}

// Sleep blocks until another goroutine advances the clock past d.
func (c *FakeClock) Sleep(d time.Duration) {
	<-c.After(d)
}

// Advance moves the clock forward by d, firing every timer and ticker
// whose deadline falls within the window, in deadline order. Callbacks
// registered with AfterFunc run on the calling goroutine before
// Advance returns.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		w := c.nextLocked(target)
		if w == nil {
			break
		}
		// Move time to the fire point so callbacks reading Now see
		// the moment the timer was due, not the end of the window.
		if c.now.Before(w.deadline) {
			c.now = w.deadline
		}
		if w.interval > 0 {
			w.deadline = w.deadline.Add(w.interval)
		} else {
			w.stopped = true
			c.removeLocked(w)
		}
		if w.ch != nil {
			select {
			case w.ch <- c.now:
			default:
			}
		}
		if w.fn != nil {
			// Release the lock: the callback may call back into the
			// clock or register new timers.
			c.mu.Unlock()
			w.fn()
			c.mu.Lock()
		}
	}
	c.now = target
	c.cond.Broadcast()
	c.mu.Unlock()
}

// WaitForTimers blocks until at least n timers or tickers are pending.
// It lets a test synchronize with a goroutine that schedules its own
// timers before advancing the clock past them.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.cond.Wait()
	}
}

// PendingCount reports the number of pending timers and tickers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// nextLocked returns the earliest waiter due at or before target, or
// nil when none is due.
func (c *FakeClock) nextLocked(target time.Time) *waiter {
	var next *waiter
	for _, w := range c.waiters {
		if w.deadline.After(target) {
			continue
		}
		if next == nil || w.deadline.Before(next.deadline) {
			next = w
		}
	}
	return next
}

func (c *FakeClock) addLocked(w *waiter) {
	c.waiters = append(c.waiters, w)
	c.cond.Broadcast()
}

func (c *FakeClock) removeLocked(w *waiter) {
	for i, cur := range c.waiters {
		if cur == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			break
		}
	}
	c.cond.Broadcast()
}

// stopWaiter cancels w. It reports whether the waiter was still
// pending, mirroring time.Timer.Stop.
func (c *FakeClock) stopWaiter(w *waiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w.stopped {
		return false
	}
	w.stopped = true
	c.removeLocked(w)
	return true
}
