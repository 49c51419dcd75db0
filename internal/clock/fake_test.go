package clock

import (
	"testing"
	"time"
)

func TestFakeClockAdvanceMovesNow(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fc := NewFake(base)

	if got := fc.Now(); !got.Equal(base) {
		t.Errorf("Expected Now %v, got %v", base, got)
	}

	fc.Advance(90 * time.Second)
	want := base.Add(90 * time.Second)
	if got := fc.Now(); !got.Equal(want) {
		t.Errorf("Expected Now %v after advance, got %v", want, got)
	}
}

func TestFakeClockAfterFuncFiresInDeadlineOrder(t *testing.T) {
	fc := NewFake(time.Time{})

	var order []string
	fc.AfterFunc(2*time.Second, func() { order = append(order, "second") })
	fc.AfterFunc(1*time.Second, func() { order = append(order, "first") })

	fc.Advance(3 * time.Second)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("Expected callbacks in deadline order [first second], got %v", order)
	}
}

func TestFakeClockAfterFuncDoesNotFireEarly(t *testing.T) {
	fc := NewFake(time.Time{})

	fired := 0
	fc.AfterFunc(20*time.Second, func() { fired++ })

	fc.Advance(19 * time.Second)
	if fired != 0 {
		t.Errorf("Expected no fire before deadline, got %d", fired)
	}

	fc.Advance(1 * time.Second)
	if fired != 1 {
		t.Errorf("Expected one fire at deadline, got %d", fired)
	}

	fc.Advance(time.Minute)
	if fired != 1 {
		t.Errorf("Expected one-shot timer to stay fired once, got %d", fired)
	}
}

func TestFakeClockCallbackSeesFireTime(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fc := NewFake(base)

	var at time.Time
	fc.AfterFunc(5*time.Second, func() { at = fc.Now() })

	fc.Advance(10 * time.Second)

	want := base.Add(5 * time.Second)
	if !at.Equal(want) {
		t.Errorf("Expected callback to observe %v, got %v", want, at)
	}
}

func TestFakeClockTimerStop(t *testing.T) {
	fc := NewFake(time.Time{})

	fired := false
	timer := fc.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Expected Stop on pending timer to return true")
	}
	if timer.Stop() {
		t.Error("Expected second Stop to return false")
	}

	fc.Advance(time.Minute)
	if fired {
		t.Error("Expected stopped timer not to fire")
	}
}

func TestFakeClockStopAfterFireReturnsFalse(t *testing.T) {
	fc := NewFake(time.Time{})

	timer := fc.AfterFunc(time.Second, func() {})
	fc.Advance(time.Second)

	if timer.Stop() {
		t.Error("Expected Stop after fire to return false")
	}
}

func TestFakeClockTickerFiresRepeatedly(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fc := NewFake(base)

	ticker := fc.NewTicker(time.Second)
	defer ticker.Stop()

	for i := 1; i <= 3; i++ {
		fc.Advance(time.Second)
		select {
		case at := <-ticker.C:
			want := base.Add(time.Duration(i) * time.Second)
			if !at.Equal(want) {
				t.Errorf("Expected tick %d at %v, got %v", i, want, at)
			}
		default:
			t.Fatalf("Expected tick %d to be delivered", i)
		}
	}
}

func TestFakeClockTickerStop(t *testing.T) {
	fc := NewFake(time.Time{})

	ticker := fc.NewTicker(time.Second)
	ticker.Stop()

	fc.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Error("Expected no ticks after Stop")
	default:
	}
}

func TestFakeClockAfterDelivers(t *testing.T) {
	fc := NewFake(time.Time{})

	ch := fc.After(2 * time.Second)
	select {
	case <-ch:
		t.Fatal("Expected no delivery before advance")
	default:
	}

	fc.Advance(2 * time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("Expected delivery after advance")
	}
}

func TestFakeClockAfterNonPositiveDeliversImmediately(t *testing.T) {
	fc := NewFake(time.Time{})

	select {
	case <-fc.After(0):
	default:
		t.Fatal("Expected immediate delivery for non-positive duration")
	}
}

func TestFakeClockSleepUnblocksOnAdvance(t *testing.T) {
	fc := NewFake(time.Time{})

	done := make(chan struct{})
	go func() {
		fc.Sleep(2 * time.Second)
		close(done)
	}()

	fc.WaitForTimers(1)
	fc.Advance(2 * time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected Sleep to return after advance")
	}
}

func TestFakeClockPendingCount(t *testing.T) {
	fc := NewFake(time.Time{})

	if got := fc.PendingCount(); got != 0 {
		t.Errorf("Expected 0 pending, got %d", got)
	}

	timer := fc.AfterFunc(time.Second, func() {})
	ticker := fc.NewTicker(time.Second)

	if got := fc.PendingCount(); got != 2 {
		t.Errorf("Expected 2 pending, got %d", got)
	}

	timer.Stop()
	ticker.Stop()

	if got := fc.PendingCount(); got != 0 {
		t.Errorf("Expected 0 pending after stops, got %d", got)
	}
}
