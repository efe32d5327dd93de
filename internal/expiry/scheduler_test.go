package expiry

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

func TestScheduler_FiresAtDeadline(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, nil)
	defer s.Stop()

	var fired []int64
	s.Schedule(7, clock.Now().Add(30*time.Minute), func(ctx context.Context) {
		fired = append(fired, 7)
	})

	clock.Advance(29 * time.Minute)
	if len(fired) != 0 {
		t.Fatalf("fired early: %v", fired)
	}
	if s.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", s.Pending())
	}

	clock.Advance(time.Minute)
	if len(fired) != 1 || fired[0] != 7 {
		t.Fatalf("fired = %v, want [7]", fired)
	}
	if s.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0", s.Pending())
	}
}

func TestScheduler_CancelPreventsFire(t *testing.T) {
	clock := newFakeClock(time.Now())
	s := NewScheduler(clock, nil)
	defer s.Stop()

	called := false
	s.After(1, time.Minute, func(ctx context.Context) { called = true })

	if !s.Cancel(1) {
		t.Fatalf("Cancel = false, want true")
	}
	if s.Cancel(1) {
		t.Fatalf("second Cancel = true, want false")
	}

	clock.Advance(time.Hour)
	if called {
		t.Fatalf("cancelled task fired")
	}
}

func TestScheduler_RescheduleReplaces(t *testing.T) {
	clock := newFakeClock(time.Now())
	s := NewScheduler(clock, nil)
	defer s.Stop()

	var calls []string
	s.After(1, time.Minute, func(ctx context.Context) { calls = append(calls, "first") })
	s.After(1, 10*time.Minute, func(ctx context.Context) { calls = append(calls, "second") })

	clock.Advance(5 * time.Minute)
	if len(calls) != 0 {
		t.Fatalf("calls = %v, want none", calls)
	}
	clock.Advance(5 * time.Minute)
	if len(calls) != 1 || calls[0] != "second" {
		t.Fatalf("calls = %v, want [second]", calls)
	}
}

func TestScheduler_PastDeadlineRunsImmediately(t *testing.T) {
	clock := newFakeClock(time.Now())
	s := NewScheduler(clock, nil)
	defer s.Stop()

	called := false
	s.Schedule(1, clock.Now().Add(-time.Hour), func(ctx context.Context) { called = true })
	clock.Advance(0)
	if !called {
		t.Fatalf("overdue task did not run")
	}
}

func TestScheduler_StopCancelsAndRefuses(t *testing.T) {
	clock := newFakeClock(time.Now())
	s := NewScheduler(clock, nil)

	called := false
	s.After(1, time.Minute, func(ctx context.Context) { called = true })
	s.After(2, time.Minute, func(ctx context.Context) { called = true })

	s.Stop()
	s.Stop()

	if s.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0", s.Pending())
	}
	if s.After(3, time.Minute, func(ctx context.Context) { called = true }) {
		t.Fatalf("After accepted a task after Stop")
	}

	clock.Advance(time.Hour)
	if called {
		t.Fatalf("task ran after Stop")
	}
}

func TestScheduler_PanicIsContained(t *testing.T) {
	clock := newFakeClock(time.Now())
	s := NewScheduler(clock, nil)
	defer s.Stop()

	s.After(1, 0, func(ctx context.Context) { panic("boom") })
	clock.Advance(0)

	ok := false
	s.After(2, 0, func(ctx context.Context) { ok = true })
	clock.Advance(0)
	if !ok {
		t.Fatalf("scheduler stopped working after a panic")
	}
}

func TestSystemClock_AfterFunc(t *testing.T) {
	s := NewScheduler(SystemClock(), nil)
	defer s.Stop()

	done := make(chan struct{})
	s.After(1, time.Millisecond, func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("system clock task did not fire")
	}
}
