package client

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleRunsImmediatelyThenRetries(t *testing.T) {
	s := newRetryScheduler([]time.Duration{10 * time.Millisecond, 20 * time.Millisecond})
	defer s.Close()

	var calls atomic.Int32
	s.Schedule("k", func() bool {
		calls.Add(1)
		return true
	})

	if got := calls.Load(); got != 1 {
		t.Fatalf("first attempt must run synchronously, got %d", got)
	}
	time.Sleep(80 * time.Millisecond)
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts total, got %d", got)
	}
}

func TestCancelStopsPendingAttempts(t *testing.T) {
	s := newRetryScheduler([]time.Duration{30 * time.Millisecond})
	defer s.Close()

	var calls atomic.Int32
	s.Schedule("k", func() bool {
		calls.Add(1)
		return true
	})
	s.Cancel("k")

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("cancel should stop the retry, got %d attempts", got)
	}
}

func TestScheduleReplacesSameKey(t *testing.T) {
	s := newRetryScheduler([]time.Duration{30 * time.Millisecond})
	defer s.Close()

	var first, second atomic.Int32
	s.Schedule("k", func() bool { first.Add(1); return true })
	s.Schedule("k", func() bool { second.Add(1); return true })

	time.Sleep(60 * time.Millisecond)
	if got := first.Load(); got != 1 {
		t.Errorf("replaced attempt should only have run immediately, got %d", got)
	}
	if got := second.Load(); got != 2 {
		t.Errorf("replacement should run immediately and once more, got %d", got)
	}
}

func TestDistinctKeysAreIndependent(t *testing.T) {
	s := newRetryScheduler([]time.Duration{20 * time.Millisecond})
	defer s.Close()

	var a, b atomic.Int32
	s.Schedule("a", func() bool { a.Add(1); return true })
	s.Schedule("b", func() bool { b.Add(1); return true })
	s.Cancel("a")

	time.Sleep(50 * time.Millisecond)
	if got := a.Load(); got != 1 {
		t.Errorf("cancelled key fired %d times", got)
	}
	if got := b.Load(); got != 2 {
		t.Errorf("untouched key should complete, got %d", got)
	}
}

func TestCloseStopsEverything(t *testing.T) {
	s := newRetryScheduler([]time.Duration{20 * time.Millisecond})

	var calls atomic.Int32
	s.Schedule("k", func() bool { calls.Add(1); return true })
	s.Close()

	// scheduling after close must not arm new timers
	s.Schedule("k2", func() bool { calls.Add(1); return true })

	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Fatalf("only the two immediate attempts should have run, got %d", got)
	}
}

func TestDefaultDelays(t *testing.T) {
	s := newRetryScheduler(nil)
	defer s.Close()
	if len(s.delays) != 3 || s.delays[0] != time.Second || s.delays[2] != 3*time.Second {
		t.Fatalf("default cadence wrong: %v", s.delays)
	}
}
