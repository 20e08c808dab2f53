package core

import (
	"errors"
	"testing"
	"time"
)

func TestSleepResolvesAfterDuration(t *testing.T) {
	rt := newTestRuntime(t, DefaultConfig())

	const d = 30 * time.Millisecond
	start := time.Now()
	if _, err := BlockOn[struct{}](rt.Sleep(d)); err != nil {
		t.Fatalf("sleep error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < d {
		t.Fatalf("sleep resolved after %v, want >= %v", elapsed, d)
	}
}

func TestSleepElapsedDeadlineIsImmediatelyReady(t *testing.T) {
	rt := newTestRuntime(t, DefaultConfig())

	s := rt.SleepUntil(time.Now().Add(-time.Second))
	w := newParkWaker()
	if _, _, ready := s.Poll(NewContext(w)); !ready {
		t.Fatal("elapsed sleep not ready on first poll")
	}
	if rt.Stats().ActiveTimers != 0 {
		t.Fatal("elapsed sleep armed a timer")
	}
}

func TestSleepCancelRemovesTimer(t *testing.T) {
	rt := newTestRuntime(t, DefaultConfig())

	s := rt.Sleep(time.Hour)
	w := newParkWaker()
	if _, _, ready := s.Poll(NewContext(w)); ready {
		t.Fatal("hour-long sleep ready immediately")
	}
	if rt.Stats().ActiveTimers != 1 {
		t.Fatalf("active timers = %d, want 1", rt.Stats().ActiveTimers)
	}

	s.Cancel()
	if rt.Stats().ActiveTimers != 0 {
		t.Fatalf("active timers after cancel = %d, want 0", rt.Stats().ActiveTimers)
	}
}

func TestIntervalTicksRepeatedly(t *testing.T) {
	rt := newTestRuntime(t, DefaultConfig())

	const period = 20 * time.Millisecond
	iv := rt.Interval(period)
	defer iv.Cancel()

	start := time.Now()
	var last time.Time
	for i := 0; i < 3; i++ {
		tick, err := BlockOn[time.Time](iv.Tick())
		if err != nil {
			t.Fatalf("tick %d error: %v", i, err)
		}
		if !last.IsZero() && tick.Sub(last) != period {
			t.Fatalf("tick spacing = %v, want %v", tick.Sub(last), period)
		}
		last = tick
	}
	if elapsed := time.Since(start); elapsed < 3*period {
		t.Fatalf("three ticks in %v, want >= %v", elapsed, 3*period)
	}
}

func TestIntervalStalledConsumerGetsOneImmediateTick(t *testing.T) {
	rt := newTestRuntime(t, DefaultConfig())

	const period = 10 * time.Millisecond
	iv := rt.Interval(period)
	defer iv.Cancel()

	// Stall well past several periods without polling.
	time.Sleep(8 * period)

	start := time.Now()
	tick, err := BlockOn[time.Time](iv.Tick())
	if err != nil {
		t.Fatalf("tick error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*period {
		t.Fatalf("stalled tick took %v, want immediate", elapsed)
	}
	if tick.After(time.Now()) {
		t.Fatal("tick deadline is in the future")
	}
}

func TestTimeoutExpires(t *testing.T) {
	rt := newTestRuntime(t, DefaultConfig())

	const bound = 30 * time.Millisecond
	never := FutureFunc[int](func(cx *Context) (int, error, bool) {
		return 0, nil, false
	})

	start := time.Now()
	_, err := BlockOn[int](Timeout(rt, bound, never))
	if !IsTimeout(err) {
		t.Fatalf("error = %v, want timeout", err)
	}
	if elapsed := time.Since(start); elapsed < bound {
		t.Fatalf("timed out after %v, want >= %v", elapsed, bound)
	}

	var te *TimeoutError
	if !errors.As(err, &te) || te.After != bound {
		t.Fatalf("timeout error detail = %v", err)
	}
}

func TestTimeoutInnerResultWins(t *testing.T) {
	rt := newTestRuntime(t, DefaultConfig())

	fut := FutureFunc[int](func(cx *Context) (int, error, bool) {
		return 11, nil, true
	})

	got, err := BlockOn[int](Timeout(rt, time.Hour, fut))
	if err != nil {
		t.Fatalf("timeout error: %v", err)
	}
	if got != 11 {
		t.Fatalf("result = %d, want 11", got)
	}

	// Winning immediately means the deadline sleep was never armed.
	if rt.Stats().ActiveTimers != 0 {
		t.Fatalf("active timers = %d, want 0", rt.Stats().ActiveTimers)
	}
}

func TestTimeoutCancelsSleepOnLateWin(t *testing.T) {
	rt := newTestRuntime(t, DefaultConfig())

	polls := 0
	fut := FutureFunc[int](func(cx *Context) (int, error, bool) {
		polls++
		if polls == 1 {
			cx.Waker().Wake()
			return 0, nil, false
		}
		return 5, nil, true
	})

	got, err := BlockOn[int](Timeout(rt, time.Hour, fut))
	if err != nil || got != 5 {
		t.Fatalf("result = %d, %v, want 5, nil", got, err)
	}
	if rt.Stats().ActiveTimers != 0 {
		t.Fatalf("active timers after win = %d, want 0", rt.Stats().ActiveTimers)
	}
}
