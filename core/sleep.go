package core

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Sleep
// =============================================================================

// Sleep resolves once its deadline has passed. The reactor timer is armed
// lazily on the first pending poll; a Sleep that is created and dropped
// without being polled never touches the reactor.
//
// Sleep is not safe for concurrent polls; like any future it is driven by a
// single task at a time.
type Sleep struct {
	reactor  *Reactor
	deadline time.Time
	id       uint64
	armed    bool
}

func newSleepAt(r *Reactor, deadline time.Time) *Sleep {
	return &Sleep{reactor: r, deadline: deadline}
}

// Deadline returns the instant the sleep resolves at.
func (s *Sleep) Deadline() time.Time { return s.deadline }

// Poll implements Future. It never fails.
func (s *Sleep) Poll(cx *Context) (struct{}, error, bool) {
	if !time.Now().Before(s.deadline) {
		s.Cancel()
		return struct{}{}, nil, true
	}
	if !s.armed {
		s.id = s.reactor.registerTimer(s.deadline, cx.Waker(), 0)
		s.armed = true
	} else {
		// The awaiting task may have moved; keep the freshest waker.
		s.reactor.updateTimerWaker(s.id, cx.Waker())
	}
	return struct{}{}, nil, false
}

// Cancel removes the timer from the reactor. A Sleep that will not be
// polled to completion should be cancelled so the reactor does not hold a
// stale waker until the deadline.
func (s *Sleep) Cancel() {
	if s.armed {
		s.reactor.cancelTimer(s.id)
		s.armed = false
	}
}

// =============================================================================
// Interval
// =============================================================================

// Interval yields ticks every period. Ticks carry the deadline they were
// scheduled for, not the instant they were observed. A stalled consumer gets
// one immediately ready tick when it resumes; missed periods are not
// delivered as a burst of distinct wakeups.
type Interval struct {
	reactor *Reactor
	period  time.Duration
	next    time.Time
	id      uint64
	armed   bool
}

func newInterval(r *Reactor, period time.Duration) *Interval {
	return &Interval{
		reactor: r,
		period:  period,
		next:    time.Now().Add(period),
	}
}

// Period returns the tick period.
func (iv *Interval) Period() time.Duration { return iv.period }

// PollTick returns the current tick once its deadline has passed and
// schedules the next one.
func (iv *Interval) PollTick(cx *Context) (time.Time, error, bool) {
	if now := time.Now(); !now.Before(iv.next) {
		fired := iv.next
		iv.next = iv.next.Add(iv.period)
		return fired, nil, true
	}
	if !iv.armed {
		iv.id = iv.reactor.registerTimer(iv.next, cx.Waker(), iv.period)
		iv.armed = true
	} else {
		iv.reactor.updateTimerWaker(iv.id, cx.Waker())
	}
	return time.Time{}, nil, false
}

// Tick returns a future for the next tick.
func (iv *Interval) Tick() Future[time.Time] {
	return FutureFunc[time.Time](iv.PollTick)
}

// Cancel removes the periodic timer from the reactor.
func (iv *Interval) Cancel() {
	if iv.armed {
		iv.reactor.cancelTimer(iv.id)
		iv.armed = false
	}
}

// =============================================================================
// Timeout
// =============================================================================

// TimeoutError reports that a future did not resolve within its bound.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("future timed out after %v", e.After)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// timeoutFuture races an inner future against a sleep. The inner future is
// always polled first, so a result that is ready at the same instant the
// deadline passes wins over the timeout.
type timeoutFuture[T any] struct {
	inner Future[T]
	sleep *Sleep
	after time.Duration
}

func (t *timeoutFuture[T]) Poll(cx *Context) (T, error, bool) {
	if value, err, ready := t.inner.Poll(cx); ready {
		t.sleep.Cancel()
		return value, err, true
	}
	var zero T
	if _, _, expired := t.sleep.Poll(cx); expired {
		return zero, &TimeoutError{After: t.after}, true
	}
	return zero, nil, false
}
