package core

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// reactorWakeToken is reserved for the cross-thread wakeup object and never
// handed out to a registration.
const reactorWakeToken = math.MaxUint64

// DefaultReactorIdlePoll caps how long the reactor sleeps when no timer is
// pending, so a stuck poller cannot delay shutdown observation forever.
const DefaultReactorIdlePoll = 100 * time.Millisecond

// ErrRegistrationMissing is returned when a readiness poll or interest
// change references a token that was never registered or was already
// deregistered.
var ErrRegistrationMissing = errors.New("io registration missing")

// ioEntry is the per-registration readiness state. Entries live only inside
// the reactor's map; registrations refer to them by token.
type ioEntry struct {
	fd         int
	interest   Interest
	readReady  bool
	writeReady bool
	readWaker  Waker
	writeWaker Waker
	// writeWaiters counts outstanding write-interest enables so concurrent
	// writers can share one WRITABLE registration.
	writeWaiters int
}

type ioDirection int

const (
	ioRead ioDirection = iota
	ioWrite
)

// Reactor is the single thread that multiplexes OS readiness and fires due
// timers. Registration and deregistration of I/O sources and timers may be
// called from any goroutine concurrently with the reactor loop.
type Reactor struct {
	poller   poller
	logger   Logger
	idlePoll time.Duration

	timersMu sync.Mutex
	timers   *timerState

	ioMu sync.Mutex
	io   map[uint64]*ioEntry

	nextToken atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
}

func newReactor(logger Logger, idlePoll time.Duration) (*Reactor, error) {
	if idlePoll <= 0 {
		idlePoll = DefaultReactorIdlePoll
	}
	p, err := newPoller(reactorWakeToken)
	if err != nil {
		return nil, fmt.Errorf("create reactor poller: %w", err)
	}
	r := &Reactor{
		poller:   p,
		logger:   logger,
		idlePoll: idlePoll,
		timers:   newTimerState(),
		io:       make(map[uint64]*ioEntry),
		done:     make(chan struct{}),
	}
	go r.run()
	return r, nil
}

func (r *Reactor) run() {
	defer close(r.done)
	defer r.poller.close()

	events := make([]pollEvent, 128)
	for !r.closed.Load() {
		timeout := r.computeTimeout()
		n, err := r.poller.wait(events, timeout)
		if err != nil {
			if r.closed.Load() {
				return
			}
			r.logger.Error("reactor poll failed", F("err", err))
			continue
		}
		for i := 0; i < n; i++ {
			r.dispatchIOEvent(&events[i])
		}
		r.fireDueTimers()
	}
}

// computeTimeout returns the wait bound: the nearest live timer deadline,
// capped by the idle poll interval.
func (r *Reactor) computeTimeout() time.Duration {
	r.timersMu.Lock()
	r.timers.prune()
	deadline, ok := r.timers.peekDeadline()
	r.timersMu.Unlock()

	if !ok {
		return r.idlePoll
	}
	until := time.Until(deadline)
	if until < 0 {
		until = 0
	}
	return min(until, r.idlePoll)
}

// fireDueTimers wakes every timer whose deadline has passed, one at a time
// so no waker runs under the timer lock.
func (r *Reactor) fireDueTimers() {
	for {
		r.timersMu.Lock()
		waker, ok := r.timers.popDue(time.Now())
		r.timersMu.Unlock()
		if !ok {
			return
		}
		waker.Wake()
	}
}

// dispatchIOEvent latches readiness into the entry and takes (not copies)
// any waiting waker, invoking it outside the lock. Error and priority
// conditions satisfy both directions.
func (r *Reactor) dispatchIOEvent(ev *pollEvent) {
	if ev.token == reactorWakeToken {
		return
	}

	var wakeRead, wakeWrite Waker

	r.ioMu.Lock()
	entry, ok := r.io[ev.token]
	if ok {
		if ev.readable || ev.readClosed || ev.errored || ev.priority {
			entry.readReady = true
			wakeRead = entry.readWaker
			entry.readWaker = nil
		}
		if ev.writable || ev.writeClosed || ev.errored || ev.priority {
			entry.writeReady = true
			wakeWrite = entry.writeWaker
			entry.writeWaker = nil
		}
	}
	r.ioMu.Unlock()

	if !ok {
		r.logger.Debug("reactor dropped event for unknown token", F("token", ev.token))
		return
	}
	if wakeRead != nil {
		wakeRead.Wake()
	}
	if wakeWrite != nil {
		wakeWrite.Wake()
	}
}

// lockRegistrant acquires mu from a registering caller without ever parking
// against the reactor thread: it signals the wakeup object first, then spins
// with TryLock and yields, so the reactor is never stalled waiting behind a
// registrant.
func (r *Reactor) lockRegistrant(mu *sync.Mutex) {
	_ = r.poller.wake()
	for !mu.TryLock() {
		runtime.Gosched()
	}
}

// =============================================================================
// Timer registration
// =============================================================================

// registerTimer inserts a timer and returns its id. A zero period means
// one-shot.
func (r *Reactor) registerTimer(deadline time.Time, waker Waker, period time.Duration) uint64 {
	id := r.nextToken.Add(1)
	r.lockRegistrant(&r.timersMu)
	r.timers.insert(id, deadline, waker, period)
	r.timersMu.Unlock()
	// The new deadline may be nearer than whatever the reactor sleeps on.
	_ = r.poller.wake()
	return id
}

func (r *Reactor) updateTimerWaker(id uint64, waker Waker) {
	r.timersMu.Lock()
	r.timers.updateWaker(id, waker)
	r.timersMu.Unlock()
}

func (r *Reactor) cancelTimer(id uint64) {
	r.lockRegistrant(&r.timersMu)
	r.timers.cancel(id)
	r.timersMu.Unlock()
}

// timerCount reports live timers, for observability snapshots.
func (r *Reactor) timerCount() int {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()
	return r.timers.len()
}

// =============================================================================
// I/O registration
// =============================================================================

func (r *Reactor) registerIO(fd int, interest Interest) (uint64, error) {
	token := r.nextToken.Add(1)
	entry := &ioEntry{fd: fd, interest: interest}
	if interest.Has(InterestWrite) {
		entry.writeWaiters = 1
	}

	r.lockRegistrant(&r.ioMu)
	r.io[token] = entry
	r.ioMu.Unlock()

	if err := r.poller.register(fd, token, interest); err != nil {
		r.lockRegistrant(&r.ioMu)
		delete(r.io, token)
		r.ioMu.Unlock()
		return 0, fmt.Errorf("register fd %d: %w", fd, err)
	}
	r.logger.Debug("reactor registered source", F("fd", fd), F("token", token))
	_ = r.poller.wake()
	return token, nil
}

func (r *Reactor) deregisterIO(fd int, token uint64) error {
	_ = r.poller.wake()
	if err := r.poller.deregister(fd, token); err != nil {
		return fmt.Errorf("deregister fd %d: %w", fd, err)
	}
	r.lockRegistrant(&r.ioMu)
	delete(r.io, token)
	r.ioMu.Unlock()
	r.logger.Debug("reactor deregistered source", F("fd", fd), F("token", token))
	return nil
}

// pollIOReady consumes latched readiness for one direction, or parks the
// waker until the next matching event.
func (r *Reactor) pollIOReady(token uint64, dir ioDirection, cx *Context) (error, bool) {
	r.ioMu.Lock()
	entry, ok := r.io[token]
	if !ok {
		r.ioMu.Unlock()
		return ErrRegistrationMissing, true
	}
	switch dir {
	case ioRead:
		if entry.readReady {
			entry.readReady = false
			r.ioMu.Unlock()
			return nil, true
		}
		entry.readWaker = cx.Waker()
	case ioWrite:
		if entry.writeReady {
			entry.writeReady = false
			r.ioMu.Unlock()
			return nil, true
		}
		entry.writeWaker = cx.Waker()
	}
	r.ioMu.Unlock()

	_ = r.poller.wake()
	return nil, false
}

// enableWriteInterest adds WRITABLE interest for one more waiter,
// re-registering with the poller only on the zero-to-one transition.
func (r *Reactor) enableWriteInterest(token uint64) error {
	r.ioMu.Lock()
	entry, ok := r.io[token]
	if !ok {
		r.ioMu.Unlock()
		return ErrRegistrationMissing
	}
	entry.writeWaiters++
	prev := entry.interest
	update := false
	if !prev.Has(InterestWrite) {
		entry.interest = prev.Union(InterestWrite)
		update = true
	}
	fd := entry.fd
	next := entry.interest
	r.ioMu.Unlock()

	if !update {
		return nil
	}
	if err := r.poller.reregister(fd, token, next); err != nil {
		r.ioMu.Lock()
		if entry, ok := r.io[token]; ok {
			entry.interest = prev
			entry.writeWaiters--
		}
		r.ioMu.Unlock()
		return fmt.Errorf("enable write interest fd %d: %w", fd, err)
	}
	return nil
}

// disableWriteInterest drops one write waiter, removing WRITABLE interest
// when the last waiter leaves.
func (r *Reactor) disableWriteInterest(token uint64) error {
	r.ioMu.Lock()
	entry, ok := r.io[token]
	if !ok {
		r.ioMu.Unlock()
		return ErrRegistrationMissing
	}
	decremented := false
	if entry.writeWaiters > 0 {
		entry.writeWaiters--
		decremented = true
	}
	prev := entry.interest
	update := false
	if entry.writeWaiters == 0 && prev.Has(InterestWrite) {
		entry.interest = prev.Without(InterestWrite)
		update = true
	}
	fd := entry.fd
	next := entry.interest
	r.ioMu.Unlock()

	if !update {
		return nil
	}
	if err := r.poller.reregister(fd, token, next); err != nil {
		r.ioMu.Lock()
		if entry, ok := r.io[token]; ok {
			entry.interest = prev
			if decremented {
				entry.writeWaiters++
			}
		}
		r.ioMu.Unlock()
		return fmt.Errorf("disable write interest fd %d: %w", fd, err)
	}
	return nil
}

// ioCount reports live registrations, for observability snapshots.
func (r *Reactor) ioCount() int {
	r.ioMu.Lock()
	defer r.ioMu.Unlock()
	return len(r.io)
}

// close stops the reactor thread and joins it.
func (r *Reactor) close() {
	if r.closed.Swap(true) {
		return
	}
	_ = r.poller.wake()
	<-r.done
}
