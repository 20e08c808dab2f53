package core

import (
	"errors"
	"time"
)

// =============================================================================
// poller: platform readiness multiplexer
// =============================================================================

// Interest selects which readiness directions a registration watches.
type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

// Has reports whether i contains all directions in other.
func (i Interest) Has(other Interest) bool { return i&other == other }

// Union returns i with the directions in other added.
func (i Interest) Union(other Interest) Interest { return i | other }

// Without returns i with the directions in other removed.
func (i Interest) Without(other Interest) Interest { return i &^ other }

// pollEvent is one readiness notification, normalized across platforms.
// Error and priority conditions satisfy both directions at the dispatch
// layer; the poller only reports the raw bits.
type pollEvent struct {
	token       uint64
	readable    bool
	writable    bool
	errored     bool
	readClosed  bool
	writeClosed bool
	priority    bool
}

// poller abstracts the OS readiness facility (epoll on Linux, kqueue on the
// BSDs and Darwin). All registrations are edge-like: readiness is latched by
// the reactor into per-entry flags, so the poller arms its filters in
// clear-on-read mode.
type poller interface {
	// register associates fd with token for the given interest set.
	register(fd int, token uint64, interest Interest) error
	// reregister replaces the interest set of an existing registration.
	reregister(fd int, token uint64, interest Interest) error
	// deregister removes fd entirely.
	deregister(fd int, token uint64) error
	// wait blocks until readiness events arrive, the timeout elapses, or
	// wake is called from another thread. A negative timeout blocks
	// indefinitely. Wakeup notifications are consumed internally and never
	// surface as events.
	wait(events []pollEvent, timeout time.Duration) (int, error)
	// wake interrupts a concurrent wait from any thread.
	wake() error
	close() error
}

var errPollerClosed = errors.New("poller is closed")
