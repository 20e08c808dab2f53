package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// =============================================================================
// JoinError
// =============================================================================

type joinErrorKind int

const (
	joinCancelled joinErrorKind = iota
	joinPanic
)

// JoinError is the only error a handle produces on its own behalf: the task
// was cancelled (explicit Abort or runtime shutdown) or its body panicked.
// Errors returned by the computation itself pass through a handle unchanged.
type JoinError struct {
	kind    joinErrorKind
	payload any
}

func newCancelledError() *JoinError {
	return &JoinError{kind: joinCancelled}
}

func newPanicError(payload any) *JoinError {
	return &JoinError{kind: joinPanic, payload: payload}
}

func (e *JoinError) Error() string {
	switch e.kind {
	case joinPanic:
		return fmt.Sprintf("task panicked: %v", e.payload)
	default:
		return "task aborted"
	}
}

// IsCancelled reports whether the task was aborted before completing.
func (e *JoinError) IsCancelled() bool { return e.kind == joinCancelled }

// IsPanic reports whether the task body panicked.
func (e *JoinError) IsPanic() bool { return e.kind == joinPanic }

// PanicValue returns the recovered panic value, or nil for a cancellation.
func (e *JoinError) PanicValue() any { return e.payload }

// IsCancelled reports whether err is a cancellation JoinError.
func IsCancelled(err error) bool {
	var je *JoinError
	return errors.As(err, &je) && je.IsCancelled()
}

// IsPanic reports whether err is a panic JoinError.
func IsPanic(err error) bool {
	var je *JoinError
	return errors.As(err, &je) && je.IsPanic()
}

// =============================================================================
// resultCell: single-use result channel
// =============================================================================

// resultCell delivers exactly one result from a task to its handle. The
// "sender slot" is the sent flag: whichever side sets it first under the
// mutex owns delivery, so a completing task and a racing Abort can never
// both publish.
type resultCell[T any] struct {
	mu    sync.Mutex
	sent  bool
	value T
	err   error
	waker Waker
	done  chan struct{}
}

func newResultCell[T any]() *resultCell[T] {
	return &resultCell[T]{done: make(chan struct{})}
}

// complete claims the sender slot and publishes the result. It reports
// false when the slot was already taken.
func (c *resultCell[T]) complete(value T, err error) bool {
	c.mu.Lock()
	if c.sent {
		c.mu.Unlock()
		return false
	}
	c.sent = true
	c.value = value
	c.err = err
	waker := c.waker
	c.waker = nil
	close(c.done)
	c.mu.Unlock()

	// Wake outside the lock; the waker may re-enter the scheduler.
	if waker != nil {
		waker.Wake()
	}
	return true
}

func (c *resultCell[T]) pollResult(cx *Context) (T, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent {
		return c.value, c.err, true
	}
	c.waker = cx.Waker()
	var zero T
	return zero, nil, false
}

// =============================================================================
// JoinHandle
// =============================================================================

// JoinHandle is the caller-held reference to a spawned task or blocking job.
// It resolves exactly once: to the computation's own result, to a
// cancellation error, or to a panic error.
//
// A JoinHandle is itself a Future, so one task can await another's result.
// Dropping a handle detaches the task; it keeps running.
type JoinHandle[T any] struct {
	cell      *resultCell[T]
	cancelled *atomic.Bool
	// task lets Abort force a re-poll of a still-live compute task. Nil for
	// blocking jobs.
	task *task
	// started is set by a blocking job the moment its closure begins; once
	// set, Abort no longer publishes Cancelled and the closure's real result
	// reaches the handle. Nil for compute tasks.
	started *atomic.Bool
}

func newJoinHandle[T any](cell *resultCell[T], cancelled *atomic.Bool, t *task, started *atomic.Bool) *JoinHandle[T] {
	return &JoinHandle[T]{cell: cell, cancelled: cancelled, task: t, started: started}
}

// Abort requests cooperative cancellation. The shared flag is observed at
// the task's next poll boundary, never mid-poll and never inside an already
// running blocking closure. For a compute task Abort also races for the
// result slot: if it wins, the handle resolves Cancelled immediately; if the
// task completed first, the completed result stands. A blocking job is
// cancellable only before its closure begins; once started, the closure runs
// to the end and the handle resolves with its real result.
func (h *JoinHandle[T]) Abort() {
	if h.cancelled.Swap(true) {
		return
	}
	if h.task != nil {
		// Force one more poll so the task observes the flag promptly.
		h.task.schedule()
	}
	if h.started != nil && h.started.Load() {
		// The closure is already executing; its result stands.
		return
	}
	var zero T
	h.cell.complete(zero, newCancelledError())
}

// Poll implements Future, resolving with the task's result.
func (h *JoinHandle[T]) Poll(cx *Context) (T, error, bool) {
	return h.cell.pollResult(cx)
}

// Wait blocks until the task resolves or ctx is done. It is the synchronous
// companion to awaiting the handle from another task.
func (h *JoinHandle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.cell.done:
		// done is closed after value/err are written; safe to read.
		return h.cell.value, h.cell.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed once the handle has resolved.
func (h *JoinHandle[T]) Done() <-chan struct{} {
	return h.cell.done
}
