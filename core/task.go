package core

import (
	"sync"
	"sync/atomic"
)

// task is the heap-allocated unit the compute scheduler moves around. It
// wraps an erased computation in a mutex-guarded slot and carries the wake
// contract: the task is its own Waker.
type task struct {
	mu sync.Mutex
	// poll is the erased computation. It is taken out of the slot for the
	// duration of a poll and left empty for good once it reports done.
	poll func(cx *Context) bool
	// abandon resolves the task's join handle when the runtime shuts down
	// before the task ever completes. Nil for detached tasks.
	abandon func()
	// scheduled prevents duplicate enqueues when wake signals race.
	scheduled atomic.Bool
	// rt is a non-owning back-reference: once the runtime has shut down,
	// wake attempts silently no-op instead of resurrecting it.
	rt *Runtime
	// worker records which worker is running the current poll. Guarded by mu.
	worker int
}

func newTask(rt *Runtime, poll func(cx *Context) bool, abandon func()) *task {
	return &task{poll: poll, abandon: abandon, rt: rt}
}

// Wake implements Waker.
func (t *task) Wake() {
	t.schedule()
}

// schedule pushes the task to the injector unless it is already queued or
// the runtime is gone. Wakes arriving while the task runs are honored: run
// clears the flag before polling, so such a wake re-enqueues the task.
func (t *task) schedule() {
	if !t.scheduled.CompareAndSwap(false, true) {
		return
	}
	rt := t.rt
	if rt == nil || rt.closed.Load() {
		// Lost wakeup on shutdown: accepted, see package docs.
		return
	}
	if !rt.compute.submit(t) {
		t.scheduled.Store(false)
	}
}

// run polls the computation once. The slot mutex is held across the poll so
// the task is never polled by two workers concurrently even under spurious
// duplicate wakes; a second worker blocks here, then finds the slot empty
// (task running or done) or restored (poll returned not-ready) and polls
// again, which is exactly the follow-up the racing wake asked for.
func (t *task) run(workerID int) {
	// Clear before polling so a wake raised during the poll schedules a
	// follow-up instead of being swallowed.
	t.scheduled.Store(false)

	t.mu.Lock()
	defer t.mu.Unlock()

	poll := t.poll
	if poll == nil {
		return
	}
	t.poll = nil
	t.worker = workerID

	cx := NewContext(t)
	if !poll(cx) {
		t.poll = poll
	}
}

// drop resolves the join handle of a task abandoned at shutdown.
func (t *task) drop() {
	if t.abandon != nil {
		t.abandon()
	}
}
