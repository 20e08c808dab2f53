package core

import (
	"runtime/debug"
	"sync/atomic"
	"time"
)

const (
	computePoolName  = "compute"
	blockingPoolName = "blocking"
)

// blockingJob is one queued closure for the blocking pool. drop resolves the
// job's handle when the pool shuts down before the job ran.
type blockingJob struct {
	run  func(workerID int)
	drop func()
}

// Runtime owns the three executors: the work-stealing compute pool for
// cooperative futures, the dedicated blocking pool for synchronous closures,
// and the reactor thread for OS readiness and timers.
//
// A Runtime must be released with Close; workers and the reactor thread do
// not stop on garbage collection.
type Runtime struct {
	cfg      Config
	compute  *stealPool[*task]
	blocking *stealPool[blockingJob]
	reactor  *Reactor

	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler

	// pending counts spawned tasks and blocking jobs that have not resolved.
	pending atomic.Int64
	closed  atomic.Bool
}

// NewRuntime creates a Runtime with DefaultConfig.
func NewRuntime() (*Runtime, error) {
	return NewRuntimeWithConfig(DefaultConfig())
}

// NewRuntimeWithConfig creates a Runtime and starts its workers and reactor.
func NewRuntimeWithConfig(cfg Config) (*Runtime, error) {
	cfg = cfg.withDefaults()

	reactor, err := newReactor(cfg.Logger, cfg.ReactorIdlePoll)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		cfg:          cfg,
		reactor:      reactor,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		panicHandler: cfg.PanicHandler,
	}
	rt.compute = newStealPool(computePoolName, cfg.Workers, func(workerID int, t *task) {
		t.run(workerID)
	})
	rt.blocking = newStealPool(blockingPoolName, cfg.BlockingWorkers, func(workerID int, j blockingJob) {
		j.run(workerID)
	})

	rt.logger.Info("runtime started",
		F("workers", cfg.Workers),
		F("blocking_workers", cfg.BlockingWorkers))
	return rt, nil
}

// Reactor returns the runtime's reactor for direct I/O source registration.
func (rt *Runtime) Reactor() *Reactor {
	return rt.reactor
}

// Sleep returns a future that resolves after d.
func (rt *Runtime) Sleep(d time.Duration) *Sleep {
	return newSleepAt(rt.reactor, time.Now().Add(d))
}

// SleepUntil returns a future that resolves at deadline.
func (rt *Runtime) SleepUntil(deadline time.Time) *Sleep {
	return newSleepAt(rt.reactor, deadline)
}

// Interval returns a ticker future yielding every period, first tick one
// period from now.
func (rt *Runtime) Interval(period time.Duration) *Interval {
	return newInterval(rt.reactor, period)
}

// Timeout bounds fut: the returned future resolves with fut's result, or
// with a TimeoutError once after has elapsed. fut wins a tie.
func Timeout[T any](rt *Runtime, after time.Duration, fut Future[T]) Future[T] {
	return &timeoutFuture[T]{inner: fut, sleep: rt.Sleep(after), after: after}
}

// Stats returns a point-in-time observability snapshot.
func (rt *Runtime) Stats() RuntimeStats {
	return RuntimeStats{
		ComputeWorkers:  rt.compute.workers(),
		BlockingWorkers: rt.blocking.workers(),
		PendingTasks:    rt.pending.Load(),
		ComputeQueued:   rt.compute.queued(),
		BlockingQueued:  rt.blocking.queued(),
		ActiveTimers:    rt.reactor.timerCount(),
		IoRegistrations: rt.reactor.ioCount(),
		Closed:          rt.closed.Load(),
	}
}

// Close shuts the runtime down: workers stop after their current item,
// still-queued tasks and jobs resolve their handles as cancelled, and the
// reactor thread is joined. Close is idempotent.
func (rt *Runtime) Close() {
	if rt.closed.Swap(true) {
		return
	}
	rt.logger.Info("runtime shutting down", F("pending", rt.pending.Load()))

	for _, t := range rt.compute.close() {
		t.drop()
	}
	for _, j := range rt.blocking.close() {
		if j.drop != nil {
			j.drop()
		}
	}
	rt.reactor.close()
	rt.logger.Info("runtime stopped")
}

// =============================================================================
// Spawn
// =============================================================================

// Spawn submits fut to the compute pool and returns its handle. The task
// starts running whether or not the handle is ever awaited; dropping the
// handle detaches it.
//
// Spawning on a closed runtime returns a handle already resolved as
// cancelled.
func Spawn[T any](rt *Runtime, fut Future[T]) *JoinHandle[T] {
	cell := newResultCell[T]()
	cancelled := new(atomic.Bool)

	if rt.closed.Load() {
		var zero T
		cell.complete(zero, newCancelledError())
		return newJoinHandle(cell, cancelled, nil, nil)
	}

	rt.metrics.RecordPendingTasks(rt.pending.Add(1))
	spawnedAt := time.Now()
	firstPoll := true

	// settle resolves the handle and retires the task from the pending gauge
	// exactly once, no matter how completion, abort, and shutdown interleave.
	var settledFlag atomic.Bool
	settle := func(value T, err error) {
		if settledFlag.Swap(true) {
			return
		}
		cell.complete(value, err)
		rt.metrics.RecordPendingTasks(rt.pending.Add(-1))
	}

	var tk *task
	poll := func(cx *Context) bool {
		if firstPoll {
			// firstPoll is guarded by the task mutex like the rest of the
			// closure state.
			firstPoll = false
			rt.metrics.RecordSpawnLatency(computePoolName, time.Since(spawnedAt))
		}
		if cancelled.Load() {
			var zero T
			settle(zero, newCancelledError())
			return true
		}
		value, err, ready, panicked, panicValue, stack := pollRecover(fut, cx)
		if panicked {
			rt.panicHandler.HandlePanic(computePoolName, tk.worker, panicValue, stack)
			rt.metrics.RecordTaskPanic(computePoolName, panicValue)
			var zero T
			settle(zero, newPanicError(panicValue))
			return true
		}
		if !ready {
			return false
		}
		settle(value, err)
		return true
	}
	tk = newTask(rt, poll, func() {
		var zero T
		settle(zero, newCancelledError())
	})

	// Submit directly with the scheduled flag pre-set; going through
	// task.schedule would re-check rt.closed, which we just did.
	tk.scheduled.Store(true)
	if !rt.compute.submit(tk) {
		tk.scheduled.Store(false)
		var zero T
		settle(zero, newCancelledError())
	}
	return newJoinHandle(cell, cancelled, tk, nil)
}

// pollRecover polls fut, converting a panic into an explicit return so the
// worker survives.
func pollRecover[T any](fut Future[T], cx *Context) (value T, err error, ready bool, panicked bool, panicValue any, stack []byte) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			panicValue = r
			stack = debug.Stack()
		}
	}()
	value, err, ready = fut.Poll(cx)
	return
}

// =============================================================================
// SpawnBlocking
// =============================================================================

// SpawnBlocking runs fn on the dedicated blocking pool and returns its
// handle. Unlike compute tasks, a blocking job honors Abort only before it
// starts executing; once fn is running it runs to the end and the handle
// resolves with fn's real result, never Cancelled.
func SpawnBlocking[T any](rt *Runtime, fn func() (T, error)) *JoinHandle[T] {
	cell := newResultCell[T]()
	cancelled := new(atomic.Bool)
	started := new(atomic.Bool)

	if rt.closed.Load() {
		var zero T
		cell.complete(zero, newCancelledError())
		return newJoinHandle(cell, cancelled, nil, nil)
	}

	rt.metrics.RecordPendingTasks(rt.pending.Add(1))
	spawnedAt := time.Now()

	var settledFlag atomic.Bool
	settle := func(value T, err error) {
		if settledFlag.Swap(true) {
			return
		}
		cell.complete(value, err)
		rt.metrics.RecordPendingTasks(rt.pending.Add(-1))
	}

	job := blockingJob{
		run: func(workerID int) {
			rt.metrics.RecordSpawnLatency(blockingPoolName, time.Since(spawnedAt))
			// Publish the start before checking the flag: an Abort that
			// misses the start here sees it set and leaves the result slot
			// alone; an Abort this check sees was pre-execution, so the
			// closure is skipped.
			started.Store(true)
			if cancelled.Load() {
				var zero T
				settle(zero, newCancelledError())
				return
			}
			value, err, panicked, panicValue, stack := callRecover(fn)
			if panicked {
				rt.panicHandler.HandlePanic(blockingPoolName, workerID, panicValue, stack)
				rt.metrics.RecordTaskPanic(blockingPoolName, panicValue)
				var zero T
				settle(zero, newPanicError(panicValue))
				return
			}
			settle(value, err)
		},
		drop: func() {
			var zero T
			settle(zero, newCancelledError())
		},
	}
	if !rt.blocking.submit(job) {
		var zero T
		settle(zero, newCancelledError())
	}
	return newJoinHandle(cell, cancelled, nil, started)
}

// callRecover runs fn, converting a panic into an explicit return.
func callRecover[T any](fn func() (T, error)) (value T, err error, panicked bool, panicValue any, stack []byte) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			panicValue = r
			stack = debug.Stack()
		}
	}()
	value, err = fn()
	return
}
