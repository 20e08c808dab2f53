package core

import (
	"fmt"
	"runtime"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a spawned task or blocking job panics during
// execution. This allows custom panic handling, logging, and recovery
// strategies. The panicking task is converted into a join error; the worker
// that ran it keeps going.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - poolName: The pool where the panic occurred ("compute" or "blocking")
	// - workerID: The ID of the worker that ran the task
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(poolName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information.
func (h *DefaultPanicHandler) HandlePanic(poolName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("pool", poolName),
		F("worker", workerID),
		F("panic", fmt.Sprintf("%v", panicInfo)),
		F("stack", string(stackTrace)))
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting runtime execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution
// performance.
type Metrics interface {
	// RecordSpawnLatency records the delay between a task being submitted
	// and a worker polling it for the first time.
	RecordSpawnLatency(poolName string, latency time.Duration)

	// RecordPendingTasks records the current number of spawned tasks that
	// have not yet completed.
	RecordPendingTasks(count int64)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(poolName string, panicInfo any)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordSpawnLatency is a no-op.
func (m *NilMetrics) RecordSpawnLatency(poolName string, latency time.Duration) {}

// RecordPendingTasks is a no-op.
func (m *NilMetrics) RecordPendingTasks(count int64) {}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(poolName string, panicInfo any) {}

// =============================================================================
// Config: Runtime configuration
// =============================================================================

// Config holds configuration options for a Runtime. All handlers are
// optional; if not provided, default implementations will be used.
type Config struct {
	// Workers is the number of compute workers. Defaults to GOMAXPROCS,
	// with a floor of 2.
	Workers int

	// BlockingWorkers is the number of workers in the dedicated blocking
	// pool. Defaults to max(Workers, 2) so one stuck closure never wedges
	// the whole pool.
	BlockingWorkers int

	// ReactorIdlePoll caps how long the reactor sleeps with no pending
	// timer. Defaults to DefaultReactorIdlePoll.
	ReactorIdlePoll time.Duration

	// Logger receives runtime diagnostics. Defaults to DefaultLogger.
	Logger Logger

	// Metrics is called to record runtime metrics. Defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler
}

// DefaultConfig returns a config with default worker counts and handlers.
func DefaultConfig() Config {
	workers := runtime.GOMAXPROCS(0)
	if workers < 2 {
		workers = 2
	}
	return Config{
		Workers:         workers,
		BlockingWorkers: workers,
		ReactorIdlePoll: DefaultReactorIdlePoll,
	}
}

// withDefaults fills zero-valued fields so the rest of the runtime never
// checks for nil handlers.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.BlockingWorkers <= 0 {
		c.BlockingWorkers = max(c.Workers, 2)
	}
	if c.ReactorIdlePoll <= 0 {
		c.ReactorIdlePoll = def.ReactorIdlePoll
	}
	if c.Logger == nil {
		c.Logger = NewDefaultLogger()
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	if c.PanicHandler == nil {
		c.PanicHandler = &DefaultPanicHandler{Logger: c.Logger}
	}
	return c
}
