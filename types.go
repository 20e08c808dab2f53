package asyncruntime

import (
	"time"

	"github.com/Swind/go-async-runtime/core"
)

// Re-export commonly used types from core package for convenience.
// This allows users to import only the asyncruntime package for most use cases.

// Future is the unit of suspended computation
type Future[T any] = core.Future[T]

// FutureFunc adapts a plain function to the Future interface
type FutureFunc[T any] = core.FutureFunc[T]

// Context is passed to every Poll call and carries the Waker
type Context = core.Context

// Waker resumes a suspended computation
type Waker = core.Waker

// Runtime owns the compute pool, the blocking pool, and the reactor
type Runtime = core.Runtime

// Config holds runtime construction options
type Config = core.Config

// JoinHandle is the caller-held reference to a spawned task
type JoinHandle[T any] = core.JoinHandle[T]

// JoinError reports cancellation or a panic of a spawned task
type JoinError = core.JoinError

// Sleep resolves once its deadline has passed
type Sleep = core.Sleep

// Interval yields ticks every period
type Interval = core.Interval

// TimeoutError reports that a future missed its bound
type TimeoutError = core.TimeoutError

// Reactor multiplexes OS readiness and timers on a single thread
type Reactor = core.Reactor

// IoRegistration ties a file descriptor to the reactor
type IoRegistration = core.IoRegistration

// Interest selects the readiness directions a registration watches
type Interest = core.Interest

// RuntimeStats is a point-in-time observability snapshot
type RuntimeStats = core.RuntimeStats

// Logger is the structured logging interface used by the runtime
type Logger = core.Logger

// Field is a structured logging key-value pair
type Field = core.Field

// Metrics is the runtime metrics collection interface
type Metrics = core.Metrics

// PanicHandler is called when a spawned task panics
type PanicHandler = core.PanicHandler

// Interest constants
const (
	InterestRead  Interest = core.InterestRead
	InterestWrite Interest = core.InterestWrite
)

// Convenience re-exports
var (
	DefaultConfig          = core.DefaultConfig
	NewDefaultLogger       = core.NewDefaultLogger
	NewNoOpLogger          = core.NewNoOpLogger
	F                      = core.F
	YieldNow               = core.YieldNow
	IsCancelled            = core.IsCancelled
	IsPanic                = core.IsPanic
	IsTimeout              = core.IsTimeout
	ErrRegistrationMissing = core.ErrRegistrationMissing
)

// New creates a Runtime with default configuration.
func New() (*Runtime, error) {
	return core.NewRuntime()
}

// NewWithConfig creates a Runtime with the given configuration.
func NewWithConfig(cfg Config) (*Runtime, error) {
	return core.NewRuntimeWithConfig(cfg)
}

// Spawn submits fut to the compute pool and returns its handle.
func Spawn[T any](rt *Runtime, fut Future[T]) *JoinHandle[T] {
	return core.Spawn(rt, fut)
}

// SpawnBlocking runs fn on the dedicated blocking pool.
func SpawnBlocking[T any](rt *Runtime, fn func() (T, error)) *JoinHandle[T] {
	return core.SpawnBlocking(rt, fn)
}

// Timeout bounds fut to resolve within after.
func Timeout[T any](rt *Runtime, after time.Duration, fut Future[T]) Future[T] {
	return core.Timeout(rt, after, fut)
}

// BlockOn drives fut to completion on the calling goroutine.
func BlockOn[T any](fut Future[T]) (T, error) {
	return core.BlockOn(fut)
}
