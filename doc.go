// Package asyncruntime provides a poll-driven asynchronous task runtime for Go.
//
// This library implements a futures model where computations describe their
// progress through explicit Poll calls and are resumed by Wakers, instead of
// each concern owning a goroutine. A small set of OS threads drives every
// task: a work-stealing compute pool for cooperative futures, a dedicated
// blocking pool for synchronous closures, and a single reactor thread that
// multiplexes OS readiness (epoll/kqueue) and timers.
//
// # Quick Start
//
// Create a runtime at application startup:
//
//	rt, err := asyncruntime.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer rt.Close()
//
// Spawn a future and await its result:
//
//	handle := asyncruntime.Spawn(rt, myFuture)
//	value, err := handle.Wait(context.Background())
//
// Run synchronous work without stalling the compute workers:
//
//	handle := asyncruntime.SpawnBlocking(rt, func() ([]byte, error) {
//		return os.ReadFile(path)
//	})
//
// # Key Concepts
//
// Future: the unit of suspended computation. Poll advances it as far as it
// can without blocking; when it cannot progress it parks the Context's Waker
// and returns not-ready.
//
// JoinHandle: the caller-held reference to a spawned task. It resolves
// exactly once with the task's result, a cancellation, or a panic error, and
// is itself a Future so tasks can await each other.
//
// Reactor: the thread that owns readiness. Timers (Sleep, Interval, Timeout)
// and I/O registrations deliver their wakeups through it.
//
// # Cancellation
//
// Abort is cooperative: the flag is observed at the task's next poll
// boundary. A blocking closure that already started runs to the end and the
// handle resolves with its real result; only a job aborted before its
// closure begins resolves as cancelled.
//
// # Example
//
//	import (
//		"time"
//
//		asyncruntime "github.com/Swind/go-async-runtime"
//	)
//
//	func main() {
//		rt, _ := asyncruntime.New()
//		defer rt.Close()
//
//		// Sleep without holding a goroutine.
//		asyncruntime.BlockOn[struct{}](rt.Sleep(100 * time.Millisecond))
//
//		// Bound a slow future.
//		_, err := asyncruntime.BlockOn(
//			asyncruntime.Timeout(rt, time.Second, slowFuture))
//		if asyncruntime.IsTimeout(err) {
//			println("gave up")
//		}
//	}
//
// For more details, see https://github.com/Swind/go-async-runtime
package asyncruntime
