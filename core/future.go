package core

// =============================================================================
// Future: the unit of suspended computation
// =============================================================================

// Waker resumes a suspended computation. A Waker handed out through a poll
// Context stays valid after the computation it belongs to has completed;
// waking a finished or abandoned computation is a harmless no-op.
//
// Implementations must be safe for concurrent use.
type Waker interface {
	Wake()
}

// Context is passed to every Poll call. It carries the Waker the computation
// must arrange to be invoked before returning not-ready, otherwise the
// computation is never polled again.
type Context struct {
	waker Waker
}

// NewContext creates a poll Context carrying w.
func NewContext(w Waker) *Context {
	return &Context{waker: w}
}

// Waker returns the Waker to signal when the computation can make progress.
func (c *Context) Waker() Waker {
	return c.waker
}

// Future is a computation that completes asynchronously.
//
// Poll advances the computation as far as it can without blocking. It
// returns ready=true exactly once, together with the final value or error;
// after that the Future must not be polled again. When it returns
// ready=false, it must first have stored cx.Waker() somewhere that will
// call Wake once progress is possible.
//
// Futures are not safe for concurrent polling. The scheduler guarantees a
// spawned Future is polled by at most one worker at a time.
type Future[T any] interface {
	Poll(cx *Context) (value T, err error, ready bool)
}

// FutureFunc adapts a plain function to the Future interface, the same way
// http.HandlerFunc adapts handlers.
type FutureFunc[T any] func(cx *Context) (T, error, bool)

// Poll calls f.
func (f FutureFunc[T]) Poll(cx *Context) (T, error, bool) {
	return f(cx)
}

// =============================================================================
// YieldNow
// =============================================================================

// YieldNow returns a Future that reports not-ready exactly once, waking
// itself immediately, and completes on the second poll. Awaiting it lets a
// task re-enter the scheduler queue so bursts of reactor-driven wakeups
// interleave with other runnable work.
func YieldNow() Future[struct{}] {
	return &yieldNow{}
}

type yieldNow struct {
	yielded bool
}

func (y *yieldNow) Poll(cx *Context) (struct{}, error, bool) {
	if !y.yielded {
		y.yielded = true
		cx.Waker().Wake()
		return struct{}{}, nil, false
	}
	return struct{}{}, nil, true
}

// =============================================================================
// BlockOn: synchronous driver
// =============================================================================

// parkWaker parks the calling goroutine on a channel instead of a scheduler
// queue. The 1-slot buffer coalesces duplicate wakes.
type parkWaker struct {
	ch chan struct{}
}

func newParkWaker() *parkWaker {
	return &parkWaker{ch: make(chan struct{}, 1)}
}

func (w *parkWaker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// BlockOn drives fut to completion on the calling goroutine, parking between
// polls. It is intended for synchronous call sites: process entry points and
// test harnesses. Calling BlockOn from inside a spawned task blocks a worker
// and must be avoided.
func BlockOn[T any](fut Future[T]) (T, error) {
	w := newParkWaker()
	cx := NewContext(w)
	for {
		value, err, ready := fut.Poll(cx)
		if ready {
			return value, err
		}
		<-w.ch
	}
}
