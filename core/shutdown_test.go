package core

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
)

func TestCloseStopsAllGoroutines(t *testing.T) {
	defer leaktest.CheckTimeout(t, 5*time.Second)()

	rt, err := NewRuntimeWithConfig(Config{Workers: 4, BlockingWorkers: 4, Logger: NewNoOpLogger()})
	if err != nil {
		t.Fatalf("NewRuntimeWithConfig failed: %v", err)
	}

	for i := 0; i < 32; i++ {
		h := Spawn(rt, &yieldingFuture{value: i})
		if _, err := h.Wait(context.Background()); err != nil {
			t.Fatalf("task error: %v", err)
		}
	}
	b := SpawnBlocking(rt, func() (int, error) { return 1, nil })
	if _, err := b.Wait(context.Background()); err != nil {
		t.Fatalf("blocking job error: %v", err)
	}

	rt.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	defer leaktest.CheckTimeout(t, 5*time.Second)()

	rt, err := NewRuntimeWithConfig(Config{Logger: NewNoOpLogger()})
	if err != nil {
		t.Fatalf("NewRuntimeWithConfig failed: %v", err)
	}
	rt.Close()
	rt.Close()
}

func TestCloseCancelsQueuedBlockingJobs(t *testing.T) {
	rt := newTestRuntime(t, Config{Workers: 1, BlockingWorkers: 1})

	started := make(chan struct{})
	release := make(chan struct{})
	running := SpawnBlocking(rt, func() (int, error) {
		close(started)
		<-release
		return 1, nil
	})
	<-started

	// Queued behind the running job; never starts.
	queued := SpawnBlocking(rt, func() (int, error) { return 2, nil })

	closed := make(chan struct{})
	go func() {
		rt.Close()
		close(closed)
	}()

	// Let Close set the closing flag before the worker frees up.
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-closed

	if got, err := running.Wait(context.Background()); err != nil || got != 1 {
		t.Fatalf("running job = %d, %v, want 1, nil", got, err)
	}
	if _, err := queued.Wait(context.Background()); !IsCancelled(err) {
		t.Fatalf("queued job error = %v, want cancelled", err)
	}
}

func TestCloseResolvesQueuedComputeTasks(t *testing.T) {
	rt := newTestRuntime(t, Config{Workers: 1})

	started, release, gate := occupyWorker(rt)
	<-started

	// Queued behind the gate; cancelled by the shutdown drain.
	queued := Spawn(rt, &yieldingFuture{value: 1})

	closed := make(chan struct{})
	go func() {
		rt.Close()
		close(closed)
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	<-closed

	if _, err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("gate error: %v", err)
	}
	if _, err := queued.Wait(context.Background()); !IsCancelled(err) {
		t.Fatalf("queued task error = %v, want cancelled", err)
	}
}

func TestWakeAfterCloseIsNoOp(t *testing.T) {
	rt := newTestRuntime(t, DefaultConfig())

	var waker Waker
	got := make(chan Waker, 1)
	Spawn(rt, FutureFunc[int](func(cx *Context) (int, error, bool) {
		select {
		case got <- cx.Waker():
		default:
		}
		return 0, nil, false
	}))

	waker = <-got
	rt.Close()

	// Must not panic or resurrect a worker.
	waker.Wake()
	waker.Wake()
}
