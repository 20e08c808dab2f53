package core

import (
	"testing"
)

func TestInjectorQueueFIFO(t *testing.T) {
	q := newInjectorQueue[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}

	for want := 0; want < 5; want++ {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop returned empty at %d", want)
		}
		if got != want {
			t.Fatalf("Pop = %d, want %d", got, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue returned ok")
	}
}

func TestInjectorQueuePopUpTo(t *testing.T) {
	q := newInjectorQueue[int]()
	for i := 0; i < 10; i++ {
		q.Push(i)
	}

	batch := q.PopUpTo(4)
	if len(batch) != 4 {
		t.Fatalf("batch length = %d, want 4", len(batch))
	}
	for i, got := range batch {
		if got != i {
			t.Fatalf("batch[%d] = %d, want %d", i, got, i)
		}
	}
	if q.Len() != 6 {
		t.Fatalf("remaining = %d, want 6", q.Len())
	}

	rest := q.PopUpTo(100)
	if len(rest) != 6 {
		t.Fatalf("rest length = %d, want 6", len(rest))
	}
	if rest[0] != 4 || rest[5] != 9 {
		t.Fatalf("rest out of order: %v", rest)
	}

	if batch := q.PopUpTo(8); batch != nil {
		t.Fatalf("PopUpTo on empty queue = %v, want nil", batch)
	}
}

func TestInjectorQueuePopUpToBatchIsStable(t *testing.T) {
	q := newInjectorQueue[int]()
	for i := 0; i < 3; i++ {
		q.Push(i)
	}

	// The full-drain batch must not alias the backing array: later pushes
	// reuse it.
	batch := q.PopUpTo(8)
	q.Push(100)
	q.Push(200)
	q.Push(300)

	for i, got := range batch {
		if got != i {
			t.Fatalf("batch[%d] = %d after push, want %d", i, got, i)
		}
	}
}

func TestInjectorQueueDrain(t *testing.T) {
	q := newInjectorQueue[int]()
	for i := 0; i < 7; i++ {
		q.Push(i)
	}

	items := q.Drain()
	if len(items) != 7 {
		t.Fatalf("drained %d items, want 7", len(items))
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty after drain: %d", q.Len())
	}
}

func TestInjectorQueueCompaction(t *testing.T) {
	q := newInjectorQueue[int]()
	const total = 4 * compactMinCap
	for i := 0; i < total; i++ {
		q.Push(i)
	}

	// Pop almost everything; ordering must survive compaction.
	for want := 0; want < total-2; want++ {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("Pop = %d,%v, want %d,true", got, ok, want)
		}
	}
	if q.Len() != 2 {
		t.Fatalf("remaining = %d, want 2", q.Len())
	}
}

func TestWorkerDequeOwnerFIFO(t *testing.T) {
	d := newWorkerDeque[string]()
	d.push("a")
	d.push("b")
	d.push("c")

	if got, ok := d.pop(); !ok || got != "a" {
		t.Fatalf("pop = %q,%v, want a,true", got, ok)
	}
	if got, ok := d.pop(); !ok || got != "b" {
		t.Fatalf("pop = %q,%v, want b,true", got, ok)
	}
}

func TestWorkerDequeStealTakesNewest(t *testing.T) {
	d := newWorkerDeque[int]()
	d.push(1)
	d.push(2)
	d.push(3)

	item, ok, retry := d.trySteal()
	if retry {
		t.Fatal("uncontended steal reported retry")
	}
	if !ok || item != 3 {
		t.Fatalf("steal = %d,%v, want 3,true", item, ok)
	}

	// Owner still sees FIFO order of the rest.
	if got, _ := d.pop(); got != 1 {
		t.Fatalf("pop after steal = %d, want 1", got)
	}
}

func TestWorkerDequeStealContention(t *testing.T) {
	d := newWorkerDeque[int]()
	d.push(1)

	d.mu.Lock()
	_, ok, retry := d.trySteal()
	d.mu.Unlock()

	if ok {
		t.Fatal("steal succeeded against a held lock")
	}
	if !retry {
		t.Fatal("contended steal did not report retry")
	}

	if _, ok, _ := d.trySteal(); !ok {
		t.Fatal("steal failed after lock release")
	}
}

func TestWorkerNotifyBankedWake(t *testing.T) {
	n := newWorkerNotify()
	n.notifyOne()

	// The banked wake must satisfy a later wait without blocking.
	if !n.wait() {
		t.Fatal("wait returned shutdown for a banked wake")
	}
}

func TestWorkerNotifyShutdownReleasesWaiters(t *testing.T) {
	n := newWorkerNotify()
	released := make(chan bool)

	go func() {
		released <- n.wait()
	}()

	n.shutdown()
	if got := <-released; got {
		t.Fatal("wait returned true after shutdown")
	}

	// Post-shutdown notifications stay no-ops.
	n.notifyOne()
	if n.wait() {
		t.Fatal("wait returned true on a shut-down notify")
	}
}
