package core

import "sync"

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4

	// stealBatch bounds how many items a worker grabs from the injector at
	// once. One is returned for immediate execution, the rest land in the
	// worker's local deque.
	stealBatch = 8
)

// =============================================================================
// injectorQueue: the shared multi-producer queue
// =============================================================================

// injectorQueue is the queue spawning callers push into and idle workers
// pull from first. Both the compute pool and the blocking pool use one.
type injectorQueue[T any] struct {
	mu    sync.Mutex
	items []T
}

func newInjectorQueue[T any]() *injectorQueue[T] {
	return &injectorQueue[T]{
		items: make([]T, 0, defaultQueueCap),
	}
}

func (q *injectorQueue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

func (q *injectorQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	q.maybeCompactLocked()

	return item, true
}

// PopUpTo removes and returns at most max items in FIFO order. It is the
// batch-steal operation workers use to refill their local deques in one
// lock acquisition.
func (q *injectorQueue[T]) PopUpTo(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return nil
	}

	if n > max {
		n = max
	}

	// Copy out instead of re-slicing: the caller keeps the batch while new
	// pushes reuse this backing array.
	batch := make([]T, n)
	copy(batch, q.items[:n])

	// Zero out the elements in the underlying array to prevent memory leak
	var zero T
	for i := range n {
		q.items[i] = zero
	}

	q.items = q.items[n:]
	q.maybeCompactLocked()

	return batch
}

func (q *injectorQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns everything still queued. Used on shutdown so
// abandoned items can be resolved instead of silently dropped.
func (q *injectorQueue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = make([]T, 0, defaultQueueCap)
	return items
}

func (q *injectorQueue[T]) maybeCompactLocked() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]T, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]T, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}

// =============================================================================
// workerDeque: per-worker local queue with stealing
// =============================================================================

// workerDeque is a worker-owned FIFO queue. The owner pushes at the back and
// pops from the front; thieves take from the back. Thieves never block on
// the lock: a failed TryLock is reported as a transient retry signal so the
// stealing worker can distinguish "busy" from "empty".
type workerDeque[T any] struct {
	mu    sync.Mutex
	items []T
}

func newWorkerDeque[T any]() *workerDeque[T] {
	return &workerDeque[T]{
		items: make([]T, 0, defaultQueueCap),
	}
}

// push appends an item at the back. Owner only.
func (d *workerDeque[T]) push(item T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, item)
}

// pop removes the oldest item. Owner only.
func (d *workerDeque[T]) pop() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.items) == 0 {
		var zero T
		return zero, false
	}

	item := d.items[0]
	var zero T
	d.items[0] = zero
	d.items = d.items[1:]
	d.maybeCompactLocked()

	return item, true
}

// trySteal removes the newest item on behalf of another worker. When the
// lock is contended it returns retry=true without waiting.
func (d *workerDeque[T]) trySteal() (item T, ok bool, retry bool) {
	if !d.mu.TryLock() {
		var zero T
		return zero, false, true
	}
	defer d.mu.Unlock()

	n := len(d.items)
	if n == 0 {
		var zero T
		return zero, false, false
	}

	item = d.items[n-1]
	var zero T
	d.items[n-1] = zero
	d.items = d.items[:n-1]

	return item, true, false
}

func (d *workerDeque[T]) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// drain removes and returns everything still queued.
func (d *workerDeque[T]) drain() []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	items := d.items
	d.items = make([]T, 0, defaultQueueCap)
	return items
}

func (d *workerDeque[T]) maybeCompactLocked() {
	n := len(d.items)
	c := cap(d.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		d.items = make([]T, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]T, n, newCap)
	copy(newSlice, d.items)
	d.items = newSlice
}
