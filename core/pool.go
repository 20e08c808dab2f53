package core

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// =============================================================================
// stealPool: work-stealing worker pool
// =============================================================================

// stealPool runs items on a fixed set of worker goroutines. Each worker owns
// a local FIFO deque; new items enter through the shared injector. An idle
// worker pulls in this order:
//
//  1. its own local deque;
//  2. a batch from the injector (one item executed, the rest stashed
//     locally);
//  3. a round-robin steal attempt against every peer deque, looping again
//     immediately while any attempt reports a transient lock-contention
//     retry;
//  4. park on the notify primitive once every source reported empty.
//
// The ordering favors locality; there is no fairness guarantee across
// workers beyond best-effort stealing.
//
// The same structure serves both the compute pool (items are tasks) and the
// blocking pool (items are one-shot closures).
type stealPool[T any] struct {
	name    string
	deques  []*workerDeque[T]
	inject  *injectorQueue[T]
	notify  *workerNotify
	exec    func(workerID int, item T)
	wg      sync.WaitGroup
	closing atomic.Bool
}

func newStealPool[T any](name string, workers int, exec func(int, T)) *stealPool[T] {
	if workers < 1 {
		workers = 1
	}
	p := &stealPool[T]{
		name:   name,
		deques: make([]*workerDeque[T], workers),
		inject: newInjectorQueue[T](),
		notify: newWorkerNotify(),
		exec:   exec,
	}
	for i := range p.deques {
		p.deques[i] = newWorkerDeque[T]()
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	return p
}

// submit enqueues an item and wakes one worker. It reports false once the
// pool is shutting down.
func (p *stealPool[T]) submit(item T) bool {
	if p.closing.Load() {
		return false
	}
	p.inject.Push(item)
	p.notify.notifyOne()
	return true
}

func (p *stealPool[T]) workers() int {
	return len(p.deques)
}

func (p *stealPool[T]) queued() int {
	n := p.inject.Len()
	for _, d := range p.deques {
		n += d.len()
	}
	return n
}

func (p *stealPool[T]) workerLoop(id int) {
	defer p.wg.Done()

	local := p.deques[id]
	for {
		if p.closing.Load() {
			return
		}
		item, ok := p.nextItem(id, local)
		if !ok {
			return
		}
		p.exec(id, item)
	}
}

// nextItem blocks until an item is available or the pool shuts down.
func (p *stealPool[T]) nextItem(id int, local *workerDeque[T]) (T, bool) {
	for {
		if item, ok := local.pop(); ok {
			return item, true
		}

		if batch := p.inject.PopUpTo(stealBatch); len(batch) > 0 {
			for _, extra := range batch[1:] {
				local.push(extra)
				// Stashed work is stealable; let a parked peer know.
				p.notify.notifyOne()
			}
			return batch[0], true
		}

		if item, ok := p.stealFromPeers(id); ok {
			return item, true
		}

		if p.closing.Load() {
			var zero T
			return zero, false
		}
		if !p.notify.wait() {
			var zero T
			return zero, false
		}
	}
}

// stealFromPeers makes round-robin steal attempts against every other
// worker's deque. A contended deque yields a retry signal; the sweep repeats
// immediately until every peer reports empty without contention.
func (p *stealPool[T]) stealFromPeers(id int) (T, bool) {
	n := len(p.deques)
	for {
		retry := false
		for i := 1; i < n; i++ {
			victim := p.deques[(id+i)%n]
			item, ok, busy := victim.trySteal()
			if ok {
				return item, true
			}
			if busy {
				retry = true
			}
		}
		if !retry {
			var zero T
			return zero, false
		}
		runtime.Gosched()
	}
}

// close stops the pool, joins every worker, and returns the items that were
// still queued so the caller can resolve them.
func (p *stealPool[T]) close() []T {
	if p.closing.Swap(true) {
		return nil
	}
	p.notify.shutdown()
	p.wg.Wait()

	leftover := p.inject.Drain()
	for _, d := range p.deques {
		leftover = append(leftover, d.drain()...)
	}
	return leftover
}
