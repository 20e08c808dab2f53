package core

import "sync"

// notifyShutdown pins the counter so late notifications cannot resurrect a
// pool that is shutting down.
const notifyShutdown = -1

// workerNotify is the counting wake primitive workers park on. It is a
// condition-variable semaphore: notifyOne banks one wake, wait consumes one.
// Banked wakes are never lost, so a submit racing with a worker's
// empty-check cannot strand the item.
type workerNotify struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

func newWorkerNotify() *workerNotify {
	n := &workerNotify{}
	n.cond = sync.NewCond(&n.mu)
	return n
}

// notifyOne banks one wake and signals a single parked worker. After
// shutdown the counter stays pinned and the call is a no-op.
func (n *workerNotify) notifyOne() {
	n.mu.Lock()
	if n.count != notifyShutdown {
		n.count++
		n.cond.Signal()
	}
	n.mu.Unlock()
}

// wait blocks until a wake is available and consumes it. It returns false
// once the pool has shut down.
func (n *workerNotify) wait() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for n.count == 0 {
		n.cond.Wait()
	}
	if n.count == notifyShutdown {
		return false
	}
	n.count--
	return true
}

// shutdown pins the counter to the sentinel and releases every parked
// worker.
func (n *workerNotify) shutdown() {
	n.mu.Lock()
	n.count = notifyShutdown
	n.cond.Broadcast()
	n.mu.Unlock()
}
