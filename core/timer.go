package core

import (
	"container/heap"
	"time"
)

// =============================================================================
// Timer subsystem
// =============================================================================

// timerEntry is the live record of a registered timer. A zero period means
// one-shot.
type timerEntry struct {
	deadline time.Time
	waker    Waker
	period   time.Duration
}

// timerHeapEntry orders pending deadlines. Entries may be stale: cancelling
// a timer removes it from the id map only, and readers validate every heap
// peek against the map before trusting it. Eagerly removing from the heap
// would cost O(n); the lazy scheme amortizes removal across peeks.
type timerHeapEntry struct {
	id       uint64
	deadline time.Time
	index    int // for heap interface
}

type timerHeap []*timerHeapEntry

func (h timerHeap) Len() int { return len(h) }

// Less orders by deadline, ties broken by id so firing order is stable.
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].id < h[j].id
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	n := len(*h)
	item := x.(*timerHeapEntry)
	item.index = n
	*h = append(*h, item)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// timerState pairs the id map with the deadline min-heap. Callers hold the
// reactor's timer mutex around every method.
type timerState struct {
	entries map[uint64]*timerEntry
	pq      timerHeap
}

func newTimerState() *timerState {
	ts := &timerState{
		entries: make(map[uint64]*timerEntry),
		pq:      make(timerHeap, 0),
	}
	heap.Init(&ts.pq)
	return ts
}

func (ts *timerState) insert(id uint64, deadline time.Time, waker Waker, period time.Duration) {
	ts.entries[id] = &timerEntry{deadline: deadline, waker: waker, period: period}
	heap.Push(&ts.pq, &timerHeapEntry{id: id, deadline: deadline})
}

// updateWaker replaces the stored waker. Sleep and Interval call this on
// every poll in case the awaiting task migrated wakers.
func (ts *timerState) updateWaker(id uint64, waker Waker) {
	if entry, ok := ts.entries[id]; ok {
		entry.waker = waker
	}
}

// cancel removes the map entry only; the heap entry goes stale and is
// pruned lazily.
func (ts *timerState) cancel(id uint64) {
	delete(ts.entries, id)
}

// prune drops stale heap heads so peekDeadline reflects a live timer.
func (ts *timerState) prune() {
	for len(ts.pq) > 0 {
		if _, ok := ts.entries[ts.pq[0].id]; ok {
			return
		}
		heap.Pop(&ts.pq)
	}
}

// peekDeadline returns the nearest live deadline.
func (ts *timerState) peekDeadline() (time.Time, bool) {
	for len(ts.pq) > 0 {
		head := ts.pq[0]
		if entry, ok := ts.entries[head.id]; ok {
			return entry.deadline, true
		}
		heap.Pop(&ts.pq)
	}
	return time.Time{}, false
}

// popDue removes the nearest timer if its deadline has passed and returns
// its waker. A periodic timer is re-armed at firedDeadline+period, not
// now+period: a late service does not back-fill missed ticks, and only one
// fire occurs per due check no matter how many periods elapsed.
func (ts *timerState) popDue(now time.Time) (Waker, bool) {
	for len(ts.pq) > 0 {
		head := ts.pq[0]
		entry, live := ts.entries[head.id]
		if !live {
			heap.Pop(&ts.pq)
			continue
		}
		if head.deadline.After(now) {
			return nil, false
		}
		heap.Pop(&ts.pq)
		if entry.period > 0 {
			next := head.deadline.Add(entry.period)
			entry.deadline = next
			heap.Push(&ts.pq, &timerHeapEntry{id: head.id, deadline: next})
			return entry.waker, true
		}
		delete(ts.entries, head.id)
		return entry.waker, true
	}
	return nil, false
}

func (ts *timerState) len() int {
	return len(ts.entries)
}
