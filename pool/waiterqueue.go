package pool

import "container/heap"

// waiter is a suspended acquirer. It is woken by exactly one release, at
// which point it re-enters the acquisition loop and re-checks pool state —
// a wake is a hint, not a guarantee of a slot.
type waiter struct {
	priority float64
	seq      uint64
	sig      *signal
	index    int // maintained by container/heap; -1 once popped or removed
}

// waiterQueue is a max-priority queue over *waiter, ties broken by FIFO
// insertion order. It implements heap.Interface directly, the same way
// the container/heap top-K selectors elsewhere in this stack's ancestry
// implement a bounded max-heap over comparison keys — here the key is
// (priority, sequence) instead of a row comparator.
type waiterQueue struct {
	items []*waiter
	seq   uint64
}

func (q *waiterQueue) Len() int { return len(q.items) }

func (q *waiterQueue) Less(i, j int) bool {
	if q.items[i].priority != q.items[j].priority {
		return q.items[i].priority > q.items[j].priority
	}
	return q.items[i].seq < q.items[j].seq
}

func (q *waiterQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *waiterQueue) Push(x any) {
	w := x.(*waiter)
	w.index = len(q.items)
	q.items = append(q.items, w)
}

func (q *waiterQueue) Pop() any {
	n := len(q.items)
	w := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	w.index = -1
	return w
}

// push enqueues a new waiter at the given priority and returns it.
func (q *waiterQueue) push(priority float64) *waiter {
	q.seq++
	w := &waiter{priority: priority, seq: q.seq, sig: newSignal()}
	heap.Push(q, w)
	return w
}

// popHighest removes and returns the highest-priority waiter, or nil if
// the queue is empty.
func (q *waiterQueue) popHighest() *waiter {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(q).(*waiter)
}

// remove drops w from the queue if it is still present. Used when an
// acquirer's context is cancelled while it is still waiting, so a
// cancelled waiter is never spuriously woken in place of a live one.
func (q *waiterQueue) remove(w *waiter) {
	if w.index < 0 || w.index >= len(q.items) || q.items[w.index] != w {
		return
	}
	heap.Remove(q, w.index)
}

func (q *waiterQueue) isEmpty() bool { return len(q.items) == 0 }
