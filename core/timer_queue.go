package core

import "container/heap"

// DefaultTimerQueueSize bounds the number of concurrent timed waiters.
const DefaultTimerQueueSize = 16

// Timer is one pending expiration request. Timers with equal Expires have no
// defined relative order.
type Timer struct {
	Expires uint64 // Absolute tick
	Waker   *Waker
}

// timerHeap implements heap.Interface ordered by Expires
type timerHeap []Timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].Expires < h[j].Expires }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(Timer)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = Timer{}
	*h = old[:n-1]
	return t
}

// TimerQueue is a fixed-capacity min-queue of timers shared between task
// context and the machine-timer interrupt.
type TimerQueue struct {
	h        timerHeap
	capacity int
}

// NewTimerQueue allocates the backing storage once; the queue never grows.
func NewTimerQueue(capacity int) *TimerQueue {
	if capacity <= 0 {
		capacity = DefaultTimerQueueSize
	}
	return &TimerQueue{
		h:        make(timerHeap, 0, capacity),
		capacity: capacity,
	}
}

// Push queues t. A full queue hands t back inside *TimerQueueFullError.
func (q *TimerQueue) Push(t Timer) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return q.push(t)
}

// PeekMin returns the earliest deadline.
func (q *TimerQueue) PeekMin() (uint64, bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return q.peekMin()
}

// PopExpired removes and returns the earliest timer if it expired at or before now.
// Call it repeatedly to drain every expired timer.
func (q *TimerQueue) PopExpired(now uint64) (Timer, bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return q.popExpired(now)
}

// Len returns the number of queued timers
func (q *TimerQueue) Len() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return len(q.h)
}

// Cap returns the fixed capacity
func (q *TimerQueue) Cap() int { return q.capacity }

// The unexported variants expect the caller to hold the critical section.

func (q *TimerQueue) push(t Timer) error {
	if len(q.h) >= q.capacity {
		return &TimerQueueFullError{Rejected: t}
	}
	heap.Push(&q.h, t)
	return nil
}

func (q *TimerQueue) peekMin() (uint64, bool) {
	if len(q.h) == 0 {
		return 0, false
	}
	return q.h[0].Expires, true
}

func (q *TimerQueue) popExpired(now uint64) (Timer, bool) {
	if len(q.h) == 0 || q.h[0].Expires > now {
		return Timer{}, false
	}
	return heap.Pop(&q.h).(Timer), true
}
