package core

import "context"

// Waker is the resumption handle of a suspended task. Wake never blocks and
// holds at most one pending notification, so it is safe to call from an
// interrupt handler and harmless when the waiting task has already gone away.
type Waker struct {
	ch chan struct{}
}

// NewWaker returns a waker with no pending notification.
func NewWaker() *Waker {
	return &Waker{ch: make(chan struct{}, 1)}
}

// Wake marks the owning task runnable. Extra wakes coalesce.
func (w *Waker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// reset discards a pending notification left over from an earlier wait.
func (w *Waker) reset() {
	select {
	case <-w.ch:
	default:
	}
}

// C exposes the notification channel for callers that select on it directly.
func (w *Waker) C() <-chan struct{} { return w.ch }

// Wait suspends until Wake is called or ctx is done. Wakeups may be spurious:
// callers re-check their condition afterwards.
func (w *Waker) Wait(ctx context.Context) error {
	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WakerSlot holds the most recent waiter for one condition. A new Register
// overwrites the previous handle; only the latest waiter is honoured.
type WakerSlot struct {
	w *Waker
}

// Register stores w in the slot.
func (s *WakerSlot) Register(w *Waker) {
	state := disableInterrupts()
	s.w = w
	restoreInterrupts(state)
}

// Take removes and returns the pending handle, or nil.
func (s *WakerSlot) Take() *Waker {
	state := disableInterrupts()
	w := s.take()
	restoreInterrupts(state)
	return w
}

// Wake takes the pending handle and fires it. It reports whether a handle was present.
func (s *WakerSlot) Wake() bool {
	w := s.Take()
	if w == nil {
		return false
	}
	w.Wake()
	return true
}

// take must be called inside a critical section.
func (s *WakerSlot) take() *Waker {
	w := s.w
	s.w = nil
	return w
}

// WakerPair is the per-peripheral pair of slots, one per Direction.
type WakerPair struct {
	Rx WakerSlot
	Tx WakerSlot
}

// Slot returns the slot for dir.
func (p *WakerPair) Slot(dir Direction) *WakerSlot {
	if dir == DirTx {
		return &p.Tx
	}
	return &p.Rx
}
