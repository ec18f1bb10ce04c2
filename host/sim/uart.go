package sim

import (
	"context"
	"sync"
	"time"

	"asynchal/core"
)

// DefaultFIFODepth matches the 8-entry FIFOs of the common MCU peripherals
const DefaultFIFODepth = 8

// UART is a FIFO-backed serial peripheral. Bytes written by the driver sit in
// the TX FIFO until Shift moves them onto the line; bytes arriving from the
// line are queued with Inject.
type UART struct {
	mu      sync.Mutex
	depth   int
	rx, tx  []byte
	line    []byte
	irq     fifoIRQ
	handler func()
	err     error
	raised  int
}

var _ core.UARTPeripheral = (*UART)(nil)

// NewUART returns a UART with depth-entry FIFOs
func NewUART(depth int) *UART {
	if depth <= 0 {
		depth = DefaultFIFODepth
	}
	return &UART{depth: depth}
}

// SetHandler installs the interrupt handler, usually core.OnUARTInterrupt(id)
func (u *UART) SetHandler(fn func()) {
	u.mu.Lock()
	u.handler = fn
	u.mu.Unlock()
}

// FailWith makes every subsequent byte operation return err; nil clears it
func (u *UART) FailWith(err error) {
	u.mu.Lock()
	u.err = err
	u.mu.Unlock()
}

func (u *UART) TryReadByte() (byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return 0, u.err
	}
	if len(u.rx) == 0 {
		return 0, core.ErrWouldBlock
	}
	b := u.rx[0]
	u.rx = u.rx[1:]
	return b, nil
}

func (u *UART) TryWriteByte(b byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	if len(u.tx) >= u.depth {
		return core.ErrWouldBlock
	}
	u.tx = append(u.tx, b)
	return nil
}

func (u *UART) SetWatermark(dir core.Direction, level uint8) {
	u.mu.Lock()
	u.irq.setWatermark(dir, level)
	u.mu.Unlock()
}

// EnableInterrupt unmasks dir. A level that is already true fires at once.
func (u *UART) EnableInterrupt(dir core.Direction) {
	u.mu.Lock()
	u.irq.setEnabled(dir, true)
	u.raiseLocked()
}

func (u *UART) DisableInterrupt(dir core.Direction) {
	u.mu.Lock()
	u.irq.setEnabled(dir, false)
	u.mu.Unlock()
}

func (u *UART) IsInterruptEnabled(dir core.Direction) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.irq.enabled(dir)
}

func (u *UART) IsInterruptPending(dir core.Direction) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.irq.pending(dir, len(u.rx), len(u.tx))
}

// Inject queues bytes arriving from the line and returns how many fit
func (u *UART) Inject(data []byte) int {
	u.mu.Lock()
	n := min(len(data), u.depth-len(u.rx))
	u.rx = append(u.rx, data[:n]...)
	u.raiseLocked()
	return n
}

// Shift transmits up to n bytes from the TX FIFO and returns them
func (u *UART) Shift(n int) []byte {
	u.mu.Lock()
	n = min(n, len(u.tx))
	out := append([]byte(nil), u.tx[:n]...)
	u.tx = u.tx[n:]
	u.line = append(u.line, out...)
	u.raiseLocked()
	return out
}

// Transmitted returns every byte shifted onto the line so far
func (u *UART) Transmitted() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]byte(nil), u.line...)
}

// Levels returns the current RX and TX FIFO occupancy
func (u *UART) Levels() (rx, tx int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rx), len(u.tx)
}

// Raised returns how many interrupts have been delivered
func (u *UART) Raised() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.raised
}

// Run shifts one byte per byteTime into sink until ctx is done. A nil sink
// loops the line back into the RX FIFO.
func (u *UART) Run(ctx context.Context, byteTime time.Duration, sink func([]byte)) {
	if sink == nil {
		sink = func(b []byte) {
			for len(b) > 0 && ctx.Err() == nil {
				n := u.Inject(b)
				b = b[n:]
				if len(b) > 0 {
					time.Sleep(byteTime)
				}
			}
		}
	}
	ticker := time.NewTicker(byteTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if out := u.Shift(1); len(out) > 0 {
				sink(out)
			}
		}
	}
}

// raiseLocked releases u.mu and calls the handler if an enabled source is pending
func (u *UART) raiseLocked() {
	due := u.irq.due(len(u.rx), len(u.tx))
	h := u.handler
	if due {
		u.raised++
	}
	u.mu.Unlock()
	if due && h != nil {
		h()
	}
}
