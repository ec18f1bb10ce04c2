package core

import (
	"context"
	"errors"
	"io"
)

// Serial watermark levels
const (
	serialRxWatermark    = WatermarkRxAny
	serialTxWatermark    = MaxWatermark // at least one free slot
	serialFlushWatermark = WatermarkTxEmpty
)

// Serial is an interrupt-driven UART. Each half supports one waiting
// goroutine at a time; use Split to hand the halves to separate goroutines.
type Serial struct {
	rx *SerialRx
	tx *SerialTx
}

// SerialRx is the receive half of a Serial
type SerialRx struct {
	id   uint8
	uart UARTPeripheral
	w    *Waker
}

// SerialTx is the transmit half of a Serial
type SerialTx struct {
	id   uint8
	uart UARTPeripheral
	w    *Waker
}

// NewSerial binds uart to interrupt slot id. The platform must route the
// UART interrupt to OnUARTInterrupt(id).
func NewSerial(id uint8, uart UARTPeripheral) (*Serial, error) {
	if int(id) >= MaxUARTs {
		return nil, ErrUnknownPeripheral
	}
	uart.DisableInterrupt(DirRx)
	uart.DisableInterrupt(DirTx)

	state := disableInterrupts()
	uartPeriphs[id] = uart
	uartWakers[id] = WakerPair{}
	restoreInterrupts(state)

	return &Serial{
		rx: &SerialRx{id: id, uart: uart, w: NewWaker()},
		tx: &SerialTx{id: id, uart: uart, w: NewWaker()},
	}, nil
}

// Split returns the independent receive and transmit halves
func (s *Serial) Split() (*SerialRx, *SerialTx) {
	return s.rx, s.tx
}

func (s *Serial) Read(ctx context.Context, buf []byte) (int, error) {
	return s.rx.Read(ctx, buf)
}

func (s *Serial) Write(ctx context.Context, buf []byte) (int, error) {
	return s.tx.Write(ctx, buf)
}

func (s *Serial) Flush(ctx context.Context) error {
	return s.tx.Flush(ctx)
}

// Reader adapts the receive half to io.Reader bound to ctx
func (s *Serial) Reader(ctx context.Context) io.Reader {
	return s.rx.Reader(ctx)
}

// Writer adapts the transmit half to io.Writer bound to ctx
func (s *Serial) Writer(ctx context.Context) io.Writer {
	return s.tx.Writer(ctx)
}

// Read waits for the first byte, then returns whatever else is already in the
// receive FIFO. A short read is not an error.
func (r *SerialRx) Read(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	b, err := readByte(ctx, r.uart, &uartWakers[r.id].Rx, r.w)
	if err != nil {
		return 0, err
	}
	buf[0] = b
	n := 1

	for n < len(buf) {
		b, err := r.uart.TryReadByte()
		if errors.Is(err, ErrWouldBlock) {
			break
		}
		if err != nil {
			return n, err
		}
		buf[n] = b
		n++
	}
	return n, nil
}

// Reader adapts the receive half to io.Reader bound to ctx
func (r *SerialRx) Reader(ctx context.Context) io.Reader {
	return &serialReader{ctx: ctx, rx: r}
}

// Write waits for room for the first byte, then pushes as many more as fit
// without waiting. A short write is not an error.
func (t *SerialTx) Write(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	if err := writeByte(ctx, t.uart, &uartWakers[t.id].Tx, serialTxWatermark, t.w, buf[0]); err != nil {
		return 0, err
	}
	n := 1

	for n < len(buf) {
		err := t.uart.TryWriteByte(buf[n])
		if errors.Is(err, ErrWouldBlock) {
			break
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Flush waits once for the transmit FIFO to drain
func (t *SerialTx) Flush(ctx context.Context) error {
	return waitFor(ctx, t.uart, &uartWakers[t.id].Tx, DirTx, serialFlushWatermark, t.w)
}

// Writer adapts the transmit half to io.Writer bound to ctx
func (t *SerialTx) Writer(ctx context.Context) io.Writer {
	return &serialWriter{ctx: ctx, tx: t}
}

type serialReader struct {
	ctx context.Context
	rx  *SerialRx
}

func (r *serialReader) Read(p []byte) (int, error) {
	return r.rx.Read(r.ctx, p)
}

type serialWriter struct {
	ctx context.Context
	tx  *SerialTx
}

// Write loops until all of p is queued, as io.Writer requires
func (w *serialWriter) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := w.tx.Write(w.ctx, p[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// SharedTx lets several goroutines write to one transmit half. Each Write
// queues its whole buffer before the next writer starts, so lines from
// different writers never interleave.
type SharedTx struct {
	tx   *SerialTx
	lock chan struct{}
}

func NewSharedTx(tx *SerialTx) *SharedTx {
	return &SharedTx{tx: tx, lock: make(chan struct{}, 1)}
}

// Write queues all of buf, waiting for the transmit half first
func (s *SharedTx) Write(ctx context.Context, buf []byte) (int, error) {
	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-s.lock }()

	return s.tx.Writer(ctx).Write(buf)
}

// Writer adapts the shared half to io.Writer bound to ctx
func (s *SharedTx) Writer(ctx context.Context) io.Writer {
	return &sharedTxWriter{ctx: ctx, s: s}
}

type sharedTxWriter struct {
	ctx context.Context
	s   *SharedTx
}

func (w *sharedTxWriter) Write(p []byte) (int, error) {
	return w.s.Write(w.ctx, p)
}
