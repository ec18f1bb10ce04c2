package core

import (
	"context"

	"asynchal/x/mathx"
)

// Byte clocked out when a transfer has nothing left to send
const spiWritePad = 0x00

// CursorObserver receives the pump cursors after every update. During a
// duplex operation it is called from both the feeder and the drainer.
type CursorObserver func(written, read int)

// SPIBus is an interrupt-driven SPI controller. Duplex operations keep at
// most FIFODepth bytes in flight so the receive FIFO can never overrun.
type SPIBus struct {
	id       uint8
	periph   SPIPeripheral
	depth    int
	txLevel  uint8
	observer CursorObserver
}

// NewSPIBus binds periph to interrupt slot id. The platform must route the
// SPI interrupt to OnSPIInterrupt(id).
func NewSPIBus(id uint8, periph SPIPeripheral) (*SPIBus, error) {
	if int(id) >= MaxSPIs {
		return nil, ErrUnknownPeripheral
	}
	periph.DisableInterrupt(DirRx)
	periph.DisableInterrupt(DirTx)

	state := disableInterrupts()
	spiPeriphs[id] = periph
	spiWakers[id] = WakerPair{}
	restoreInterrupts(state)

	depth := mathx.Max(periph.FIFODepth(), 1)
	return &SPIBus{
		id:      id,
		periph:  periph,
		depth:   depth,
		txLevel: uint8(mathx.Clamp(depth-1, 1, int(MaxWatermark))),
	}, nil
}

// FIFODepth returns the in-flight window of duplex operations
func (b *SPIBus) FIFODepth() int { return b.depth }

// SetCursorObserver installs fn to watch duplex progress; nil removes it.
// Only change it while the bus is idle.
func (b *SPIBus) SetCursorObserver(fn CursorObserver) {
	b.observer = fn
}

// Configure applies cfg to the controller
func (b *SPIBus) Configure(cfg SPIConfig) error {
	return b.periph.Configure(cfg)
}

// StartFrame asserts chip-select for the following operations
func (b *SPIBus) StartFrame() {
	b.periph.SetChipSelectHold(true)
}

// EndFrame releases chip-select
func (b *SPIBus) EndFrame() {
	b.periph.SetChipSelectHold(false)
}

// Read clocks out padding bytes and stores what comes back in buf
func (b *SPIBus) Read(ctx context.Context, buf []byte) error {
	return b.duplex(ctx, len(buf),
		func(int) byte { return spiWritePad },
		func(i int, v byte) { buf[i] = v })
}

// Write sends buf and discards the received bytes
func (b *SPIBus) Write(ctx context.Context, buf []byte) error {
	return b.duplex(ctx, len(buf),
		func(i int) byte { return buf[i] },
		func(int, byte) {})
}

// Transfer sends write while filling read. The shorter side is padded or
// truncated so max(len(read), len(write)) bytes are exchanged.
func (b *SPIBus) Transfer(ctx context.Context, read, write []byte) error {
	return b.duplex(ctx, mathx.Max(len(read), len(write)),
		func(i int) byte {
			if i < len(write) {
				return write[i]
			}
			return spiWritePad
		},
		func(i int, v byte) {
			if i < len(read) {
				read[i] = v
			}
		})
}

// TransferInPlace sends buf and overwrites it with the received bytes.
// The drainer only ever stores below the feeder's cursor.
func (b *SPIBus) TransferInPlace(ctx context.Context, buf []byte) error {
	return b.duplex(ctx, len(buf),
		func(i int) byte { return buf[i] },
		func(i int, v byte) { buf[i] = v })
}

// Flush waits once for the transmit FIFO to drain
func (b *SPIBus) Flush(ctx context.Context) error {
	b.drainStale()
	return waitFor(ctx, b.periph, &spiWakers[b.id].Tx, DirTx, WatermarkTxEmpty, NewWaker())
}

// TransferPolled is the sequential form of Transfer: every byte written is
// read back before the next one is sent.
func (b *SPIBus) TransferPolled(ctx context.Context, read, write []byte) error {
	b.drainStale()

	n := mathx.Max(len(read), len(write))
	slots := &spiWakers[b.id]
	txw, rxw := NewWaker(), NewWaker()
	for i := 0; i < n; i++ {
		out := byte(spiWritePad)
		if i < len(write) {
			out = write[i]
		}
		if err := writeByte(ctx, b.periph, &slots.Tx, b.txLevel, txw, out); err != nil {
			return err
		}
		v, err := readByte(ctx, b.periph, &slots.Rx, rxw)
		if err != nil {
			return err
		}
		if i < len(read) {
			read[i] = v
		}
		b.notify(i+1, i+1)
	}
	return nil
}

// drainStale discards bytes left in the receive FIFO by an earlier operation
func (b *SPIBus) drainStale() {
	for {
		if _, err := b.periph.TryReadByte(); err != nil {
			return
		}
	}
}

func (b *SPIBus) notify(written, read int) {
	if b.observer != nil {
		b.observer(written, read)
	}
}

// duplexPump holds the shared cursors of one duplex operation. written and
// read are only touched inside critical sections.
type duplexPump struct {
	bus     *SPIBus
	n       int
	written int
	read    int

	// cross.Rx wakes the drainer after feeder progress, cross.Tx wakes the
	// feeder after drainer progress
	cross WakerPair
}

// duplex exchanges n bytes with a feeder and a drainer running side by side.
// The first error cancels the other side; both are joined before returning.
func (b *SPIBus) duplex(ctx context.Context, n int, out func(int) byte, in func(int, byte)) error {
	b.drainStale()
	if n == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := &duplexPump{bus: b, n: n}
	errc := make(chan error, 2)
	go func() { errc <- p.feed(ctx, out) }()
	go func() { errc <- p.drain(ctx, in) }()

	var first error
	for i := 0; i < 2; i++ {
		if err := <-errc; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

// awaitCross suspends on slot until ready reports true. The check and the
// registration share one critical section, and progress is published in a
// critical section before the peer wakes us, so no signal is lost.
func (p *duplexPump) awaitCross(ctx context.Context, slot *WakerSlot, w *Waker, ready func() bool) error {
	for {
		w.reset()
		state := disableInterrupts()
		if ready() {
			restoreInterrupts(state)
			return nil
		}
		slot.w = w
		restoreInterrupts(state)

		if err := w.Wait(ctx); err != nil {
			return err
		}
	}
}

func (p *duplexPump) feed(ctx context.Context, out func(int) byte) error {
	b := p.bus
	hw := &spiWakers[b.id].Tx
	txw, cross := NewWaker(), NewWaker()
	windowOpen := func() bool { return p.written-p.read < b.depth }

	for w := 0; w < p.n; {
		if err := p.awaitCross(ctx, &p.cross.Tx, cross, windowOpen); err != nil {
			return err
		}
		if err := writeByte(ctx, b.periph, hw, b.txLevel, txw, out(w)); err != nil {
			return err
		}

		state := disableInterrupts()
		p.written++
		w = p.written
		r := p.read
		restoreInterrupts(state)

		b.notify(w, r)
		if r < w {
			p.cross.Rx.Wake()
		}
	}
	return nil
}

func (p *duplexPump) drain(ctx context.Context, in func(int, byte)) error {
	b := p.bus
	hw := &spiWakers[b.id].Rx
	rxw, cross := NewWaker(), NewWaker()
	produced := func() bool { return p.written > p.read }

	for r := 0; r < p.n; {
		if err := p.awaitCross(ctx, &p.cross.Rx, cross, produced); err != nil {
			return err
		}
		v, err := readByte(ctx, b.periph, hw, rxw)
		if err != nil {
			return err
		}
		in(r, v)

		state := disableInterrupts()
		p.read++
		r = p.read
		w := p.written
		restoreInterrupts(state)

		b.notify(w, r)
		if w-r < b.depth {
			p.cross.Tx.Wake()
		}
	}
	return nil
}
