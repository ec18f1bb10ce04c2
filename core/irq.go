package core

import (
	"context"
	"errors"
)

// Peripheral instance limits. Handlers index fixed tables by peripheral id so
// interrupt context never allocates.
const (
	MaxUARTs = 2
	MaxSPIs  = 2
	MaxI2Cs  = 2
)

var (
	uartWakers [MaxUARTs]WakerPair
	spiWakers  [MaxSPIs]WakerPair
	i2cWakers  [MaxI2Cs]WakerSlot

	uartPeriphs [MaxUARTs]InterruptControl
	spiPeriphs  [MaxSPIs]InterruptControl
	i2cCtrls    [MaxI2Cs]I2CController
)

var irqDirections = [...]Direction{DirRx, DirTx}

// OnUARTInterrupt services the watermark interrupt of UART id. Every enabled
// direction is woken and masked; the woken task re-polls its FIFO.
func OnUARTInterrupt(id uint8) {
	if int(id) >= MaxUARTs || uartPeriphs[id] == nil {
		return
	}
	serviceWakers(uartPeriphs[id], &uartWakers[id], id, false)
}

// OnSPIInterrupt services the watermark interrupt of SPI id. Only directions
// that are both enabled and pending are woken and masked.
func OnSPIInterrupt(id uint8) {
	if int(id) >= MaxSPIs || spiPeriphs[id] == nil {
		return
	}
	serviceWakers(spiPeriphs[id], &spiWakers[id], id, true)
}

// OnI2CInterrupt services the transfer-complete interrupt of I2C controller id.
func OnI2CInterrupt(id uint8) {
	if int(id) >= MaxI2Cs || i2cCtrls[id] == nil {
		return
	}
	ctrl := i2cCtrls[id]

	state := disableInterrupts()
	w := i2cWakers[id].take()
	if w != nil {
		recordTiming(EvtWakerFire, id, timingClock(), uint64(DirTx), 0)
		w.Wake()
	}
	ctrl.DisableInterrupt()
	ctrl.ClearInterrupt()
	restoreInterrupts(state)
}

func serviceWakers(p InterruptControl, pair *WakerPair, id uint8, needPending bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for _, dir := range irqDirections {
		if !p.IsInterruptEnabled(dir) {
			continue
		}
		if needPending && !p.IsInterruptPending(dir) {
			continue
		}
		if w := pair.Slot(dir).take(); w != nil {
			recordTiming(EvtWakerFire, id, timingClock(), uint64(dir), 0)
			w.Wake()
		}
		// Level triggered: keep it masked until the next waiter re-enables it
		p.DisableInterrupt(dir)
	}
}

// timingClock must be called inside a critical section.
func timingClock() uint64 {
	if machineTimer == nil {
		return 0
	}
	return machineTimer.ts.ReadTick()
}

// waitFor stores w, arms the watermark interrupt for dir and suspends.
// The slot is written before the source is unmasked so a level that is
// already true fires straight into the new handle.
func waitFor(ctx context.Context, p InterruptControl, slot *WakerSlot, dir Direction, level uint8, w *Waker) error {
	w.reset()
	slot.Register(w)
	p.SetWatermark(dir, level)
	p.EnableInterrupt(dir)
	return w.Wait(ctx)
}

type byteReaderIRQ interface {
	ByteReader
	InterruptControl
}

type byteWriterIRQ interface {
	ByteWriter
	InterruptControl
}

// readByte suspends until one byte can be popped.
func readByte(ctx context.Context, p byteReaderIRQ, slot *WakerSlot, w *Waker) (byte, error) {
	for {
		b, err := p.TryReadByte()
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return 0, err
		}
		if err := waitFor(ctx, p, slot, DirRx, WatermarkRxAny, w); err != nil {
			return 0, err
		}
	}
}

// writeByte suspends until b has been pushed. level is the TX watermark that
// signals free space.
func writeByte(ctx context.Context, p byteWriterIRQ, slot *WakerSlot, level uint8, w *Waker, b byte) error {
	for {
		err := p.TryWriteByte(b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return err
		}
		if err := waitFor(ctx, p, slot, DirTx, level, w); err != nil {
			return err
		}
	}
}
