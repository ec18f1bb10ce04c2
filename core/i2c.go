package core

import (
	"context"
	"errors"

	"tinygo.org/x/drivers"
)

const (
	i2cFlagWrite = 0
	i2cFlagRead  = 1
)

// I2COperation is one read or write phase of a transaction
type I2COperation struct {
	Buf  []byte
	Read bool
}

// I2CWrite returns a write phase sending b
func I2CWrite(b []byte) I2COperation {
	return I2COperation{Buf: b}
}

// I2CRead returns a read phase filling b
func I2CRead(b []byte) I2COperation {
	return I2COperation{Buf: b, Read: true}
}

// I2C runs transactions on an interrupt-driven controller. A controller has a
// single waker slot, so only one transaction may be in flight.
type I2C struct {
	id   uint8
	ctrl I2CController
	w    *Waker
}

// NewI2C binds ctrl to interrupt slot id. The platform must route the
// controller interrupt to OnI2CInterrupt(id).
func NewI2C(id uint8, ctrl I2CController) (*I2C, error) {
	if int(id) >= MaxI2Cs {
		return nil, ErrUnknownPeripheral
	}
	ctrl.DisableInterrupt()

	state := disableInterrupts()
	i2cCtrls[id] = ctrl
	i2cWakers[id] = WakerSlot{}
	restoreInterrupts(state)

	return &I2C{id: id, ctrl: ctrl, w: NewWaker()}, nil
}

// suspend arms the controller interrupt and waits for it
func (i *I2C) suspend(ctx context.Context) error {
	i.w.reset()
	i2cWakers[i.id].Register(i.w)
	i.ctrl.EnableInterrupt()
	return i.w.Wait(ctx)
}

func (i *I2C) waitIdle(ctx context.Context) error {
	for !i.ctrl.IsIdle() {
		if err := i.suspend(ctx); err != nil {
			return err
		}
	}
	return nil
}

// waitTransfer waits for the byte transfer in progress to complete
func (i *I2C) waitTransfer(ctx context.Context) error {
	for {
		err := i.ctrl.AckInterrupt()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return err
		}
		if err := i.suspend(ctx); err != nil {
			return err
		}
	}
}

// waitWrite waits for a written byte and checks the acknowledge bit. A stop
// is issued before a NACK is reported.
func (i *I2C) waitWrite(ctx context.Context, source NoAckSource) error {
	if err := i.waitTransfer(ctx); err != nil {
		return err
	}
	if i.ctrl.RxNack() {
		i.ctrl.SetStop()
		return &NoAcknowledgeError{Source: source}
	}
	return nil
}

// Transaction performs ops against addr as one bus transaction. A repeated
// start is generated whenever the direction changes and a stop follows the
// last byte of the last operation.
func (i *I2C) Transaction(ctx context.Context, addr I2CAddress, ops ...I2COperation) error {
	if len(ops) == 0 {
		return nil
	}

	if err := i.waitIdle(ctx); err != nil {
		return err
	}
	i.ctrl.Reset()

	// A start is needed for the first phase whatever its direction
	lastWasRead := !ops[0].Read
	last := len(ops) - 1

	for n, op := range ops {
		finalOp := n == last
		if op.Read {
			i.ctrl.WriteTXR(byte(addr)<<1 | i2cFlagRead)
			i.ctrl.TriggerWrite(!lastWasRead, finalOp && len(op.Buf) == 0)
			if err := i.waitWrite(ctx, NoAckAddress); err != nil {
				return err
			}
			lastWasRead = true

			for j := range op.Buf {
				lastByte := j == len(op.Buf)-1
				i.ctrl.TriggerRead(lastByte, finalOp && lastByte)
				if err := i.waitTransfer(ctx); err != nil {
					return err
				}
				op.Buf[j] = i.ctrl.ReadRXR()
			}
			continue
		}

		i.ctrl.WriteTXR(byte(addr)<<1 | i2cFlagWrite)
		i.ctrl.TriggerWrite(lastWasRead, finalOp && len(op.Buf) == 0)
		if err := i.waitWrite(ctx, NoAckAddress); err != nil {
			return err
		}
		lastWasRead = false

		for j, b := range op.Buf {
			i.ctrl.WriteTXR(b)
			i.ctrl.TriggerWrite(false, finalOp && j == len(op.Buf)-1)
			if err := i.waitWrite(ctx, NoAckData); err != nil {
				return err
			}
		}
	}
	return nil
}

// Write sends w to addr
func (i *I2C) Write(ctx context.Context, addr I2CAddress, w []byte) error {
	return i.Transaction(ctx, addr, I2CWrite(w))
}

// Read fills r from addr
func (i *I2C) Read(ctx context.Context, addr I2CAddress, r []byte) error {
	return i.Transaction(ctx, addr, I2CRead(r))
}

// WriteRead sends w then reads r after a repeated start
func (i *I2C) WriteRead(ctx context.Context, addr I2CAddress, w, r []byte) error {
	return i.Transaction(ctx, addr, I2CWrite(w), I2CRead(r))
}

// Bus adapts the controller to drivers.I2C so TinyGo sensor drivers can use
// it. Every Tx call runs under ctx.
func (i *I2C) Bus(ctx context.Context) drivers.I2C {
	return &i2cBus{ctx: ctx, i2c: i}
}

type i2cBus struct {
	ctx context.Context
	i2c *I2C
}

var _ drivers.I2C = (*i2cBus)(nil)

func (b *i2cBus) Tx(addr uint16, w, r []byte) error {
	ops := make([]I2COperation, 0, 2)
	if len(w) > 0 {
		ops = append(ops, I2CWrite(w))
	}
	if len(r) > 0 {
		ops = append(ops, I2CRead(r))
	}
	if len(ops) == 0 {
		// Address probe
		ops = append(ops, I2CWrite(nil))
	}
	return b.i2c.Transaction(b.ctx, I2CAddress(addr), ops...)
}
