package core

import (
	"context"

	"tinygo.org/x/drivers"
)

// SPIOpKind selects what an SPIOperation does
type SPIOpKind uint8

const (
	SPIOpRead SPIOpKind = iota
	SPIOpWrite
	SPIOpTransfer
	SPIOpTransferInPlace
	SPIOpDelayNs
)

// SPIOperation is one step of a device transaction
type SPIOperation struct {
	Kind  SPIOpKind
	Read  []byte // Read, Transfer, TransferInPlace
	Write []byte // Write, Transfer
	Ns    uint32 // DelayNs
}

func SPIRead(buf []byte) SPIOperation {
	return SPIOperation{Kind: SPIOpRead, Read: buf}
}

func SPIWrite(buf []byte) SPIOperation {
	return SPIOperation{Kind: SPIOpWrite, Write: buf}
}

func SPITransfer(read, write []byte) SPIOperation {
	return SPIOperation{Kind: SPIOpTransfer, Read: read, Write: write}
}

func SPITransferInPlace(buf []byte) SPIOperation {
	return SPIOperation{Kind: SPIOpTransferInPlace, Read: buf}
}

// SPIDelayNs pauses with chip-select held
func SPIDelayNs(ns uint32) SPIOperation {
	return SPIOperation{Kind: SPIOpDelayNs, Ns: ns}
}

// runTransaction executes ops inside one chip-select frame. It stops at the
// first failing operation, flushes only when every operation succeeded and
// releases chip-select on every path.
func runTransaction(ctx context.Context, bus *SPIBus, delay AsyncDelay, ops []SPIOperation) (err error) {
	bus.StartFrame()
	defer bus.EndFrame()

	for _, op := range ops {
		switch op.Kind {
		case SPIOpRead:
			err = bus.Read(ctx, op.Read)
		case SPIOpWrite:
			err = bus.Write(ctx, op.Write)
		case SPIOpTransfer:
			err = bus.Transfer(ctx, op.Read, op.Write)
		case SPIOpTransferInPlace:
			err = bus.TransferInPlace(ctx, op.Read)
		case SPIOpDelayNs:
			if delay == nil {
				err = ErrNotConfigured
			} else {
				err = delay.DelayNs(ctx, op.Ns)
			}
		}
		if err != nil {
			return err
		}
	}
	return bus.Flush(ctx)
}

// ExclusiveDevice owns a bus outright
type ExclusiveDevice struct {
	bus   *SPIBus
	delay AsyncDelay
}

// NewExclusiveDevice configures bus once for cfg
func NewExclusiveDevice(bus *SPIBus, cfg SPIConfig, delay AsyncDelay) (*ExclusiveDevice, error) {
	if err := bus.Configure(cfg); err != nil {
		return nil, err
	}
	return &ExclusiveDevice{bus: bus, delay: delay}, nil
}

// Transaction runs ops with chip-select asserted throughout
func (d *ExclusiveDevice) Transaction(ctx context.Context, ops ...SPIOperation) error {
	return runTransaction(ctx, d.bus, d.delay, ops)
}

// Bus adapts the device to drivers.SPI under ctx
func (d *ExclusiveDevice) Bus(ctx context.Context) drivers.SPI {
	return &spiDeviceBus{ctx: ctx, dev: d}
}

// SharedBus serializes transactions of several devices on one bus. The lock
// is a one-slot channel so waiting for it honours cancellation.
type SharedBus struct {
	bus  *SPIBus
	lock chan struct{}
}

func NewSharedBus(bus *SPIBus) *SharedBus {
	return &SharedBus{bus: bus, lock: make(chan struct{}, 1)}
}

// Lock acquires exclusive use of the bus
func (s *SharedBus) Lock(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the bus
func (s *SharedBus) Unlock() {
	<-s.lock
}

// NewDevice returns a device that reapplies cfg on every transaction
func (s *SharedBus) NewDevice(cfg SPIConfig, delay AsyncDelay) *SharedDevice {
	return &SharedDevice{shared: s, cfg: cfg, delay: delay}
}

// SharedDevice is one chip-select on a SharedBus
type SharedDevice struct {
	shared *SharedBus
	cfg    SPIConfig
	delay  AsyncDelay
}

// Transaction locks the bus, configures it for this device and runs ops.
// The result of the operations is returned.
func (d *SharedDevice) Transaction(ctx context.Context, ops ...SPIOperation) error {
	if err := d.shared.Lock(ctx); err != nil {
		return err
	}
	defer d.shared.Unlock()

	if err := d.shared.bus.Configure(d.cfg); err != nil {
		return err
	}
	return runTransaction(ctx, d.shared.bus, d.delay, ops)
}

// Bus adapts the device to drivers.SPI under ctx
func (d *SharedDevice) Bus(ctx context.Context) drivers.SPI {
	return &spiDeviceBus{ctx: ctx, dev: d}
}

type spiTransactor interface {
	Transaction(ctx context.Context, ops ...SPIOperation) error
}

// spiDeviceBus runs each drivers.SPI call as its own transaction
type spiDeviceBus struct {
	ctx context.Context
	dev spiTransactor
}

var _ drivers.SPI = (*spiDeviceBus)(nil)

func (b *spiDeviceBus) Tx(w, r []byte) error {
	if r == nil {
		return b.dev.Transaction(b.ctx, SPIWrite(w))
	}
	return b.dev.Transaction(b.ctx, SPITransfer(r, w))
}

func (b *spiDeviceBus) Transfer(w byte) (byte, error) {
	buf := [1]byte{w}
	err := b.dev.Transaction(b.ctx, SPITransferInPlace(buf[:]))
	return buf[0], err
}
