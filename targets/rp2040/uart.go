//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"asynchal/core"
)

// PL011 receive status bits reported alongside each byte in UARTDR
const pl011RxErrors = rp.UART0_UARTDR_OE | rp.UART0_UARTDR_BE | rp.UART0_UARTDR_PE | rp.UART0_UARTDR_FE

var errUARTLine = errors.New("uart line error")

// PL011 drives a UART through its 32-entry FIFOs and watermark interrupts.
//
// The PL011 only offers 1/8 step FIFO thresholds plus a receive timeout, so
// watermarks are rounded: rx fires on any data (RXIM at 1/8 or RTIM) and tx
// fires when the FIFO is at most 1/8 full. A drained wait therefore returns
// with up to four bytes still queued.
type PL011 struct {
	bus     *rp.UART0_Type
	handler func()
	txLevel uint8
}

var _ core.UARTPeripheral = (*PL011)(nil)

// NewPL011 configures bus for 8N1 at baud. Baud and framing reuse the uartx
// divisor maths; the interrupt stays ours.
func NewPL011(bus *rp.UART0_Type, tx, rx machine.Pin, baud uint32) (*PL011, error) {
	cfg := &uartx.UART{Bus: bus}

	bus.UARTCR.ClearBits(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)
	tx.Configure(machine.PinConfig{Mode: machine.PinUART})
	rx.Configure(machine.PinConfig{Mode: machine.PinUART})

	cfg.SetBaudRate(baud)
	if err := cfg.SetFormat(8, 1, uartx.ParityNone); err != nil {
		return nil, err
	}
	bus.UARTLCR_H.SetBits(rp.UART0_UARTLCR_H_FEN)

	bus.UARTIMSC.Set(0)
	bus.UARTICR.Set(0x7FF)
	bus.UARTIFLS.Set(0) // 1/8 thresholds both ways
	bus.UARTCR.Set(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)

	return &PL011{bus: bus}, nil
}

// SetHandler installs the function raised when an enabled level is already
// true at enable time. It should be the same core.OnUARTInterrupt the IRQ
// vector calls.
func (u *PL011) SetHandler(fn func()) {
	u.handler = fn
}

func (u *PL011) TryReadByte() (byte, error) {
	if u.bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		return 0, core.ErrWouldBlock
	}
	dr := u.bus.UARTDR.Get()
	if dr&pl011RxErrors != 0 {
		u.bus.UARTRSR.Set(0)
		return 0, errUARTLine
	}
	return byte(dr), nil
}

func (u *PL011) TryWriteByte(b byte) error {
	if u.bus.UARTFR.HasBits(rp.UART0_UARTFR_TXFF) {
		return core.ErrWouldBlock
	}
	u.bus.UARTDR.Set(uint32(b))
	return nil
}

func (u *PL011) SetWatermark(dir core.Direction, level uint8) {
	if dir == core.DirTx {
		u.txLevel = level
	}
}

// EnableInterrupt unmasks the source. The PL011 TX interrupt is edge-like:
// it never asserts for a FIFO that was already below threshold, so a level
// that is already true is raised by hand.
func (u *PL011) EnableInterrupt(dir core.Direction) {
	if dir == core.DirRx {
		u.bus.UARTIMSC.SetBits(rp.UART0_UARTIMSC_RXIM | rp.UART0_UARTIMSC_RTIM)
	} else {
		u.bus.UARTIMSC.SetBits(rp.UART0_UARTIMSC_TXIM)
	}
	if u.IsInterruptPending(dir) && u.handler != nil {
		u.handler()
	}
}

func (u *PL011) DisableInterrupt(dir core.Direction) {
	if dir == core.DirRx {
		u.bus.UARTIMSC.ClearBits(rp.UART0_UARTIMSC_RXIM | rp.UART0_UARTIMSC_RTIM)
		u.bus.UARTICR.Set(rp.UART0_UARTICR_RTIC)
	} else {
		u.bus.UARTIMSC.ClearBits(rp.UART0_UARTIMSC_TXIM)
	}
}

func (u *PL011) IsInterruptEnabled(dir core.Direction) bool {
	if dir == core.DirRx {
		return u.bus.UARTIMSC.HasBits(rp.UART0_UARTIMSC_RXIM)
	}
	return u.bus.UARTIMSC.HasBits(rp.UART0_UARTIMSC_TXIM)
}

func (u *PL011) IsInterruptPending(dir core.Direction) bool {
	if dir == core.DirRx {
		return !u.bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE)
	}
	if u.bus.UARTFR.HasBits(rp.UART0_UARTFR_TXFE) {
		return true
	}
	return u.txLevel > core.WatermarkTxEmpty && u.bus.UARTRIS.HasBits(rp.UART0_UARTRIS_TXRIS)
}
