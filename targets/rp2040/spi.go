//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"

	"asynchal/core"
)

// spiBusConfig names the controller and pins of one SPI bus
type spiBusConfig struct {
	spi  *machine.SPI // SPI controller (SPI0 or SPI1)
	regs *rp.SPI0_Type
	sck  machine.Pin
	sdo  machine.Pin
	sdi  machine.Pin
	cs   []machine.Pin // indexed by core.SPIConfig.CSIndex
	name string
}

var (
	spi0Bus = spiBusConfig{
		spi: machine.SPI0, regs: rp.SPI0,
		sck: machine.GPIO18, sdo: machine.GPIO19, sdi: machine.GPIO16,
		cs:   []machine.Pin{machine.GPIO17},
		name: "spi0c",
	}
	spi1Bus = spiBusConfig{
		spi: machine.SPI1, regs: rp.SPI1,
		sck: machine.GPIO10, sdo: machine.GPIO11, sdi: machine.GPIO12,
		cs:   []machine.Pin{machine.GPIO13},
		name: "spi1d",
	}
)

var errLSBFirst = errors.New("PL022 only shifts MSB first")

// PL022 is an RP2040 SPI controller in master mode with 8-entry FIFOs.
// TXIM asserts at half empty and RXIM at half full, with RTIM catching the
// tail, so both watermarks round toward firing early.
type PL022 struct {
	bus     spiBusConfig
	cs      machine.Pin
	handler func()
}

var _ core.SPIPeripheral = (*PL022)(nil)

func NewPL022(bus spiBusConfig) *PL022 {
	for _, pin := range bus.cs {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.High()
	}
	p := &PL022{bus: bus, cs: machine.NoPin}
	if len(bus.cs) > 0 {
		p.cs = bus.cs[0]
	}
	return p
}

// SetHandler installs the function raised when a level is already true at
// enable time, normally core.OnSPIInterrupt for this bus.
func (p *PL022) SetHandler(fn func()) {
	p.handler = fn
}

func (p *PL022) FIFODepth() int {
	return 8
}

// Configure applies mode and rate through machine.SPI, which also muxes the
// pins, then selects the chip select line.
func (p *PL022) Configure(cfg core.SPIConfig) error {
	if cfg.LSBFirst {
		return errLSBFirst
	}
	if int(cfg.CSIndex) >= len(p.bus.cs) {
		return core.ErrNotConfigured
	}

	err := p.bus.spi.Configure(machine.SPIConfig{
		Frequency: cfg.Rate,
		SCK:       p.bus.sck,
		SDO:       p.bus.sdo,
		SDI:       p.bus.sdi,
		Mode:      uint8(cfg.Mode),
	})
	if err != nil {
		return err
	}
	p.bus.regs.SSPIMSC.Set(0)
	p.cs = p.bus.cs[cfg.CSIndex]
	return nil
}

func (p *PL022) SetChipSelectHold(hold bool) {
	if p.cs == machine.NoPin {
		return
	}
	p.cs.Set(!hold)
}

func (p *PL022) TryReadByte() (byte, error) {
	if !p.bus.regs.SSPSR.HasBits(rp.SPI0_SSPSR_RNE) {
		return 0, core.ErrWouldBlock
	}
	return byte(p.bus.regs.SSPDR.Get()), nil
}

func (p *PL022) TryWriteByte(b byte) error {
	if !p.bus.regs.SSPSR.HasBits(rp.SPI0_SSPSR_TNF) {
		return core.ErrWouldBlock
	}
	p.bus.regs.SSPDR.Set(uint32(b))
	return nil
}

// SetWatermark is fixed by hardware on the PL022
func (p *PL022) SetWatermark(core.Direction, uint8) {}

func (p *PL022) EnableInterrupt(dir core.Direction) {
	if dir == core.DirRx {
		p.bus.regs.SSPIMSC.SetBits(rp.SPI0_SSPIMSC_RXIM | rp.SPI0_SSPIMSC_RTIM)
	} else {
		p.bus.regs.SSPIMSC.SetBits(rp.SPI0_SSPIMSC_TXIM)
	}
	// RTIM needs a quiet period after the last byte; a short tail already
	// sitting in the FIFO is raised here instead.
	if p.IsInterruptPending(dir) && p.handler != nil {
		p.handler()
	}
}

func (p *PL022) DisableInterrupt(dir core.Direction) {
	if dir == core.DirRx {
		p.bus.regs.SSPIMSC.ClearBits(rp.SPI0_SSPIMSC_RXIM | rp.SPI0_SSPIMSC_RTIM)
		p.bus.regs.SSPICR.Set(rp.SPI0_SSPICR_RTIC)
	} else {
		p.bus.regs.SSPIMSC.ClearBits(rp.SPI0_SSPIMSC_TXIM)
	}
}

func (p *PL022) IsInterruptEnabled(dir core.Direction) bool {
	if dir == core.DirRx {
		return p.bus.regs.SSPIMSC.HasBits(rp.SPI0_SSPIMSC_RXIM)
	}
	return p.bus.regs.SSPIMSC.HasBits(rp.SPI0_SSPIMSC_TXIM)
}

// clearTimeout acknowledges a latched receive timeout so the IRQ line drops
// once the FIFO has been drained.
func (p *PL022) clearTimeout() {
	p.bus.regs.SSPICR.Set(rp.SPI0_SSPICR_RTIC)
}

func (p *PL022) IsInterruptPending(dir core.Direction) bool {
	if dir == core.DirRx {
		return p.bus.regs.SSPSR.HasBits(rp.SPI0_SSPSR_RNE)
	}
	return p.bus.regs.SSPSR.HasBits(rp.SPI0_SSPSR_TNF)
}
