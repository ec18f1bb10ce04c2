package sim

import (
	"context"
	"time"

	"asynchal/core"
)

// Options sizes a simulated board
type Options struct {
	TickFrequency  uint32
	TimerQueueSize int
	UARTFIFODepth  int
	SPIFIFODepth   int
}

// DefaultOptions mirror a 1 MHz timer and 8-entry FIFOs
func DefaultOptions() Options {
	return Options{
		TickFrequency:  1000000,
		TimerQueueSize: core.DefaultTimerQueueSize,
		UARTFIFODepth:  DefaultFIFODepth,
		SPIFIFODepth:   DefaultFIFODepth,
	}
}

// Board wires simulated peripherals to the core interrupt handlers: UART 0,
// SPI 0 and I2C 0, plus the machine timer.
type Board struct {
	Tick  *TickSource
	Timer *core.MachineTimer
	UART  *UART
	SPI   *SPI
	I2C   *I2C

	Serial *core.Serial
	SPIBus *core.SPIBus
	I2CBus *core.I2C
	Delay  *core.Delay
}

// NewBoard builds the peripherals and registers the machine timer as the
// system scheduler.
func NewBoard(opts Options) (*Board, error) {
	if opts.TickFrequency == 0 {
		opts.TickFrequency = DefaultOptions().TickFrequency
	}

	b := &Board{
		Tick: NewTickSource(opts.TickFrequency),
		UART: NewUART(opts.UARTFIFODepth),
		SPI:  NewSPI(opts.SPIFIFODepth),
		I2C:  NewI2C(),
	}
	b.Timer = core.NewMachineTimer(b.Tick, opts.TimerQueueSize)
	b.Tick.SetHandler(b.Timer.OnInterrupt)
	core.SetMachineTimer(b.Timer)
	b.Delay = core.NewDelay(b.Timer)

	b.UART.SetHandler(func() { core.OnUARTInterrupt(0) })
	b.SPI.SetHandler(func() { core.OnSPIInterrupt(0) })
	b.I2C.SetHandler(func() { core.OnI2CInterrupt(0) })

	var err error
	if b.Serial, err = core.NewSerial(0, b.UART); err != nil {
		return nil, err
	}
	if b.SPIBus, err = core.NewSPIBus(0, b.SPI); err != nil {
		return nil, err
	}
	if b.I2CBus, err = core.NewI2C(0, b.I2C); err != nil {
		return nil, err
	}
	return b, nil
}

// Run follows the wall clock with the tick source and clocks SPI 0 every
// spiByteTime until ctx is done. UART 0 is left to the caller: loop it back
// with UART.Run or hand it to a serial bridge.
func (b *Board) Run(ctx context.Context, spiByteTime time.Duration) {
	go b.Tick.Run(ctx, time.Millisecond)
	go b.SPI.Run(ctx, spiByteTime)
}
