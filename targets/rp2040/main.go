//go:build rp2040

package main

import (
	"context"
	"device/rp"
	"machine"
	"runtime/interrupt"
	"time"

	"tinygo.org/x/drivers/shtc3"

	"asynchal/core"
	"asynchal/targets/pio"
)

const (
	uartID   = 0 // core slot of UART1
	flashSPI = 0 // core slot of SPI0
	pioSPI   = 1 // core slot of the PIO SPI
)

var (
	machineTimer *core.MachineTimer
	spi0         *PL022
	uart1        *PL011

	// Debug counters
	sensorErrors uint32
	echoed       uint32
)

func main() {
	// CRITICAL: Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	core.SetDebugWriter(func(s string) { println(s) })
	core.InitAsyncDebug()

	// Machine timer on ALARM3
	machineTimer = core.NewMachineTimer(AlarmTickSource{}, core.DefaultTimerQueueSize)
	core.SetMachineTimer(machineTimer)
	interrupt.New(rp.IRQ_TIMER_IRQ_3, func(interrupt.Interrupt) {
		ackAlarm()
		machineTimer.OnInterrupt()
	}).Enable()
	delay := core.NewDelay(machineTimer)

	// UART1 on GP8/GP9; UART0 is left to the runtime console
	uart1, err = NewPL011(rp.UART1, machine.GPIO8, machine.GPIO9, 115200)
	if err != nil {
		core.DebugPrintln("[INIT] uart: " + err.Error())
		return
	}
	uart1.SetHandler(func() { core.OnUARTInterrupt(uartID) })
	serial, err := core.NewSerial(uartID, uart1)
	if err != nil {
		core.DebugPrintln("[INIT] serial: " + err.Error())
		return
	}
	interrupt.New(rp.IRQ_UART1_IRQ, func(interrupt.Interrupt) {
		core.OnUARTInterrupt(uartID)
	}).Enable()

	// SPI0 with a NOR flash on CS GP17
	spi0 = NewPL022(spi0Bus)
	spi0.SetHandler(func() { core.OnSPIInterrupt(flashSPI) })
	flashBus, err := core.NewSPIBus(flashSPI, spi0)
	if err != nil {
		core.DebugPrintln("[INIT] spi0: " + err.Error())
		return
	}
	interrupt.New(rp.IRQ_SPI0_IRQ, func(interrupt.Interrupt) {
		spi0.clearTimeout()
		core.OnSPIInterrupt(flashSPI)
	}).Enable()
	flash, err := core.NewExclusiveDevice(flashBus, core.SPIConfig{Mode: 0, Rate: 4000000}, delay)
	if err != nil {
		core.DebugPrintln("[INIT] flash: " + err.Error())
		return
	}

	// PIO SPI on GP2/GP3/GP4, shared by two devices; the first claim lands on PIO0
	pspi, err := pio.NewSPI(machine.GPIO2, machine.GPIO3, machine.GPIO4, machine.GPIO5, machine.GPIO6)
	if err != nil {
		core.DebugPrintln("[INIT] pio spi: " + err.Error())
		return
	}
	pioBus, err := core.NewSPIBus(pioSPI, pspi)
	if err != nil {
		core.DebugPrintln("[INIT] pio spi bus: " + err.Error())
		return
	}
	interrupt.New(rp.IRQ_PIO0_IRQ_0, func(interrupt.Interrupt) {
		core.OnSPIInterrupt(pioSPI)
	}).Enable()
	shared := core.NewSharedBus(pioBus)

	// SHTC3 on I2C0
	i2c, err := configureI2C(400000)
	if err != nil {
		core.DebugPrintln("[INIT] i2c: " + err.Error())
		return
	}
	sensor := shtc3.New(i2c)

	ctx := context.Background()
	rx, serialTx := serial.Split()
	tx := core.NewSharedTx(serialTx)

	if id, err := readJEDEC(ctx, flash); err == nil {
		core.DebugPrintln("[FLASH] jedec " + hex(id[:]))
	} else {
		core.DebugPrintln("[FLASH] " + err.Error())
	}

	go echoLoop(ctx, rx, tx)
	go sharedBusLoop(ctx, shared, delay)

	// Main loop: one sensor reading per second
	for {
		t, rh, err := readSHTC3(&sensor)
		if err != nil {
			sensorErrors++
		} else {
			line := "T=" + itoa(int(t)) + "mC RH=" + itoa(int(rh)) + "\r\n"
			if _, err := tx.Write(ctx, []byte(line)); err != nil {
				core.DebugPrintln("[UART] " + err.Error())
			}
		}
		if err := delay.DelayMs(ctx, 1000); err != nil {
			time.Sleep(time.Second)
		}
	}
}

// echoLoop returns every received byte
func echoLoop(ctx context.Context, rx *core.SerialRx, tx *core.SharedTx) {
	buf := make([]byte, 32)
	for {
		n, err := rx.Read(ctx, buf)
		if err != nil {
			core.DebugAsync("[UART] rx " + err.Error())
			continue
		}
		if _, err := tx.Write(ctx, buf[:n]); err != nil {
			core.DebugAsync("[UART] tx " + err.Error())
		}
		echoed += uint32(n)
	}
}

// readJEDEC issues the 0x9F identify command
func readJEDEC(ctx context.Context, flash *core.ExclusiveDevice) ([3]byte, error) {
	var id [3]byte
	err := flash.Transaction(ctx,
		core.SPIWrite([]byte{0x9F}),
		core.SPIRead(id[:]),
	)
	return id, err
}

// sharedBusLoop alternates two devices on the PIO bus with a gap between
// frames
func sharedBusLoop(ctx context.Context, bus *core.SharedBus, delay *core.Delay) {
	dac := bus.NewDevice(core.SPIConfig{Mode: 0, Rate: 1000000, CSIndex: 0}, delay)
	adc := bus.NewDevice(core.SPIConfig{Mode: 0, Rate: 1000000, CSIndex: 1}, delay)

	var level uint16
	sample := make([]byte, 2)
	for {
		level += 64
		err := dac.Transaction(ctx, core.SPIWrite([]byte{0x30 | byte(level>>12), byte(level >> 4)}))
		if err != nil {
			core.DebugAsync("[SPI] dac " + err.Error())
		}

		err = adc.Transaction(ctx,
			core.SPITransfer(sample, []byte{0x01, 0x80}),
			core.SPIDelayNs(500),
		)
		if err != nil {
			core.DebugAsync("[SPI] adc " + err.Error())
		}
		if err := delay.DelayMs(ctx, 10); err != nil {
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func hex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, 2*len(b))
	for _, v := range b {
		out = append(out, digits[v>>4], digits[v&0x0f])
	}
	return string(out)
}

// itoa converts int to string without importing strconv (for embedded)
func itoa(i int) string {
	if i == 0 {
		return "0"
	}

	negative := i < 0
	if negative {
		i = -i
	}

	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}

	if negative {
		pos--
		buf[pos] = '-'
	}

	return string(buf[pos:])
}
