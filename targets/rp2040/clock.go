//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"asynchal/core"
)

// RP2040 Timer peripheral memory map. The runtime owns ALARM0 for its own
// sleeps; the machine timer uses ALARM3.
const (
	timerBase     = 0x40054000
	timerALARM3   = timerBase + 0x1C
	timerARMED    = timerBase + 0x20
	timerTIMERAWH = timerBase + 0x24 // Raw timer high word, no latching
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word
	timerINTR     = timerBase + 0x34
	timerINTE     = timerBase + 0x38

	alarmBit = 1 << 3
)

var (
	timerRAWH  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
	timerAlarm = (*volatile.Register32)(unsafe.Pointer(uintptr(timerALARM3)))
	timerArmed = (*volatile.Register32)(unsafe.Pointer(uintptr(timerARMED)))
	timerIntr  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTR)))
	timerInte  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTE)))
)

// AlarmTickSource exposes the 1MHz RP2040 timer and ALARM3 as the machine
// timer's tick source and compare register.
type AlarmTickSource struct{}

var _ core.TickSource = AlarmTickSource{}

// ReadTick reads the full 64-bit microsecond counter
func (AlarmTickSource) ReadTick() uint64 {
	// Must read high first, then low, then high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// WriteCompare arms ALARM3. The alarm matches the low word only, so a
// deadline more than 2^32 ticks out fires early and the scheduler re-arms.
func (t AlarmTickSource) WriteCompare(tick uint64) {
	now := t.ReadTick()
	if tick > now && tick-now > 0xFFFFFFFF {
		tick = now + 0xFFFFFFFF
	}
	timerAlarm.Set(uint32(tick))
}

func (AlarmTickSource) EnableCompareInterrupt() {
	timerIntr.Set(alarmBit)
	timerInte.SetBits(alarmBit)
}

func (AlarmTickSource) DisableCompareInterrupt() {
	timerInte.ClearBits(alarmBit)
	timerArmed.Set(alarmBit) // write-one disarms
	timerIntr.Set(alarmBit)
}

func (AlarmTickSource) TickFrequency() uint32 {
	return 1000000
}

// ackAlarm clears the latched alarm flag. Call from the TIMER_IRQ_3 handler
// before handing control to the scheduler.
func ackAlarm() {
	timerIntr.Set(alarmBit)
}
