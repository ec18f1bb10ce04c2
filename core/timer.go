package core

import "math/bits"

const (
	nsPerSecond = 1000000000
	usPerSecond = 1000000
	msPerSecond = 1000
)

var machineTimer *MachineTimer

// SetMachineTimer is called by target-specific code to register the system scheduler
func SetMachineTimer(m *MachineTimer) {
	machineTimer = m
}

// MustMachineTimer returns the registered scheduler or panics if missing
func MustMachineTimer() *MachineTimer {
	if machineTimer == nil {
		panic("machine timer not configured")
	}
	return machineTimer
}

// GetTime returns the current system time in timer ticks
func GetTime() uint64 {
	return MustMachineTimer().Now()
}

// ticksFrom converts v units (unitsPerSecond per second) to ticks, truncating
// toward zero. Saturates instead of overflowing.
func ticksFrom(v uint64, freq uint32, unitsPerSecond uint64) uint64 {
	hi, lo := bits.Mul64(v, uint64(freq))
	if hi >= unitsPerSecond {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, unitsPerSecond)
	return q
}

// TicksFromNS converts nanoseconds to timer ticks
func TicksFromNS(ns uint64, freq uint32) uint64 {
	return ticksFrom(ns, freq, nsPerSecond)
}

// TicksFromUS converts microseconds to timer ticks
func TicksFromUS(us uint64, freq uint32) uint64 {
	return ticksFrom(us, freq, usPerSecond)
}

// TicksFromMS converts milliseconds to timer ticks
func TicksFromMS(ms uint64, freq uint32) uint64 {
	return ticksFrom(ms, freq, msPerSecond)
}

// TicksToUS converts timer ticks to microseconds
func TicksToUS(ticks uint64, freq uint32) uint64 {
	if freq == 0 {
		return 0
	}
	hi, lo := bits.Mul64(ticks, usPerSecond)
	if hi >= uint64(freq) {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, uint64(freq))
	return q
}
