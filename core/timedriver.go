package core

import "context"

// TimeDriver lets an external scheduler drive the machine timer directly.
// It shares the timer queue with Delay.
type TimeDriver struct {
	mt *MachineTimer
}

func NewTimeDriver(mt *MachineTimer) *TimeDriver {
	return &TimeDriver{mt: mt}
}

// Now returns the current tick
func (d *TimeDriver) Now() uint64 {
	return d.mt.Now()
}

// Frequency returns the tick rate in Hz
func (d *TimeDriver) Frequency() uint32 {
	return d.mt.Frequency()
}

// ScheduleWake fires w once the tick reaches at. A deadline in the past fires
// w immediately.
func (d *TimeDriver) ScheduleWake(at uint64, w *Waker) error {
	return d.mt.Push(Timer{Expires: at, Waker: w})
}

// SleepUntil suspends until the tick reaches at
func (d *TimeDriver) SleepUntil(ctx context.Context, at uint64) error {
	return sleepUntil(ctx, d.mt, at)
}
