package core

import (
	"context"
	"time"
)

// AsyncDelay is the delay capability SPI devices use between operations.
type AsyncDelay interface {
	DelayNs(ctx context.Context, ns uint32) error
}

// Delay suspends the calling goroutine on the machine timer.
// Durations are truncated to whole ticks, so a delay never waits longer than
// requested because of rounding. Interrupt latency may still add to it.
type Delay struct {
	mt *MachineTimer
}

// NewDelay returns a delay provider backed by mt
func NewDelay(mt *MachineTimer) *Delay {
	return &Delay{mt: mt}
}

// DelayTicks returns once n ticks have elapsed from now
func (d *Delay) DelayTicks(ctx context.Context, n uint64) error {
	now := d.mt.Now()
	deadline := now + n
	if deadline < now {
		deadline = ^uint64(0)
	}
	return sleepUntil(ctx, d.mt, deadline)
}

func (d *Delay) DelayNs(ctx context.Context, ns uint32) error {
	return d.DelayTicks(ctx, TicksFromNS(uint64(ns), d.mt.Frequency()))
}

func (d *Delay) DelayUs(ctx context.Context, us uint32) error {
	return d.DelayTicks(ctx, TicksFromUS(uint64(us), d.mt.Frequency()))
}

func (d *Delay) DelayMs(ctx context.Context, ms uint32) error {
	return d.DelayTicks(ctx, TicksFromMS(uint64(ms), d.mt.Frequency()))
}

// Sleep waits for dur. Negative durations return immediately.
func (d *Delay) Sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	return d.DelayTicks(ctx, TicksFromNS(uint64(dur), d.mt.Frequency()))
}

// sleepUntil registers at most one timer per call, and none at all when the
// deadline has already passed.
func sleepUntil(ctx context.Context, mt *MachineTimer, deadline uint64) error {
	var w *Waker
	pushed := false
	for {
		if mt.Now() >= deadline {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !pushed {
			w = NewWaker()
			if err := mt.Push(Timer{Expires: deadline, Waker: w}); err != nil {
				return err
			}
			pushed = true
			continue
		}
		if err := w.Wait(ctx); err != nil {
			return err
		}
	}
}
