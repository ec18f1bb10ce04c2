// Package sim provides host-side peripherals that behave like the FIFO and
// timer hardware the async engines drive. Interrupt handlers are called
// synchronously from the goroutine that changed the hardware state, never
// while a peripheral lock is held.
package sim

import (
	"context"
	"sync"
	"time"

	"asynchal/core"
)

// TickSource is a manually advanced 64-bit counter with one compare register.
type TickSource struct {
	mu      sync.Mutex
	now     uint64
	compare uint64
	enabled bool
	freq    uint32
	handler func()
	fired   int
}

// NewTickSource returns a counter at tick 0 running at freq Hz
func NewTickSource(freq uint32) *TickSource {
	return &TickSource{freq: freq}
}

// SetHandler installs the compare-match interrupt handler
func (t *TickSource) SetHandler(fn func()) {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
}

func (t *TickSource) ReadTick() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

func (t *TickSource) WriteCompare(tick uint64) {
	t.mu.Lock()
	t.compare = tick
	t.mu.Unlock()
}

// EnableCompareInterrupt unmasks the match interrupt. Like the hardware it
// only fires on a later counter update, so a compare value already in the
// past stays silent until the next Advance.
func (t *TickSource) EnableCompareInterrupt() {
	t.mu.Lock()
	t.enabled = true
	t.mu.Unlock()
}

func (t *TickSource) DisableCompareInterrupt() {
	t.mu.Lock()
	t.enabled = false
	t.mu.Unlock()
}

func (t *TickSource) TickFrequency() uint32 {
	return t.freq
}

// Compare returns the compare register and whether its interrupt is enabled
func (t *TickSource) Compare() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.compare, t.enabled
}

// Fired returns how many compare interrupts have been delivered
func (t *TickSource) Fired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Advance moves the counter forward by n ticks and delivers the compare
// interrupt if it is enabled and now due.
func (t *TickSource) Advance(n uint64) {
	t.mu.Lock()
	t.now += n
	t.fireLocked()
}

// AdvanceTo moves the counter to tick. Earlier values are ignored.
func (t *TickSource) AdvanceTo(tick uint64) {
	t.mu.Lock()
	if tick > t.now {
		t.now = tick
	}
	t.fireLocked()
}

// fireLocked releases t.mu before calling the handler
func (t *TickSource) fireLocked() {
	due := t.enabled && t.now >= t.compare
	h := t.handler
	if due {
		t.fired++
	}
	t.mu.Unlock()
	if due && h != nil {
		h()
	}
}

// Run advances the counter with the wall clock every interval until ctx is done
func (t *TickSource) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	base := t.ReadTick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := uint64(time.Since(start))
			t.AdvanceTo(base + core.TicksFromNS(elapsed, t.freq))
		}
	}
}
