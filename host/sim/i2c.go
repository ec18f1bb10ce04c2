package sim

import (
	"sync"

	"asynchal/core"
)

// I2CTarget is a device attached to the simulated bus
type I2CTarget interface {
	// Start is called for the address byte and reports ACK
	Start(read bool) bool
	// WriteByte receives a data byte and reports ACK
	WriteByte(b byte) bool
	// ReadByte supplies the next byte to the controller
	ReadByte() byte
	// Stop ends the transaction
	Stop()
}

// I2C is an OpenCores-style byte engine. With auto-complete off each
// triggered byte stays in progress until Step is called.
type I2C struct {
	mu       sync.Mutex
	targets  map[uint8]I2CTarget
	cur      I2CTarget
	txr, rxr byte

	busy       bool // between start and stop
	inProgress bool
	irqFlag    bool
	nack       bool
	stopAfter  bool
	arbLoss    bool
	ienabled   bool
	manual     bool
	handler    func()

	stops  int
	starts int
}

var _ core.I2CController = (*I2C)(nil)

// NewI2C returns an idle bus with auto-complete on
func NewI2C() *I2C {
	return &I2C{targets: make(map[uint8]I2CTarget)}
}

// Attach places t at the 7-bit address addr
func (c *I2C) Attach(addr uint8, t I2CTarget) {
	c.mu.Lock()
	c.targets[addr] = t
	c.mu.Unlock()
}

// SetHandler installs the interrupt handler, usually core.OnI2CInterrupt(id)
func (c *I2C) SetHandler(fn func()) {
	c.mu.Lock()
	c.handler = fn
	c.mu.Unlock()
}

// SetManual leaves triggered bytes in progress until Step
func (c *I2C) SetManual(on bool) {
	c.mu.Lock()
	c.manual = on
	c.mu.Unlock()
}

// LoseArbitrationNext makes the next completed byte report arbitration loss
func (c *I2C) LoseArbitrationNext() {
	c.mu.Lock()
	c.arbLoss = true
	c.mu.Unlock()
}

// Step completes the byte in progress. It reports false when there was none.
func (c *I2C) Step() bool {
	c.mu.Lock()
	if !c.inProgress {
		c.mu.Unlock()
		return false
	}
	c.completeLocked()
	c.raiseLocked()
	return true
}

// Counts returns the number of start and stop conditions generated
func (c *I2C) Counts() (starts, stops int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts, c.stops
}

func (c *I2C) IsIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.busy
}

func (c *I2C) Reset() {
	c.mu.Lock()
	c.irqFlag = false
	c.nack = false
	c.mu.Unlock()
}

func (c *I2C) SetStop() {
	c.mu.Lock()
	c.stopLocked()
	c.irqFlag = true
	c.raiseLocked()
}

func (c *I2C) WriteTXR(b byte) {
	c.mu.Lock()
	c.txr = b
	c.mu.Unlock()
}

func (c *I2C) ReadRXR() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rxr
}

func (c *I2C) TriggerWrite(start, stop bool) {
	c.mu.Lock()
	if start {
		c.starts++
		c.busy = true
		c.cur = c.targets[c.txr>>1]
		c.nack = c.cur == nil || !c.cur.Start(c.txr&1 == 1)
	} else {
		c.nack = c.cur == nil || !c.cur.WriteByte(c.txr)
	}
	c.begin(stop)
}

func (c *I2C) TriggerRead(nack, stop bool) {
	c.mu.Lock()
	if c.cur != nil {
		c.rxr = c.cur.ReadByte()
	} else {
		c.rxr = 0xff
	}
	c.nack = false
	c.begin(stop)
}

// begin releases c.mu
func (c *I2C) begin(stop bool) {
	c.inProgress = true
	c.irqFlag = false
	c.stopAfter = stop
	if c.manual {
		c.mu.Unlock()
		return
	}
	c.completeLocked()
	c.raiseLocked()
}

func (c *I2C) AckInterrupt() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inProgress {
		return core.ErrWouldBlock
	}
	if c.arbLoss {
		c.arbLoss = false
		c.stopLocked()
		return core.ErrArbitrationLoss
	}
	return nil
}

func (c *I2C) RxNack() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nack
}

func (c *I2C) EnableInterrupt() {
	c.mu.Lock()
	c.ienabled = true
	c.raiseLocked()
}

func (c *I2C) DisableInterrupt() {
	c.mu.Lock()
	c.ienabled = false
	c.mu.Unlock()
}

func (c *I2C) ClearInterrupt() {
	c.mu.Lock()
	c.irqFlag = false
	c.mu.Unlock()
}

func (c *I2C) completeLocked() {
	c.inProgress = false
	c.irqFlag = true
	if c.stopAfter {
		c.stopLocked()
	}
}

func (c *I2C) stopLocked() {
	if !c.busy {
		return
	}
	if c.cur != nil {
		c.cur.Stop()
	}
	c.cur = nil
	c.busy = false
	c.stops++
}

// raiseLocked releases c.mu and calls the handler if the interrupt is due
func (c *I2C) raiseLocked() {
	due := c.ienabled && c.irqFlag
	h := c.handler
	c.mu.Unlock()
	if due && h != nil {
		h()
	}
}
