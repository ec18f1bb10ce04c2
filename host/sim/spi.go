package sim

import (
	"context"
	"sync"
	"time"

	"asynchal/core"
)

// SPI is a controller with matched TX and RX FIFOs. Clock shifts the oldest
// TX byte through the attached target and queues the reply in the RX FIFO.
// A reply arriving at a full RX FIFO is lost and counted as an overrun.
type SPI struct {
	mu        sync.Mutex
	depth     int
	rx, tx    []byte
	irq       fifoIRQ
	handler   func()
	target    func(b byte) byte
	autoClock bool

	cfg      core.SPIConfig
	csHeld   bool
	frames   int
	clocked  int
	overruns int
	maxRx    int

	failAt  int
	failErr error
}

var _ core.SPIPeripheral = (*SPI)(nil)

// NewSPI returns a loopback SPI controller with depth-entry FIFOs
func NewSPI(depth int) *SPI {
	if depth <= 0 {
		depth = DefaultFIFODepth
	}
	return &SPI{depth: depth, target: func(b byte) byte { return b }}
}

// SetHandler installs the interrupt handler, usually core.OnSPIInterrupt(id)
func (s *SPI) SetHandler(fn func()) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

// SetTarget replaces the loopback with fn, which answers each clocked byte
func (s *SPI) SetTarget(fn func(b byte) byte) {
	s.mu.Lock()
	s.target = fn
	s.mu.Unlock()
}

// SetAutoClock shifts every written byte immediately when on
func (s *SPI) SetAutoClock(on bool) {
	s.mu.Lock()
	s.autoClock = on
	s.mu.Unlock()
}

// FailAfter makes TryReadByte return err once n bytes have been clocked
func (s *SPI) FailAfter(n int, err error) {
	s.mu.Lock()
	s.failAt, s.failErr = n, err
	s.mu.Unlock()
}

// Preload places stale bytes in the RX FIFO
func (s *SPI) Preload(data []byte) {
	s.mu.Lock()
	s.rx = append(s.rx, data...)
	s.mu.Unlock()
}

func (s *SPI) FIFODepth() int { return s.depth }

func (s *SPI) SetChipSelectHold(hold bool) {
	s.mu.Lock()
	if hold && !s.csHeld {
		s.frames++
	}
	s.csHeld = hold
	s.mu.Unlock()
}

func (s *SPI) Configure(cfg core.SPIConfig) error {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

func (s *SPI) TryReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil && s.clocked >= s.failAt {
		return 0, s.failErr
	}
	if len(s.rx) == 0 {
		return 0, core.ErrWouldBlock
	}
	b := s.rx[0]
	s.rx = s.rx[1:]
	return b, nil
}

func (s *SPI) TryWriteByte(b byte) error {
	s.mu.Lock()
	if len(s.tx) >= s.depth {
		s.mu.Unlock()
		return core.ErrWouldBlock
	}
	s.tx = append(s.tx, b)
	if s.autoClock {
		s.clockLocked()
	}
	s.raiseLocked()
	return nil
}

func (s *SPI) SetWatermark(dir core.Direction, level uint8) {
	s.mu.Lock()
	s.irq.setWatermark(dir, level)
	s.mu.Unlock()
}

func (s *SPI) EnableInterrupt(dir core.Direction) {
	s.mu.Lock()
	s.irq.setEnabled(dir, true)
	s.raiseLocked()
}

func (s *SPI) DisableInterrupt(dir core.Direction) {
	s.mu.Lock()
	s.irq.setEnabled(dir, false)
	s.mu.Unlock()
}

func (s *SPI) IsInterruptEnabled(dir core.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.irq.enabled(dir)
}

func (s *SPI) IsInterruptPending(dir core.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.irq.pending(dir, len(s.rx), len(s.tx))
}

// Clock shifts up to n bytes and returns how many moved
func (s *SPI) Clock(n int) int {
	s.mu.Lock()
	moved := 0
	for moved < n && s.clockLocked() {
		moved++
	}
	s.raiseLocked()
	return moved
}

// Run clocks one byte per byteTime until ctx is done
func (s *SPI) Run(ctx context.Context, byteTime time.Duration) {
	ticker := time.NewTicker(byteTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Clock(1)
		}
	}
}

// Stats reports chip-select frames, bytes clocked, RX overruns and the
// highest RX FIFO occupancy seen
func (s *SPI) Stats() (frames, clocked, overruns, maxRx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.clocked, s.overruns, s.maxRx
}

// ChipSelectHeld reports whether a frame is open
func (s *SPI) ChipSelectHeld() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csHeld
}

// Config returns the last configuration applied
func (s *SPI) Config() core.SPIConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *SPI) clockLocked() bool {
	if len(s.tx) == 0 {
		return false
	}
	out := s.tx[0]
	s.tx = s.tx[1:]
	in := s.target(out)
	s.clocked++
	if len(s.rx) >= s.depth {
		s.overruns++
		return true
	}
	s.rx = append(s.rx, in)
	s.maxRx = max(s.maxRx, len(s.rx))
	return true
}

// raiseLocked releases s.mu and calls the handler if an enabled source is pending
func (s *SPI) raiseLocked() {
	due := s.irq.due(len(s.rx), len(s.tx))
	h := s.handler
	s.mu.Unlock()
	if due && h != nil {
		h()
	}
}
