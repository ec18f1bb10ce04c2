//go:build rp2040

package pio

// SPI controller on a PIO state machine, using tinygo-org/pio

import (
	"device/rp"
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"asynchal/core"
	"asynchal/x/mathx"
)

// Each bit takes 4 PIO cycles: data out with SCK low, sample with SCK high.
//
//	.side_set 1
//	out pins, 1  side 0 [1]
//	in  pins, 1  side 1 [1]
//
// Autopull and autopush at 8 bits make every FIFO word one byte, MSB first.
func buildSPIProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 1}
	return []uint16{
		// .wrap_target
		asm.Out(rp2pio.OutDestPins, 1).Side(0).Delay(1).Encode(), // 0: out pins, 1 side 0 [1]
		asm.In(rp2pio.InSrcPins, 1).Side(1).Delay(1).Encode(),    // 1: in pins, 1 side 1 [1]
		// .wrap
	}
}

const (
	spiCyclesPerBit = 4
	spiFIFODepth    = 4
)

var (
	ErrNoStateMachine = errors.New("no free PIO state machine")
	errSPIMode        = errors.New("PIO SPI supports mode 0 only")
)

// SPI is a mode 0 SPI master running on one PIO state machine. The
// RXNEMPTY and TXNFULL interrupt sources are exact, so watermarks round to
// "any byte" and "any space".
type SPI struct {
	pio    *rp2pio.PIO
	regs   *rp.PIO0_Type
	sm     rp2pio.StateMachine
	pioNum uint8
	smNum  uint8
	offset uint8

	sck, sdo, sdi machine.Pin
	cs            []machine.Pin
	activeCS      machine.Pin
}

var _ core.SPIPeripheral = (*SPI)(nil)

// NewSPI claims a state machine and loads the program. The caller routes
// PIO<n>_IRQ_0 to core.OnSPIInterrupt; both sources are level triggered so
// enabling one that is already true raises the IRQ at once.
func NewSPI(sck, sdo, sdi machine.Pin, cs ...machine.Pin) (*SPI, error) {
	pioNum, smNum, ok := allocatePIO()
	if !ok {
		return nil, ErrNoStateMachine
	}

	s := &SPI{
		pioNum:   pioNum,
		smNum:    smNum,
		sck:      sck,
		sdo:      sdo,
		sdi:      sdi,
		cs:       cs,
		activeCS: machine.NoPin,
	}
	if pioNum == 0 {
		s.pio, s.regs = rp2pio.PIO0, rp.PIO0
	} else {
		s.pio, s.regs = rp2pio.PIO1, rp.PIO1
	}
	s.sm = s.pio.StateMachine(smNum)
	s.sm.TryClaim()

	offset, err := s.pio.AddProgram(buildSPIProgram(), -1)
	if err != nil {
		releasePIO(pioNum, smNum)
		return nil, err
	}
	s.offset = offset

	for _, pin := range cs {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.High()
	}
	if len(cs) > 0 {
		s.activeCS = cs[0]
	}
	return s, nil
}

// IRQMask returns the INTE bits this state machine uses, for the shared
// PIO IRQ handler to test which controller raised it.
func (s *SPI) IRQMask() uint32 {
	return 1<<s.smNum | 1<<(4+s.smNum)
}

func (s *SPI) FIFODepth() int {
	return spiFIFODepth
}

// Configure restarts the state machine at the requested rate
func (s *SPI) Configure(cfg core.SPIConfig) error {
	if cfg.Mode != 0 || cfg.LSBFirst {
		return errSPIMode
	}
	if int(cfg.CSIndex) >= len(s.cs) {
		return core.ErrNotConfigured
	}
	if cfg.Rate == 0 {
		return core.ErrNotConfigured
	}
	s.activeCS = s.cs[cfg.CSIndex]

	s.sm.SetEnabled(false)

	s.sck.Configure(machine.PinConfig{Mode: s.pio.PinMode()})
	s.sdo.Configure(machine.PinConfig{Mode: s.pio.PinMode()})
	s.sdi.Configure(machine.PinConfig{Mode: s.pio.PinMode()})

	prog := buildSPIProgram()
	smCfg := rp2pio.DefaultStateMachineConfig()
	smCfg.SetSidesetParams(1, false, false)
	smCfg.SetSidesetPins(s.sck)
	smCfg.SetOutPins(s.sdo, 1)
	smCfg.SetInPins(s.sdi, 1)
	smCfg.SetOutShift(false, true, 8)
	smCfg.SetInShift(false, true, 8)
	smCfg.SetWrap(s.offset+uint8(len(prog))-1, s.offset)

	// Integer divider rounded up so SCK never exceeds the requested rate
	div := mathx.Clamp(mathx.CeilDiv(machine.CPUFrequency(), spiCyclesPerBit*cfg.Rate), 1, 0xFFFF)
	smCfg.SetClkDivIntFrac(uint16(div), 0)

	s.sm.Init(s.offset, smCfg)
	s.sm.SetPindirsConsecutive(s.sck, 1, true)
	s.sm.SetPindirsConsecutive(s.sdo, 1, true)
	s.sm.SetPindirsConsecutive(s.sdi, 1, false)
	s.sm.SetPinsConsecutive(s.sck, 1, false)

	s.regs.IRQ0_INTE.ClearBits(s.IRQMask())
	s.sm.SetEnabled(true)
	return nil
}

func (s *SPI) SetChipSelectHold(hold bool) {
	if s.activeCS == machine.NoPin {
		return
	}
	s.activeCS.Set(!hold)
}

func (s *SPI) TryReadByte() (byte, error) {
	if s.sm.IsRxFIFOEmpty() {
		return 0, core.ErrWouldBlock
	}
	return byte(s.sm.RxGet()), nil
}

func (s *SPI) TryWriteByte(b byte) error {
	if s.sm.IsTxFIFOFull() {
		return core.ErrWouldBlock
	}
	s.sm.TxPut(uint32(b) << 24)
	return nil
}

// SetWatermark has nothing to program: the PIO sources are fixed
func (s *SPI) SetWatermark(core.Direction, uint8) {}

func (s *SPI) irqBit(dir core.Direction) uint32 {
	if dir == core.DirRx {
		return 1 << s.smNum // SMn_RXNEMPTY
	}
	return 1 << (4 + s.smNum) // SMn_TXNFULL
}

func (s *SPI) EnableInterrupt(dir core.Direction) {
	s.regs.IRQ0_INTE.SetBits(s.irqBit(dir))
}

func (s *SPI) DisableInterrupt(dir core.Direction) {
	s.regs.IRQ0_INTE.ClearBits(s.irqBit(dir))
}

func (s *SPI) IsInterruptEnabled(dir core.Direction) bool {
	return s.regs.IRQ0_INTE.HasBits(s.irqBit(dir))
}

func (s *SPI) IsInterruptPending(dir core.Direction) bool {
	if dir == core.DirRx {
		return !s.sm.IsRxFIFOEmpty()
	}
	return !s.sm.IsTxFIFOFull()
}

// Close stops the state machine and frees it for reuse
func (s *SPI) Close() {
	s.regs.IRQ0_INTE.ClearBits(s.IRQMask())
	s.sm.SetEnabled(false)
	s.sm.ClearFIFOs()
	s.sm.Unclaim()
	releasePIO(s.pioNum, s.smNum)
}
