package sim

import "sync"

// RegisterMap is a target with 256 byte registers. The first byte written in
// a transaction selects the register; further writes and reads auto-increment.
type RegisterMap struct {
	mu      sync.Mutex
	regs    [256]byte
	ptr     uint8
	havePtr bool
	// NackData makes the target refuse data bytes after the pointer
	NackData bool
}

var _ I2CTarget = (*RegisterMap)(nil)

func NewRegisterMap() *RegisterMap { return &RegisterMap{} }

// Set stores data starting at reg
func (m *RegisterMap) Set(reg uint8, data ...byte) {
	m.mu.Lock()
	for i, b := range data {
		m.regs[reg+uint8(i)] = b
	}
	m.mu.Unlock()
}

// Get returns n registers starting at reg
func (m *RegisterMap) Get(reg uint8, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = m.regs[reg+uint8(i)]
	}
	return out
}

func (m *RegisterMap) Start(read bool) bool {
	m.mu.Lock()
	if !read {
		m.havePtr = false
	}
	m.mu.Unlock()
	return true
}

func (m *RegisterMap) WriteByte(b byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.havePtr {
		m.ptr = b
		m.havePtr = true
		return true
	}
	if m.NackData {
		return false
	}
	m.regs[m.ptr] = b
	m.ptr++
	return true
}

func (m *RegisterMap) ReadByte() byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.regs[m.ptr]
	m.ptr++
	return b
}

func (m *RegisterMap) Stop() {}

// SHTC3 commands
const (
	SHTC3Address = 0x70

	shtc3CmdWakeUp = 0x3517
	shtc3CmdSleep  = 0xB098
	shtc3CmdReadID = 0xEFC8
	shtc3ID        = 0x0807
)

// SHTC3 emulates the Sensirion humidity sensor closely enough for the stock
// TinyGo driver: wake, measure in any mode, read ID, sleep.
type SHTC3 struct {
	mu       sync.Mutex
	awake    bool
	cmd      uint16
	cmdLen   int
	out      []byte
	rawTemp  uint16
	rawHumid uint16
}

var _ I2CTarget = (*SHTC3)(nil)

// NewSHTC3 returns a sleeping sensor reporting 25 C and 50 %RH
func NewSHTC3() *SHTC3 {
	s := &SHTC3{}
	s.SetReading(25000, 5000)
	return s
}

// SetReading sets the next measurement in milli-celsius and %RH x100
func (s *SHTC3) SetReading(milliC int32, rhx100 int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// T = -45 + 175 * raw / 65536, RH = 100 * raw / 65536
	s.rawTemp = uint16((int64(milliC) + 45000) * 65536 / 175000)
	s.rawHumid = uint16(int64(rhx100) * 65536 / 10000)
}

// Awake reports whether the sensor has been woken
func (s *SHTC3) Awake() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awake
}

func (s *SHTC3) Start(read bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !read {
		s.cmd, s.cmdLen = 0, 0
		return true
	}
	return s.awake && len(s.out) > 0
}

func (s *SHTC3) WriteByte(b byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmdLen >= 2 {
		return false
	}
	s.cmd = s.cmd<<8 | uint16(b)
	s.cmdLen++
	if s.cmdLen == 2 {
		s.execLocked()
	}
	return true
}

func (s *SHTC3) ReadByte() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.out) == 0 {
		return 0xff
	}
	b := s.out[0]
	s.out = s.out[1:]
	return b
}

func (s *SHTC3) Stop() {}

func (s *SHTC3) execLocked() {
	switch s.cmd {
	case shtc3CmdWakeUp:
		s.awake = true
	case shtc3CmdSleep:
		s.awake = false
	case shtc3CmdReadID:
		s.out = appendWord(nil, shtc3ID)
	case 0x7866, 0x7CA2, 0x609C, 0x6458: // temperature first
		s.out = appendWord(appendWord(nil, s.rawTemp), s.rawHumid)
	case 0x58E0, 0x5C24, 0x401A, 0x44DE: // humidity first
		s.out = appendWord(appendWord(nil, s.rawHumid), s.rawTemp)
	}
}

// appendWord appends v big-endian followed by its Sensirion CRC
func appendWord(dst []byte, v uint16) []byte {
	hi, lo := byte(v>>8), byte(v)
	return append(dst, hi, lo, sensirionCRC(hi, lo))
}

// sensirionCRC is CRC-8 with polynomial 0x31 and initial value 0xFF
func sensirionCRC(data ...byte) byte {
	crc := byte(0xff)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
