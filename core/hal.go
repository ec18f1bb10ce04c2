package core

// Direction selects one of the two independent FIFO wait conditions of a
// peripheral: data available to read, or space available to write.
type Direction uint8

const (
	DirRx Direction = iota
	DirTx
)

func (d Direction) String() string {
	if d == DirTx {
		return "tx"
	}
	return "rx"
}

// Watermark levels follow the SiFive FIFO convention:
//
//	rx pending while rx entries > level
//	tx pending while tx entries < level
//
// Platforms with coarser threshold hardware round to the nearest level that
// still fires when the condition is true.
const (
	WatermarkRxAny   uint8 = 0 // at least one byte to read
	WatermarkTxEmpty uint8 = 1 // transmit FIFO fully drained
	MaxWatermark     uint8 = 7
)

// TickSource is the monotonic hardware counter with a single compare register.
// The compare interrupt must call MachineTimer.OnInterrupt.
type TickSource interface {
	ReadTick() uint64
	WriteCompare(tick uint64)
	EnableCompareInterrupt()
	DisableCompareInterrupt()
	TickFrequency() uint32
}

// InterruptControl is the per-peripheral watermark interrupt plumbing.
type InterruptControl interface {
	SetWatermark(dir Direction, level uint8)
	EnableInterrupt(dir Direction)
	DisableInterrupt(dir Direction)
	IsInterruptEnabled(dir Direction) bool
	IsInterruptPending(dir Direction) bool
}

// ByteReader pops one received byte or reports ErrWouldBlock.
type ByteReader interface {
	TryReadByte() (byte, error)
}

// ByteWriter pushes one byte to the transmit FIFO or reports ErrWouldBlock.
type ByteWriter interface {
	TryWriteByte(b byte) error
}

// UARTPeripheral is everything the async serial engine needs from a UART.
type UARTPeripheral interface {
	ByteReader
	ByteWriter
	InterruptControl
}
