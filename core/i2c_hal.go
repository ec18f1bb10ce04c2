package core

// I2CAddress is a 7-bit I2C device address.
type I2CAddress uint8

// I2CController is the byte-level engine of an OpenCores-style I2C master.
// Each Trigger call starts one byte transfer that completes with an
// interrupt; AckInterrupt reports whether it has.
type I2CController interface {
	// IsIdle reports that no transfer is in progress on the bus
	IsIdle() bool
	// Reset prepares the engine for a new transaction
	Reset()
	// SetStop issues a stop condition
	SetStop()

	WriteTXR(b byte)
	ReadRXR() byte

	// TriggerWrite sends the TXR byte, optionally preceded by a (repeated)
	// start and followed by a stop
	TriggerWrite(start, stop bool)
	// TriggerRead clocks in one byte, answering NACK when nack is set
	TriggerRead(nack, stop bool)

	// AckInterrupt acknowledges a completed byte transfer. It returns
	// ErrWouldBlock while the transfer is in progress and ErrArbitrationLoss,
	// after issuing a stop, when the bus was lost.
	AckInterrupt() error
	// RxNack reports that the target did not acknowledge the last byte written
	RxNack() bool

	EnableInterrupt()
	DisableInterrupt()
	ClearInterrupt()
}
