package core

import "errors"

var (
	// ErrWouldBlock is reported by the non-blocking peripheral primitives when the
	// FIFO is empty (read) or full (write). It never escapes the async engines.
	ErrWouldBlock = errors.New("would_block")

	// ErrTimerQueueFull matches *TimerQueueFullError via errors.Is.
	ErrTimerQueueFull = errors.New("timer_queue_full")

	ErrArbitrationLoss   = errors.New("i2c_arbitration_loss")
	ErrNoAcknowledge     = errors.New("i2c_no_acknowledge")
	ErrUnknownPeripheral = errors.New("unknown_peripheral")
	ErrNotConfigured     = errors.New("not_configured")
)

// TimerQueueFullError carries the timer that could not be queued back to the
// caller, unconsumed.
type TimerQueueFullError struct {
	Rejected Timer
}

func (e *TimerQueueFullError) Error() string {
	return ErrTimerQueueFull.Error() + ": expires=" + u64toa(e.Rejected.Expires)
}

func (e *TimerQueueFullError) Is(target error) bool { return target == ErrTimerQueueFull }

// NoAckSource tells which phase of an I2C transfer was not acknowledged.
type NoAckSource uint8

const (
	NoAckUnknown NoAckSource = iota
	NoAckAddress
	NoAckData
)

func (s NoAckSource) String() string {
	switch s {
	case NoAckAddress:
		return "address"
	case NoAckData:
		return "data"
	default:
		return "unknown"
	}
}

// NoAcknowledgeError is returned when the target did not ACK. A stop condition
// has already been issued when the caller sees it.
type NoAcknowledgeError struct {
	Source NoAckSource
}

func (e *NoAcknowledgeError) Error() string {
	return ErrNoAcknowledge.Error() + " (" + e.Source.String() + ")"
}

func (e *NoAcknowledgeError) Is(target error) bool { return target == ErrNoAcknowledge }
