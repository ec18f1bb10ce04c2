package serial

import (
	"io"
)

// Port is the host end of a Bridge: a tarm/serial device or a test pipe
type Port interface {
	io.ReadWriteCloser

	// Flush discards data received but not yet read
	Flush() error
}

// Config describes the host device a sim UART is bridged to
type Config struct {
	Device string // e.g. "/dev/ttyUSB0" or "COM3"
	Baud   int

	// Framing as data bits, parity and stop bits, e.g. "8N1" or "7E2"
	Format string

	// ReadTimeout in milliseconds; 0 blocks, which stops a Bridge from
	// observing cancellation
	ReadTimeout int
}

// DefaultConfig returns the configuration used by the simulator bridge
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		Format:      "8N1",
		ReadTimeout: 100, // lets the bridge notice cancellation
	}
}
