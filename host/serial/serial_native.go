//go:build !wasm

package serial

import (
	"errors"
	"fmt"
	"time"

	"github.com/tarm/serial"
)

var errFormat = errors.New("bad line format")

// NativePort is a host serial device opened through tarm/serial
type NativePort struct {
	*serial.Port
	device string
}

// Open opens cfg.Device with the configured baud, framing and read timeout.
// The timeout makes Read return (0, io.EOF) periodically so a Bridge can
// notice cancellation.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	size, parity, stop, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
		Size:        size,
		Parity:      parity,
		StopBits:    stop,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return &NativePort{Port: port, device: cfg.Device}, nil
}

// String names the device for log lines
func (p *NativePort) String() string {
	return p.device
}

// parseFormat decodes "8N1"-style framing; an empty string means 8N1
func parseFormat(format string) (byte, serial.Parity, serial.StopBits, error) {
	if format == "" {
		format = "8N1"
	}
	if len(format) != 3 || format[0] < '5' || format[0] > '8' {
		return 0, 0, 0, fmt.Errorf("%w: %q", errFormat, format)
	}
	size := format[0] - '0'

	var parity serial.Parity
	switch format[1] {
	case 'N', 'n':
		parity = serial.ParityNone
	case 'E', 'e':
		parity = serial.ParityEven
	case 'O', 'o':
		parity = serial.ParityOdd
	default:
		return 0, 0, 0, fmt.Errorf("%w: parity %q", errFormat, format[1])
	}

	var stop serial.StopBits
	switch format[2] {
	case '1':
		stop = serial.Stop1
	case '2':
		stop = serial.Stop2
	default:
		return 0, 0, 0, fmt.Errorf("%w: stop bits %q", errFormat, format[2])
	}
	return size, parity, stop, nil
}
