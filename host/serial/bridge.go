package serial

import (
	"context"
	"errors"
	"io"
	"time"

	"asynchal/host/sim"
)

// Bridge connects a simulated UART to a real serial port: bytes the driver
// transmits go out on the port and bytes read from the port arrive in the
// UART's RX FIFO.
type Bridge struct {
	port     Port
	uart     *sim.UART
	byteTime time.Duration
}

// NewBridge pairs port with uart. byteTime paces both directions.
func NewBridge(port Port, uart *sim.UART, byteTime time.Duration) *Bridge {
	if byteTime <= 0 {
		byteTime = 100 * time.Microsecond
	}
	return &Bridge{port: port, uart: uart, byteTime: byteTime}
}

// Run moves bytes in both directions until ctx is done or the port fails.
// It returns nil on cancellation. A port read blocked without a timeout
// delays the return until the port is closed.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go b.uart.Run(ctx, b.byteTime, func(out []byte) {
		if _, err := b.port.Write(out); err != nil {
			select {
			case errc <- err:
			default:
			}
			cancel()
		}
	})

	buf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := b.port.Read(buf)
		if n > 0 {
			b.deliver(ctx, buf[:n])
		}
		// A read timeout surfaces as io.EOF on native ports
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			time.Sleep(b.byteTime)
			continue
		}
		if err != nil {
			return err
		}
	}

	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

// deliver waits for RX FIFO space, like a sender throttled by flow control
func (b *Bridge) deliver(ctx context.Context, data []byte) {
	for len(data) > 0 && ctx.Err() == nil {
		n := b.uart.Inject(data)
		data = data[n:]
		if len(data) > 0 {
			time.Sleep(b.byteTime)
		}
	}
}
