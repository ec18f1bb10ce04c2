package core_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"asynchal/core"
	"asynchal/host/sim"
)

func newSerial(t *testing.T) (*sim.UART, *core.Serial) {
	t.Helper()
	uart := sim.NewUART(8)
	uart.SetHandler(func() { core.OnUARTInterrupt(0) })
	s, err := core.NewSerial(0, uart)
	if err != nil {
		t.Fatalf("NewSerial failed: %v", err)
	}
	return uart, s
}

type result struct {
	n   int
	err error
}

func TestSerialWriteSuspendsOnFirstByteOnly(t *testing.T) {
	uart, s := newSerial(t)

	// Fill the TX FIFO so the first byte has to wait
	for i := 0; i < 8; i++ {
		if err := uart.TryWriteByte('x'); err != nil {
			t.Fatalf("Prefill failed: %v", err)
		}
	}

	done := make(chan result, 1)
	go func() {
		n, err := s.Write(context.Background(), []byte("hello"))
		done <- result{n, err}
	}()

	select {
	case <-done:
		t.Fatal("Write completed with a full FIFO")
	case <-time.After(10 * time.Millisecond):
	}
	if !uart.IsInterruptEnabled(core.DirTx) {
		t.Fatal("Expected TX interrupt armed while waiting")
	}

	raisedBefore := uart.Raised()
	uart.Shift(8)

	select {
	case r := <-done:
		if r.err != nil || r.n != 5 {
			t.Errorf("Expected 5 bytes written, got %d (%v)", r.n, r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("Write did not resume after the FIFO drained")
	}

	if got := uart.Raised() - raisedBefore; got != 1 {
		t.Errorf("Expected exactly one interrupt, got %d", got)
	}
	if uart.IsInterruptEnabled(core.DirTx) {
		t.Error("TX interrupt left enabled after the wakeup")
	}
	if got := uart.Shift(8); string(got) != "hello" {
		t.Errorf("Expected 'hello' in FIFO, got %q", got)
	}
}

func TestSerialPartialWrite(t *testing.T) {
	uart, s := newSerial(t)
	for i := 0; i < 6; i++ {
		uart.TryWriteByte(0)
	}

	n, err := s.Write(context.Background(), []byte{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected a short write of 2, got %d", n)
	}
}

func TestSerialRead(t *testing.T) {
	uart, s := newSerial(t)

	if n, err := s.Read(context.Background(), nil); n != 0 || err != nil {
		t.Errorf("Expected empty read to return 0, nil; got %d, %v", n, err)
	}

	done := make(chan result, 1)
	buf := make([]byte, 10)
	go func() {
		n, err := s.Read(context.Background(), buf)
		done <- result{n, err}
	}()

	select {
	case <-done:
		t.Fatal("Read completed with an empty FIFO")
	case <-time.After(10 * time.Millisecond):
	}

	uart.Inject([]byte("abc"))

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Read failed: %v", r.err)
		}
		if string(buf[:r.n]) != "abc" {
			t.Errorf("Expected 'abc', got %q", buf[:r.n])
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not resume")
	}

	if uart.IsInterruptEnabled(core.DirRx) {
		t.Error("RX interrupt left enabled after the wakeup")
	}
}

func TestSerialReadError(t *testing.T) {
	uart, s := newSerial(t)
	errFraming := errors.New("framing error")
	uart.FailWith(errFraming)

	_, err := s.Read(context.Background(), make([]byte, 4))
	if !errors.Is(err, errFraming) {
		t.Errorf("Expected framing error, got %v", err)
	}
}

func TestSerialCancelledReadLeavesStaleWaker(t *testing.T) {
	uart, s := newSerial(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan result, 1)
	go func() {
		n, err := s.Read(ctx, make([]byte, 4))
		done <- result{n, err}
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	r := <-done
	if !errors.Is(r.err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", r.err)
	}

	// The interrupt fires into the abandoned waker without effect
	uart.Inject([]byte{0x42})

	buf := make([]byte, 4)
	n, err := s.Read(context.Background(), buf)
	if err != nil || n != 1 || buf[0] != 0x42 {
		t.Errorf("Expected to read 0x42 after cancellation, got %d %v %x", n, err, buf[:n])
	}
}

func TestSerialFlush(t *testing.T) {
	uart, s := newSerial(t)
	s.Write(context.Background(), []byte("abc"))

	done := make(chan error, 1)
	go func() { done <- s.Flush(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Flush returned with bytes still queued")
	case <-time.After(10 * time.Millisecond):
	}

	uart.Shift(3)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Flush failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Flush did not return once the FIFO drained")
	}
}

func TestSerialSplitEcho(t *testing.T) {
	uart, s := newSerial(t)
	rx, tx := s.Split()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go uart.Run(ctx, 20*time.Microsecond, nil) // loopback

	msg := bytes.Repeat([]byte("0123456789"), 5)
	errc := make(chan error, 1)
	go func() {
		_, err := tx.Writer(ctx).Write(msg)
		errc <- err
	}()

	got := make([]byte, len(msg))
	if _, err := io.ReadFull(rx.Reader(ctx), got); err != nil {
		t.Fatalf("ReadFull failed: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("Echo mismatch: expected %q, got %q", msg, got)
	}
}

func TestSerialUnknownID(t *testing.T) {
	if _, err := core.NewSerial(core.MaxUARTs, sim.NewUART(8)); !errors.Is(err, core.ErrUnknownPeripheral) {
		t.Errorf("Expected ErrUnknownPeripheral, got %v", err)
	}
}

func TestSharedTxWakesEveryWriter(t *testing.T) {
	uart, s := newSerial(t)
	for i := 0; i < 8; i++ {
		uart.TryWriteByte('x')
	}

	_, tx := s.Split()
	shared := core.NewSharedTx(tx)

	done := make(chan result, 2)
	for _, msg := range []string{"ab", "cd"} {
		msg := msg
		go func() {
			n, err := shared.Write(context.Background(), []byte(msg))
			done <- result{n, err}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	uart.Shift(8)

	for i := 0; i < 2; i++ {
		select {
		case r := <-done:
			if r.err != nil || r.n != 2 {
				t.Errorf("Expected 2 bytes written, got %d (%v)", r.n, r.err)
			}
		case <-time.After(time.Second):
			t.Fatalf("Writer %d never woke", i+1)
		}
	}

	got := string(uart.Shift(8))
	if got != "abcd" && got != "cdab" {
		t.Errorf("Expected both lines unbroken, got %q", got)
	}
}

func TestSharedTxCancelWhileLocked(t *testing.T) {
	uart, s := newSerial(t)
	for i := 0; i < 8; i++ {
		uart.TryWriteByte('x')
	}
	_, tx := s.Split()
	shared := core.NewSharedTx(tx)

	holder, cancelHolder := context.WithCancel(context.Background())
	defer cancelHolder()
	go shared.Write(holder, []byte("a"))
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := shared.Write(ctx, []byte("b")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
