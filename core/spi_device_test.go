package core_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"asynchal/core"
)

type recordingDelay struct {
	mu    sync.Mutex
	calls []uint32
}

func (d *recordingDelay) DelayNs(ctx context.Context, ns uint32) error {
	d.mu.Lock()
	d.calls = append(d.calls, ns)
	d.mu.Unlock()
	return ctx.Err()
}

func TestExclusiveDeviceTransaction(t *testing.T) {
	periph, bus := newSPI(t, 8)
	periph.SetAutoClock(true)

	cfg := core.SPIConfig{Mode: 3, Rate: 4000000, CSIndex: 1}
	delay := &recordingDelay{}
	dev, err := core.NewExclusiveDevice(bus, cfg, delay)
	if err != nil {
		t.Fatalf("NewExclusiveDevice failed: %v", err)
	}
	if periph.Config() != cfg {
		t.Errorf("Expected config %+v, got %+v", cfg, periph.Config())
	}

	rx := make([]byte, 2)
	inPlace := []byte{7, 8}
	err = dev.Transaction(context.Background(),
		core.SPIWrite([]byte{0x80}),
		core.SPIDelayNs(500),
		core.SPITransfer(rx, []byte{1, 2}),
		core.SPITransferInPlace(inPlace),
		core.SPIRead(make([]byte, 3)),
	)
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
	if !bytes.Equal(rx, []byte{1, 2}) || !bytes.Equal(inPlace, []byte{7, 8}) {
		t.Errorf("Unexpected data rx=%x inPlace=%x", rx, inPlace)
	}
	if len(delay.calls) != 1 || delay.calls[0] != 500 {
		t.Errorf("Expected one 500ns delay, got %v", delay.calls)
	}

	frames, clocked, _, _ := periph.Stats()
	if frames != 1 {
		t.Errorf("Expected one chip-select frame, got %d", frames)
	}
	if clocked != 8 {
		t.Errorf("Expected 8 bytes clocked, got %d", clocked)
	}
	if periph.ChipSelectHeld() {
		t.Error("Chip-select still asserted after the transaction")
	}
}

func TestExclusiveDeviceReleasesOnError(t *testing.T) {
	periph, bus := newSPI(t, 8)
	periph.SetAutoClock(true)
	errBus := errors.New("mode fault")
	periph.FailAfter(2, errBus)

	dev, err := core.NewExclusiveDevice(bus, core.SPIConfig{}, nil)
	if err != nil {
		t.Fatalf("NewExclusiveDevice failed: %v", err)
	}

	err = dev.Transaction(context.Background(),
		core.SPIWrite([]byte{1, 2, 3, 4}),
		core.SPIWrite([]byte{5, 6}),
	)
	if !errors.Is(err, errBus) {
		t.Errorf("Expected mode fault, got %v", err)
	}
	if periph.ChipSelectHeld() {
		t.Error("Chip-select left asserted on the error path")
	}
	if _, clocked, _, _ := periph.Stats(); clocked > 4 {
		t.Errorf("Operations continued after the error: %d bytes clocked", clocked)
	}
}

func TestExclusiveDeviceDelayWithoutProvider(t *testing.T) {
	periph, bus := newSPI(t, 8)
	periph.SetAutoClock(true)

	dev, _ := core.NewExclusiveDevice(bus, core.SPIConfig{}, nil)
	err := dev.Transaction(context.Background(), core.SPIDelayNs(10))
	if !errors.Is(err, core.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	if periph.ChipSelectHeld() {
		t.Error("Chip-select left asserted")
	}
}

func TestSharedBusDevices(t *testing.T) {
	periph, bus := newSPI(t, 8)
	periph.SetAutoClock(true)
	shared := core.NewSharedBus(bus)

	cfgA := core.SPIConfig{Mode: 0, Rate: 1000000, CSIndex: 0}
	cfgB := core.SPIConfig{Mode: 3, Rate: 8000000, CSIndex: 1}
	devA := shared.NewDevice(cfgA, nil)
	devB := shared.NewDevice(cfgB, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			in := make([]byte, 16)
			out := bytes.Repeat([]byte{0xAA}, 16)
			if err := devA.Transaction(context.Background(), core.SPITransfer(in, out)); err != nil {
				errs <- err
			} else if !bytes.Equal(in, out) {
				errs <- errors.New("device A data mismatch")
			}
		}()
		go func() {
			defer wg.Done()
			in := make([]byte, 16)
			out := bytes.Repeat([]byte{0x55}, 16)
			if err := devB.Transaction(context.Background(), core.SPITransfer(in, out)); err != nil {
				errs <- err
			} else if !bytes.Equal(in, out) {
				errs <- errors.New("device B data mismatch")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if frames, _, _, _ := periph.Stats(); frames != 20 {
		t.Errorf("Expected 20 frames, got %d", frames)
	}
}

func TestSharedBusLockHonoursContext(t *testing.T) {
	_, bus := newSPI(t, 8)
	shared := core.NewSharedBus(bus)
	dev := shared.NewDevice(core.SPIConfig{}, nil)

	if err := shared.Lock(context.Background()); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer shared.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := dev.Transaction(ctx, core.SPIWrite([]byte{1}))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded while the bus is held, got %v", err)
	}
}

func TestSharedDeviceReturnsOperationError(t *testing.T) {
	periph, bus := newSPI(t, 8)
	periph.SetAutoClock(true)
	errBus := errors.New("crc error")
	periph.FailAfter(0, errBus)

	dev := core.NewSharedBus(bus).NewDevice(core.SPIConfig{}, nil)
	err := dev.Transaction(context.Background(), core.SPIRead(make([]byte, 4)))
	if !errors.Is(err, errBus) {
		t.Errorf("Expected crc error from the shared device, got %v", err)
	}
}

func TestDeviceDriversAdaptor(t *testing.T) {
	periph, bus := newSPI(t, 8)
	periph.SetAutoClock(true)
	periph.SetTarget(func(b byte) byte { return b + 1 })

	dev, _ := core.NewExclusiveDevice(bus, core.SPIConfig{}, nil)
	spi := dev.Bus(context.Background())

	r := make([]byte, 3)
	if err := spi.Tx([]byte{1, 2, 3}, r); err != nil {
		t.Fatalf("Tx failed: %v", err)
	}
	if !bytes.Equal(r, []byte{2, 3, 4}) {
		t.Errorf("Expected 02 03 04, got %x", r)
	}

	got, err := spi.Transfer(0x41)
	if err != nil || got != 0x42 {
		t.Errorf("Expected 0x42, got %x (%v)", got, err)
	}

	if err := spi.Tx([]byte{9}, nil); err != nil {
		t.Errorf("Write-only Tx failed: %v", err)
	}
}
