package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"asynchal/host/config"
	"asynchal/host/sim"
)

func newConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()

	cfg := config.DefaultBoardConfig()
	board, err := sim.NewBoard(cfg.SimOptions())
	if err != nil {
		t.Fatalf("Failed to build board: %v", err)
	}
	cfg.Attach(board.I2C)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	board.Run(ctx, 5*time.Microsecond)
	go board.UART.Run(ctx, 20*time.Microsecond, nil)

	var out bytes.Buffer
	c, err := NewConsole(board, cfg, &out)
	if err != nil {
		t.Fatalf("Failed to create console: %v", err)
	}
	return c, &out
}

func run(t *testing.T, c *Console, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	if _, err := c.Exec(context.Background(), line); err != nil {
		t.Fatalf("%q failed: %v", line, err)
	}
	return out.String()
}

func TestConsoleI2C(t *testing.T) {
	c, out := newConsole(t)

	if got := run(t, c, out, "i2c read 0x48 0x00 1"); !strings.Contains(got, ": 5a") {
		t.Errorf("Expected register 0 to read 5a, got %q", got)
	}

	run(t, c, out, "i2c write 0x48 0x01 0x33 0x44")
	if got := run(t, c, out, "i2c read 0x48 0x01 2"); !strings.Contains(got, ": 3344") {
		t.Errorf("Expected registers 1-2 to read 3344, got %q", got)
	}

	got := run(t, c, out, "i2c read 0x48 0x00 1000")
	if hexLen := len(strings.TrimSpace(got[strings.Index(got, ": ")+2:])); hexLen != 2*maxReadLen {
		t.Errorf("Expected read capped at %d registers, got %d hex digits", maxReadLen, hexLen)
	}

	if _, err := c.Exec(context.Background(), "i2c read 0x21 0x00 1"); err == nil {
		t.Error("Expected error reading an absent target")
	}
}

func TestConsoleSPILoopback(t *testing.T) {
	c, out := newConsole(t)

	if got := run(t, c, out, "spi xfer de ad beef"); got != "rx: deadbeef\n" {
		t.Errorf("Expected looped back deadbeef, got %q", got)
	}
}

func TestConsoleUARTLoopback(t *testing.T) {
	c, out := newConsole(t)

	if got := run(t, c, out, `uart write "a b"`); got != "wrote 3 bytes\n" {
		t.Errorf("Expected quoted text as one argument, got %q", got)
	}
	if got := run(t, c, out, "uart read 1"); got != "read 1 bytes: \"a\"\n" {
		t.Errorf("Expected first looped back byte, got %q", got)
	}
}

func TestConsoleDelayAndTimers(t *testing.T) {
	c, out := newConsole(t)

	if got := run(t, c, out, "delay 2"); !strings.HasPrefix(got, "slept ") {
		t.Errorf("Expected delay report, got %q", got)
	}
	if got := run(t, c, out, "timers"); !strings.Contains(got, "pending=0/16") {
		t.Errorf("Expected empty queue after delay, got %q", got)
	}
}

func TestConsoleSHTC3(t *testing.T) {
	c, out := newConsole(t)

	got := run(t, c, out, "shtc3")
	if !strings.HasPrefix(got, "temperature ") || !strings.Contains(got, "humidity") {
		t.Errorf("Expected a measurement, got %q", got)
	}
}

func TestConsoleErrors(t *testing.T) {
	c, _ := newConsole(t)
	ctx := context.Background()

	for _, line := range []string{"bogus", "delay", "delay x", "spi xfer zz", "i2c read 0x48", "uart", `uart write "open`} {
		if _, err := c.Exec(ctx, line); err == nil {
			t.Errorf("Expected error for %q", line)
		}
	}

	quit, err := c.Exec(ctx, "quit")
	if err != nil || !quit {
		t.Errorf("Expected quit, got quit=%v err=%v", quit, err)
	}
	quit, err = c.Exec(ctx, "   ")
	if err != nil || quit {
		t.Errorf("Expected blank line to be ignored, got quit=%v err=%v", quit, err)
	}
}
