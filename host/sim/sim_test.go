package sim

import (
	"testing"

	"asynchal/core"
)

func TestSensirionCRC(t *testing.T) {
	// Example from the SHTC3 datasheet
	if got := sensirionCRC(0xBE, 0xEF); got != 0x92 {
		t.Errorf("Expected CRC 0x92, got 0x%02x", got)
	}
}

func TestSHTC3MeasureNeedsWake(t *testing.T) {
	s := NewSHTC3()

	write := func(cmd uint16) {
		s.Start(false)
		s.WriteByte(byte(cmd >> 8))
		s.WriteByte(byte(cmd))
		s.Stop()
	}

	write(0x7866)
	if s.Start(true) {
		t.Error("Expected read to be refused while asleep")
	}

	write(shtc3CmdWakeUp)
	write(0x7866)
	if !s.Start(true) {
		t.Fatal("Expected measurement to be readable after wake-up")
	}
	var frame [6]byte
	for i := range frame {
		frame[i] = s.ReadByte()
	}
	if sensirionCRC(frame[0], frame[1]) != frame[2] || sensirionCRC(frame[3], frame[4]) != frame[5] {
		t.Errorf("Expected valid CRCs, got % x", frame)
	}

	write(shtc3CmdSleep)
	if s.Awake() {
		t.Error("Expected sensor to sleep")
	}
}

func TestRegisterMapAutoIncrement(t *testing.T) {
	m := NewRegisterMap()
	m.Set(0x10, 0xAA, 0xBB)

	m.Start(false)
	m.WriteByte(0x10)
	m.Start(true)
	if a, b := m.ReadByte(), m.ReadByte(); a != 0xAA || b != 0xBB {
		t.Errorf("Expected aa bb, got %02x %02x", a, b)
	}

	m.Start(false)
	m.WriteByte(0x20)
	m.WriteByte(1)
	m.WriteByte(2)
	if got := m.Get(0x20, 2); got[0] != 1 || got[1] != 2 {
		t.Errorf("Expected 01 02 at 0x20, got % x", got)
	}

	m.NackData = true
	m.Start(false)
	m.WriteByte(0x30)
	if m.WriteByte(9) {
		t.Error("Expected data byte to be NACKed")
	}
}

func TestTickSourceFiresOnUpdateOnly(t *testing.T) {
	ts := NewTickSource(1000000)
	calls := 0
	ts.SetHandler(func() { calls++ })

	ts.Advance(100)
	ts.WriteCompare(50)
	ts.EnableCompareInterrupt()
	if calls != 0 {
		t.Fatalf("Expected no interrupt from enabling a past compare, got %d", calls)
	}

	ts.Advance(1)
	if calls != 1 || ts.Fired() != 1 {
		t.Errorf("Expected one interrupt on the next update, got calls=%d fired=%d", calls, ts.Fired())
	}

	ts.DisableCompareInterrupt()
	ts.AdvanceTo(50) // backwards is ignored
	if ts.ReadTick() != 101 {
		t.Errorf("Expected counter to stay at 101, got %d", ts.ReadTick())
	}
}

func TestFIFOWatermarks(t *testing.T) {
	var f fifoIRQ
	f.setWatermark(core.DirRx, 2)
	f.setWatermark(core.DirTx, 3)

	if f.pending(core.DirRx, 2, 0) || !f.pending(core.DirRx, 3, 0) {
		t.Error("Expected rx pending only above the level")
	}
	if !f.pending(core.DirTx, 0, 2) || f.pending(core.DirTx, 0, 3) {
		t.Error("Expected tx pending only below the level")
	}

	if f.due(3, 0) {
		t.Error("Expected nothing due while disabled")
	}
	f.setEnabled(core.DirRx, true)
	if !f.due(3, 0) {
		t.Error("Expected rx due once enabled")
	}
}
