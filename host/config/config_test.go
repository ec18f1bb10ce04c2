package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.TickFrequency != 1000000 {
		t.Errorf("Expected default tick frequency 1000000, got %d", cfg.TickFrequency)
	}
	if cfg.TimerQueueSize != 16 {
		t.Errorf("Expected default queue size 16, got %d", cfg.TimerQueueSize)
	}
	if cfg.UART.FIFODepth != 8 || cfg.SPI.FIFODepth != 8 {
		t.Errorf("Expected 8-entry FIFOs, got uart=%d spi=%d", cfg.UART.FIFODepth, cfg.SPI.FIFODepth)
	}
}

func TestLoadConfigValues(t *testing.T) {
	data := []byte(`{
		"tick_frequency": 32768,
		"timer_queue_size": 4,
		"spi": {"fifo_depth": 4, "mode": 3},
		"i2c": {"devices": [
			{"address": 72, "registers": {"0": 90, "1": 165}},
			{"address": 112, "kind": "shtc3"}
		]}
	}`)
	cfg, err := LoadConfig(data)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	opts := cfg.SimOptions()
	if opts.TickFrequency != 32768 || opts.TimerQueueSize != 4 || opts.SPIFIFODepth != 4 {
		t.Errorf("Unexpected sim options %+v", opts)
	}
	if cfg.SPIDeviceConfig().Mode != 3 {
		t.Errorf("Expected SPI mode 3, got %d", cfg.SPIDeviceConfig().Mode)
	}
	if len(cfg.I2C.Devices) != 2 || cfg.I2C.Devices[0].Kind != "regmap" {
		t.Fatalf("Unexpected devices %+v", cfg.I2C.Devices)
	}
	if cfg.I2C.Devices[0].Registers[1] != 165 {
		t.Errorf("Expected register 1 = 165, got %d", cfg.I2C.Devices[0].Registers[1])
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad json", `{`},
		{"spi mode", `{"spi": {"mode": 4}}`},
		{"i2c kind", `{"i2c": {"devices": [{"address": 1, "kind": "eeprom"}]}}`},
		{"i2c address", `{"i2c": {"devices": [{"address": 200}]}}`},
	}
	for _, tt := range tests {
		if _, err := LoadConfig([]byte(tt.data)); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	if err := os.WriteFile(path, []byte(`{"uart": {"device": "/dev/ttyUSB0"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.UART.Device != "/dev/ttyUSB0" || cfg.UART.Baud != 115200 || cfg.UART.Format != "8N1" {
		t.Errorf("Unexpected uart config %+v", cfg.UART)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestDefaultBoardConfig(t *testing.T) {
	cfg := DefaultBoardConfig()
	if len(cfg.I2C.Devices) != 2 {
		t.Errorf("Expected 2 default I2C devices, got %d", len(cfg.I2C.Devices))
	}
	if cfg.TickFrequency == 0 {
		t.Error("Defaults not applied")
	}
}
