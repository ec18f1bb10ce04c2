package config

import (
	"encoding/json"
	"fmt"
	"os"

	"asynchal/core"
	"asynchal/host/sim"
)

// BoardConfig describes a simulated board
type BoardConfig struct {
	TickFrequency  uint32     `json:"tick_frequency"`
	TimerQueueSize int        `json:"timer_queue_size"`
	UART           UARTConfig `json:"uart"`
	SPI            SPIConfig  `json:"spi"`
	I2C            I2CConfig  `json:"i2c"`
}

// UARTConfig configures UART 0. With Device set the UART is bridged to that
// serial port instead of looping back.
type UARTConfig struct {
	FIFODepth  int    `json:"fifo_depth"`
	ByteTimeUS int    `json:"byte_time_us"`
	Device     string `json:"device,omitempty"`
	Baud       int    `json:"baud,omitempty"`
	Format     string `json:"format,omitempty"`
}

// SPIConfig configures SPI 0 and the device used by the console
type SPIConfig struct {
	FIFODepth  int    `json:"fifo_depth"`
	ByteTimeUS int    `json:"byte_time_us"`
	Mode       uint8  `json:"mode"`
	Rate       uint32 `json:"rate"`
}

// I2CConfig lists the targets attached to I2C 0
type I2CConfig struct {
	Devices []I2CDeviceConfig `json:"devices"`
}

// I2CDeviceConfig attaches one target. Kind is "regmap" or "shtc3".
type I2CDeviceConfig struct {
	Address   uint8          `json:"address"`
	Kind      string         `json:"kind"`
	Registers map[uint8]byte `json:"registers,omitempty"`
}

// LoadConfig parses a JSON configuration and fills in defaults
func LoadConfig(jsonData []byte) (*BoardConfig, error) {
	var config BoardConfig

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	if err := applyDefaults(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFile reads and parses the configuration at path
func LoadFile(path string) (*BoardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	config, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return config, nil
}

// applyDefaults fills in missing values and rejects impossible ones
func applyDefaults(config *BoardConfig) error {
	if config.TickFrequency == 0 {
		config.TickFrequency = 1000000 // 1 MHz
	}
	if config.TimerQueueSize == 0 {
		config.TimerQueueSize = core.DefaultTimerQueueSize
	}

	if config.UART.FIFODepth == 0 {
		config.UART.FIFODepth = sim.DefaultFIFODepth
	}
	if config.UART.ByteTimeUS == 0 {
		config.UART.ByteTimeUS = 87 // 115200 baud, 10 bits per byte
	}
	if config.UART.Baud == 0 {
		config.UART.Baud = 115200
	}
	if config.UART.Format == "" {
		config.UART.Format = "8N1"
	}

	if config.SPI.FIFODepth == 0 {
		config.SPI.FIFODepth = sim.DefaultFIFODepth
	}
	if config.SPI.ByteTimeUS == 0 {
		config.SPI.ByteTimeUS = 2
	}
	if config.SPI.Rate == 0 {
		config.SPI.Rate = 4000000
	}
	if config.SPI.Mode > 3 {
		return fmt.Errorf("spi mode %d out of range", config.SPI.Mode)
	}

	for i, dev := range config.I2C.Devices {
		if dev.Kind == "" {
			dev.Kind = "regmap"
		}
		if dev.Kind != "regmap" && dev.Kind != "shtc3" {
			return fmt.Errorf("i2c device %d: unknown kind %q", i, dev.Kind)
		}
		if dev.Address > 0x7f {
			return fmt.Errorf("i2c device %d: address 0x%x is not 7-bit", i, dev.Address)
		}
		config.I2C.Devices[i] = dev
	}
	return nil
}

// DefaultBoardConfig returns a board with a register-map target at 0x48 and
// an SHTC3 sensor
func DefaultBoardConfig() *BoardConfig {
	config := &BoardConfig{
		I2C: I2CConfig{
			Devices: []I2CDeviceConfig{
				{Address: 0x48, Kind: "regmap", Registers: map[uint8]byte{0x00: 0x5a}},
				{Address: sim.SHTC3Address, Kind: "shtc3"},
			},
		},
	}
	applyDefaults(config)
	return config
}

// SimOptions returns the sizing of the simulated peripherals
func (c *BoardConfig) SimOptions() sim.Options {
	return sim.Options{
		TickFrequency:  c.TickFrequency,
		TimerQueueSize: c.TimerQueueSize,
		UARTFIFODepth:  c.UART.FIFODepth,
		SPIFIFODepth:   c.SPI.FIFODepth,
	}
}

// SPIDeviceConfig returns the core configuration of the console's SPI device
func (c *BoardConfig) SPIDeviceConfig() core.SPIConfig {
	return core.SPIConfig{Mode: core.SPIMode(c.SPI.Mode), Rate: c.SPI.Rate}
}

// Attach places the configured targets on the simulated bus
func (c *BoardConfig) Attach(bus *sim.I2C) {
	for _, dev := range c.I2C.Devices {
		switch dev.Kind {
		case "shtc3":
			bus.Attach(dev.Address, sim.NewSHTC3())
		default:
			regs := sim.NewRegisterMap()
			for reg, v := range dev.Registers {
				regs.Set(reg, v)
			}
			bus.Attach(dev.Address, regs)
		}
	}
}
