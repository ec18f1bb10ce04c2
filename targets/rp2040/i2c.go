//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/shtc3"
)

// The RP2040 I2C block is a DesignWare controller with its own command FIFO,
// not the byte-at-a-time shift register core.I2C drives. Sensors on it use
// machine.I2C directly; it satisfies drivers.I2C the same way core.I2C.Bus
// does.

// configureI2C brings up I2C0 on the default pins (SDA=GP4, SCL=GP5)
func configureI2C(frequencyHz uint32) (*machine.I2C, error) {
	i2c := machine.I2C0
	err := i2c.Configure(machine.I2CConfig{
		Frequency: frequencyHz,
		SDA:       machine.GPIO4,
		SCL:       machine.GPIO5,
	})
	if err != nil {
		return nil, err
	}
	return i2c, nil
}

// readSHTC3 wakes the sensor, takes one measurement and puts it back to sleep
func readSHTC3(dev *shtc3.Device) (tempMilliC int32, rhx100 int32, err error) {
	if err = dev.WakeUp(); err != nil {
		return 0, 0, err
	}
	defer func() { _ = dev.Sleep() }()

	t, rh, err := dev.ReadTemperatureHumidity()
	if err != nil {
		return 0, 0, err
	}
	return int32(t), int32(rh), nil
}
