package core

// SPIMode represents SPI clock polarity and phase (0-3)
// Mode 0: CPOL=0, CPHA=0 (clock idle low, sample on rising edge)
// Mode 1: CPOL=0, CPHA=1 (clock idle low, sample on falling edge)
// Mode 2: CPOL=1, CPHA=0 (clock idle high, sample on falling edge)
// Mode 3: CPOL=1, CPHA=1 (clock idle high, sample on rising edge)
type SPIMode uint8

// SPIConfig holds the per-device configuration applied to a bus
type SPIConfig struct {
	Mode     SPIMode // SPI mode (0-3)
	Rate     uint32  // Clock rate in Hz
	LSBFirst bool
	CSIndex  uint8 // Hardware chip-select line
}

// SPIPeripheral is everything the async SPI engine needs from a controller
// with matched transmit and receive FIFOs.
type SPIPeripheral interface {
	ByteReader
	ByteWriter
	InterruptControl

	// FIFODepth is the number of entries of each FIFO
	FIFODepth() int

	// SetChipSelectHold keeps chip-select asserted across bytes while hold is
	// set and releases it when cleared
	SetChipSelectHold(hold bool)

	// Configure applies cfg. It is only called between frames.
	Configure(cfg SPIConfig) error
}
