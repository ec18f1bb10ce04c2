//go:build rp2040

package pio

import "math/bits"

const smPerBlock = 4

// claimed holds one bit per state machine: bits 0-3 are PIO0, 4-7 PIO1
var (
	claimed uint8
	cursor  uint8
)

// allocatePIO claims the next free state machine after the last one handed
// out, so a closed and reopened bus lands on a fresh machine.
func allocatePIO() (pioNum, smNum uint8, ok bool) {
	free := ^claimed
	if free == 0 {
		return 0, 0, false
	}
	// rotate so the search starts at cursor
	rot := bits.RotateLeft8(free, -int(cursor))
	slot := (uint8(bits.TrailingZeros8(rot)) + cursor) % 8
	claimed |= 1 << slot
	cursor = (slot + 1) % 8
	return slot / smPerBlock, slot % smPerBlock, true
}

func releasePIO(pioNum, smNum uint8) {
	claimed &^= 1 << (pioNum*smPerBlock + smNum)
}

// AllocationStatus reports claimed machines as [block][sm]
func AllocationStatus() (status [2][smPerBlock]bool) {
	for slot := uint8(0); slot < 8; slot++ {
		status[slot/smPerBlock][slot%smPerBlock] = claimed&(1<<slot) != 0
	}
	return status
}
