package sim

import "asynchal/core"

// fifoIRQ is the watermark interrupt block shared by the FIFO peripherals.
// Callers hold the owning peripheral's lock.
type fifoIRQ struct {
	rxLevel, txLevel     uint8
	rxEnabled, txEnabled bool
}

func (f *fifoIRQ) setWatermark(dir core.Direction, level uint8) {
	if dir == core.DirTx {
		f.txLevel = level
	} else {
		f.rxLevel = level
	}
}

func (f *fifoIRQ) setEnabled(dir core.Direction, on bool) {
	if dir == core.DirTx {
		f.txEnabled = on
	} else {
		f.rxEnabled = on
	}
}

func (f *fifoIRQ) enabled(dir core.Direction) bool {
	if dir == core.DirTx {
		return f.txEnabled
	}
	return f.rxEnabled
}

// pending applies the watermark rule: rx while entries > level, tx while
// entries < level.
func (f *fifoIRQ) pending(dir core.Direction, rxLen, txLen int) bool {
	if dir == core.DirTx {
		return txLen < int(f.txLevel)
	}
	return rxLen > int(f.rxLevel)
}

// due reports whether an enabled source is pending
func (f *fifoIRQ) due(rxLen, txLen int) bool {
	return (f.rxEnabled && f.pending(core.DirRx, rxLen, txLen)) ||
		(f.txEnabled && f.pending(core.DirTx, rxLen, txLen))
}
