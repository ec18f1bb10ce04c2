package core

import "sync/atomic"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a scheduling event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	ID        uint8  // Peripheral index, 0 for the machine timer
	Clock     uint64 // Tick at which the event was recorded
	Value1    uint64 // Context-dependent value
	Value2    uint64 // Context-dependent value
}

// Event type codes
const (
	EvtTimerPush      = 1 // timer queued (v1=expires, v2=queue length)
	EvtTimerArm       = 2 // compare armed (v1=deadline)
	EvtTimerFire      = 3 // expired timer woken (v1=expires)
	EvtTimerPast      = 4 // next deadline passed while arming (v1=deadline)
	EvtTimerQueueFull = 5 // push rejected (v1=expires)
	EvtWakerFire      = 6 // peripheral waker fired (v1=direction)
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

// debugSink routes log lines to the platform writer. Interrupt context
// must go through the queue so the writer never runs inside a handler.
type debugSink struct {
	write   atomic.Pointer[DebugWriter]
	enabled atomic.Bool
	queue   chan string
	dropped atomic.Uint32
}

var sink debugSink

var (
	// Timing capture ring buffer, only touched inside critical sections
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  bool = true
)

func (d *debugSink) emit(msg string) {
	if w := d.write.Load(); w != nil {
		(*w)(msg)
	}
}

// SetDebugWriter installs the platform output, e.g. a UART or stdout
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		sink.write.Store(nil)
		return
	}
	sink.write.Store(&writer)
}

func SetDebugEnabled(enabled bool) {
	sink.enabled.Store(enabled)
}

func IsDebugEnabled() bool {
	return sink.enabled.Load()
}

// DebugDropped reports how many queued lines were lost to a full queue
func DebugDropped() uint32 {
	return sink.dropped.Load()
}

// SetTimingEnabled turns timing capture on or off
func SetTimingEnabled(enabled bool) {
	state := disableInterrupts()
	timingEnabled = enabled
	restoreInterrupts(state)
}

// InitAsyncDebug starts the goroutine draining DebugAsync lines.
// Call it once, after SetDebugWriter.
func InitAsyncDebug() {
	sink.queue = make(chan string, 16)
	go func(q <-chan string) {
		for msg := range q {
			sink.emit(msg)
		}
	}(sink.queue)
}

// DebugPrintln writes synchronously. Never call it from an interrupt
// handler; use DebugAsync there.
func DebugPrintln(msg string) {
	if sink.enabled.Load() {
		sink.emit(msg)
	}
}

// DebugAsync queues msg without blocking. A full queue drops the line.
func DebugAsync(msg string) {
	if !sink.enabled.Load() || sink.queue == nil {
		return
	}
	select {
	case sink.queue <- msg:
	default:
		sink.dropped.Add(1)
	}
}

// RecordTiming captures a timing event in the ring buffer
func RecordTiming(eventType, id uint8, clock, value1, value2 uint64) {
	state := disableInterrupts()
	recordTiming(eventType, id, clock, value1, value2)
	restoreInterrupts(state)
}

// recordTiming must be called inside a critical section
func recordTiming(eventType, id uint8, clock, value1, value2 uint64) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		ID:        id,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents returns the recorded events, oldest first
func TimingEvents() []TimingEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	events := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue
		}
		events = append(events, evt)
	}
	return events
}

// EventName returns the short dump label of an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtTimerPush:
		return "TIMER_PUSH"
	case EvtTimerArm:
		return "TIMER_ARM"
	case EvtTimerFire:
		return "TIMER_FIRE"
	case EvtTimerPast:
		return "TIMER_PAST!"
	case EvtTimerQueueFull:
		return "QUEUE_FULL!"
	case EvtWakerFire:
		return "WAKER_FIRE"
	default:
		return "UNKNOWN"
	}
}

// DumpTimingRing outputs the timing ring buffer (call on shutdown/error)
func DumpTimingRing() {
	if sink.write.Load() == nil {
		return
	}

	sink.emit("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		sink.emit("[TIMING] " + EventName(evt.EventType) +
			" id=" + itoa(int(evt.ID)) +
			" clock=" + u64toa(evt.Clock) +
			" v1=" + u64toa(evt.Value1) +
			" v2=" + u64toa(evt.Value2))
	}
	if n := sink.dropped.Load(); n > 0 {
		sink.emit("[TIMING] debug lines dropped=" + u64toa(uint64(n)))
	}
	sink.emit("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer and the dropped line count
func ClearTimingRing() {
	sink.dropped.Store(0)
	state := disableInterrupts()
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
	restoreInterrupts(state)
}
