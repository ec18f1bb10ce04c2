package core

// MachineTimer multiplexes a single hardware compare register over a queue of
// timers. The compare interrupt of its TickSource must call OnInterrupt.
//
// It is Armed while the compare interrupt is enabled with the queue minimum
// loaded, and Disarmed otherwise.
type MachineTimer struct {
	ts    TickSource
	queue *TimerQueue

	armed   bool
	armedAt uint64
}

// NewMachineTimer creates a scheduler with a queue of queueSize entries
// (DefaultTimerQueueSize when <= 0). The tick source starts disarmed.
func NewMachineTimer(ts TickSource, queueSize int) *MachineTimer {
	ts.DisableCompareInterrupt()
	return &MachineTimer{
		ts:    ts,
		queue: NewTimerQueue(queueSize),
	}
}

// Now returns the current tick
func (m *MachineTimer) Now() uint64 {
	return m.ts.ReadTick()
}

// Frequency returns the tick rate in Hz
func (m *MachineTimer) Frequency() uint32 {
	return m.ts.TickFrequency()
}

// Queue exposes the underlying timer queue
func (m *MachineTimer) Queue() *TimerQueue {
	return m.queue
}

// Push queues t and re-arms the compare register if t became the earliest
// deadline. On a full queue the timer is returned inside the error and nothing
// is registered.
func (m *MachineTimer) Push(t Timer) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if err := m.queue.push(t); err != nil {
		recordTiming(EvtTimerQueueFull, 0, m.ts.ReadTick(), t.Expires, uint64(len(m.queue.h)))
		return err
	}
	recordTiming(EvtTimerPush, 0, m.ts.ReadTick(), t.Expires, uint64(len(m.queue.h)))

	if m.armed && t.Expires >= m.armedAt {
		return nil
	}
	m.schedule()
	return nil
}

// Schedule drains expired timers and arms the compare register for the next one
func (m *MachineTimer) Schedule() {
	state := disableInterrupts()
	m.schedule()
	restoreInterrupts(state)
}

// OnInterrupt is the machine-timer compare interrupt handler
func (m *MachineTimer) OnInterrupt() {
	m.Schedule()
}

// Armed reports the loaded compare value while the scheduler is armed
func (m *MachineTimer) Armed() (uint64, bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.armedAt, m.armed
}

// Pending returns the number of queued timers
func (m *MachineTimer) Pending() int {
	return m.queue.Len()
}

// schedule must be called inside a critical section.
func (m *MachineTimer) schedule() {
	// Disarm first so a stale compare value cannot re-fire while draining
	m.ts.DisableCompareInterrupt()
	m.armed = false

	for {
		now := m.ts.ReadTick()
		for {
			t, ok := m.queue.popExpired(now)
			if !ok {
				break
			}
			recordTiming(EvtTimerFire, 0, now, t.Expires, 0)
			if t.Waker != nil {
				t.Waker.Wake()
			}
		}

		next, ok := m.queue.peekMin()
		if !ok {
			return
		}

		m.ts.WriteCompare(next)
		m.ts.EnableCompareInterrupt()
		m.armed = true
		m.armedAt = next

		now = m.ts.ReadTick()
		if next > now {
			recordTiming(EvtTimerArm, 0, now, next, 0)
			return
		}

		// The counter passed the deadline while arming. The match may never
		// trigger, so treat the entry as expired right here.
		m.ts.DisableCompareInterrupt()
		m.armed = false
		recordTiming(EvtTimerPast, 0, now, next, 0)
	}
}
