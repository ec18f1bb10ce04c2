package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"asynchal/core"
	"asynchal/host/sim"
)

func newTimer(t *testing.T) (*sim.TickSource, *core.MachineTimer) {
	t.Helper()
	ts := sim.NewTickSource(1000000)
	mt := core.NewMachineTimer(ts, core.DefaultTimerQueueSize)
	ts.SetHandler(mt.OnInterrupt)
	core.SetMachineTimer(mt)
	return ts, mt
}

func fired(w *core.Waker) bool {
	select {
	case <-w.C():
		return true
	default:
		return false
	}
}

func TestMachineTimerArmsEarliest(t *testing.T) {
	ts, mt := newTimer(t)

	late, early := core.NewWaker(), core.NewWaker()
	if err := mt.Push(core.Timer{Expires: 300, Waker: late}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if at, armed := mt.Armed(); !armed || at != 300 {
		t.Errorf("Expected armed at 300, got %d (armed=%v)", at, armed)
	}

	// An earlier deadline re-arms
	mt.Push(core.Timer{Expires: 100, Waker: early})
	if at, _ := mt.Armed(); at != 100 {
		t.Errorf("Expected re-arm at 100, got %d", at)
	}
	if cmp, on := ts.Compare(); !on || cmp != 100 {
		t.Errorf("Expected compare 100 enabled, got %d (enabled=%v)", cmp, on)
	}

	ts.Advance(99)
	if fired(early) {
		t.Error("Timer fired before its deadline")
	}

	ts.Advance(1)
	if !fired(early) {
		t.Error("Timer did not fire at its deadline")
	}
	if fired(late) {
		t.Error("Later timer fired early")
	}
	if at, armed := mt.Armed(); !armed || at != 300 {
		t.Errorf("Expected re-arm at 300 after drain, got %d (armed=%v)", at, armed)
	}

	ts.AdvanceTo(1000)
	if !fired(late) {
		t.Error("Later timer never fired")
	}
	if _, armed := mt.Armed(); armed {
		t.Error("Expected disarmed with an empty queue")
	}
	if _, on := ts.Compare(); on {
		t.Error("Compare interrupt left enabled with an empty queue")
	}
}

func TestMachineTimerPastDeadline(t *testing.T) {
	ts, mt := newTimer(t)
	ts.AdvanceTo(500)

	w := core.NewWaker()
	if err := mt.Push(core.Timer{Expires: 400, Waker: w}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if !fired(w) {
		t.Error("Deadline in the past was not serviced immediately")
	}
	if mt.Pending() != 0 {
		t.Errorf("Expected empty queue, got %d", mt.Pending())
	}
	if _, armed := mt.Armed(); armed {
		t.Error("Scheduler armed a compare value in the past")
	}
}

// racingTicks advances the counter on every read, so a deadline one tick away
// is already gone by the time the compare register is loaded.
type racingTicks struct {
	*sim.TickSource
}

func (r racingTicks) ReadTick() uint64 {
	r.TickSource.Advance(1)
	return r.TickSource.ReadTick()
}

func TestMachineTimerDeadlinePassedWhileArming(t *testing.T) {
	base := sim.NewTickSource(1000000)
	mt := core.NewMachineTimer(racingTicks{base}, 4)

	core.ClearTimingRing()
	w := core.NewWaker()
	now := base.ReadTick()
	mt.Push(core.Timer{Expires: now + 3, Waker: w})

	if !fired(w) {
		t.Fatal("Deadline passed during arming was not treated as expired")
	}
	if mt.Pending() != 0 {
		t.Errorf("Expected empty queue, got %d", mt.Pending())
	}

	sawPast := false
	for _, evt := range core.TimingEvents() {
		if evt.EventType == core.EvtTimerPast {
			sawPast = true
		}
	}
	if !sawPast {
		t.Error("Expected a TIMER_PAST event in the timing ring")
	}
}

func TestMachineTimerQueueFull(t *testing.T) {
	_, mt := newTimer(t)
	for i := 0; i < core.DefaultTimerQueueSize; i++ {
		if err := mt.Push(core.Timer{Expires: uint64(1000 + i), Waker: core.NewWaker()}); err != nil {
			t.Fatalf("Push %d failed: %v", i, err)
		}
	}

	w := core.NewWaker()
	err := mt.Push(core.Timer{Expires: 5000, Waker: w})
	var full *core.TimerQueueFullError
	if !errors.As(err, &full) {
		t.Fatalf("Expected *TimerQueueFullError, got %v", err)
	}
	if full.Rejected.Waker != w {
		t.Error("Rejected timer does not carry the caller's waker")
	}
	if mt.Pending() != core.DefaultTimerQueueSize {
		t.Errorf("Expected %d pending, got %d", core.DefaultTimerQueueSize, mt.Pending())
	}
}

func TestMachineTimerFiresEveryTimerOnce(t *testing.T) {
	ts, mt := newTimer(t)

	wakers := make([]*core.Waker, 10)
	for i := range wakers {
		wakers[i] = core.NewWaker()
		mt.Push(core.Timer{Expires: uint64(10 * (10 - i)), Waker: wakers[i]})
	}

	for step := 0; step < 20; step++ {
		ts.Advance(7)
	}

	for i, w := range wakers {
		if !fired(w) {
			t.Errorf("Timer %d never fired", i)
		}
		if fired(w) {
			t.Errorf("Timer %d fired twice", i)
		}
	}
}

func TestTimeDriver(t *testing.T) {
	ts, mt := newTimer(t)
	td := core.NewTimeDriver(mt)

	if td.Now() != 0 {
		t.Errorf("Expected tick 0, got %d", td.Now())
	}

	w := core.NewWaker()
	if err := td.ScheduleWake(250, w); err != nil {
		t.Fatalf("ScheduleWake failed: %v", err)
	}
	ts.AdvanceTo(250)
	if !fired(w) {
		t.Error("ScheduleWake did not fire")
	}

	done := make(chan error, 1)
	go func() { done <- td.SleepUntil(context.Background(), 400) }()

	deadline := time.After(time.Second)
	for mt.Pending() == 0 {
		select {
		case <-deadline:
			t.Fatal("SleepUntil never registered a timer")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	ts.AdvanceTo(400)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("SleepUntil failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("SleepUntil did not return")
	}
}
