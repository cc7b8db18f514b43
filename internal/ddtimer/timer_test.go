package ddtimer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestArmFiresAfterDuration(t *testing.T) {
	var fired atomic.Bool
	Arm(10*time.Millisecond, func() { fired.Store(true) })
	time.Sleep(100 * time.Millisecond)
	if !fired.Load() {
		t.Fatal("timer never fired")
	}
}

func TestDisarmPreventsFire(t *testing.T) {
	var fired atomic.Bool
	tm := Arm(50*time.Millisecond, func() { fired.Store(true) })
	tm.Disarm()
	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Fatal("timer fired after being disarmed")
	}
}

func TestZeroDurationNeverArms(t *testing.T) {
	var fired atomic.Bool
	tm := Arm(0, func() { fired.Store(true) })
	time.Sleep(20 * time.Millisecond)
	tm.Disarm()
	if fired.Load() {
		t.Fatal("zero-duration timer should never fire")
	}
}

func TestDisarmOnNilTimerIsNoop(t *testing.T) {
	var tm *Timer
	tm.Disarm()
}
