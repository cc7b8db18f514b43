// Package ddtimer provides the single-shot timeout timer each request
// record owns. It is a thin wrapper over time.AfterFunc; correctness
// against double-fire rests on the coordinator's own terminal-transition
// guard (a cancelled or already-terminal record ignores a late fire), so
// the timer itself only needs to make a best effort to stop a pending fire.
package ddtimer

import "time"

// Timer wraps a single scheduled fire callback.
type Timer struct {
	t *time.Timer
}

// Arm schedules fire to run after d. A non-positive duration means "no
// timeout" and returns a Timer whose Disarm is a no-op.
func Arm(d time.Duration, fire func()) *Timer {
	if d <= 0 {
		return &Timer{}
	}
	return &Timer{t: time.AfterFunc(d, fire)}
}

// Disarm stops a pending fire if one has not already happened. It is safe
// to call multiple times and on a nil-backed Timer.
func (tm *Timer) Disarm() {
	if tm == nil || tm.t == nil {
		return
	}
	tm.t.Stop()
}
