package logic

import "time"

// Timer is a single-shot deadline owned by the controller.
// Arming replaces any previous deadline. A cancelled timer never fires.
type Timer struct {
	deadline time.Time
	armed    bool
}

// Arm sets the timer to fire d after now.
func (t *Timer) Arm(now time.Time, d time.Duration) {
	t.deadline = now.Add(d)
	t.armed = true
}

// Cancel disarms the timer. It reports whether the timer was armed.
func (t *Timer) Cancel() bool {
	was := t.armed
	t.armed = false
	t.deadline = time.Time{}
	return was
}

// Armed reports whether the timer is waiting to fire.
func (t *Timer) Armed() bool {
	return t.armed
}

// Remaining returns the time left until the deadline, or 0 if disarmed or due.
func (t *Timer) Remaining(now time.Time) time.Duration {
	if !t.armed {
		return 0
	}
	if d := t.deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Fire disarms the timer and returns true if it is armed and due at now.
func (t *Timer) Fire(now time.Time) bool {
	if !t.armed || now.Before(t.deadline) {
		return false
	}
	t.Cancel()
	return true
}
