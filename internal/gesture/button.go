package gesture

import "time"

// Button debounces a polled push button and reports press edges.
//
// The first stable level seen is taken as the baseline and never reported,
// so a button held down at startup does not fire.
type Button struct {
	debounce time.Duration

	stable       bool
	pending      bool
	hasPending   bool
	pendingSince time.Time
	baselined    bool
}

// NewButton creates a debouncer requiring a level to hold for debounce.
func NewButton(debounce time.Duration) *Button {
	return &Button{debounce: debounce}
}

// Sample feeds one reading (true = pressed). It returns a KindButton gesture
// when the debounced level goes from released to pressed.
func (b *Button) Sample(pressed bool, now time.Time) (Gesture, bool) {
	if !b.baselined {
		if !b.hasPending || b.pending != pressed {
			b.pending = pressed
			b.hasPending = true
			b.pendingSince = now
			return Gesture{}, false
		}
		if now.Sub(b.pendingSince) >= b.debounce {
			b.stable = pressed
			b.baselined = true
			b.hasPending = false
		}
		return Gesture{}, false
	}

	if pressed == b.stable {
		b.hasPending = false
		return Gesture{}, false
	}

	if !b.hasPending || b.pending != pressed {
		b.pending = pressed
		b.hasPending = true
		b.pendingSince = now
		return Gesture{}, false
	}

	if now.Sub(b.pendingSince) < b.debounce {
		return Gesture{}, false
	}

	b.stable = pressed
	b.hasPending = false
	if !pressed {
		return Gesture{}, false
	}
	return Gesture{Kind: KindButton, Time: now}, true
}

// Baselined reports whether the initial level has been established.
func (b *Button) Baselined() bool {
	return b.baselined
}

// Pressed returns the debounced level.
func (b *Button) Pressed() bool {
	return b.stable
}
