// Package gesture turns raw pointer, motion and button samples into the small
// set of gestures the clock understands. It knows nothing about phases; the
// trigger dispatcher decides what a gesture means.
package gesture

import (
	"fmt"
	"time"
)

// PointerKind is the kind of a pointer sample.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
	PointerCancel
)

func (k PointerKind) String() string {
	switch k {
	case PointerDown:
		return "down"
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	case PointerCancel:
		return "cancel"
	default:
		return fmt.Sprintf("PointerKind(%d)", int(k))
	}
}

// ParsePointerKind parses the names produced by PointerKind.String.
func ParsePointerKind(s string) (PointerKind, bool) {
	switch s {
	case "down":
		return PointerDown, true
	case "move":
		return PointerMove, true
	case "up":
		return PointerUp, true
	case "cancel":
		return PointerCancel, true
	}
	return 0, false
}

// Point is one contact in viewport pixels.
type Point struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// PointerEvent is one pointer sample. Points holds every contact touching the
// surface at the time of the sample; for PointerUp it still includes the
// contact being lifted, so a single-finger release carries one point.
type PointerEvent struct {
	Kind   PointerKind
	Points []Point
	Time   time.Time
}

// MotionSample is one accelerometer reading.
type MotionSample struct {
	X, Y, Z float64
	Time    time.Time
}

// Kind identifies a recognized gesture.
type Kind int

const (
	KindTap Kind = iota
	KindLongPress
	KindSwipeDown
	KindSwipeUp
	KindShake
	KindButton
)

// Kinds lists every gesture kind, in declaration order.
var Kinds = []Kind{KindTap, KindLongPress, KindSwipeDown, KindSwipeUp, KindShake, KindButton}

func (k Kind) String() string {
	switch k {
	case KindTap:
		return "tap"
	case KindLongPress:
		return "long_press"
	case KindSwipeDown:
		return "swipe_down"
	case KindSwipeUp:
		return "swipe_up"
	case KindShake:
		return "shake"
	case KindButton:
		return "button"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Gesture is a recognized gesture.
type Gesture struct {
	Kind Kind
	Time time.Time
	// X, Y locate taps and long presses (release point).
	X, Y float64
	// Held is the press duration of taps and long presses.
	Held time.Duration
	// Magnitude is the shake strength.
	Magnitude float64
}

// Config holds recognition thresholds.
type Config struct {
	TapMaxHeld time.Duration
	TapMaxMove float64

	LongPressMinHeld time.Duration
	LongPressMaxMove float64
	// LongPressZone is the fraction of the viewport height, measured from the
	// top, where a long press must start.
	LongPressZone float64

	// SwipeThreshold is the averaged two-finger Y travel that must be
	// strictly exceeded to fire a swipe.
	SwipeThreshold float64

	ShakeCooldown time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TapMaxHeld:       500 * time.Millisecond,
		TapMaxMove:       30,
		LongPressMinHeld: 2000 * time.Millisecond,
		LongPressMaxMove: 50,
		LongPressZone:    0.10,
		SwipeThreshold:   80,
		ShakeCooldown:    800 * time.Millisecond,
	}
}
