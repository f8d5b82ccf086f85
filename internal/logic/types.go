// Package logic contains the pure state machine behind the clock display.
// It performs no I/O and never sleeps: time is always passed in as time.Time
// parameters, and timers are deadlines checked on Tick.
package logic

import (
	"fmt"
	"time"
)

// Phase is the controller's position in the trick.
type Phase int

const (
	// PhaseBoot shows the keypad hint briefly after launch. Keys are accepted.
	PhaseBoot Phase = iota
	// PhaseDark is the secret entry window: the screen looks off, keys are accepted.
	PhaseDark
	// PhaseLive shows the clock with the offset applied. Return triggers are accepted.
	PhaseLive
	// PhaseReturning eases the offset back to zero.
	PhaseReturning
)

// String returns the upper-case phase name used in events and JSON.
func (p Phase) String() string {
	switch p {
	case PhaseBoot:
		return "BOOT"
	case PhaseDark:
		return "DARK"
	case PhaseLive:
		return "LIVE"
	case PhaseReturning:
		return "RETURNING"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// AcceptsKeys reports whether sign/digit input is accepted in this phase.
func (p Phase) AcceptsKeys() bool {
	return p == PhaseBoot || p == PhaseDark
}

// Sign is the pending direction of an offset entry.
type Sign int8

const (
	SignNone  Sign = 0
	SignPlus  Sign = 1
	SignMinus Sign = -1
)

// String returns "+", "-" or "" for SignNone.
func (s Sign) String() string {
	switch s {
	case SignPlus:
		return "+"
	case SignMinus:
		return "-"
	default:
		return ""
	}
}

// Key is a keypad key: '+', '-' or a digit '0'..'9'.
type Key byte

const (
	KeyPlus  Key = '+'
	KeyMinus Key = '-'
	KeyZero  Key = '0'
)

// DigitKey returns the key for digit d (0-9).
func DigitKey(d int) Key {
	return Key('0' + d)
}

// Digit returns the digit value of k and whether k is a digit key.
func (k Key) Digit() (int, bool) {
	if k < '0' || k > '9' {
		return 0, false
	}
	return int(k - '0'), true
}

// Sign returns the sign carried by k, or SignNone for non-sign keys.
func (k Key) Sign() Sign {
	switch k {
	case KeyPlus:
		return SignPlus
	case KeyMinus:
		return SignMinus
	default:
		return SignNone
	}
}

func (k Key) String() string {
	return string(rune(k))
}

// ParseKey converts a one-character label into a Key.
func ParseKey(s string) (Key, bool) {
	if len(s) != 1 {
		return 0, false
	}
	k := Key(s[0])
	if k.Sign() != SignNone {
		return k, true
	}
	if _, ok := k.Digit(); ok {
		return k, true
	}
	return 0, false
}

// EventType identifies something the controller did that sinks may care about.
type EventType string

const (
	EventPhaseChanged    EventType = "PHASE_CHANGED"
	EventBlackoutOn      EventType = "BLACKOUT_ON"
	EventBlackoutOff     EventType = "BLACKOUT_OFF"
	EventOffsetSet       EventType = "OFFSET_SET"
	EventReturnScheduled EventType = "RETURN_SCHEDULED"
	EventReturnAwaiting  EventType = "RETURN_AWAITING_TRIGGER"
	EventReturnStarted   EventType = "RETURN_STARTED"
	EventReturnSkipped   EventType = "RETURN_SKIPPED"
	EventReturnCompleted EventType = "RETURN_COMPLETED"
	EventReset           EventType = "RESET"
	EventCalibrated      EventType = "CALIBRATED"
	EventOpenSettings    EventType = "OPEN_SETTINGS"
	EventCloseApp        EventType = "CLOSE_APP"
	EventSettingsChanged EventType = "SETTINGS_CHANGED"
)

// Event is a state change to be published and logged.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Phase     Phase
	// From is the previous phase (EventPhaseChanged only).
	From   Phase
	Offset time.Duration
	// Delay is the countdown before a scheduled return (EventReturnScheduled only).
	Delay time.Duration
	// Session is the return session ID (return events only).
	Session string
}

// ReturnPlan is the part of the settings the return animator needs.
type ReturnPlan struct {
	// Delay before an automatic return starts. Ignored when AwaitTrigger is set.
	Delay time.Duration
	// AwaitTrigger waits indefinitely for a tap/shake instead of a fixed delay.
	AwaitTrigger bool
	// Duration of the eased return.
	Duration time.Duration
}

// ReturnSession is the record of an in-flight return animation.
type ReturnSession struct {
	ID          string
	Start       time.Time
	StartOffset time.Duration
	Duration    time.Duration
}

// Progress returns the linear fraction of the session elapsed at now, clamped to [0, 1].
func (s ReturnSession) Progress(now time.Time) float64 {
	if s.Duration <= 0 {
		return 1
	}
	return clampUnit(float64(now.Sub(s.Start)) / float64(s.Duration))
}

// Frame is the per-frame view handed to render sinks.
type Frame struct {
	Phase       Phase
	Offset      time.Duration
	PendingSign Sign
	Blackout    bool
	// KeypadAlpha is the keypad hint opacity in [0, 1].
	KeypadAlpha float64
	// AwaitingTrigger is set while a return waits for a tap/shake.
	AwaitingTrigger bool
	// ReturnIn is the remaining countdown of a scheduled return, 0 if none.
	ReturnIn time.Duration
	// Progress is the linear return progress while returning, else 0.
	Progress float64
}

// OffsetMs returns the displayed offset in whole milliseconds.
func (f Frame) OffsetMs() int64 {
	return f.Offset.Milliseconds()
}

// Counts tracks controller activity since startup.
type Counts struct {
	Inputs           int
	ReturnsStarted   int
	ReturnsCompleted int
	ReturnsSkipped   int
	Resets           int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Phase     Phase
	Counts    Counts
}
