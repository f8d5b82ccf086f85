// Package settings holds the user-tunable trick settings and their
// persistence.
package settings

import (
	"fmt"
	"math"
	"time"

	"github.com/sweeney/magic-clock/internal/logic"
)

// Style is the clock face style.
type Style int

const (
	StyleIOS Style = iota
	StyleAndroid
)

func (s Style) String() string {
	switch s {
	case StyleIOS:
		return "ios"
	case StyleAndroid:
		return "android"
	default:
		return fmt.Sprintf("Style(%d)", int(s))
	}
}

// ParseStyle parses "ios" or "android".
func ParseStyle(s string) (Style, bool) {
	switch s {
	case "ios":
		return StyleIOS, true
	case "android":
		return StyleAndroid, true
	}
	return 0, false
}

// TriggerDelay is the wait between entering an offset and the return.
type TriggerDelay int

const (
	DelayImmediate TriggerDelay = iota
	Delay3s
	Delay5s
	Delay10s
	// DelayOnTrigger waits for a tap or shake instead of a fixed delay.
	DelayOnTrigger
)

var delayNames = map[TriggerDelay]string{
	DelayImmediate: "0",
	Delay3s:        "3",
	Delay5s:        "5",
	Delay10s:       "10",
	DelayOnTrigger: "tap",
}

func (d TriggerDelay) String() string {
	if s, ok := delayNames[d]; ok {
		return s
	}
	return fmt.Sprintf("TriggerDelay(%d)", int(d))
}

// ParseTriggerDelay parses "0", "3", "5", "10" or "tap".
func ParseTriggerDelay(s string) (TriggerDelay, bool) {
	for d, name := range delayNames {
		if name == s {
			return d, true
		}
	}
	return 0, false
}

// Duration returns the fixed delay, or 0 for DelayImmediate and DelayOnTrigger.
func (d TriggerDelay) Duration() time.Duration {
	switch d {
	case Delay3s:
		return 3 * time.Second
	case Delay5s:
		return 5 * time.Second
	case Delay10s:
		return 10 * time.Second
	default:
		return 0
	}
}

func (d TriggerDelay) valid() bool {
	_, ok := delayNames[d]
	return ok
}

// Limits.
const (
	MinReturnDuration    = 10 * time.Second
	MaxReturnDuration    = 120 * time.Second
	ReturnDurationStep   = 10 * time.Second
	MinShakeSensitivity  = 5.0
	MaxShakeSensitivity  = 40.0
	ShakeSensitivityStep = 5.0
)

// Settings is the persisted configuration of the trick.
type Settings struct {
	Style            Style
	TapTrigger       bool
	ShakeTrigger     bool
	Delay            TriggerDelay
	ReturnDuration   time.Duration
	ShakeSensitivity float64
	Debug            bool
}

// Defaults returns the factory settings.
func Defaults() Settings {
	return Settings{
		Style:            StyleIOS,
		TapTrigger:       false,
		ShakeTrigger:     true,
		Delay:            Delay3s,
		ReturnDuration:   30 * time.Second,
		ShakeSensitivity: 15,
	}
}

// Normalize clamps every field into its valid range, replacing values that
// cannot be clamped with their defaults. At least one trigger stays enabled.
func (s Settings) Normalize() Settings {
	def := Defaults()

	if s.Style != StyleIOS && s.Style != StyleAndroid {
		s.Style = def.Style
	}
	if !s.Delay.valid() {
		s.Delay = def.Delay
	}
	if !s.TapTrigger && !s.ShakeTrigger {
		s.ShakeTrigger = true
	}

	switch {
	case s.ReturnDuration < MinReturnDuration:
		s.ReturnDuration = MinReturnDuration
	case s.ReturnDuration > MaxReturnDuration:
		s.ReturnDuration = MaxReturnDuration
	}

	switch {
	case math.IsNaN(s.ShakeSensitivity):
		s.ShakeSensitivity = def.ShakeSensitivity
	case s.ShakeSensitivity < MinShakeSensitivity:
		s.ShakeSensitivity = MinShakeSensitivity
	case s.ShakeSensitivity > MaxShakeSensitivity:
		s.ShakeSensitivity = MaxShakeSensitivity
	}
	return s
}

// ReturnPlan projects the settings onto what the return animator needs.
func (s Settings) ReturnPlan() logic.ReturnPlan {
	return logic.ReturnPlan{
		Delay:        s.Delay.Duration(),
		AwaitTrigger: s.Delay == DelayOnTrigger,
		Duration:     s.ReturnDuration,
	}
}

// Menu actions. Each returns the updated settings.

// ToggleStyle switches between the two face styles.
func (s Settings) ToggleStyle() Settings {
	if s.Style == StyleIOS {
		s.Style = StyleAndroid
	} else {
		s.Style = StyleIOS
	}
	return s
}

// ToggleTap flips the tap trigger unless it is the only trigger enabled.
func (s Settings) ToggleTap() Settings {
	if s.TapTrigger && !s.ShakeTrigger {
		return s
	}
	s.TapTrigger = !s.TapTrigger
	return s
}

// ToggleShake flips the shake trigger unless it is the only trigger enabled.
func (s Settings) ToggleShake() Settings {
	if s.ShakeTrigger && !s.TapTrigger {
		return s
	}
	s.ShakeTrigger = !s.ShakeTrigger
	return s
}

// CycleDelay steps 0 → 3 → 5 → 10 → tap → 0.
func (s Settings) CycleDelay() Settings {
	if !s.Delay.valid() || s.Delay == DelayOnTrigger {
		s.Delay = DelayImmediate
	} else {
		s.Delay++
	}
	return s
}

// CycleReturnDuration adds 10s, wrapping from 120s back to 10s.
func (s Settings) CycleReturnDuration() Settings {
	if s.ReturnDuration >= MaxReturnDuration {
		s.ReturnDuration = MinReturnDuration
	} else {
		s.ReturnDuration += ReturnDurationStep
	}
	return s
}

// CycleShakeSensitivity adds 5, wrapping from 40 back to 5.
func (s Settings) CycleShakeSensitivity() Settings {
	if s.ShakeSensitivity >= MaxShakeSensitivity {
		s.ShakeSensitivity = MinShakeSensitivity
	} else {
		s.ShakeSensitivity += ShakeSensitivityStep
	}
	return s
}
