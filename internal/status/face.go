package status

import (
	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/settings"
)

// Face is the text content of the display for one snapshot. Renderers
// draw Lines top to bottom, or nothing when Dark.
type Face struct {
	Dark  bool
	Lines []string
	// KeypadAlpha is the opacity of the keypad hint, drawn over everything.
	KeypadAlpha float64
}

// Face lays out the display. The screen is off in DARK and while a sign is
// pending. The iOS style puts the date above the time, the Android style
// below it.
func (s Snapshot) Face() Face {
	dark := s.Frame.Blackout || s.Frame.Phase == logic.PhaseDark
	f := Face{Dark: dark, KeypadAlpha: s.Frame.KeypadAlpha}
	if f.Dark {
		return f
	}
	if s.Settings.Style == settings.StyleAndroid {
		f.Lines = []string{s.Reading.Clock(), s.Reading.Date}
	} else {
		f.Lines = []string{s.Reading.Date, s.Reading.Clock()}
	}
	return f
}
