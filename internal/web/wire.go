package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/magic-clock/internal/gesture"
	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/settings"
	"github.com/sweeney/magic-clock/internal/trigger"
)

// Message is a browser-to-server websocket message.
//
//	{"type":"pointer","kind":"down","points":[{"id":0,"x":12,"y":40}]}
//	{"type":"motion","x":0.1,"y":9.8,"z":0.3}
//	{"type":"viewport","width":390,"height":844}
//	{"type":"key","key":"+"}
//	{"type":"command","name":"reset"}
//	{"type":"menu","name":"delay"}
//	{"type":"settings","settings":{"delay":"5"}}
//	{"type":"button"}
type Message struct {
	Type     string             `json:"type"`
	Kind     string             `json:"kind,omitempty"`
	Points   []gesture.Point    `json:"points,omitempty"`
	X        float64            `json:"x,omitempty"`
	Y        float64            `json:"y,omitempty"`
	Z        float64            `json:"z,omitempty"`
	Width    float64            `json:"width,omitempty"`
	Height   float64            `json:"height,omitempty"`
	Key      string             `json:"key,omitempty"`
	Name     string             `json:"name,omitempty"`
	Settings *settings.Document `json:"settings,omitempty"`
}

// DecodeInput converts a websocket message into an input stamped with now.
// Browser timestamps are not used: they are on a different clock.
func DecodeInput(data []byte, now time.Time) (trigger.Input, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch m.Type {
	case "pointer":
		kind, ok := gesture.ParsePointerKind(m.Kind)
		if !ok {
			return nil, fmt.Errorf("unknown pointer kind %q", m.Kind)
		}
		return trigger.PointerInput{Event: gesture.PointerEvent{Kind: kind, Points: m.Points, Time: now}}, nil
	case "motion":
		return trigger.MotionInput{Sample: gesture.MotionSample{X: m.X, Y: m.Y, Z: m.Z, Time: now}}, nil
	case "viewport":
		if m.Width <= 0 || m.Height <= 0 {
			return nil, fmt.Errorf("bad viewport %vx%v", m.Width, m.Height)
		}
		return trigger.ViewportInput{Width: m.Width, Height: m.Height}, nil
	case "key":
		k, ok := logic.ParseKey(m.Key)
		if !ok {
			return nil, fmt.Errorf("unknown key %q", m.Key)
		}
		return trigger.KeyInput{Key: k}, nil
	case "command":
		c, ok := trigger.ParseCommand(m.Name)
		if !ok {
			return nil, fmt.Errorf("unknown command %q", m.Name)
		}
		return trigger.CommandInput{Command: c}, nil
	case "menu":
		a, ok := trigger.ParseMenuAction(m.Name)
		if !ok {
			return nil, fmt.Errorf("unknown menu action %q", m.Name)
		}
		return trigger.MenuInput{Action: a}, nil
	case "settings":
		if m.Settings == nil {
			return nil, fmt.Errorf("settings message without settings")
		}
		return trigger.SettingsInput{Document: *m.Settings}, nil
	case "button":
		return trigger.ButtonInput{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
}
