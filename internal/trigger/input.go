// Package trigger routes user input to the clock controller according to the
// current phase and settings.
package trigger

import (
	"fmt"

	"github.com/sweeney/magic-clock/internal/gesture"
	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/settings"
)

// Input is anything a producer (browser, terminal, button, MQTT, HTTP) can
// send to the event loop.
type Input interface {
	isInput()
}

// PointerInput is a raw pointer sample.
type PointerInput struct {
	Event gesture.PointerEvent
}

// MotionInput is a raw accelerometer sample.
type MotionInput struct {
	Sample gesture.MotionSample
}

// ButtonInput is a debounced press of the remote button.
type ButtonInput struct{}

// KeyInput is a keypad key typed directly, bypassing the touch grid.
type KeyInput struct {
	Key logic.Key
}

// ViewportInput reports the size of the touch surface.
type ViewportInput struct {
	Width, Height float64
}

// Command is an explicit action from a menu or remote control.
type Command int

const (
	CommandReset Command = iota
	CommandCalibrate
	CommandTrigger
	CommandOpenSettings
	CommandClose
)

func (c Command) String() string {
	switch c {
	case CommandReset:
		return "reset"
	case CommandCalibrate:
		return "calibrate"
	case CommandTrigger:
		return "trigger"
	case CommandOpenSettings:
		return "settings"
	case CommandClose:
		return "close"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// ParseCommand parses the names produced by Command.String.
func ParseCommand(s string) (Command, bool) {
	for _, c := range []Command{CommandReset, CommandCalibrate, CommandTrigger, CommandOpenSettings, CommandClose} {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// CommandInput carries a Command.
type CommandInput struct {
	Command Command
}

// MenuAction is one entry of the secret settings menu.
type MenuAction int

const (
	MenuToggleStyle MenuAction = iota
	MenuToggleTap
	MenuToggleShake
	MenuCycleDelay
	MenuCycleDuration
	MenuCycleSensitivity
	MenuToggleDebug
)

// MenuActions lists every menu entry in display order.
var MenuActions = []MenuAction{
	MenuToggleStyle, MenuToggleTap, MenuToggleShake,
	MenuCycleDelay, MenuCycleDuration, MenuCycleSensitivity, MenuToggleDebug,
}

func (a MenuAction) String() string {
	switch a {
	case MenuToggleStyle:
		return "style"
	case MenuToggleTap:
		return "tap"
	case MenuToggleShake:
		return "shake"
	case MenuCycleDelay:
		return "delay"
	case MenuCycleDuration:
		return "duration"
	case MenuCycleSensitivity:
		return "sensitivity"
	case MenuToggleDebug:
		return "debug"
	default:
		return fmt.Sprintf("MenuAction(%d)", int(a))
	}
}

// ParseMenuAction parses the names produced by MenuAction.String.
func ParseMenuAction(s string) (MenuAction, bool) {
	for _, a := range MenuActions {
		if a.String() == s {
			return a, true
		}
	}
	return 0, false
}

// Apply returns s with the action applied.
func (a MenuAction) Apply(s settings.Settings) settings.Settings {
	switch a {
	case MenuToggleStyle:
		return s.ToggleStyle()
	case MenuToggleTap:
		return s.ToggleTap()
	case MenuToggleShake:
		return s.ToggleShake()
	case MenuCycleDelay:
		return s.CycleDelay()
	case MenuCycleDuration:
		return s.CycleReturnDuration()
	case MenuCycleSensitivity:
		return s.CycleShakeSensitivity()
	case MenuToggleDebug:
		s.Debug = !s.Debug
		return s
	}
	return s
}

// Label describes the action with the current value, for menus.
func (a MenuAction) Label(s settings.Settings) string {
	switch a {
	case MenuToggleStyle:
		return fmt.Sprintf("Estilo: %s", s.Style)
	case MenuToggleTap:
		return fmt.Sprintf("Retorno con toque: %s", onOff(s.TapTrigger))
	case MenuToggleShake:
		return fmt.Sprintf("Retorno con sacudida: %s", onOff(s.ShakeTrigger))
	case MenuCycleDelay:
		return fmt.Sprintf("Delay: %s", s.Delay)
	case MenuCycleDuration:
		return fmt.Sprintf("Velocidad retorno: %ds", int(s.ReturnDuration.Seconds()))
	case MenuCycleSensitivity:
		return fmt.Sprintf("Sensibilidad shake: %d", int(s.ShakeSensitivity))
	case MenuToggleDebug:
		return fmt.Sprintf("Debug: %s", onOff(s.Debug))
	}
	return fmt.Sprintf("MenuAction(%d)", int(a))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// MenuInput applies a menu action.
type MenuInput struct {
	Action MenuAction
}

// SettingsInput overlays a partial settings document on the current settings.
type SettingsInput struct {
	Document settings.Document
}

func (PointerInput) isInput()  {}
func (MotionInput) isInput()   {}
func (ButtonInput) isInput()   {}
func (KeyInput) isInput()      {}
func (ViewportInput) isInput() {}
func (CommandInput) isInput()  {}
func (MenuInput) isInput()     {}
func (SettingsInput) isInput() {}

// NamedInput resolves a remote control name to an input: a Command name,
// a MenuAction name, or "key" with the key label in arg.
func NamedInput(name, arg string) (Input, bool) {
	if c, ok := ParseCommand(name); ok {
		return CommandInput{Command: c}, true
	}
	if a, ok := ParseMenuAction(name); ok {
		return MenuInput{Action: a}, true
	}
	if name == "key" {
		if k, ok := logic.ParseKey(arg); ok {
			return KeyInput{Key: k}, true
		}
	}
	if name == "button" {
		return ButtonInput{}, true
	}
	return nil, false
}
