package trigger

import (
	"log/slog"
	"time"

	"github.com/sweeney/magic-clock/internal/gesture"
	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/settings"
)

// Dispatcher decodes inputs into gestures and applies them to the controller.
// It owns the current settings and keeps the controller's return plan and the
// recognizer's shake threshold in line with them. Not safe for concurrent use.
type Dispatcher struct {
	ctrl     *logic.Controller
	rec      *gesture.Recognizer
	keypad   gesture.Keypad
	store    settings.Store
	settings settings.Settings
	logger   *slog.Logger
	onGest   func(gesture.Gesture)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithKeypad replaces the default keypad layout.
func WithKeypad(k gesture.Keypad) Option {
	return func(d *Dispatcher) { d.keypad = k }
}

// WithGestureHook registers fn to be called for every recognized gesture,
// whether or not the current phase acts on it.
func WithGestureHook(fn func(gesture.Gesture)) Option {
	return func(d *Dispatcher) { d.onGest = fn }
}

// New creates a dispatcher and applies s to the controller and recognizer.
// Settings changes are saved to store.
func New(ctrl *logic.Controller, rec *gesture.Recognizer, store settings.Store, s settings.Settings, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ctrl:   ctrl,
		rec:    rec,
		keypad: gesture.DefaultKeypad(),
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.apply(s.Normalize())
	return d
}

// Settings returns the current settings.
func (d *Dispatcher) Settings() settings.Settings {
	return d.settings
}

// Handle processes one input at now and returns the resulting events.
func (d *Dispatcher) Handle(in Input, now time.Time) []logic.Event {
	switch in := in.(type) {
	case PointerInput:
		var events []logic.Event
		for _, g := range d.rec.Pointer(in.Event) {
			events = append(events, d.gesture(g, now)...)
		}
		return events
	case MotionInput:
		if g, ok := d.rec.Motion(in.Sample); ok {
			return d.gesture(g, now)
		}
		return nil
	case ButtonInput:
		return d.gesture(gesture.Gesture{Kind: gesture.KindButton, Time: now}, now)
	case KeyInput:
		return d.ctrl.Press(in.Key, now)
	case ViewportInput:
		d.rec.SetViewport(in.Width, in.Height)
		return nil
	case CommandInput:
		return d.command(in.Command, now)
	case MenuInput:
		return d.update(in.Action.Apply(d.settings), now)
	case SettingsInput:
		return d.update(in.Document.Apply(d.settings), now)
	default:
		d.logger.Warn("unknown input", slog.Any("input", in))
		return nil
	}
}

func (d *Dispatcher) gesture(g gesture.Gesture, now time.Time) []logic.Event {
	if d.onGest != nil {
		d.onGest(g)
	}
	d.logger.Debug("gesture",
		slog.String("kind", g.Kind.String()),
		slog.String("phase", d.ctrl.Phase().String()))

	// Menu gestures work in every phase.
	switch g.Kind {
	case gesture.KindLongPress, gesture.KindSwipeDown:
		return []logic.Event{d.ctrl.Notice(now, logic.EventOpenSettings)}
	case gesture.KindSwipeUp:
		return []logic.Event{d.ctrl.Notice(now, logic.EventCloseApp)}
	}

	switch d.ctrl.Phase() {
	case logic.PhaseBoot, logic.PhaseDark:
		if g.Kind != gesture.KindTap {
			return nil
		}
		w, h := d.rec.Viewport()
		key, ok := d.keypad.KeyAt(g.X, g.Y, w, h)
		if !ok {
			return nil
		}
		return d.ctrl.Press(key, now)

	case logic.PhaseLive:
		if d.triggerEnabled(g.Kind) {
			return d.ctrl.Trigger(now)
		}
	}
	return nil
}

func (d *Dispatcher) triggerEnabled(k gesture.Kind) bool {
	switch k {
	case gesture.KindTap, gesture.KindButton:
		return d.settings.TapTrigger
	case gesture.KindShake:
		return d.settings.ShakeTrigger
	}
	return false
}

func (d *Dispatcher) command(c Command, now time.Time) []logic.Event {
	switch c {
	case CommandReset:
		return d.ctrl.Reset(now)
	case CommandCalibrate:
		return d.ctrl.Calibrate(now)
	case CommandTrigger:
		return d.ctrl.Trigger(now)
	case CommandOpenSettings:
		return []logic.Event{d.ctrl.Notice(now, logic.EventOpenSettings)}
	case CommandClose:
		return []logic.Event{d.ctrl.Notice(now, logic.EventCloseApp)}
	}
	return nil
}

func (d *Dispatcher) update(s settings.Settings, now time.Time) []logic.Event {
	s = s.Normalize()
	if s == d.settings {
		return nil
	}
	d.apply(s)
	if err := d.store.Save(s); err != nil {
		d.logger.Error("save settings", slog.Any("error", err))
	}
	return []logic.Event{d.ctrl.Notice(now, logic.EventSettingsChanged)}
}

func (d *Dispatcher) apply(s settings.Settings) {
	d.settings = s
	d.ctrl.SetReturnPlan(s.ReturnPlan())
	d.rec.SetShakeSensitivity(s.ShakeSensitivity)
}
