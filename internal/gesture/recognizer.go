package gesture

import (
	"math"
	"time"
)

// Recognizer decodes pointer and motion samples. It is not safe for
// concurrent use.
type Recognizer struct {
	cfg           Config
	width, height float64
	sensitivity   float64

	// single touch
	touching         bool
	multi            bool
	downAt           time.Time
	originX, originY float64
	lastX, lastY     float64
	maxDX, maxDY     float64

	// two-finger swipe
	twoDown   bool
	twoActive bool
	twoStartY float64

	// shake
	hasMotion  bool
	prevMotion MotionSample
	shaken     bool
	lastShake  time.Time
}

// NewRecognizer creates a recognizer. SetViewport must be called before long
// presses can be recognized.
func NewRecognizer(cfg Config, shakeSensitivity float64) *Recognizer {
	return &Recognizer{cfg: cfg, sensitivity: shakeSensitivity}
}

// SetViewport sets the surface size in pixels.
func (r *Recognizer) SetViewport(width, height float64) {
	r.width, r.height = width, height
}

// Viewport returns the surface size in pixels.
func (r *Recognizer) Viewport() (width, height float64) {
	return r.width, r.height
}

// SetShakeSensitivity sets the magnitude a shake must exceed.
func (r *Recognizer) SetShakeSensitivity(s float64) {
	r.sensitivity = s
}

// Pointer feeds one pointer sample and returns any gesture it completes.
func (r *Recognizer) Pointer(e PointerEvent) []Gesture {
	if e.Kind == PointerCancel {
		r.resetTouch()
		return nil
	}

	var out []Gesture
	n := len(e.Points)

	if n >= 2 {
		if r.touching {
			r.multi = true
		}
		if g, ok := r.twoFinger(e); ok {
			out = append(out, g)
		}
		if e.Kind == PointerUp {
			// One of the fingers lifted.
			r.twoDown = false
			r.twoActive = false
		}
		return out
	}
	r.twoDown = false
	r.twoActive = false

	if n == 0 {
		if e.Kind == PointerUp && r.touching {
			return r.release(r.lastX, r.lastY, e.Time)
		}
		return nil
	}

	p := e.Points[0]
	switch e.Kind {
	case PointerDown:
		if !r.touching {
			r.touching = true
			r.multi = false
			r.downAt = e.Time
			r.originX, r.originY = p.X, p.Y
			r.maxDX, r.maxDY = 0, 0
		}
		r.track(p)
	case PointerMove:
		if r.touching {
			r.track(p)
		}
	case PointerUp:
		if r.touching {
			r.track(p)
			return r.release(p.X, p.Y, e.Time)
		}
	}
	return out
}

func (r *Recognizer) twoFinger(e PointerEvent) (Gesture, bool) {
	avg := (e.Points[0].Y + e.Points[1].Y) / 2
	if !r.twoDown {
		r.twoDown = true
		r.twoActive = true
		r.twoStartY = avg
		return Gesture{}, false
	}
	if !r.twoActive {
		return Gesture{}, false
	}

	delta := avg - r.twoStartY
	switch {
	case delta > r.cfg.SwipeThreshold:
		r.twoActive = false
		return Gesture{Kind: KindSwipeDown, Time: e.Time}, true
	case delta < -r.cfg.SwipeThreshold:
		r.twoActive = false
		return Gesture{Kind: KindSwipeUp, Time: e.Time}, true
	}
	return Gesture{}, false
}

func (r *Recognizer) track(p Point) {
	r.lastX, r.lastY = p.X, p.Y
	r.maxDX = math.Max(r.maxDX, math.Abs(p.X-r.originX))
	r.maxDY = math.Max(r.maxDY, math.Abs(p.Y-r.originY))
}

func (r *Recognizer) release(x, y float64, now time.Time) []Gesture {
	multi := r.multi
	held := now.Sub(r.downAt)
	originY := r.originY
	maxDX, maxDY := r.maxDX, r.maxDY
	r.resetTouch()

	if multi {
		return nil
	}

	if held >= r.cfg.LongPressMinHeld &&
		maxDX < r.cfg.LongPressMaxMove && maxDY < r.cfg.LongPressMaxMove &&
		r.height > 0 && originY < r.height*r.cfg.LongPressZone {
		return []Gesture{{Kind: KindLongPress, Time: now, X: x, Y: y, Held: held}}
	}

	if held < r.cfg.TapMaxHeld && maxDX < r.cfg.TapMaxMove && maxDY < r.cfg.TapMaxMove {
		return []Gesture{{Kind: KindTap, Time: now, X: x, Y: y, Held: held}}
	}
	return nil
}

func (r *Recognizer) resetTouch() {
	r.touching = false
	r.multi = false
	r.twoDown = false
	r.twoActive = false
}

// Motion feeds one accelerometer sample. The first sample only primes the
// baseline. A shake is accepted when the summed axis change strictly exceeds
// the sensitivity and the cooldown since the last accepted shake has passed.
func (r *Recognizer) Motion(s MotionSample) (Gesture, bool) {
	if !r.hasMotion {
		r.hasMotion = true
		r.prevMotion = s
		return Gesture{}, false
	}

	mag := math.Abs(s.X-r.prevMotion.X) + math.Abs(s.Y-r.prevMotion.Y) + math.Abs(s.Z-r.prevMotion.Z)
	r.prevMotion = s

	if mag <= r.sensitivity {
		return Gesture{}, false
	}
	if r.shaken && s.Time.Sub(r.lastShake) < r.cfg.ShakeCooldown {
		return Gesture{}, false
	}
	r.shaken = true
	r.lastShake = s.Time
	return Gesture{Kind: KindShake, Time: s.Time, Magnitude: mag}, true
}
