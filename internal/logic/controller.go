package logic

import (
	"time"

	"github.com/google/uuid"
)

// Default timings.
const (
	DefaultBootShow  = 2000 * time.Millisecond
	DefaultBootFade  = 600 * time.Millisecond
	DefaultBootGrace = 200 * time.Millisecond

	// ReturnEpsilon is the smallest offset worth animating back to zero.
	// Anything below it is snapped to zero instead.
	ReturnEpsilon = 500 * time.Millisecond

	// DigitStep is the offset contributed by one unit of a digit key.
	DigitStep = time.Minute
)

// Config holds controller timings.
type Config struct {
	// BootShow is how long the keypad hint stays fully visible after boot.
	BootShow time.Duration
	// BootFade is the hint fade-out duration following BootShow.
	BootFade time.Duration
	// BootGrace is an extra margin before BOOT advances to DARK.
	BootGrace time.Duration
	// Epsilon is the near-zero threshold for starting a return.
	Epsilon time.Duration
	// NewID generates return session IDs. Defaults to uuid.NewString.
	NewID func() string
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		BootShow:  DefaultBootShow,
		BootFade:  DefaultBootFade,
		BootGrace: DefaultBootGrace,
		Epsilon:   ReturnEpsilon,
		NewID:     uuid.NewString,
	}
}

// Controller owns all trick state: phase, offset, pending sign, the return
// session and the two cancellable timers (boot advance, delayed return).
// It is not safe for concurrent use; the caller's event loop owns it.
type Controller struct {
	cfg  Config
	plan ReturnPlan

	phase    Phase
	offset   time.Duration
	pending  Sign
	blackout bool
	awaiting bool
	session  *ReturnSession

	bootTimer         Timer
	returnTimer       Timer
	scheduledDuration time.Duration

	hintStart     time.Time
	startTime     time.Time
	lastHeartbeat time.Time
	counts        Counts
}

// NewController creates a controller in PhaseBoot at now and arms the
// BOOT→DARK timer.
func NewController(cfg Config, plan ReturnPlan, now time.Time) *Controller {
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	c := &Controller{
		cfg:           cfg,
		plan:          plan,
		startTime:     now,
		lastHeartbeat: now,
	}
	c.boot(now)
	return c
}

func (c *Controller) boot(now time.Time) {
	c.phase = PhaseBoot
	c.hintStart = now
	c.bootTimer.Arm(now, c.cfg.BootShow+c.cfg.BootFade+c.cfg.BootGrace)
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Offset returns the offset currently applied to the displayed time.
func (c *Controller) Offset() time.Duration {
	return c.offset
}

// PendingSign returns the sign waiting for a digit.
func (c *Controller) PendingSign() Sign {
	return c.pending
}

// Blackout reports whether the blackout presentation is requested.
func (c *Controller) Blackout() bool {
	return c.blackout
}

// AwaitingTrigger reports whether a return is waiting for a tap/shake.
func (c *Controller) AwaitingTrigger() bool {
	return c.awaiting
}

// ReturnPending reports whether a delayed return countdown is running.
func (c *Controller) ReturnPending() bool {
	return c.returnTimer.Armed()
}

// Session returns the in-flight return session, if any.
func (c *Controller) Session() (ReturnSession, bool) {
	if c.session == nil {
		return ReturnSession{}, false
	}
	return *c.session, true
}

// Counts returns a copy of the activity counters.
func (c *Controller) Counts() Counts {
	return c.counts
}

// Plan returns the return plan used for automatic returns.
func (c *Controller) Plan() ReturnPlan {
	return c.plan
}

// SetReturnPlan replaces the return plan. A countdown already running keeps
// the duration it was scheduled with.
func (c *Controller) SetReturnPlan(plan ReturnPlan) {
	c.plan = plan
}

// Notice builds an event of the given type from the current state without
// changing anything.
func (c *Controller) Notice(now time.Time, typ EventType) Event {
	return c.event(now, typ)
}

// AdvanceAfterBoot moves BOOT to DARK. It does nothing once the phase has
// left BOOT (e.g. the user already entered an offset).
func (c *Controller) AdvanceAfterBoot(now time.Time) []Event {
	if c.phase != PhaseBoot {
		return nil
	}
	c.bootTimer.Cancel()
	return c.setPhase(now, PhaseDark)
}

// Press applies a keypad key. Keys are only accepted in BOOT and DARK; a
// digit other than zero needs a pending sign. Anything else is ignored.
func (c *Controller) Press(key Key, now time.Time) []Event {
	if !c.phase.AcceptsKeys() {
		return nil
	}

	if s := key.Sign(); s != SignNone {
		// Last sign wins.
		c.pending = s
		c.blackout = true
		c.counts.Inputs++
		return []Event{c.event(now, EventBlackoutOn)}
	}

	d, ok := key.Digit()
	if !ok {
		return nil
	}

	if d == 0 {
		c.pending = SignNone
		c.offset = 0
		c.counts.Inputs++
		return c.acceptInput(now)
	}

	if c.pending == SignNone {
		return nil
	}

	c.offset = time.Duration(c.pending) * time.Duration(d) * DigitStep
	c.pending = SignNone
	c.counts.Inputs++
	events := c.acceptInput(now)
	return append(events, c.ScheduleReturn(now)...)
}

// acceptInput completes an entry: blackout lifts and the clock goes live.
func (c *Controller) acceptInput(now time.Time) []Event {
	c.bootTimer.Cancel()
	events := []Event{c.event(now, EventOffsetSet)}
	if c.blackout {
		c.blackout = false
		events = append(events, c.event(now, EventBlackoutOff))
	}
	return append(events, c.setPhase(now, PhaseLive)...)
}

// ScheduleReturn arranges the return according to the current plan: wait for
// a trigger, count down the delay, or start immediately.
func (c *Controller) ScheduleReturn(now time.Time) []Event {
	return c.scheduleReturn(now, c.plan)
}

// Trigger handles a return trigger (tap, shake, remote button). It schedules
// a return with no delay, replacing any countdown. Nothing happens when the
// clock is not live or there is nothing to return.
func (c *Controller) Trigger(now time.Time) []Event {
	if c.phase != PhaseLive {
		return nil
	}
	if !c.awaiting && !c.returnTimer.Armed() && abs(c.offset) < c.cfg.Epsilon {
		return nil
	}
	return c.scheduleReturn(now, ReturnPlan{Duration: c.plan.Duration})
}

func (c *Controller) scheduleReturn(now time.Time, plan ReturnPlan) []Event {
	if c.phase != PhaseLive {
		return nil
	}
	c.CancelReturn()

	switch {
	case plan.AwaitTrigger:
		c.awaiting = true
		return []Event{c.event(now, EventReturnAwaiting)}
	case plan.Delay > 0:
		c.returnTimer.Arm(now, plan.Delay)
		c.scheduledDuration = plan.Duration
		e := c.event(now, EventReturnScheduled)
		e.Delay = plan.Delay
		return []Event{e}
	default:
		return c.startReturn(now, plan.Duration)
	}
}

// CancelReturn drops a pending countdown or wait-for-trigger. A return that
// is already animating is not affected.
func (c *Controller) CancelReturn() {
	c.returnTimer.Cancel()
	c.awaiting = false
}

// StartReturn begins easing the offset to zero using the plan's duration.
func (c *Controller) StartReturn(now time.Time) []Event {
	return c.startReturn(now, c.plan.Duration)
}

func (c *Controller) startReturn(now time.Time, d time.Duration) []Event {
	// A stale timer may land here after the phase moved on.
	if c.phase != PhaseLive {
		return nil
	}
	c.CancelReturn()

	if abs(c.offset) < c.cfg.Epsilon {
		c.offset = 0
		c.counts.ReturnsSkipped++
		return []Event{c.event(now, EventReturnSkipped)}
	}

	c.pending = SignNone
	c.session = &ReturnSession{
		ID:          c.cfg.NewID(),
		Start:       now,
		StartOffset: c.offset,
		Duration:    d,
	}
	c.counts.ReturnsStarted++
	events := c.setPhase(now, PhaseReturning)
	return append(events, c.event(now, EventReturnStarted))
}

// Tick advances timers and the return animation. Call it every frame.
func (c *Controller) Tick(now time.Time) []Event {
	var events []Event

	if c.bootTimer.Fire(now) {
		events = append(events, c.AdvanceAfterBoot(now)...)
	}
	if c.returnTimer.Fire(now) {
		events = append(events, c.startReturn(now, c.scheduledDuration)...)
	}

	if c.phase != PhaseReturning || c.session == nil {
		return events
	}

	if now.Sub(c.session.Start) >= c.session.Duration {
		id := c.session.ID
		c.offset = 0
		c.session = nil
		c.counts.ReturnsCompleted++
		events = append(events, c.setPhase(now, PhaseLive)...)
		e := c.event(now, EventReturnCompleted)
		e.Session = id
		return append(events, e)
	}

	c.offset = easedOffset(c.session.StartOffset, c.session.Progress(now))
	return events
}

// Reset returns to BOOT from any phase: offset and sign are cleared, all
// timers and any animation are cancelled, and the boot timer is re-armed.
func (c *Controller) Reset(now time.Time) []Event {
	c.CancelReturn()
	c.session = nil
	c.offset = 0
	c.pending = SignNone
	c.blackout = false
	c.counts.Resets++

	events := c.setPhase(now, PhaseBoot)
	c.boot(now)
	return append(events, c.event(now, EventReset))
}

// Calibrate snaps the offset to zero and cancels any return. An animating
// return ends in LIVE. The phase is otherwise kept.
func (c *Controller) Calibrate(now time.Time) []Event {
	c.CancelReturn()
	c.offset = 0
	c.pending = SignNone
	c.blackout = false

	var events []Event
	if c.phase == PhaseReturning {
		c.session = nil
		events = c.setPhase(now, PhaseLive)
	}
	return append(events, c.event(now, EventCalibrated))
}

// Frame returns the render view at now.
func (c *Controller) Frame(now time.Time) Frame {
	f := Frame{
		Phase:           c.phase,
		Offset:          c.offset,
		PendingSign:     c.pending,
		Blackout:        c.blackout,
		KeypadAlpha:     c.keypadAlpha(now),
		AwaitingTrigger: c.awaiting,
		ReturnIn:        c.returnTimer.Remaining(now),
	}
	if c.session != nil {
		f.Progress = c.session.Progress(now)
	}
	return f
}

// keypadAlpha is fully visible for BootShow after boot, then fades linearly
// over BootFade. Outside BOOT the hint is hidden.
func (c *Controller) keypadAlpha(now time.Time) float64 {
	if c.phase != PhaseBoot {
		return 0
	}
	since := now.Sub(c.hintStart)
	if since < c.cfg.BootShow {
		return 1
	}
	if c.cfg.BootFade <= 0 {
		return 0
	}
	return clampUnit(1 - float64(since-c.cfg.BootShow)/float64(c.cfg.BootFade))
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Phase:     c.phase,
		Counts:    c.counts,
	}
}

func (c *Controller) setPhase(now time.Time, p Phase) []Event {
	if c.phase == p {
		return nil
	}
	from := c.phase
	c.phase = p
	e := c.event(now, EventPhaseChanged)
	e.From = from
	return []Event{e}
}

func (c *Controller) event(now time.Time, typ EventType) Event {
	e := Event{
		Timestamp: now,
		Type:      typ,
		Phase:     c.phase,
		Offset:    c.offset,
	}
	if c.session != nil {
		e.Session = c.session.ID
	}
	return e
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
