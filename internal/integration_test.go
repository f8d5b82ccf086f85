package internal

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/magic-clock/internal/gesture"
	"github.com/sweeney/magic-clock/internal/logging"
	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/mqtt"
	"github.com/sweeney/magic-clock/internal/settings"
	"github.com/sweeney/magic-clock/internal/status"
	"github.com/sweeney/magic-clock/internal/timesource"
	"github.com/sweeney/magic-clock/internal/trigger"
	"github.com/sweeney/magic-clock/internal/web"
)

var start = time.Date(2026, 2, 3, 19, 5, 51, 0, time.UTC)

// rig wires the browser decoder, dispatcher, controller, publisher and
// tracker together the way the event loop does, minus the goroutines.
type rig struct {
	t         *testing.T
	now       time.Time
	ctrl      *logic.Controller
	disp      *trigger.Dispatcher
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
}

func newRig(t *testing.T, store settings.Store) *rig {
	t.Helper()
	s, err := store.Load()
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	ctrl := logic.NewController(logic.DefaultConfig(), s.ReturnPlan(), start)
	rec := gesture.NewRecognizer(gesture.DefaultConfig(), s.ShakeSensitivity)
	return &rig{
		t:         t,
		now:       start,
		ctrl:      ctrl,
		disp:      trigger.New(ctrl, rec, store, s, trigger.WithLogger(logging.Discard())),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(start, status.Config{Zone: "UTC", FPS: 60}),
	}
}

func (r *rig) publish(events []logic.Event) {
	for _, e := range events {
		if err := r.publisher.Publish(e); err != nil {
			r.t.Fatalf("publish %s: %v", e.Type, err)
		}
	}
	r.refresh()
}

func (r *rig) refresh() {
	f := r.ctrl.Frame(r.now)
	r.tracker.Update(r.now, f, timesource.ReadAt(r.now, f.Offset), r.disp.Settings(), r.ctrl.Counts())
}

// msg feeds one websocket message after d has passed.
func (r *rig) msg(d time.Duration, format string, args ...any) {
	r.t.Helper()
	r.now = r.now.Add(d)
	in, err := web.DecodeInput([]byte(fmt.Sprintf(format, args...)), r.now)
	if err != nil {
		r.t.Fatalf("decode: %v", err)
	}
	r.publish(r.disp.Handle(in, r.now))
}

// tap presses and releases at (x, y).
func (r *rig) tap(x, y float64) {
	r.t.Helper()
	r.msg(0, `{"type":"pointer","kind":"down","points":[{"id":0,"x":%g,"y":%g}]}`, x, y)
	r.msg(80*time.Millisecond, `{"type":"pointer","kind":"up","points":[{"id":0,"x":%g,"y":%g}]}`, x, y)
}

// tapKey taps the center of the keypad cell for key on a 300x600 viewport.
func (r *rig) tapKey(key string) {
	r.t.Helper()
	for _, c := range gesture.DefaultKeypad().Cells(300, 600) {
		if c.Key.String() == key {
			r.tap(c.Center())
			return
		}
	}
	r.t.Fatalf("no keypad cell for %q", key)
}

func (r *rig) tick(d time.Duration) {
	r.now = r.now.Add(d)
	r.publish(r.ctrl.Tick(r.now))
}

func (r *rig) status() status.StatusInner {
	r.t.Helper()
	var parsed status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(r.tracker.Snapshot()), &parsed); err != nil {
		r.t.Fatalf("status JSON: %v", err)
	}
	return parsed.Status
}

// TestIntegrationTouchTrick runs the whole trick from browser touches to
// MQTT payloads and the status endpoint.
func TestIntegrationTouchTrick(t *testing.T) {
	r := newRig(t, settings.NewFakeStore(settings.Defaults()))
	r.msg(0, `{"type":"viewport","width":300,"height":600}`)

	r.tick(3 * time.Second)
	if got := r.status().Phase; got != "DARK" {
		t.Fatalf("phase = %s, want DARK", got)
	}

	r.tapKey("+")
	if st := r.status(); !st.Blackout || st.PendingSign != "+" {
		t.Fatalf("after '+': blackout=%v sign=%q", st.Blackout, st.PendingSign)
	}

	r.tapKey("5")
	st := r.status()
	if st.Phase != "LIVE" || st.OffsetMs != 300000 {
		t.Fatalf("after '5': phase=%s offset=%d", st.Phase, st.OffsetMs)
	}
	if st.Display != "19:10:54" {
		t.Errorf("display = %s, want 19:10:54", st.Display)
	}
	if st.Date != "Martes, 3 de febrero" {
		t.Errorf("date = %q", st.Date)
	}

	// Shakes are ignored while the clock counts down to its own return.
	r.tick(3 * time.Second)
	if got := r.status().Phase; got != "RETURNING" {
		t.Fatalf("phase = %s, want RETURNING", got)
	}
	r.msg(0, `{"type":"motion","x":0,"y":0,"z":0}`)
	r.msg(10*time.Millisecond, `{"type":"motion","x":30,"y":0,"z":0}`)

	r.tick(30 * time.Second)
	st = r.status()
	if st.Phase != "LIVE" || st.OffsetMs != 0 {
		t.Errorf("after return: phase=%s offset=%d", st.Phase, st.OffsetMs)
	}
	if st.Counts.ReturnsStarted != 1 || st.Counts.ReturnsCompleted != 1 {
		t.Errorf("counts = %+v", st.Counts)
	}

	want := []logic.EventType{
		logic.EventPhaseChanged,
		logic.EventBlackoutOn,
		logic.EventOffsetSet,
		logic.EventBlackoutOff,
		logic.EventPhaseChanged,
		logic.EventReturnScheduled,
		logic.EventPhaseChanged,
		logic.EventReturnStarted,
		logic.EventPhaseChanged,
		logic.EventReturnCompleted,
	}
	got := r.publisher.EventTypes()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	// Every payload is a clock envelope with a timestamp and event name.
	for i, payload := range r.publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Errorf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Clock.Timestamp == "" || parsed.Clock.Event == "" {
			t.Errorf("payload %d incomplete: %s", i, payload)
		}
	}

	var offset mqtt.Payload
	json.Unmarshal(r.publisher.Payloads[2], &offset)
	if offset.Clock.Event != "OFFSET_SET" || offset.Clock.OffsetMs != 300000 {
		t.Errorf("OFFSET_SET payload = %s", r.publisher.Payloads[2])
	}

	// Start and completion carry the same session ID.
	started, completed := r.publisher.Events[7], r.publisher.Events[9]
	if started.Session == "" || started.Session != completed.Session {
		t.Errorf("session IDs: started %q, completed %q", started.Session, completed.Session)
	}
}

// TestIntegrationTapOutsideKeypadIgnored verifies that taps in the padding
// above the grid enter nothing.
func TestIntegrationTapOutsideKeypadIgnored(t *testing.T) {
	r := newRig(t, settings.NewFakeStore(settings.Defaults()))
	r.msg(0, `{"type":"viewport","width":300,"height":600}`)
	r.tick(3 * time.Second)
	r.publisher.Reset()

	r.tap(150, 10)
	if len(r.publisher.Events) != 0 {
		t.Errorf("events = %v, want none", r.publisher.EventTypes())
	}
}

// TestIntegrationShakeTrigger verifies a shake cuts a countdown short.
func TestIntegrationShakeTrigger(t *testing.T) {
	r := newRig(t, settings.NewFakeStore(settings.Defaults()))
	r.msg(0, `{"type":"viewport","width":300,"height":600}`)
	r.tick(3 * time.Second)
	r.msg(0, `{"type":"key","key":"-"}`)
	r.msg(0, `{"type":"key","key":"9"}`)
	if got := r.status().ReturnInMs; got != 3000 {
		t.Fatalf("return in = %dms, want 3000", got)
	}

	r.msg(500*time.Millisecond, `{"type":"motion","x":0.1,"y":9.8,"z":0.2}`)
	r.msg(20*time.Millisecond, `{"type":"motion","x":12,"y":2,"z":6}`)

	st := r.status()
	if st.Phase != "RETURNING" {
		t.Fatalf("phase = %s, want RETURNING", st.Phase)
	}
	if st.ReturnInMs != 0 {
		t.Errorf("countdown still armed: %dms", st.ReturnInMs)
	}
}

// TestIntegrationSwipeMenuPersists opens the menu with a two-finger swipe,
// changes a setting and checks it survives a restart through the settings
// file.
func TestIntegrationSwipeMenuPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "magic-clock.yaml")
	r := newRig(t, settings.NewFileStore(path))
	r.msg(0, `{"type":"viewport","width":300,"height":600}`)

	r.msg(0, `{"type":"pointer","kind":"down","points":[{"id":0,"x":100,"y":100},{"id":1,"x":200,"y":100}]}`)
	r.msg(50*time.Millisecond, `{"type":"pointer","kind":"move","points":[{"id":0,"x":100,"y":200},{"id":1,"x":200,"y":200}]}`)
	r.msg(50*time.Millisecond, `{"type":"pointer","kind":"up","points":[{"id":0,"x":100,"y":200},{"id":1,"x":200,"y":200}]}`)

	types := r.publisher.EventTypes()
	if len(types) != 1 || types[0] != logic.EventOpenSettings {
		t.Fatalf("events = %v, want [OPEN_SETTINGS]", types)
	}

	r.msg(0, `{"type":"menu","name":"delay"}`)
	r.msg(0, `{"type":"menu","name":"style"}`)
	if got := r.status().Settings; *got.Delay != "5" || *got.Style != "android" {
		t.Errorf("settings = delay %s style %s", *got.Delay, *got.Style)
	}

	restarted := newRig(t, settings.NewFileStore(path))
	s := restarted.disp.Settings()
	if s.Delay != settings.Delay5s || s.Style != settings.StyleAndroid {
		t.Errorf("reloaded settings = %+v", s)
	}
	if restarted.ctrl.Plan().Delay != 5*time.Second {
		t.Errorf("reloaded plan delay = %v", restarted.ctrl.Plan().Delay)
	}
}

// TestIntegrationResetFromAnyPhase verifies the reset command returns to
// BOOT with the keypad hint showing again.
func TestIntegrationResetFromAnyPhase(t *testing.T) {
	r := newRig(t, settings.NewFakeStore(settings.Defaults()))
	r.tick(3 * time.Second)
	r.msg(0, `{"type":"key","key":"+"}`)
	r.msg(0, `{"type":"key","key":"2"}`)
	r.tick(4 * time.Second)
	if got := r.status().Phase; got != "RETURNING" {
		t.Fatalf("phase = %s, want RETURNING", got)
	}

	r.msg(time.Second, `{"type":"command","name":"reset"}`)
	st := r.status()
	if st.Phase != "BOOT" || st.OffsetMs != 0 || st.KeypadAlpha != 1 {
		t.Errorf("after reset: %+v", st)
	}
	if st.Counts.Resets != 1 {
		t.Errorf("resets = %d", st.Counts.Resets)
	}

	// The boot timer was re-armed.
	r.tick(3 * time.Second)
	if got := r.status().Phase; got != "DARK" {
		t.Errorf("phase = %s, want DARK", got)
	}
}

// TestIntegrationStartupShutdownPayloads verifies system events carry the
// full status document.
func TestIntegrationStartupShutdownPayloads(t *testing.T) {
	r := newRig(t, settings.NewFakeStore(settings.Defaults()))
	r.refresh()

	startup := mqtt.SystemEvent{
		Timestamp:  start,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(r.tracker.Snapshot(), "STARTUP", ""),
	}
	if err := r.publisher.PublishSystem(startup); err != nil {
		t.Fatalf("publish startup: %v", err)
	}

	r.tick(3 * time.Second)
	r.msg(0, `{"type":"key","key":"+"}`)
	r.msg(0, `{"type":"key","key":"1"}`)

	shutdown := mqtt.SystemEvent{
		Timestamp:  r.now,
		Event:      "SHUTDOWN",
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(r.tracker.Snapshot(), "SHUTDOWN", "SIGTERM"),
	}
	if err := r.publisher.PublishSystem(shutdown); err != nil {
		t.Fatalf("publish shutdown: %v", err)
	}

	names := r.publisher.SystemEventNames()
	if len(names) != 2 || names[0] != "STARTUP" || names[1] != "SHUTDOWN" {
		t.Fatalf("system events = %v", names)
	}

	var first, last status.StatusJSON
	if err := json.Unmarshal(r.publisher.SystemPayloads[0], &first); err != nil {
		t.Fatalf("startup payload: %v", err)
	}
	if err := json.Unmarshal(r.publisher.SystemPayloads[1], &last); err != nil {
		t.Fatalf("shutdown payload: %v", err)
	}
	if first.Status.Event != "STARTUP" || first.Status.Phase != "BOOT" {
		t.Errorf("startup status = %s/%s", first.Status.Event, first.Status.Phase)
	}
	if last.Status.Event != "SHUTDOWN" || last.Status.Reason != "SIGTERM" {
		t.Errorf("shutdown status = %s/%s", last.Status.Event, last.Status.Reason)
	}
	if last.Status.OffsetMs != 60000 || last.Status.Counts.Inputs != 2 {
		t.Errorf("shutdown status offset=%d inputs=%d", last.Status.OffsetMs, last.Status.Counts.Inputs)
	}
	if last.Status.UptimeSeconds != 3 {
		t.Errorf("uptime = %d, want 3", last.Status.UptimeSeconds)
	}
}
