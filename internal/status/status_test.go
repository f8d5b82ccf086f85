package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/settings"
	"github.com/sweeney/magic-clock/internal/timesource"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func liveSnapshot() Snapshot {
	return Snapshot{
		Frame: logic.Frame{
			Phase:    logic.PhaseReturning,
			Offset:   -90 * time.Second,
			Progress: 0.25,
		},
		Reading:       timesource.Reading{Hours: 9, Minutes: 5, Seconds: 7, Date: "Jueves, 1 de enero"},
		Settings:      settings.Defaults(),
		Counts:        logic.Counts{Inputs: 2, ReturnsStarted: 1},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Zone: "Europe/Madrid", FPS: 60, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"},
	}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{FPS: 60, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) || !snap.Now.Equal(start) {
		t.Errorf("times: start=%v now=%v", snap.StartTime, snap.Now)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Frame.Phase != logic.PhaseBoot {
		t.Errorf("expected BOOT initially, got %s", snap.Frame.Phase)
	}
	if snap.Settings != settings.Defaults() {
		t.Error("expected default settings initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(start, Config{})

	now := start.Add(time.Minute)
	frame := logic.Frame{Phase: logic.PhaseLive, Offset: 3 * time.Minute}
	reading := timesource.Reading{Hours: 12, Minutes: 4}
	s := settings.Defaults().ToggleTap()
	tr.Update(now, frame, reading, s, logic.Counts{Inputs: 2})

	snap := tr.Snapshot()
	if snap.Frame != frame {
		t.Errorf("Frame: got %+v", snap.Frame)
	}
	if snap.Reading != reading {
		t.Errorf("Reading: got %+v", snap.Reading)
	}
	if !snap.Settings.TapTrigger {
		t.Error("settings not recorded")
	}
	if snap.Counts.Inputs != 2 {
		t.Errorf("Counts.Inputs: got %d", snap.Counts.Inputs)
	}
	if snap.Uptime() != time.Minute {
		t.Errorf("Uptime: got %v", snap.Uptime())
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.Update(start, logic.Frame{Phase: logic.PhaseDark}, timesource.Reading{}, settings.Defaults(), logic.Counts{})

	snap1 := tr.Snapshot()
	tr.Update(start, logic.Frame{Phase: logic.PhaseLive}, timesource.Reading{}, settings.Defaults(), logic.Counts{})

	if snap1.Frame.Phase != logic.PhaseDark {
		t.Error("snapshot should be a copy; phase was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	data := FormatJSON(liveSnapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Phase != "RETURNING" {
		t.Errorf("Phase: got %q", s.Phase)
	}
	if s.OffsetMs != -90000 {
		t.Errorf("OffsetMs: got %d", s.OffsetMs)
	}
	if s.Progress != 0.25 {
		t.Errorf("Progress: got %v", s.Progress)
	}
	if s.Display != "09:05:07" || s.Date != "Jueves, 1 de enero" {
		t.Errorf("Display/Date: got %q %q", s.Display, s.Date)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Counts.ReturnsStarted != 1 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.Settings.Delay == nil || *s.Settings.Delay != "3" {
		t.Errorf("Settings.Delay: got %v", s.Settings.Delay)
	}
	if s.Config.Zone != "Europe/Madrid" || s.Config.FPS != 60 {
		t.Errorf("Config: got %+v", s.Config)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected no event/reason for web format, got %q %q", s.Event, s.Reason)
	}
}

func TestFormatJSONOmitsEmptySign(t *testing.T) {
	data := FormatCompact(liveSnapshot())

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, exists := raw["status"]["pending_sign"]; exists {
		t.Error("pending_sign should be omitted when no sign is pending")
	}
}

func TestFormatJSONPendingSign(t *testing.T) {
	snap := liveSnapshot()
	snap.Frame = logic.Frame{Phase: logic.PhaseDark, PendingSign: logic.SignMinus, Blackout: true}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatCompact(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.PendingSign != "-" || !parsed.Status.Blackout {
		t.Errorf("got sign %q blackout %v", parsed.Status.PendingSign, parsed.Status.Blackout)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	data := FormatStatusEvent(liveSnapshot(), "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	data := FormatStatusEvent(liveSnapshot(), "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("got %q/%q", parsed.Status.Event, parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	data := FormatStatusEvent(liveSnapshot(), "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(start, Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(start.Add(time.Duration(i)*time.Millisecond), logic.Frame{Offset: time.Duration(i)},
				timesource.Reading{}, settings.Defaults(), logic.Counts{Inputs: i})
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatCompact(snap)
		}
	}()

	wg.Wait()
}

func TestFace(t *testing.T) {
	snap := liveSnapshot()

	f := snap.Face()
	if f.Dark {
		t.Fatal("expected lit face")
	}
	if len(f.Lines) != 2 || f.Lines[0] != "Jueves, 1 de enero" || f.Lines[1] != "09:05" {
		t.Errorf("iOS lines: got %q", f.Lines)
	}

	snap.Settings = snap.Settings.ToggleStyle()
	f = snap.Face()
	if f.Lines[0] != "09:05" || f.Lines[1] != "Jueves, 1 de enero" {
		t.Errorf("Android lines: got %q", f.Lines)
	}

	snap.Frame.Blackout = true
	snap.Frame.KeypadAlpha = 0.5
	f = snap.Face()
	if !f.Dark || len(f.Lines) != 0 || f.KeypadAlpha != 0.5 {
		t.Errorf("blackout face: got %+v", f)
	}
}

func TestFaceDarkness(t *testing.T) {
	tests := []struct {
		name  string
		frame logic.Frame
		dark  bool
	}{
		{"boot shows the clock", logic.Frame{Phase: logic.PhaseBoot}, false},
		{"boot with sign pending", logic.Frame{Phase: logic.PhaseBoot, Blackout: true}, true},
		{"dark without sign", logic.Frame{Phase: logic.PhaseDark}, true},
		{"dark with sign pending", logic.Frame{Phase: logic.PhaseDark, Blackout: true}, true},
		{"live", logic.Frame{Phase: logic.PhaseLive, Offset: time.Minute}, false},
		{"returning", logic.Frame{Phase: logic.PhaseReturning, Offset: time.Minute}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := liveSnapshot()
			snap.Frame = tt.frame
			f := snap.Face()
			if f.Dark != tt.dark {
				t.Errorf("Dark = %v, want %v", f.Dark, tt.dark)
			}
			if tt.dark && len(f.Lines) != 0 {
				t.Errorf("dark face has lines %q", f.Lines)
			}
			if !tt.dark && len(f.Lines) != 2 {
				t.Errorf("lit face lines = %q", f.Lines)
			}
		})
	}
}
