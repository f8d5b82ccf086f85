// Package status provides a thread-safe view of the clock for HTTP handlers,
// the websocket feed and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/settings"
	"github.com/sweeney/magic-clock/internal/timesource"
)

// Config contains process configuration for display.
type Config struct {
	Zone        string
	FPS         int
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
	ButtonPin   int    // 0 = no button
}

// Snapshot is a point-in-time view of the clock.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Frame         logic.Frame
	Reading       timesource.Reading
	Settings      settings.Settings
	Counts        logic.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the process started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Sink receives a snapshot every frame.
type Sink interface {
	Render(Snapshot)
}

// EventSink receives controller events together with the snapshot taken
// right after they happened.
type EventSink interface {
	Notify(Snapshot, []logic.Event)
}

// Tracker holds the latest snapshot behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Now:       startTime,
			Config:    cfg,
			Settings:  settings.Defaults(),
		},
	}
}

// Update records the state of one frame. Called from runLoop on every tick.
func (t *Tracker) Update(now time.Time, frame logic.Frame, reading timesource.Reading, s settings.Settings, counts logic.Counts) {
	t.mu.Lock()
	t.snap.Now = now
	t.snap.Frame = frame
	t.snap.Reading = reading
	t.snap.Settings = s
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a copy of the latest state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}
