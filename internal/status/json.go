package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/magic-clock/internal/settings"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event           string            `json:"event,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	Phase           string            `json:"phase"`
	OffsetMs        int64             `json:"offset_ms"`
	PendingSign     string            `json:"pending_sign,omitempty"`
	Blackout        bool              `json:"blackout"`
	KeypadAlpha     float64           `json:"keypad_alpha"`
	AwaitingTrigger bool              `json:"awaiting_trigger"`
	ReturnInMs      int64             `json:"return_in_ms"`
	Progress        float64           `json:"progress"`
	Display         string            `json:"display"`
	Date            string            `json:"date"`
	UptimeSeconds   int64             `json:"uptime_seconds"`
	StartTime       string            `json:"start_time"`
	Timestamp       string            `json:"timestamp"`
	MQTT            MQTTStatus        `json:"mqtt"`
	Counts          CountsJSON        `json:"counts"`
	Settings        settings.Document `json:"settings"`
	Config          ConfigJSON        `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of controller counts.
type CountsJSON struct {
	Inputs           int `json:"inputs"`
	ReturnsStarted   int `json:"returns_started"`
	ReturnsCompleted int `json:"returns_completed"`
	ReturnsSkipped   int `json:"returns_skipped"`
	Resets           int `json:"resets"`
}

// ConfigJSON is the JSON representation of process config.
type ConfigJSON struct {
	Zone        string `json:"zone"`
	FPS         int    `json:"fps"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	WSBroker    string `json:"ws_broker,omitempty"`
	ButtonPin   int    `json:"button_pin,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	f := snap.Frame
	return StatusInner{
		Phase:           f.Phase.String(),
		OffsetMs:        f.OffsetMs(),
		PendingSign:     f.PendingSign.String(),
		Blackout:        f.Blackout,
		KeypadAlpha:     f.KeypadAlpha,
		AwaitingTrigger: f.AwaitingTrigger,
		ReturnInMs:      f.ReturnIn.Milliseconds(),
		Progress:        f.Progress,
		Display:         snap.Reading.String(),
		Date:            snap.Reading.Date,
		UptimeSeconds:   int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:       snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:       snap.Now.UTC().Format(time.RFC3339),
		MQTT:            MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Inputs:           snap.Counts.Inputs,
			ReturnsStarted:   snap.Counts.ReturnsStarted,
			ReturnsCompleted: snap.Counts.ReturnsCompleted,
			ReturnsSkipped:   snap.Counts.ReturnsSkipped,
			Resets:           snap.Counts.Resets,
		},
		Settings: snap.Settings.Document(),
		Config: ConfigJSON{
			Zone:        snap.Config.Zone,
			FPS:         snap.Config.FPS,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			WSBroker:    snap.Config.WSBroker,
			ButtonPin:   snap.Config.ButtonPin,
		},
	}
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatCompact returns the JSON status on one line, for websocket frames.
func FormatCompact(snap Snapshot) []byte {
	data, _ := json.Marshal(StatusJSON{Status: buildInner(snap)})
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
