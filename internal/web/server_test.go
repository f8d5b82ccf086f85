package web

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/magic-clock/internal/gesture"
	"github.com/sweeney/magic-clock/internal/logging"
	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/settings"
	"github.com/sweeney/magic-clock/internal/status"
	"github.com/sweeney/magic-clock/internal/timesource"
	"github.com/sweeney/magic-clock/internal/trigger"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	ts     *httptest.Server
	tr     *status.Tracker
	srv    *Server
	inputs chan trigger.Input
}

func newTestServer(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	cfg := status.Config{
		Zone:        "Europe/Madrid",
		FPS:         60,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
	}
	tr := status.NewTracker(start, cfg)
	inputs := make(chan trigger.Input, 8)
	opts = append([]Option{
		WithInputs(inputs),
		WithLogger(logging.Discard()),
		WithClock(func() time.Time { return start }),
	}, opts...)
	srv := New(":0", tr, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().Close()
		ts.Close()
	})
	return &testEnv{ts: ts, tr: tr, srv: srv, inputs: inputs}
}

func (e *testEnv) nextInput(t *testing.T) trigger.Input {
	t.Helper()
	select {
	case in := <-e.inputs:
		return in
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for input")
		return nil
	}
}

func TestJSONEndpoint(t *testing.T) {
	env := newTestServer(t)
	env.tr.Update(start.Add(time.Minute),
		logic.Frame{Phase: logic.PhaseLive, Offset: 5 * time.Minute},
		timesource.Reading{Hours: 1, Minutes: 6, Date: "Jueves, 1 de enero"},
		settings.Defaults(), logic.Counts{Inputs: 2, ReturnsStarted: 1})
	env.tr.SetMQTTConnected(true)

	resp, err := http.Get(env.ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Phase != "LIVE" || sj.Status.OffsetMs != 300000 {
		t.Errorf("phase/offset: got %s/%d", sj.Status.Phase, sj.Status.OffsetMs)
	}
	if sj.Status.Display != "01:06:00" {
		t.Errorf("display: got %q", sj.Status.Display)
	}
	if !sj.Status.MQTT.Connected || sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT: got %+v", sj.Status.MQTT)
	}
	if sj.Status.Counts.Inputs != 2 {
		t.Errorf("Counts.Inputs: got %d, want 2", sj.Status.Counts.Inputs)
	}
	if sj.Status.UptimeSeconds != 60 {
		t.Errorf("uptime: got %d, want 60", sj.Status.UptimeSeconds)
	}
}

func TestFacePage(t *testing.T) {
	for _, path := range []string{"/", "/index.html"} {
		t.Run(path, func(t *testing.T) {
			env := newTestServer(t)
			env.tr.Update(start, logic.Frame{Phase: logic.PhaseDark},
				timesource.Reading{Hours: 9, Minutes: 41, Date: "Jueves, 1 de enero"},
				settings.Defaults(), logic.Counts{})

			resp, err := http.Get(env.ts.URL + path)
			if err != nil {
				t.Fatalf("GET %s: %v", path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != 200 {
				t.Errorf("status: got %d, want 200", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type: got %q, want text/html", ct)
			}
			var buf bytes.Buffer
			buf.ReadFrom(resp.Body)
			body := buf.String()
			for _, want := range []string{"09:41", "Jueves, 1 de enero", "style-ios", "Delay: 3", `data-menu="delay"`, `id="blackout" class="active"`} {
				if !strings.Contains(body, want) {
					t.Errorf("expected %q in page", want)
				}
			}
		})
	}
}

func TestStatusPage(t *testing.T) {
	env := newTestServer(t)
	env.tr.Update(start.Add(90*time.Second), logic.Frame{Phase: logic.PhaseLive, PendingSign: logic.SignNone},
		timesource.Reading{Hours: 9, Minutes: 41, Seconds: 5}, settings.Defaults(), logic.Counts{Resets: 3})

	resp, err := http.Get(env.ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	body := buf.String()
	for _, want := range []string{"LIVE", "09:41:05", "1m 30s", "Europe/Madrid", "<td>3</td>"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in status page", want)
		}
	}
	if strings.Contains(body, "Pending sign") {
		t.Error("pending sign row should be hidden when no sign is pending")
	}
}

func TestSnapshotPNG(t *testing.T) {
	env := newTestServer(t)

	resp, err := http.Get(env.ts.URL + "/snapshot.png")
	if err != nil {
		t.Fatalf("GET /snapshot.png: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type: got %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != faceW*snapshotScale || b.Dy() != faceH*snapshotScale {
		t.Errorf("size: got %v", b)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok_metric 1\n")) })
	env := newTestServer(t, WithMetrics(h))

	resp, err := http.Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	env := newTestServer(t)

	for _, path := range []string{"/nonexistent", "/metrics"} {
		resp, err := http.Get(env.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != 404 {
			t.Errorf("%s: got %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestAPICommands(t *testing.T) {
	env := newTestServer(t)

	tests := []struct {
		path string
		want trigger.Input
	}{
		{"/api/command/reset", trigger.CommandInput{Command: trigger.CommandReset}},
		{"/api/command/calibrate", trigger.CommandInput{Command: trigger.CommandCalibrate}},
		{"/api/command/trigger", trigger.CommandInput{Command: trigger.CommandTrigger}},
		{"/api/menu/delay", trigger.MenuInput{Action: trigger.MenuCycleDelay}},
		{"/api/key/7", trigger.KeyInput{Key: '7'}},
	}
	for _, tt := range tests {
		resp, err := http.Post(env.ts.URL+tt.path, "", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("%s: status %d, want 202", tt.path, resp.StatusCode)
			continue
		}
		if got := env.nextInput(t); got != tt.want {
			t.Errorf("%s: got %#v, want %#v", tt.path, got, tt.want)
		}
	}
}

func TestAPIUnknownCommand(t *testing.T) {
	env := newTestServer(t)
	for _, path := range []string{"/api/command/explode", "/api/menu/volume", "/api/key/x"} {
		resp, err := http.Post(env.ts.URL+path, "", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestAPIReadOnlyWithoutInputs(t *testing.T) {
	tr := status.NewTracker(start, status.Config{})
	srv := New(":0", tr, WithLogger(logging.Discard()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/command/reset", "", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("got %d, want 503", resp.StatusCode)
	}
}

func TestAPIRefusedDuringShutdown(t *testing.T) {
	tr := status.NewTracker(start, status.Config{})
	inputs := make(chan trigger.Input) // nobody reads: the loop has stopped
	srv := New(":0", tr, WithInputs(inputs), WithLogger(logging.Discard()))

	codes := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/command/trigger", nil))
		codes <- rec.Code
	}()
	srv.Hub().Close()

	select {
	case code := <-codes:
		if code != http.StatusServiceUnavailable {
			t.Errorf("got %d, want 503", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler still blocked after shutdown began")
	}
}

func TestAPISettings(t *testing.T) {
	env := newTestServer(t)

	resp, err := http.Get(env.ts.URL + "/api/settings")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var doc settings.Document
	json.NewDecoder(resp.Body).Decode(&doc)
	resp.Body.Close()
	if doc.Delay == nil || *doc.Delay != "3" || doc.Style == nil || *doc.Style != "ios" {
		t.Errorf("unexpected settings document: %+v", doc)
	}

	req, _ := http.NewRequest(http.MethodPut, env.ts.URL+"/api/settings", strings.NewReader(`{"delay":"tap","shake_sensitivity":25}`))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("PUT status: got %d", resp.StatusCode)
	}

	in, ok := env.nextInput(t).(trigger.SettingsInput)
	if !ok {
		t.Fatal("expected SettingsInput")
	}
	got := in.Document.Apply(settings.Defaults())
	if got.Delay != settings.DelayOnTrigger || got.ShakeSensitivity != 25 {
		t.Errorf("applied settings: got %+v", got)
	}
}

func TestAPISettingsRejectsUnknownFields(t *testing.T) {
	env := newTestServer(t)
	req, _ := http.NewRequest(http.MethodPut, env.ts.URL+"/api/settings", strings.NewReader(`{"volume":11}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("got %d, want 400", resp.StatusCode)
	}
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for env.srv.Hub().Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestWebsocketInput(t *testing.T) {
	env := newTestServer(t)
	conn := dialWS(t, env)

	msg := `{"type":"pointer","kind":"down","points":[{"id":0,"x":10,"y":20}]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Garbage is skipped, the connection stays usable.
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"button"}`))

	in, ok := env.nextInput(t).(trigger.PointerInput)
	if !ok {
		t.Fatal("expected PointerInput")
	}
	if in.Event.Kind != gesture.PointerDown || in.Event.Points[0].Y != 20 || !in.Event.Time.Equal(start) {
		t.Errorf("unexpected pointer event: %+v", in.Event)
	}
	if _, ok := env.nextInput(t).(trigger.ButtonInput); !ok {
		t.Error("expected ButtonInput after ignored message")
	}
}

func TestWebsocketFramesAndEvents(t *testing.T) {
	env := newTestServer(t)
	conn := dialWS(t, env)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	snap := env.tr.Snapshot()
	snap.Frame = logic.Frame{Phase: logic.PhaseLive, Offset: time.Minute}
	env.srv.Hub().Render(snap)

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame status.StatusJSON
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("frame JSON: %v", err)
	}
	if frame.Status.Phase != "LIVE" || frame.Status.OffsetMs != 60000 {
		t.Errorf("frame: got %+v", frame.Status)
	}

	env.srv.Hub().Notify(snap, []logic.Event{{Type: logic.EventOpenSettings, Phase: logic.PhaseLive}})
	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	var em EventMessage
	if err := json.Unmarshal(data, &em); err != nil {
		t.Fatalf("events JSON: %v", err)
	}
	if len(em.Events) != 1 || em.Events[0].Event != "OPEN_SETTINGS" {
		t.Errorf("events: got %+v", em.Events)
	}
	if len(em.Menu) != len(trigger.MenuActions) || em.Menu[3].Label != "Delay: 3" {
		t.Errorf("menu: got %+v", em.Menu)
	}
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	env := newTestServer(t)
	conn := dialWS(t, env)

	env.srv.Hub().Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
	if env.srv.Hub().Clients() != 0 {
		t.Errorf("clients after close: %d", env.srv.Hub().Clients())
	}
}

var _ status.Sink = (*Hub)(nil)
var _ status.EventSink = (*Hub)(nil)
