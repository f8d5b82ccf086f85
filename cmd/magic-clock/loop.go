package main

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/metrics"
	"github.com/sweeney/magic-clock/internal/mqtt"
	"github.com/sweeney/magic-clock/internal/status"
	"github.com/sweeney/magic-clock/internal/timesource"
	"github.com/sweeney/magic-clock/internal/trigger"
)

// loop holds everything owned by the event loop goroutine. Nothing here may
// be touched from another goroutine while runLoop is running.
type loop struct {
	ctrl       *logic.Controller
	disp       *trigger.Dispatcher
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // nil when MQTT is off
	tracker    *status.Tracker
	metrics    *metrics.Metrics // optional
	sinks      []status.Sink
	eventSinks []status.EventSink
	heartbeat  time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// runLoop serves inputs and frame ticks until a signal arrives, the context
// is cancelled or the user closes the app.
func runLoop(ctx context.Context, l *loop, tick <-chan time.Time, inputs <-chan trigger.Input, sig <-chan os.Signal) error {
	for {
		select {
		case <-ctx.Done():
			l.shutdown("CANCELLED")
			return nil

		case s := <-sig:
			l.logger.Info("shutting down", slog.String("signal", s.String()))
			l.shutdown(signalName(s))
			return nil

		case in := <-inputs:
			t := l.now()
			if _, ok := in.(trigger.KeyInput); ok && l.metrics != nil {
				l.metrics.ObserveKey()
			}
			events := l.disp.Handle(in, t)
			l.emit(t, events)
			if closesApp(events) {
				l.logger.Info("closed by user")
				l.shutdown("CLOSE_APP")
				return nil
			}

		case <-tick:
			t := l.now()
			l.emit(t, l.ctrl.Tick(t))

			snap := l.refresh(t)
			for _, s := range l.sinks {
				s.Render(snap)
			}
			if l.metrics != nil {
				l.metrics.SetFrame(snap.Frame)
			}
			l.checkHeartbeat(t)
		}
	}
}

// emit logs, publishes and fans out controller events. Events are logged at
// debug level unless the debug setting is on.
func (l *loop) emit(t time.Time, events []logic.Event) {
	if len(events) == 0 {
		return
	}

	level := slog.LevelDebug
	if l.disp.Settings().Debug {
		level = slog.LevelInfo
	}
	for _, e := range events {
		l.logger.Log(context.Background(), level, "event",
			slog.String("type", string(e.Type)),
			slog.String("phase", e.Phase.String()),
			slog.Int64("offset_ms", e.Offset.Milliseconds()))
		if err := l.publisher.Publish(e); err != nil {
			l.logger.Warn("publish error", slog.String("event", string(e.Type)), slog.Any("error", err))
		}
	}
	if l.metrics != nil {
		l.metrics.ObserveEvents(events)
	}

	snap := l.refresh(t)
	for _, s := range l.eventSinks {
		s.Notify(snap, events)
	}
}

// refresh records the state at t in the tracker and returns the snapshot.
func (l *loop) refresh(t time.Time) status.Snapshot {
	frame := l.ctrl.Frame(t)
	l.tracker.Update(t, frame, timesource.ReadAt(t, frame.Offset), l.disp.Settings(), l.ctrl.Counts())
	if l.mqttStatus != nil {
		up := l.mqttStatus.IsConnected()
		l.tracker.SetMQTTConnected(up)
		if l.metrics != nil {
			l.metrics.SetMQTTConnected(up)
		}
	}
	return l.tracker.Snapshot()
}

func (l *loop) checkHeartbeat(t time.Time) {
	hb := l.ctrl.CheckHeartbeat(t, l.heartbeat)
	if hb == nil {
		return
	}
	l.logger.Info("heartbeat",
		slog.Duration("uptime", hb.Uptime),
		slog.String("phase", hb.Phase.String()),
		slog.Int("inputs", hb.Counts.Inputs),
		slog.Int("returns_completed", hb.Counts.ReturnsCompleted),
		slog.Int("resets", hb.Counts.Resets))

	event := mqtt.SystemEvent{
		Timestamp:  hb.Timestamp,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", ""),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Warn("heartbeat publish error", slog.Any("error", err))
	}
}

// startup publishes the retained STARTUP event with a full status snapshot.
func (l *loop) startup() {
	t := l.now()
	snap := l.refresh(t)
	event := mqtt.SystemEvent{
		Timestamp:  t,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Warn("failed to publish startup event", slog.Any("error", err))
		return
	}
	l.logger.Info("published startup event")
}

func (l *loop) shutdown(reason string) {
	t := l.now()
	snap := l.refresh(t)
	event := mqtt.SystemEvent{
		Timestamp:  t,
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Warn("failed to publish shutdown event", slog.Any("error", err))
		return
	}
	l.logger.Info("published shutdown event", slog.String("reason", reason))
}

func closesApp(events []logic.Event) bool {
	for _, e := range events {
		if e.Type == logic.EventCloseApp {
			return true
		}
	}
	return false
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
