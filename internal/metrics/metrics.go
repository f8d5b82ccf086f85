// Package metrics exposes Prometheus collectors for the clock.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/magic-clock/internal/gesture"
	"github.com/sweeney/magic-clock/internal/logic"
)

const namespace = "magic_clock"

// Metrics holds the collectors and the registry they are registered with.
type Metrics struct {
	reg *prometheus.Registry

	gestures *prometheus.CounterVec
	events   *prometheus.CounterVec
	keys     prometheus.Counter
	phase    *prometheus.GaugeVec
	offset   prometheus.Gauge
	mqtt     prometheus.Gauge
}

// New creates a registry with the clock collectors plus the Go and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newWith(reg)
}

func newWith(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		reg: reg,
		gestures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gestures_total",
			Help:      "Recognized gestures by kind.",
		}, []string{"kind"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Controller events by type.",
		}, []string{"type"}),
		keys: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_total",
			Help:      "Keypad presses delivered to the controller.",
		}),
		phase: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "1 for the current phase, 0 otherwise.",
		}, []string{"phase"}),
		offset: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "offset_seconds",
			Help:      "Offset currently applied to the displayed time.",
		}),
		mqtt: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the MQTT broker connection is up.",
		}),
	}
	for _, p := range []logic.Phase{logic.PhaseBoot, logic.PhaseDark, logic.PhaseLive, logic.PhaseReturning} {
		m.phase.WithLabelValues(p.String())
	}
	for _, k := range gesture.Kinds {
		m.gestures.WithLabelValues(k.String())
	}
	return m
}

// ObserveGesture counts a recognized gesture.
func (m *Metrics) ObserveGesture(g gesture.Gesture) {
	m.gestures.WithLabelValues(g.Kind.String()).Inc()
}

// ObserveKey counts a keypad press.
func (m *Metrics) ObserveKey() {
	m.keys.Inc()
}

// ObserveEvents counts controller events.
func (m *Metrics) ObserveEvents(events []logic.Event) {
	for _, e := range events {
		m.events.WithLabelValues(string(e.Type)).Inc()
	}
}

// SetFrame records the phase and offset of the latest frame.
func (m *Metrics) SetFrame(f logic.Frame) {
	for _, p := range []logic.Phase{logic.PhaseBoot, logic.PhaseDark, logic.PhaseLive, logic.PhaseReturning} {
		v := 0.0
		if p == f.Phase {
			v = 1
		}
		m.phase.WithLabelValues(p.String()).Set(v)
	}
	m.offset.Set(f.Offset.Seconds())
}

// SetMQTTConnected records the broker connection state.
func (m *Metrics) SetMQTTConnected(up bool) {
	if up {
		m.mqtt.Set(1)
		return
	}
	m.mqtt.Set(0)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
