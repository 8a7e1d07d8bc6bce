// Package metrics exposes watch loop counters over Prometheus. The tick
// path increments plain atomics; collectors read them lazily on scrape.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all engine counters.
type Metrics struct {
	// Tick loop
	Ticks          atomic.Uint64
	TickDurationMs atomic.Uint64 // last tick, in ms
	WatchActive    atomic.Uint64 // 0 or 1

	// Emitted events by kind
	Hits          atomic.Uint64
	PercentEvents atomic.Uint64
	ValueEvents   atomic.Uint64

	// Failure paths
	CaptureFailures atomic.Uint64 // frame size probe failed, tick skipped
	DetectorSkips   atomic.Uint64 // single detector grab failed
	RejectedReads   atomic.Uint64 // digit reads over the hamming budget

	// Event stream
	WSClients atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.register()
	return m
}

func (m *Metrics) register() {
	gauges := []struct {
		name string
		help string
		fn   func() float64
	}{
		{"hudpulse_ticks_total", "Ticks processed since start", counter(&m.Ticks)},
		{"hudpulse_tick_duration_ms", "Duration of the last tick in milliseconds", counter(&m.TickDurationMs)},
		{"hudpulse_watch_active", "Whether a watch is running (0/1)", counter(&m.WatchActive)},
		{"hudpulse_hits_total", "hit_recorded events emitted", counter(&m.Hits)},
		{"hudpulse_health_percent_events_total", "health_percent events emitted", counter(&m.PercentEvents)},
		{"hudpulse_health_value_events_total", "health_value events emitted", counter(&m.ValueEvents)},
		{"hudpulse_capture_failures_total", "Ticks skipped because the frame size probe failed", counter(&m.CaptureFailures)},
		{"hudpulse_detector_skips_total", "Detector evaluations skipped after a failed grab", counter(&m.DetectorSkips)},
		{"hudpulse_rejected_reads_total", "Digit readouts rejected by the matching budget", counter(&m.RejectedReads)},
		{"hudpulse_ws_clients", "Connected event stream clients", counter(&m.WSClients)},
	}

	for _, g := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			g.fn,
		))
	}
}

func counter(v *atomic.Uint64) func() float64 {
	return func() float64 { return float64(v.Load()) }
}

// RecordEvent bumps the counter matching an emitted event kind.
func (m *Metrics) RecordEvent(kind string) {
	switch kind {
	case "hit_recorded":
		m.Hits.Add(1)
	case "health_percent":
		m.PercentEvents.Add(1)
	case "health_value":
		m.ValueEvents.Add(1)
	}
}

// RecordTick stores the duration of a finished tick.
func (m *Metrics) RecordTick(d time.Duration) {
	m.Ticks.Add(1)
	m.TickDurationMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
