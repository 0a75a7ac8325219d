package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus gauges/counters the REST server exposes at
// /metrics, sourced from FxEngine.DroppedTicks, the FxEngine's instance
// count, and UniverseTransmitter.ConsecutiveErrors. Each Server owns its own registry rather than
// registering against prometheus's global default, so multiple Servers (as
// constructed in tests) never collide over the same collector names.
type Metrics struct {
	Registry *prometheus.Registry

	DroppedTicks     prometheus.Gauge
	ActiveInstances  prometheus.Gauge
	TransmitterError prometheus.Gauge
}

// NewMetrics returns a fresh Metrics with its own private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		DroppedTicks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "halofx",
			Subsystem: "fx",
			Name:      "dropped_ticks",
			Help:      "Cumulative ticks conflated away because the previous tick was still processing.",
		}),
		ActiveInstances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "halofx",
			Subsystem: "fx",
			Name:      "active_instances",
			Help:      "Number of FxInstances currently in the engine's table.",
		}),
		TransmitterError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "halofx",
			Subsystem: "dmx",
			Name:      "transmitter_consecutive_errors",
			Help:      "Largest run of consecutive UDP send failures across the wired universe transmitters.",
		}),
	}
	m.Registry.MustRegister(m.DroppedTicks, m.ActiveInstances, m.TransmitterError)
	return m
}

// SampleMetrics refreshes the gauges from current engine state. Callers poll this
// periodically (halofxd does so once per second) rather than wiring a push
// path into the engine's hot tick loop.
func (s *Server) SampleMetrics() {
	s.metrics.ActiveInstances.Set(float64(len(s.engine.Snapshot())))
	s.metrics.DroppedTicks.Set(float64(s.engine.DroppedTicks()))

	s.mu.Lock()
	transmitters := s.transmitters
	s.mu.Unlock()

	var worst int
	for _, t := range transmitters {
		if n := t.ConsecutiveErrors(); n > worst {
			worst = n
		}
	}
	s.metrics.TransmitterError.Set(float64(worst))
}
