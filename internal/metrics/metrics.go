// Package metrics exposes the small set of counters that make ducking
// behavior observable: what the prober sees, which transitions fired, and
// whether control commands made it out.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundloop/camduck/internal/logging"
)

type Metrics struct {
	CameraActive    prometheus.Gauge
	Transitions     *prometheus.CounterVec
	Commands        *prometheus.CounterVec
	DebounceCancels prometheus.Counter

	registry *prometheus.Registry
}

// New builds a collector backed by its own registry, so tests can create as
// many as they like without duplicate-registration panics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		CameraActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "camduck_camera_active",
			Help: "Last raw camera reading (1 active, 0 inactive)",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camduck_transitions_total",
			Help: "Committed ducking state transitions",
		}, []string{"direction"}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camduck_control_commands_total",
			Help: "Control channel commands by outcome",
		}, []string{"status"}),
		DebounceCancels: factory.NewCounter(prometheus.CounterOpts{
			Name: "camduck_debounce_cancels_total",
			Help: "Armed mute timers cancelled by camera reactivation",
		}),
		registry: registry,
	}
}

// Serve exposes /metrics on addr in a background goroutine. Listener errors
// are logged, never fatal; metrics are a convenience, not a dependency.
func (m *Metrics) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Infof("metrics listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Warnf("metrics server: %v", err)
		}
	}()
}
