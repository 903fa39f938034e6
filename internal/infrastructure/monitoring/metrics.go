// Package monitoring exposes Prometheus metrics for the windowing
// core: layout passes, animation churn, crash recovery, state
// persistence, and the renderer bridge.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Layout metrics
	LayoutPasses  *prometheus.CounterVec
	LayoutSkipped prometheus.Counter

	// Animation metrics
	AnimationsStarted    prometheus.Counter
	AnimationsSuperseded prometheus.Counter

	// Window lifecycle metrics
	WindowsCreated   *prometheus.CounterVec
	WindowsDestroyed *prometheus.CounterVec

	// Crash recovery metrics
	CrashesTotal     *prometheus.CounterVec
	RecoveryAttempts *prometheus.CounterVec
	RecoveryFailures *prometheus.CounterVec

	// Content-fit resize metrics
	ResizeRequests  prometheus.Counter
	ResizeCoalesced prometheus.Counter

	// Bridge metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// State persistence metrics
	StateSaves      prometheus.Counter
	StateSaveErrors prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector on a specific registry.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	auto := promauto.With(reg)
	return &Metrics{
		startTime: time.Now(),

		LayoutPasses: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_layout_passes_total",
				Help: "Total number of layout passes by trigger",
			},
			[]string{"trigger"},
		),
		LayoutSkipped: auto.NewCounter(
			prometheus.CounterOpts{
				Name: "overlay_layout_skipped_total",
				Help: "Layout passes skipped due to missing windows or displays",
			},
		),

		AnimationsStarted: auto.NewCounter(
			prometheus.CounterOpts{
				Name: "overlay_animations_started_total",
				Help: "Total number of animations started",
			},
		),
		AnimationsSuperseded: auto.NewCounter(
			prometheus.CounterOpts{
				Name: "overlay_animations_superseded_total",
				Help: "Animations replaced by a newer request before completion",
			},
		),

		WindowsCreated: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_windows_created_total",
				Help: "Windows created by name",
			},
			[]string{"window"},
		),
		WindowsDestroyed: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_windows_destroyed_total",
				Help: "Windows destroyed by name",
			},
			[]string{"window"},
		),

		CrashesTotal: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_crashes_total",
				Help: "Renderer crashes by crash type",
			},
			[]string{"type"},
		),
		RecoveryAttempts: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_recovery_attempts_total",
				Help: "Window recreation attempts by window name",
			},
			[]string{"window"},
		),
		RecoveryFailures: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_recovery_failures_total",
				Help: "Window recreation failures by window name",
			},
			[]string{"window"},
		),

		ResizeRequests: auto.NewCounter(
			prometheus.CounterOpts{
				Name: "overlay_resize_requests_total",
				Help: "Content-fit resize requests received from renderers",
			},
		),
		ResizeCoalesced: auto.NewCounter(
			prometheus.CounterOpts{
				Name: "overlay_resize_coalesced_total",
				Help: "Resize requests coalesced within a single frame",
			},
		),

		WSConnections: auto.NewGauge(
			prometheus.GaugeOpts{
				Name: "overlay_ws_connections",
				Help: "Active renderer bridge connections",
			},
		),
		WSMessages: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_ws_messages_total",
				Help: "Bridge messages by intent type",
			},
			[]string{"intent"},
		),

		StateSaves: auto.NewCounter(
			prometheus.CounterOpts{
				Name: "overlay_state_saves_total",
				Help: "Application state saves",
			},
		),
		StateSaveErrors: auto.NewCounter(
			prometheus.CounterOpts{
				Name: "overlay_state_save_errors_total",
				Help: "Application state save failures",
			},
		),

		Uptime: auto.NewGauge(
			prometheus.GaugeOpts{
				Name: "overlay_uptime_seconds",
				Help: "Host process uptime in seconds",
			},
		),
	}
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
