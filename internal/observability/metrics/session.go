package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics records diagnostic attempt outcomes and preview handle usage.
type SessionMetrics struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	previewHandles  prometheus.Gauge
}

func NewSessionMetrics(service string, registerer prometheus.Registerer) *SessionMetrics {
	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "attempts_total",
			Help:      "Settled submission attempts by outcome.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"outcome"},
	)
	attemptDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of submission attempts by outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"outcome"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "in_flight",
			Help:      "Number of inference requests currently outstanding.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	previewHandles := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "preview_handles",
			Help:      "Number of preview handles currently held.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	if registerer != nil {
		registerer.MustRegister(attemptsTotal, attemptDuration, inFlight, previewHandles)
	}

	return &SessionMetrics{
		attemptsTotal:   attemptsTotal,
		attemptDuration: attemptDuration,
		inFlight:        inFlight,
		previewHandles:  previewHandles,
	}
}

func (m *SessionMetrics) AttemptStarted() {
	m.inFlight.Inc()
}

func (m *SessionMetrics) AttemptFinished(outcome string, duration time.Duration) {
	m.inFlight.Dec()
	if outcome == "" {
		outcome = "unknown"
	}
	m.attemptsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.attemptDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

func (m *SessionMetrics) PreviewAcquired() {
	m.previewHandles.Inc()
}

func (m *SessionMetrics) PreviewReleased() {
	m.previewHandles.Dec()
}
