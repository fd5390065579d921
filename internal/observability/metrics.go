package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the client.
type Metrics struct {
	RecordingState   prometheus.Gauge
	RecordingEvents  *prometheus.CounterVec
	RecordedBytes    prometheus.Counter
	LiveObjectURLs   prometheus.Gauge
	BackendRequests  *prometheus.CounterVec
	BackendLatency   *prometheus.HistogramVec
	ControlMessages  *prometheus.CounterVec
	StatusSubscribed prometheus.Gauge

	window *latencyWindow
}

// NewMetrics registers instruments with the default Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers instruments with reg; tests pass a fresh registry.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecordingState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording_state",
			Help:      "Recording session state (0 idle, 1 requesting, 2 recording, 3 stopping).",
		}),
		RecordingEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_events_total",
			Help:      "Recording session events by type.",
		}, []string{"event"}),
		RecordedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorded_bytes_total",
			Help:      "Bytes of finalized recordings.",
		}),
		LiveObjectURLs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_object_urls",
			Help:      "Object URLs currently referencing recorded audio.",
		}),
		BackendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		BackendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_latency_ms",
			Help:      "Backend request latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000},
		}, []string{"endpoint"}),
		ControlMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_messages_total",
			Help:      "Control messages received on the local API by transport and action.",
		}, []string{"transport", "action"}),
		StatusSubscribed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "status_subscribers",
			Help:      "Connected status feed subscribers.",
		}),
		window: newLatencyWindow(256),
	}
}

// ObserveRequest records one backend call. outcome is "ok" or an error code.
func (m *Metrics) ObserveRequest(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Milliseconds())
	m.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
	m.BackendLatency.WithLabelValues(endpoint).Observe(ms)
	m.window.Observe(endpoint, ms)
	m.window.ObserveOutcome(endpoint + ":" + outcome)
}

func (m *Metrics) ObserveRecordingEvent(event string) {
	if m == nil {
		return
	}
	m.RecordingEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) SetRecordingState(state int) {
	if m == nil {
		return
	}
	m.RecordingState.Set(float64(state))
}

func (m *Metrics) AddRecordedBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordedBytes.Add(float64(n))
}

func (m *Metrics) SetLiveObjectURLs(n int) {
	if m == nil {
		return
	}
	m.LiveObjectURLs.Set(float64(n))
}

func (m *Metrics) SnapshotLatency() LatencySnapshot {
	if m == nil || m.window == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC(), Endpoints: []RequestStats{}}
	}
	return m.window.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// MetricsHandlerFor serves a specific gatherer, used with NewMetricsWith registries.
func MetricsHandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
