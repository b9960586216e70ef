package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	loadTotal    *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
	loadInFlight prometheus.Gauge
	recordsTotal *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	loadTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nfa",
			Subsystem: "worker",
			Name:      "dataset_load_total",
			Help:      "Total staged dataset loads by status.",
		},
		[]string{"service", "status"},
	)
	loadDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nfa",
			Subsystem: "worker",
			Name:      "dataset_load_duration_seconds",
			Help:      "Staged dataset load duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	loadInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nfa",
			Subsystem: "worker",
			Name:      "dataset_load_in_flight",
			Help:      "Number of in-flight staged dataset loads.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	recordsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nfa",
			Subsystem: "worker",
			Name:      "records_loaded_total",
			Help:      "Total line-item records loaded by staged runs.",
		},
		[]string{"service"},
	)

	registry.MustRegister(loadTotal, loadDuration, loadInFlight, recordsTotal)

	return &WorkerMetrics{
		registry:     registry,
		loadTotal:    loadTotal,
		loadDuration: loadDuration,
		loadInFlight: loadInFlight,
		recordsTotal: recordsTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartLoad() {
	m.loadInFlight.Inc()
}

func (m *WorkerMetrics) FinishLoad(service string, duration time.Duration, records int64, err error) {
	m.loadInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.loadTotal.WithLabelValues(service, status).Inc()
	m.loadDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err == nil && records > 0 {
		m.recordsTotal.WithLabelValues(service).Add(float64(records))
	}
}
