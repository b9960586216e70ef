package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	loadsTotal           *prometheus.CounterVec
	loadDuration         *prometheus.HistogramVec
	recordsLoadedTotal   *prometheus.CounterVec
	invoicesSkippedTotal *prometheus.CounterVec
	itemsSkippedTotal    *prometheus.CounterVec
	queriesTotal         *prometheus.CounterVec
	queryDuration        *prometheus.HistogramVec
	exportsTotal         *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nfa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nfa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nfa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	loadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nfa",
			Subsystem: "load",
			Name:      "runs_total",
			Help:      "Total dataset load runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	loadDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nfa",
			Subsystem: "load",
			Name:      "duration_seconds",
			Help:      "Dataset load duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service"},
	)
	recordsLoadedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nfa",
			Subsystem: "load",
			Name:      "records_total",
			Help:      "Total line-item records written to dataset stores.",
		},
		[]string{"service"},
	)
	invoicesSkippedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nfa",
			Subsystem: "load",
			Name:      "invoices_skipped_total",
			Help:      "Total invoices skipped for missing header fields.",
		},
		[]string{"service"},
	)
	itemsSkippedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nfa",
			Subsystem: "load",
			Name:      "items_skipped_total",
			Help:      "Total line items skipped for missing product or tax blocks.",
		},
		[]string{"service"},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nfa",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total dataset queries by outcome.",
		},
		[]string{"service", "outcome"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nfa",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Dataset query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nfa",
			Subsystem: "export",
			Name:      "workbooks_total",
			Help:      "Total XLSX exports by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		loadsTotal,
		loadDuration,
		recordsLoadedTotal,
		invoicesSkippedTotal,
		itemsSkippedTotal,
		queriesTotal,
		queryDuration,
		exportsTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		loadsTotal:           loadsTotal,
		loadDuration:         loadDuration,
		recordsLoadedTotal:   recordsLoadedTotal,
		invoicesSkippedTotal: invoicesSkippedTotal,
		itemsSkippedTotal:    itemsSkippedTotal,
		queriesTotal:         queriesTotal,
		queryDuration:        queryDuration,
		exportsTotal:         exportsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses fingerprints so the path label stays bounded.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/datasets/") {
		return path
	}
	rest := strings.TrimPrefix(path, "/v1/datasets/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 1 {
		return "/v1/datasets/{fingerprint}"
	}
	return "/v1/datasets/{fingerprint}/" + parts[1]
}

func (m *HTTPServerMetrics) RecordLoad(service string, duration time.Duration, records, invoicesSkipped, itemsSkipped int64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.loadsTotal.WithLabelValues(service, outcome).Inc()
	m.loadDuration.WithLabelValues(service).Observe(duration.Seconds())
	if err != nil {
		return
	}
	m.recordsLoadedTotal.WithLabelValues(service).Add(float64(records))
	m.invoicesSkippedTotal.WithLabelValues(service).Add(float64(invoicesSkipped))
	m.itemsSkippedTotal.WithLabelValues(service).Add(float64(itemsSkipped))
}

func (m *HTTPServerMetrics) RecordQuery(service string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.queriesTotal.WithLabelValues(service, outcome).Inc()
	m.queryDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordExport(service string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.exportsTotal.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
