package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"musicd/internal/manager"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "musicd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "musicd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "musicd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "musicd",
			Subsystem: "http",
			Name:      "backpressure_total",
			Help:      "Total backpressure rejections (429)",
		},
		[]string{"reason"},
	)

	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "musicd",
			Subsystem: "model",
			Name:      "loads_total",
			Help:      "Model loads by variant and result",
		},
		[]string{"variant", "result"},
	)

	modelLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "musicd",
			Subsystem: "model",
			Name:      "load_duration_seconds",
			Help:      "Duration of successful model loads",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"variant"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "musicd",
			Subsystem: "generation",
			Name:      "total",
			Help:      "Generations by variant and result kind",
		},
		[]string{"variant", "result"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "musicd",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Wall-clock time spent generating audio",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 80, 160, 320},
		},
		[]string{"variant"},
	)

	audioSecondsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "musicd",
			Subsystem: "generation",
			Name:      "audio_seconds_total",
			Help:      "Seconds of audio generated",
		},
		[]string{"variant"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration, httpInflight, backpressureTotal,
		modelLoadsTotal, modelLoadDuration, generationsTotal, generationDuration, audioSecondsTotal,
	)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		// The route pattern is only known after routing.
		path := routePatternOrPath(r)
		statusLabel := strconv.Itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(dur)
	})
}

// inflightMiddleware tracks in-flight requests per route pattern. It must be
// installed on routes so the pattern is already resolved.
func inflightMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		httpInflight.WithLabelValues(path).Inc()
		defer httpInflight.WithLabelValues(path).Dec()
		next.ServeHTTP(w, r)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementBackpressure is called when returning 429 to the client
func IncrementBackpressure(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	backpressureTotal.WithLabelValues(reason).Inc()
}

// MetricsPublisher turns manager lifecycle events into Prometheus series.
type MetricsPublisher struct{}

func (MetricsPublisher) Publish(e manager.Event) {
	switch e.Name {
	case "load_ready":
		modelLoadsTotal.WithLabelValues(e.Variant, "ok").Inc()
		if ms, ok := e.Fields["dur_ms"].(int64); ok {
			modelLoadDuration.WithLabelValues(e.Variant).Observe(float64(ms) / 1000)
		}
	case "load_error":
		modelLoadsTotal.WithLabelValues(e.Variant, "error").Inc()
	case "generate_done":
		generationsTotal.WithLabelValues(e.Variant, "ok").Inc()
		if ms, ok := e.Fields["dur_ms"].(int64); ok {
			generationDuration.WithLabelValues(e.Variant).Observe(float64(ms) / 1000)
		}
		if s, ok := e.Fields["duration_s"].(float64); ok {
			audioSecondsTotal.WithLabelValues(e.Variant).Add(s)
		}
	case "generate_error":
		kind, _ := e.Fields["kind"].(string)
		if kind == "" {
			kind = "error"
		}
		generationsTotal.WithLabelValues(e.Variant, kind).Inc()
	}
}
