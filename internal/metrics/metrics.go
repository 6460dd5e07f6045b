package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
)

// DatabaseMetrics exposes database/sql pool statistics as gauges
type DatabaseMetrics struct {
	openConnections    prometheus.Gauge
	inUseConnections   prometheus.Gauge
	idleConnections    prometheus.Gauge
	maxOpenConnections prometheus.Gauge
	waitCount          prometheus.Gauge
	waitDuration       prometheus.Gauge
}

func NewDatabaseMetrics(namespace string) *DatabaseMetrics {
	return &DatabaseMetrics{
		openConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_open_connections",
			Help:      "Number of established connections both in use and idle",
		}),
		inUseConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_in_use_connections",
			Help:      "Number of connections currently in use",
		}),
		idleConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_idle_connections",
			Help:      "Number of idle connections",
		}),
		maxOpenConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_max_open_connections",
			Help:      "Maximum number of open connections to the database",
		}),
		waitCount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_wait_count",
			Help:      "Total number of connections waited for",
		}),
		waitDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_wait_duration_seconds",
			Help:      "Total time blocked waiting for a new connection",
		}),
	}
}

// UpdateDBStats refreshes the gauges from a pool stats snapshot
func (m *DatabaseMetrics) UpdateDBStats(stats sql.DBStats) {
	m.openConnections.Set(float64(stats.OpenConnections))
	m.inUseConnections.Set(float64(stats.InUse))
	m.idleConnections.Set(float64(stats.Idle))
	m.maxOpenConnections.Set(float64(stats.MaxOpenConnections))
	m.waitCount.Set(float64(stats.WaitCount))
	m.waitDuration.Set(stats.WaitDuration.Seconds())
}

// PipelineMetrics tracks analysis throughput across the HTTP handlers and
// queue workers
type PipelineMetrics struct {
	PostsProcessed  *prometheus.CounterVec
	TopicsExtracted prometheus.Counter
	BatchDuration   prometheus.Histogram
	JobsTotal       *prometheus.CounterVec
	QueueWaitTime   *prometheus.HistogramVec
}

func NewPipelineMetrics(namespace string) *PipelineMetrics {
	return &PipelineMetrics{
		PostsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_processed_total",
			Help:      "Posts seen by the analysis pipeline by outcome",
		}, []string{"status"}),
		TopicsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topics_extracted_total",
			Help:      "Batch-level topics extracted",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time spent analyzing one batch of posts",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		JobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Queue jobs handled by task type and final status",
		}, []string{"type", "status"}),
		QueueWaitTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Time tasks spent in the queue before a worker picked them up",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"task_type"}),
	}
}

// ObserveDurationWithExemplar records a duration and, when the context carries
// a sampled span, attaches the trace ID as an exemplar so dashboards can jump
// from a latency bucket to the trace behind it.
func ObserveDurationWithExemplar(ctx context.Context, obs prometheus.Observer, seconds float64) {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() && sc.IsSampled() {
		if eo, ok := obs.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(seconds, prometheus.Labels{"trace_id": sc.TraceID().String()})
			return
		}
	}
	obs.Observe(seconds)
}

// HTTPMetrics counts requests and measures latency per route. The normalize
// function collapses paths with embedded IDs into a bounded label set.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	normalize func(path string) string
}

func NewHTTPMetrics(namespace string, normalize func(path string) string) *HTTPMetrics {
	if normalize == nil {
		normalize = func(path string) string { return path }
	}
	return &HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status code",
		}, []string{"method", "path", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and path",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 30},
		}, []string{"method", "path"}),
		normalize: normalize,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the wrapped handler
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := m.normalize(r.URL.Path)
		m.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		ObserveDurationWithExemplar(r.Context(),
			m.RequestDuration.WithLabelValues(r.Method, path),
			time.Since(start).Seconds())
	})
}
