package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recipe"

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	httpDuration    *prometheus.HistogramVec
	authCacheHits   prometheus.Counter
	authCacheMisses prometheus.Counter
	authFailures    *prometheus.CounterVec
	tokensIssued    prometheus.Counter
	created         *prometheus.CounterVec
	updated         *prometheus.CounterVec
	deleted         *prometheus.CounterVec
	imageUploads    *prometheus.CounterVec
}

// NewPrometheus builds a recorder on a fresh registry that also carries
// the Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		authCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_cache_hits_total",
			Help:      "Total number of auth context cache hits",
		}),
		authCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_cache_misses_total",
			Help:      "Total number of auth context cache misses",
		}),
		authFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of rejected authentication attempts",
		}, []string{"reason"}),
		tokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_tokens_issued_total",
			Help:      "Total number of login tokens issued",
		}),
		created: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_created_total",
			Help:      "Total number of entities created",
		}, []string{"kind"}),
		updated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_updated_total",
			Help:      "Total number of entities updated",
		}, []string{"kind"}),
		deleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_deleted_total",
			Help:      "Total number of entities deleted",
		}, []string{"kind"}),
		imageUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_uploads_total",
			Help:      "Total number of recipe image uploads by outcome",
		}, []string{"status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records request latency by route pattern.
func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// IncAuthCacheHit increments cache hit counter.
func (p *PrometheusRecorder) IncAuthCacheHit() { p.authCacheHits.Inc() }

// IncAuthCacheMiss increments cache miss counter.
func (p *PrometheusRecorder) IncAuthCacheMiss() { p.authCacheMisses.Inc() }

// IncAuthFailure increments the failure counter for reason.
func (p *PrometheusRecorder) IncAuthFailure(reason string) {
	p.authFailures.WithLabelValues(reason).Inc()
}

// IncTokenIssued increments the issued token counter.
func (p *PrometheusRecorder) IncTokenIssued() { p.tokensIssued.Inc() }

// IncEntityCreated increments the created counter for kind.
func (p *PrometheusRecorder) IncEntityCreated(kind string) { p.created.WithLabelValues(kind).Inc() }

// IncEntityUpdated increments the updated counter for kind.
func (p *PrometheusRecorder) IncEntityUpdated(kind string) { p.updated.WithLabelValues(kind).Inc() }

// IncEntityDeleted increments the deleted counter for kind.
func (p *PrometheusRecorder) IncEntityDeleted(kind string) { p.deleted.WithLabelValues(kind).Inc() }

// IncImageUpload increments the upload counter for status.
func (p *PrometheusRecorder) IncImageUpload(status string) {
	p.imageUploads.WithLabelValues(status).Inc()
}
