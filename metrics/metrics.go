// Package metrics holds the Prometheus collectors for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openstream_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds, by route, method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	RequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openstream_http_requests_in_flight",
		Help: "Number of HTTP requests currently being served.",
	})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openstream_uploads_total",
		Help: "Video submissions by type and outcome.",
	}, []string{"type", "outcome"})

	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openstream_moderation_actions_total",
		Help: "Moderation actions by action and resulting state.",
	}, []string{"action", "state"})

	YouTubeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openstream_youtube_lookups_total",
		Help: "YouTube duration lookups by outcome.",
	}, []string{"outcome"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openstream_cache_hits_total",
		Help: "Duration cache hits.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openstream_cache_misses_total",
		Help: "Duration cache misses.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request duration keyed by the chi route pattern, which
// keeps label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RequestsInFlight.Inc()
		defer RequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestDuration.WithLabelValues(route, r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
