package observability

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tour", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tour", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tour", Name: "external_requests_total", Help: "Outbound source calls."},
		[]string{"source", "outcome"}, // outcome: ok|not_found|error
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tour", Name: "external_request_duration_seconds",
			Help:    "Outbound source call duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	CascadeResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tour", Name: "cascade_resolutions_total", Help: "Cascade outcomes by winning layer."},
		[]string{"layer"}, // places|alternative_names|geocoding|gemini_coordinates|cache|default
	)
	ResolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tour", Name: "resolve_duration_seconds",
			Help:    "Wall-clock duration of a full tour resolution.",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
	DegradationLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "tour", Name: "degradation_level", Help: "Active degradation level (0 full .. 4 minimal)."},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tour", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
)

func Serve() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency,
		CascadeResolutions, ResolveDuration, DegradationLevel, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(source, outcome string, dur time.Duration) {
	ExternalRequests.WithLabelValues(source, outcome).Inc()
	ExternalLatency.WithLabelValues(source).Observe(dur.Seconds())
}

func ObserveCascade(layer string) {
	CascadeResolutions.WithLabelValues(layer).Inc()
}

func ObserveResolve(dur time.Duration) {
	ResolveDuration.Observe(dur.Seconds())
}

func SetDegradationLevel(level int) {
	DegradationLevel.Set(float64(level))
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}
