package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rosterd",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rosterd",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})

	SlowRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rosterd",
		Name:      "http_slow_requests_total",
		Help:      "Requests exceeding the slow-request threshold.",
	}, []string{"method", "path"})

	// Database pool

	DBPoolAcquired = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rosterd",
		Name:      "db_pool_acquired_conns",
		Help:      "Connections currently acquired from the pool.",
	})

	DBPoolTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rosterd",
		Name:      "db_pool_total_conns",
		Help:      "Total connections held by the pool.",
	})

	// Cache

	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rosterd",
		Name:      "cache_hits_total",
		Help:      "Cache hits per typed cache.",
	}, []string{"cache"})

	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rosterd",
		Name:      "cache_misses_total",
		Help:      "Cache misses per typed cache.",
	}, []string{"cache"})

	// Solver

	SolverRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rosterd",
		Name:      "solver_runs_total",
		Help:      "Solver invocations by result status.",
	}, []string{"status"})

	SolverDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rosterd",
		Name:      "solver_duration_seconds",
		Help:      "Wall-clock time per solver run.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	SolverQueueRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rosterd",
		Name:      "solver_queue_rejections_total",
		Help:      "Generation requests rejected because the worker pool was busy.",
	})

	// Broadcaster

	BroadcastClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rosterd",
		Name:      "broadcast_clients",
		Help:      "Connected realtime clients.",
	})

	BroadcastDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rosterd",
		Name:      "broadcast_dropped_clients_total",
		Help:      "Clients dropped for full outbound queues or missed heartbeats.",
	})

	BroadcastEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rosterd",
		Name:      "broadcast_events_total",
		Help:      "Events published, by type.",
	}, []string{"type"})

	// Auth

	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rosterd",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, by endpoint class.",
	}, []string{"class"})

	LoginFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rosterd",
		Name:      "login_failures_total",
		Help:      "Failed login attempts.",
	})
)

func Register() {
	prometheus.MustRegister(
		HTTPRequestDuration,
		HTTPRequestsTotal,
		SlowRequestsTotal,
		DBPoolAcquired,
		DBPoolTotal,
		CacheHits,
		CacheMisses,
		SolverRunsTotal,
		SolverDuration,
		SolverQueueRejections,
		BroadcastClients,
		BroadcastDrops,
		BroadcastEventsTotal,
		RateLimitedTotal,
		LoginFailuresTotal,
	)
}

// HealthHandlers is satisfied by *health.Checker.
type HealthHandlers interface {
	LivenessHandler() http.Handler
	ReadinessHandler() http.Handler
}

func NewServer(addr string, checker HealthHandlers) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", checker.LivenessHandler())
	mux.Handle("/readyz", checker.ReadinessHandler())
	return &http.Server{Addr: addr, Handler: mux}
}
