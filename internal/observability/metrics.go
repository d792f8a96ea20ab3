package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_http_requests_total",
			Help: "HTTP requests by route, with session ids collapsed.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlchat_http_request_duration_seconds",
			Help:    "HTTP latency by route. Message submissions include both model calls.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path", "status"},
	)
	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_auth_failures_total",
			Help: "Rejected API requests by reason.",
		},
		[]string{"reason"},
	)
	pipelineStageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_pipeline_stage_total",
			Help: "Pipeline stage invocations by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)
	pipelineStageLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlchat_pipeline_stage_latency_ms",
			Help:    "Pipeline stage latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
		},
		[]string{"stage"},
	)
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_submissions_total",
			Help: "Chat submissions by variant and outcome.",
		},
		[]string{"variant", "outcome"},
	)
	liveConnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_live_connects_total",
			Help: "Live database connection attempts by dialect and outcome.",
		},
		[]string{"dialect", "outcome"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlchat_active_sessions",
			Help: "Number of in-memory chat sessions.",
		},
	)
	evictedSessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlchat_evicted_sessions_total",
			Help: "Sessions dropped after exceeding the idle TTL.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		authFailuresTotal,
		pipelineStageTotal,
		pipelineStageLatencyMs,
		submissionsTotal,
		liveConnectsTotal,
		activeSessions,
		evictedSessionsTotal,
	)
}

func ObserveAuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}

func ObservePipelineStage(stage string, elapsed time.Duration, err error) {
	pipelineStageTotal.WithLabelValues(stage, outcome(err)).Inc()
	pipelineStageLatencyMs.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

func ObserveSubmission(variant string, err error) {
	submissionsTotal.WithLabelValues(variant, outcome(err)).Inc()
}

func ObserveLiveConnect(dialect string, err error) {
	liveConnectsTotal.WithLabelValues(dialect, outcome(err)).Inc()
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}

func ObserveEvictions(count int) {
	if count > 0 {
		evictedSessionsTotal.Add(float64(count))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
