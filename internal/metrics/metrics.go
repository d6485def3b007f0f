package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "oneiro"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Dream and interpretation metrics
var (
	DreamsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dreams_created_total",
			Help:      "Total number of dreams recorded",
		},
	)

	InterpretationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interpretation_requests_total",
			Help:      "Total number of AI interpretation requests",
		},
		[]string{"status"},
	)

	InterpretationCostCents = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interpretation_cost_cents_total",
			Help:      "Total interpretation cost in cents",
		},
	)

	QuotaDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_denials_total",
			Help:      "Total number of requests denied by subscription quota",
		},
		[]string{"feature", "tier"},
	)
)

// Video generation metrics
var (
	RenderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_requests_total",
			Help:      "Total number of render service requests",
		},
		[]string{"status"},
	)

	RenderRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_retries_total",
			Help:      "Total number of render request retry attempts",
		},
	)

	VideoJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_jobs_completed_total",
			Help:      "Total number of video jobs reaching a terminal state",
		},
		[]string{"status"},
	)

	VideoJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "video_job_duration_seconds",
			Help:      "Video job time from submission to terminal state",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)
)

// Credits and reflection metrics
var (
	ReflectCreditsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reflect_credits_consumed_total",
			Help:      "Total ReflectAI credits consumed",
		},
	)

	ReflectCreditsDenied = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reflect_credits_denied_total",
			Help:      "Total ReflectAI requests denied for insufficient credits",
		},
	)
)

// Legacy migration metrics
var (
	LegacyMigrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "legacy_migrations_total",
			Help:      "Total number of lazy migrations from the legacy store",
		},
		[]string{"entity", "status"},
	)
)
