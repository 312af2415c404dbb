package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractiq_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contractiq_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	GenerationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractiq_generation_requests_total",
			Help: "Contract generation calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contractiq_generation_duration_seconds",
			Help:    "Duration of upstream generation calls in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"provider"},
	)

	AnalysisRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractiq_analysis_requests_total",
			Help: "Analysis back end calls by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractiq_exports_total",
			Help: "Contract exports by format",
		},
		[]string{"format"},
	)

	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contractiq_sessions_created_total",
			Help: "Visitor sessions created",
		},
	)

	SessionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contractiq_sessions_swept_total",
			Help: "Idle visitor sessions removed by the sweeper",
		},
	)
)

// Outcome labels
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeBusy      = "busy"
	OutcomeTransport = "transport"
	OutcomeMalformed = "malformed"
	OutcomeServer    = "server_reported"
)

// Analysis kind labels
const (
	AnalysisQuestion   = "question"
	AnalysisClauses    = "clauses"
	AnalysisCompliance = "compliance"
)
