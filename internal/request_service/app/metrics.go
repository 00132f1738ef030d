package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity_gateway",
			Name:      "submissions_processed_total",
			Help:      "Total service request submissions processed.",
		},
		[]string{"service_type", "outcome"}, // outcome: "completed", "failed", "processing"
	)

	refundsIssuedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity_gateway",
			Name:      "refunds_issued_total",
			Help:      "Total wallet refunds issued for failed requests.",
		},
		[]string{"service_type"},
	)

	providerRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "identity_gateway",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of HTTP requests to identity providers.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider_name"},
	)

	sweepCheckedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "identity_gateway",
			Name:      "sweep_requests_checked_total",
			Help:      "Total pending requests examined by the sweeper.",
		},
	)

	sweepUpdatedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity_gateway",
			Name:      "sweep_requests_updated_total",
			Help:      "Total pending requests moved to a terminal status by the sweeper.",
		},
		[]string{"status"},
	)
)
