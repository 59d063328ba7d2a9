// Package metrics registers the Prometheus collectors exported by vmcost.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolverLookups counts price lookups by tier and outcome (hit, miss, error).
	ResolverLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmcost_resolver_lookups_total",
			Help: "Price lookups per resolution tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	// ResolverDuration measures time spent in each tier.
	ResolverDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vmcost_resolver_tier_duration_seconds",
			Help:    "Time spent resolving a price in a tier",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 20},
		},
		[]string{"tier"},
	)

	// LiveBreakerState is 0 closed, 1 half-open, 2 open.
	LiveBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmcost_live_api_breaker_state",
			Help: "Circuit breaker state for the live pricing API",
		},
	)

	// IngestedRecords counts normalized price records persisted per service.
	IngestedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmcost_ingested_records_total",
			Help: "Price records written by ingestion runs",
		},
		[]string{"service", "region"},
	)

	// IngestionRuns counts ingestion runs by status.
	IngestionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmcost_ingestion_runs_total",
			Help: "Ingestion runs by status",
		},
		[]string{"service", "status"},
	)

	// Estimates counts VM estimates by status.
	Estimates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmcost_estimates_total",
			Help: "VM cost estimates produced, by status",
		},
		[]string{"status"},
	)

	// RequestDuration measures HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vmcost_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)
)
