// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts completed pipeline runs by outcome
	// (published, stale, error).
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finport_pipeline_runs_total",
		Help: "Completed portfolio pipeline runs by outcome",
	}, []string{"outcome"})

	// PipelineDuration observes end-to-end pipeline run latency.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finport_pipeline_duration_seconds",
		Help:    "End-to-end portfolio pipeline run duration",
		Buckets: prometheus.DefBuckets,
	})

	// QuoteLookups counts per-symbol quote lookups by result
	// (ok, cached, failed).
	QuoteLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finport_quote_lookups_total",
		Help: "Per-symbol quote lookups by result",
	}, []string{"result"})

	// SkippedRecords counts position records dropped as corrupt input.
	SkippedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finport_skipped_position_records_total",
		Help: "Position records dropped due to missing quantity or unit cost",
	})

	// RiskRequests counts risk-scoring calls by outcome
	// (scored, skipped, failed).
	RiskRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finport_risk_requests_total",
		Help: "Risk-scoring service calls by outcome",
	}, []string{"outcome"})
)
