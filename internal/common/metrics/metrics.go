// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdvisorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "council_advisor_calls_total",
			Help: "Total number of advisor model calls",
		},
		[]string{"provider", "status"},
	)

	AdvisorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "council_advisor_call_duration_seconds",
			Help: "Duration of advisor model calls in seconds",
		},
		[]string{"provider"},
	)

	MergeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "council_merge_attempts_total",
			Help: "Merge synthesis attempts, including the bounded retry",
		},
		[]string{"attempt", "outcome"},
	)

	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "council_pipeline_requests_total",
			Help: "Pipeline runs by requested mode and effective mode",
		},
		[]string{"requested_mode", "effective_mode"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "council_pipeline_duration_seconds",
			Help: "End-to-end pipeline duration in seconds",
		},
		[]string{"requested_mode"},
	)

	TokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "council_tokens_used_total",
			Help: "Tokens consumed per provider",
		},
		[]string{"provider"},
	)
)
