package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cosmohq/cosmo-core/internal/types"
)

// Metrics holds all Prometheus metrics for the COSMO pipeline.
type Metrics struct {
	RequestTotal           *prometheus.CounterVec
	StageDurationMs        *prometheus.HistogramVec
	TokensTotal            prometheus.Counter
	CostUSDTotal           prometheus.Counter
	RoutingTotal           *prometheus.CounterVec
	FunctionExecutionTotal *prometheus.CounterVec
	IntentCacheTotal       *prometheus.CounterVec
	RateLimitHitTotal      *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cosmo_request_total",
			Help: "Total number of requests processed, by trigger surface, intent category and outcome.",
		}, []string{"surface", "category", "status"}),

		StageDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cosmo_stage_duration_ms",
			Help:    "Pipeline stage duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"stage"}),

		TokensTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cosmo_tokens_total",
			Help: "Total tokens processed (estimated or provider-reported).",
		}),

		CostUSDTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cosmo_cost_usd_total",
			Help: "Estimated total inference cost in USD.",
		}),

		RoutingTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cosmo_routing_total",
			Help: "Model routing decisions by cost tier and fallback use.",
		}, []string{"tier", "fallback"}),

		FunctionExecutionTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cosmo_function_execution_total",
			Help: "Function executions by function key and outcome.",
		}, []string{"function", "outcome"}),

		IntentCacheTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cosmo_intent_cache_total",
			Help: "Intent registry cache loads by status (loaded, cached, fallback).",
		}, []string{"status"}),

		RateLimitHitTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cosmo_rate_limit_hit_total",
			Help: "Requests rejected by rate limiting or budget enforcement.",
		}, []string{"dimension", "workspace"}),
	}
}

// RecordStage satisfies the orchestrator's Recorder interface.
func (m *Metrics) RecordStage(stage string, elapsed time.Duration) {
	m.StageDurationMs.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) RecordRequest(surface, category, status string) {
	m.RequestTotal.WithLabelValues(surface, category, status).Inc()
}

func (m *Metrics) RecordRouting(tier types.CostTier, fallbackUsed bool) {
	fallback := "false"
	if fallbackUsed {
		fallback = "true"
	}
	m.RoutingTotal.WithLabelValues(string(tier), fallback).Inc()
}

func (m *Metrics) RecordUsage(tokens int, costUSD float64) {
	if tokens > 0 {
		m.TokensTotal.Add(float64(tokens))
	}
	if costUSD > 0 {
		m.CostUSDTotal.Add(costUSD)
	}
}

// RecordFunctionExecution records one function call outcome.
func (m *Metrics) RecordFunctionExecution(function string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.FunctionExecutionTotal.WithLabelValues(function, outcome).Inc()
}

// RecordIntentCacheLoad records how an intent registry read was served.
func (m *Metrics) RecordIntentCacheLoad(status string) {
	m.IntentCacheTotal.WithLabelValues(status).Inc()
}

// RecordRateLimitHit records a rejected request.
func (m *Metrics) RecordRateLimitHit(dimension, workspaceID string) {
	m.RateLimitHitTotal.WithLabelValues(dimension, workspaceID).Inc()
}
