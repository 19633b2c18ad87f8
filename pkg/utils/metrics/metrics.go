// Package metrics holds the Prometheus collectors of syllabus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomeFailed   = "failed"
	OutcomeInvalid  = "invalid"
)

// LLM phases.
const (
	PhaseTool   = "tool"
	PhaseAnswer = "answer"
)

var (
	queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "syllabus_queries_total",
		Help: "Total number of queries by outcome",
	}, []string{"outcome"})

	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "syllabus_tool_calls_total",
		Help: "Total number of tool calls requested by the LLM",
	}, []string{"tool"})

	llmDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "syllabus_llm_request_duration_seconds",
		Help:    "LLM generation latency in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"phase"})

	ingestedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syllabus_ingested_chunks_total",
		Help: "Total number of chunks written to the content index",
	})
)

func RecordQuery(outcome string) {
	queries.WithLabelValues(outcome).Inc()
}

func RecordToolCall(name string) {
	toolCalls.WithLabelValues(name).Inc()
}

// ObserveLLM records the latency of one generation call started at start.
func ObserveLLM(phase string, start time.Time) {
	llmDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

func AddIngestedChunks(n int) {
	ingestedChunks.Add(float64(n))
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
