// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autochat_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autochat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RunsTotal tracks scheduler runs.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autochat_runs_total",
			Help: "Total scheduler runs",
		},
		[]string{"status"},
	)

	// RunDuration tracks how long a full run takes to drain.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autochat_run_duration_seconds",
			Help:    "Scheduler run duration",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// ConversationsTotal tracks conversation pipeline outcomes.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autochat_conversations_total",
			Help: "Conversation pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	// ModelAttemptsTotal tracks language-model call attempts.
	ModelAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autochat_model_attempts_total",
			Help: "Language model call attempts by status class",
		},
		[]string{"model", "status"},
	)

	// ModelDuration tracks language-model call latency.
	ModelDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autochat_model_duration_seconds",
			Help:    "Language model call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"model", "status"},
	)

	// ModelTokensTotal tracks language-model token usage.
	ModelTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autochat_model_tokens_total",
			Help: "Total language model tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ToolDispatchTotal tracks tool call dispatches.
	ToolDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autochat_tool_dispatch_total",
			Help: "Model tool calls dispatched by tool and result",
		},
		[]string{"tool", "result"},
	)

	// RepliesTotal tracks reply sends.
	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autochat_replies_total",
			Help: "Replies sent to the chat channel by result",
		},
		[]string{"result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRun records a finished scheduler run.
func RecordRun(status string, duration float64) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(duration)
}

// RecordConversation records a conversation outcome.
func RecordConversation(outcome string) {
	ConversationsTotal.WithLabelValues(outcome).Inc()
}

// RecordModelAttempt records one language-model call attempt.
func RecordModelAttempt(model, status string, duration float64) {
	ModelAttemptsTotal.WithLabelValues(model, status).Inc()
	ModelDuration.WithLabelValues(model, status).Observe(duration)
}

// RecordModelTokens records token usage of a successful model call.
func RecordModelTokens(model string, tokensIn, tokensOut int) {
	ModelTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	ModelTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordToolDispatch records a tool call dispatch result.
func RecordToolDispatch(tool, result string) {
	ToolDispatchTotal.WithLabelValues(tool, result).Inc()
}

// RecordReply records a reply send result.
func RecordReply(result string) {
	RepliesTotal.WithLabelValues(result).Inc()
}
