// Package metrics 定义 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocket_chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pocket_chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// 补全
	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocket_chat_completions_total",
			Help: "Completion requests by mode and result",
		},
		[]string{"mode", "result"}, // mode: send / edit / regenerate
	)

	CompletionTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocket_chat_completion_tokens_total",
			Help: "Tokens consumed by completions",
		},
		[]string{"model", "direction"}, // direction: input / output
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pocket_chat_completion_duration_seconds",
			Help:    "Upstream model latency",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"model"},
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pocket_chat_messages_deleted_total",
			Help: "Messages removed by cascade deletes",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pocket_chat_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// WebSocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pocket_chat_ws_connections",
			Help: "Open event stream connections on this instance",
		},
	)

	WSEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocket_chat_ws_events_total",
			Help: "Events delivered to local connections",
		},
		[]string{"type"},
	)
)
