// Package metrics exposes Prometheus instrumentation for the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunecast_http_requests_total",
		Help: "Total HTTP requests by method, path and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tunecast_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPActiveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tunecast_http_active_requests",
		Help: "In-flight HTTP requests",
	})

	// Release workflow
	ReleasesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunecast_releases_submitted_total",
		Help: "Releases submitted for review",
	})

	ReleasesReviewed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunecast_releases_reviewed_total",
		Help: "Review decisions by outcome",
	}, []string{"outcome"})

	// AI assistant
	AssistantRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunecast_assistant_requests_total",
		Help: "Assistant chat requests by backend (llm or fallback)",
	}, []string{"backend"})

	AssistantTokensUsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunecast_assistant_tokens_total",
		Help: "AI tokens consumed across all users",
	})

	// Billing
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunecast_billing_webhook_events_total",
		Help: "Billing webhook events by type and result",
	}, []string{"event", "result"})

	// Notifications
	NudgesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunecast_nudges_sent_total",
		Help: "Lifecycle nudges inserted by threshold day",
	}, []string{"day"})

	// Scheduler
	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunecast_scheduler_runs_total",
		Help: "Scheduler task executions by task and result",
	}, []string{"task", "result"})

	// WebSocket
	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tunecast_websocket_connections",
		Help: "Currently connected websocket clients",
	})
)
