// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roomchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Registry metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomchat_sessions_active",
			Help: "Registered sessions",
		},
	)

	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomchat_streams_active",
			Help: "Sessions with a live websocket stream",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomchat_rooms_active",
			Help: "Open rooms",
		},
	)

	RoomsDisbanded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_rooms_disbanded_total",
			Help: "Rooms destroyed because their owner left",
		},
	)

	InvitesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_invites_issued_total",
			Help: "Invite tokens created",
		},
	)

	// Routing metrics
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_commands_total",
			Help: "Inbound commands by type and outcome",
		},
		[]string{"command", "outcome"}, // outcome: "ok", "rejected", "malformed"
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_deliveries_total",
			Help: "Outbound deliveries by result",
		},
		[]string{"result"}, // "queued", "skipped", "dropped"
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_rate_limit_hits_total",
			Help: "Inbound frames discarded by the per-connection rate limiter",
		},
	)
)
