// Package metrics holds the service's prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poker_sessions_created_total",
		Help: "Sessions created since process start.",
	})
	SessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poker_sessions_live",
		Help: "Sessions currently registered.",
	})
	CodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poker_code_collisions_total",
		Help: "Code generation retries caused by collisions.",
	})
	VotesCast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poker_votes_cast_total",
		Help: "Accepted votes across all sessions.",
	})
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poker_events_published_total",
		Help: "Events handed to the broadcast hub.",
	})
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poker_events_dropped_total",
		Help: "Event deliveries dropped because a subscriber buffer was full.",
	})
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poker_subscribers",
		Help: "Open subscriptions across all sessions.",
	})
)
