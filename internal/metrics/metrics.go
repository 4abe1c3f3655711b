// Package metrics exposes the engine's prometheus collectors. Labels stay
// bounded (modes and reason codes only, never battle or user ids).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BattlesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "battle_active_count",
		Help: "Battles currently held by the registry",
	})

	BattlesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "battle_created_total",
		Help: "Battles created",
	}, []string{"mode"})

	BattlesTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "battle_terminal_total",
		Help: "Battles that reached a terminal status",
	}, []string{"status"}) // finished, cancelled, expired

	RoundsPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "battle_rounds_total",
		Help: "Completed rounds across all battles",
	})

	RoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "battle_round_duration_seconds",
		Help:    "Time from round start to durable round result",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "battle_events_published_total",
		Help: "Events fanned out to subscribers",
	})

	SubscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "battle_subscribers_dropped_total",
		Help: "Subscribers dropped for not keeping up",
	})

	PayoutCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "battle_payout_cents_total",
		Help: "Prize money paid out, in cents",
	})
)
