package reveal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricReservations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "openchamber",
		Name:      "reveal_reservations_total",
		Help:      "Layout-space reservations requested for incoming messages.",
	})
	metricCancellations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "openchamber",
		Name:      "reveal_cancellations_total",
		Help:      "Reservations cancelled before animation started.",
	})
	metricReasoningBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "openchamber",
		Name:      "reveal_reasoning_blocks_total",
		Help:      "Reservations resolved by a reasoning block instead of text.",
	})
	metricAnimations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "openchamber",
		Name:      "reveal_animations_total",
		Help:      "Reveal animations started.",
	})
	metricCompletions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "openchamber",
		Name:      "reveal_completions_total",
		Help:      "Reveal animations completed.",
	})
)
