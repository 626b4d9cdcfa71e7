package market

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Metrics ────────────────────────────────────────────────────────────────

var (
	marketOpens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tako",
		Subsystem: "market",
		Name:      "opens_total",
		Help:      "Number of market cycles opened.",
	})

	marketCloses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tako",
		Subsystem: "market",
		Name:      "closes_total",
		Help:      "Number of market cycles settled.",
	})

	seasonRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tako",
		Subsystem: "market",
		Name:      "season_restarts_total",
		Help:      "Number of seasons ended by an owner reaching the target.",
	})

	demandFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tako",
		Subsystem: "scheduler",
		Name:      "demand_failures_total",
		Help:      "Number of failed demand lookups at closing time.",
	})

	staleCancels = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tako",
		Subsystem: "market",
		Name:      "stale_cancels_total",
		Help:      "Number of stale-cycle sweeps executed.",
	})
)
