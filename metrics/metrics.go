package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the settlement protocol.
type Metrics struct {
	PoolsCreated            prometheus.Counter
	ReconciliationConflicts prometheus.Counter
	PurchasesConfirmed      prometheus.Counter
	DuplicateConfirmations  prometheus.Counter
	ConfirmationsPending    prometheus.Counter
	StakesSubmitted         prometheus.Counter
	RoyaltiesClaimed        prometheus.Counter
	LedgerCallDuration      prometheus.Histogram
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PoolsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "synapse_pools_created_total",
			Help: "Total number of ledger pools created and attached to datasets",
		}),
		ReconciliationConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "synapse_reconciliation_conflicts_total",
			Help: "Pool-id collisions that exhausted the single corrective retry",
		}),
		PurchasesConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "synapse_purchases_confirmed_total",
			Help: "Purchases confirmed into the registry",
		}),
		DuplicateConfirmations: factory.NewCounter(prometheus.CounterOpts{
			Name: "synapse_duplicate_confirmations_total",
			Help: "Idempotent replays of purchase confirmation",
		}),
		ConfirmationsPending: factory.NewCounter(prometheus.CounterOpts{
			Name: "synapse_confirmations_pending_total",
			Help: "Purchases settled on the ledger whose registry confirmation failed and awaits retry",
		}),
		StakesSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "synapse_stakes_submitted_total",
			Help: "Contributor stakes submitted to pools",
		}),
		RoyaltiesClaimed: factory.NewCounter(prometheus.CounterOpts{
			Name: "synapse_royalties_claimed_total",
			Help: "Royalty claim calls executed",
		}),
		LedgerCallDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "synapse_ledger_call_duration_seconds",
			Help:    "Latency of state-changing ledger calls",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
