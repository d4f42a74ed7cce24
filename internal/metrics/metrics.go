// Package metrics exposes Prometheus counters for the reallocation engine.
// The embedding service decides how the default registry is served.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReallocationRuns counts invocations of the reallocation orchestrator.
	ReallocationRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubledger_reallocation_runs_total",
		Help: "Total number of reallocation runs",
	})

	// ReallocationPaymentsCreated counts synthesized zero-priced
	// reallocation payments.
	ReallocationPaymentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubledger_reallocation_payments_created_total",
		Help: "Total number of reallocation payments created",
	})

	// LinksMoved counts payment links re-pointed to another balance item.
	LinksMoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubledger_payment_links_moved_total",
		Help: "Total number of payment links moved between balance items",
	})

	// LinksSplit counts payment links split into two parts.
	LinksSplit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubledger_payment_links_split_total",
		Help: "Total number of payment links split between balance items",
	})

	// ItemsMerged counts canceled balance items whose links were folded into
	// an equivalent due item.
	ItemsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubledger_balance_items_merged_total",
		Help: "Total number of canceled balance items merged into a due item",
	})
)
