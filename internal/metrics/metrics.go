// Package metrics defines the prometheus collectors of the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dom/linklearn/internal/domain"
)

const namespace = "linklearn"

var (
	SettlementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_total",
		Help:      "Sessions ended with a committed settlement.",
	})

	SettlementFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlement_failures_total",
		Help:      "Settlements rolled back because of an error.",
	})

	LedgerEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_entries_total",
		Help:      "Committed ledger entries by transaction type.",
	}, []string{"type"})

	CreditsMovedCentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_moved_cents_total",
		Help:      "Absolute credit movement in hundredths by transaction type.",
	}, []string{"type"})

	TimerConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "timer_conflicts_total",
		Help:      "Rejected timer operations by reason.",
	}, []string{"reason"})

	WSConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Open websocket connections by channel.",
	}, []string{"channel"})

	ReconciliationMismatches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reconciliation_mismatches",
		Help:      "Accounts whose balance disagrees with the ledger at the last check. Non-zero is a bug.",
	})
)

// RecordLedgerEntries counts entries once their transaction has committed.
func RecordLedgerEntries(entries ...*domain.LedgerEntry) {
	for _, e := range entries {
		t := string(e.TransactionType)
		LedgerEntriesTotal.WithLabelValues(t).Inc()
		amount := int64(e.Amount)
		if amount < 0 {
			amount = -amount
		}
		CreditsMovedCentsTotal.WithLabelValues(t).Add(float64(amount))
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
