package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xenbridge_reconciliations_total",
		Help: "Webhook reconciliations by terminal state.",
	}, []string{"outcome"})

	invoiceCreationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xenbridge_invoice_creations_total",
		Help: "Hosted invoice creation attempts by result.",
	}, []string{"result"})

	reconciliationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "xenbridge_reconciliation_duration_seconds",
		Help:    "End-to-end duration of webhook reconciliation.",
		Buckets: prometheus.DefBuckets,
	})
)

// ObserveReconciliation records the terminal state and duration of one
// webhook reconciliation.
func ObserveReconciliation(outcome string, seconds float64) {
	reconciliationsTotal.WithLabelValues(outcome).Inc()
	reconciliationDuration.Observe(seconds)
}

// CountInvoiceCreation records one invoice creation attempt.
// result is "success" or "failure".
func CountInvoiceCreation(result string) {
	invoiceCreationsTotal.WithLabelValues(result).Inc()
}

// GetReconciliationsTotal exposes the reconciliation counter for tests.
func GetReconciliationsTotal() *prometheus.CounterVec {
	return reconciliationsTotal
}

// GetInvoiceCreationsTotal exposes the invoice creation counter for tests.
func GetInvoiceCreationsTotal() *prometheus.CounterVec {
	return invoiceCreationsTotal
}
