package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveReconciliation(t *testing.T) {
	before := testutil.ToFloat64(GetReconciliationsTotal().WithLabelValues("PAYMENT_RECORDED"))

	ObserveReconciliation("PAYMENT_RECORDED", 0.012)
	ObserveReconciliation("PAYMENT_RECORDED", 0.034)

	after := testutil.ToFloat64(GetReconciliationsTotal().WithLabelValues("PAYMENT_RECORDED"))
	assert.Equal(t, before+2, after)
}

func TestCountInvoiceCreation(t *testing.T) {
	before := testutil.ToFloat64(GetInvoiceCreationsTotal().WithLabelValues("failure"))

	CountInvoiceCreation("failure")

	after := testutil.ToFloat64(GetInvoiceCreationsTotal().WithLabelValues("failure"))
	assert.Equal(t, before+1, after)
}
