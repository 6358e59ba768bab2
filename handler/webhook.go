package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ecomkit/xenbridge/infra/logger"
	"github.com/ecomkit/xenbridge/infra/metrics"
	"github.com/ecomkit/xenbridge/infra/middle"
	"github.com/ecomkit/xenbridge/infra/opensearch"
	"github.com/ecomkit/xenbridge/infra/response"
	"github.com/ecomkit/xenbridge/order"
	"github.com/ecomkit/xenbridge/xendit"
)

// maxWebhookBody caps the accepted notification size
const maxWebhookBody = 1 << 20

// Reconciler processes one inbound settlement notification
type Reconciler interface {
	Reconcile(ctx context.Context, cb xendit.Callback) xendit.Result
}

// WebhookHandler receives provider callbacks and acknowledges them
// according to their reconciliation outcome. audit may be nil when
// OpenSearch logging is disabled.
type WebhookHandler struct {
	reconciler Reconciler
	audit      *opensearch.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(reconciler Reconciler, audit *opensearch.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		audit:      audit,
	}
}

// HandleCallback processes POST /payments/xendit.
//
// Status mapping: validation failures return 400, an unknown order 404,
// a missing payment method configuration 500. Business-rule rejections
// (refused transition, refused payment) and replays are acknowledged
// with 200 so the provider stops retrying notifications that will never
// succeed.
func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Unreadable request body", err)
		return
	}

	token, hasToken := callbackToken(r)

	cb := xendit.Callback{
		Token:    token,
		HasToken: hasToken,
		Body:     body,
		Meta: order.RequestMeta{
			RequestID: r.Header.Get("X-Request-Id"),
			ClientIP:  middle.GetClientIP(r),
		},
	}

	res := h.reconciler.Reconcile(r.Context(), cb)
	elapsed := time.Since(start)

	metrics.ObserveReconciliation(string(res.State), elapsed.Seconds())
	h.logAudit(res, cb.Meta.RequestID, elapsed)

	switch res.State {
	case xendit.StateRejectedNoToken:
		response.Error(w, http.StatusBadRequest, "Callback token missing", nil)
	case xendit.StateRejectedBadSignature:
		response.Error(w, http.StatusBadRequest, "Webhook verification failed", nil)
	case xendit.StateRejectedNoBody:
		response.Error(w, http.StatusBadRequest, "Invalid notification payload", nil)
	case xendit.StateOrderNotFound:
		response.Error(w, http.StatusNotFound, "Order not found", nil)
	case xendit.StatePaymentMethodMissing:
		response.Error(w, http.StatusInternalServerError, "Payment method not configured", nil)
	default:
		// recorded, replayed, expired, or a rejection the provider must
		// not retry
		response.Text(w, http.StatusOK, "Ok")
	}
}

// logAudit indexes the reconciliation outcome asynchronously. Audit
// failures are logged and swallowed; they never affect the webhook
// acknowledgement.
func (h *WebhookHandler) logAudit(res xendit.Result, requestID string, elapsed time.Duration) {
	if h.audit == nil {
		return
	}

	entry := opensearch.ReconciliationLog{
		ChannelToken:   res.ChannelToken,
		RequestID:      requestID,
		NotificationID: res.NotificationID,
		OrderCode:      res.OrderCode,
		Outcome:        string(res.State),
		DurationMs:     elapsed.Milliseconds(),
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.audit.LogReconciliation(ctx, entry); err != nil {
			logger.Warn("Failed to index reconciliation audit record: " + err.Error())
		}
	}()
}

// callbackToken extracts the verification header, distinguishing an
// absent header from an empty one
func callbackToken(r *http.Request) (string, bool) {
	values, ok := r.Header[http.CanonicalHeaderKey(xendit.CallbackTokenHeader)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
