package xendit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ecomkit/xenbridge/infra/logger"
	"github.com/ecomkit/xenbridge/order"
)

// ReconcileState is a position in the per-notification state machine.
// The machine is never persisted; it is re-derived from order store state
// on every invocation.
type ReconcileState string

const (
	StateReceived          ReconcileState = "RECEIVED"
	StateVerified          ReconcileState = "VERIFIED"
	StateOrderLocated      ReconcileState = "ORDER_LOCATED"
	StatePaymentStateReady ReconcileState = "PAYMENT_STATE_READY"
	StatePaymentRecorded   ReconcileState = "PAYMENT_RECORDED"

	StateRejectedNoToken      ReconcileState = "REJECTED_NO_TOKEN"
	StateRejectedBadSignature ReconcileState = "REJECTED_BAD_SIGNATURE"
	StateRejectedNoBody       ReconcileState = "REJECTED_NO_BODY"
	StateOrderNotFound        ReconcileState = "ORDER_NOT_FOUND"
	StateTransitionFailed     ReconcileState = "TRANSITION_FAILED"
	StatePaymentMethodMissing ReconcileState = "PAYMENT_METHOD_MISSING"
	StatePaymentRecordFailed  ReconcileState = "PAYMENT_RECORD_FAILED"

	StateAlreadyProcessed ReconcileState = "ALREADY_PROCESSED"
	StateExpiredIgnored   ReconcileState = "EXPIRED_IGNORED"
)

var (
	// ErrMissingCallbackToken reports an absent X-Callback-Token header
	ErrMissingCallbackToken = errors.New("xendit: callback token missing")

	// ErrInvalidCallbackToken reports a token that failed verification
	ErrInvalidCallbackToken = errors.New("xendit: invalid callback token")

	// ErrEmptyNotification reports an absent or malformed webhook body
	ErrEmptyNotification = errors.New("xendit: notification payload missing or malformed")

	// ErrPaymentMethodMissing reports that no enabled payment method with
	// this integration's handler code is configured. This is a deployment
	// configuration error, not a business-data error.
	ErrPaymentMethodMissing = errors.New("xendit: no payment method configured with handler code " + HandlerCode)
)

// Callback carries one raw inbound webhook request before validation
type Callback struct {
	Token    string
	HasToken bool
	Body     []byte
	Meta     order.RequestMeta
}

// Result is the explicit tagged outcome of one reconciliation. State is
// always set; Err carries detail for failure states.
type Result struct {
	State          ReconcileState
	NotificationID string
	OrderCode      string
	ChannelToken   string
	Err            error
}

// Succeeded reports whether the notification reached a state the provider
// should stop retrying for
func (r Result) Succeeded() bool {
	switch r.State {
	case StatePaymentRecorded, StateAlreadyProcessed, StateExpiredIgnored,
		StateTransitionFailed, StatePaymentRecordFailed:
		return true
	}
	return false
}

// Reconciler drives one settlement notification through verification,
// order lookup, state transition and payment recording. It holds no
// mutable state of its own; concurrent notifications race only through
// the order store's transactional guarantees.
type Reconciler struct {
	verifier *Verifier
	orders   order.Store
	methods  order.MethodRegistry
	tenants  order.TenantContextFactory
	ledger   Ledger
}

// NewReconciler creates a reconciler. ledger may be nil, in which case
// replay protection falls back to the order store's own guards.
func NewReconciler(verifier *Verifier, orders order.Store, methods order.MethodRegistry, tenants order.TenantContextFactory, ledger Ledger) *Reconciler {
	return &Reconciler{
		verifier: verifier,
		orders:   orders,
		methods:  methods,
		tenants:  tenants,
		ledger:   ledger,
	}
}

// Reconcile processes one inbound notification end to end and returns an
// explicit terminal state. Business-rule rejections (transition refused,
// payment refused) come back as reported outcomes rather than errors so
// that duplicate or late notifications never crash the endpoint.
func (r *Reconciler) Reconcile(ctx context.Context, cb Callback) Result {
	// Token presence is checked before any parsing of the body.
	if !cb.HasToken {
		return Result{State: StateRejectedNoToken, Err: ErrMissingCallbackToken}
	}

	if !r.verifier.Verify(cb.Token) {
		return Result{State: StateRejectedBadSignature, Err: ErrInvalidCallbackToken}
	}

	notification, err := parseNotification(cb.Body)
	if err != nil {
		return Result{State: StateRejectedNoBody, Err: err}
	}

	res := Result{
		NotificationID: notification.ID,
		OrderCode:      notification.ExternalID,
		ChannelToken:   ChannelTokenFromDescription(notification.Description),
	}

	log := logger.WithContext(logger.LogContext{
		ChannelToken: res.ChannelToken,
		RequestID:    cb.Meta.RequestID,
		Fields: map[string]any{
			"notification_id": notification.ID,
			"order_code":      notification.ExternalID,
		},
	})

	// Expiry callbacks carry no settlement; acknowledge without touching
	// order state.
	if notification.Status == InvoiceStatusExpired {
		log.Info("Invoice expired, nothing to reconcile")
		res.State = StateExpiredIgnored
		return res
	}

	if r.alreadyProcessed(ctx, notification.ID, log) {
		log.Info("Notification already processed, skipping")
		res.State = StateAlreadyProcessed
		return res
	}

	tctx := r.tenants.Create(res.ChannelToken, cb.Meta)

	// Lookup failure and a genuinely missing order surface as the same
	// terminal state; the caller cannot distinguish transient store
	// outages from nonexistent orders.
	ord, err := r.orders.FindByCode(ctx, tctx, notification.ExternalID)
	if err != nil {
		log.Error("Order lookup failed", err)
		res.State = StateOrderNotFound
		res.Err = fmt.Errorf("order %s: %w", notification.ExternalID, err)
		return res
	}

	if ord.State != order.StateArrangingPayment {
		if err := r.orders.TransitionState(ctx, tctx, ord.ID, order.StateArrangingPayment); err != nil {
			// Reported, not raised: a late notification for an already
			// settled or cancelled order stops here.
			log.Warn("Order refused transition to ArrangingPayment: " + err.Error())
			res.State = StateTransitionFailed
			res.Err = err
			r.markProcessed(ctx, notification.ID, log)
			return res
		}
	}

	method, err := r.resolveMethod(ctx, tctx)
	if err != nil {
		log.Error("Payment method resolution failed", err)
		res.State = StatePaymentMethodMissing
		res.Err = err
		return res
	}

	if _, err := r.orders.AddPayment(ctx, tctx, ord.ID, order.PaymentInput{
		Method:        method.Code,
		Amount:        notification.Amount,
		TransactionID: notification.ID,
		Metadata:      cb.Body,
	}); err != nil {
		// Same treatment as a refused transition: log and stop.
		log.Warn("Order store rejected payment: " + err.Error())
		res.State = StatePaymentRecordFailed
		res.Err = err
		r.markProcessed(ctx, notification.ID, log)
		return res
	}

	log.Info("Payment recorded")
	res.State = StatePaymentRecorded
	r.markProcessed(ctx, notification.ID, log)
	return res
}

// alreadyProcessed reports whether the ledger has a final outcome for
// this notification id. Ledger failures do not fail the notification;
// the order store's state guard remains the backstop against
// double-recording.
func (r *Reconciler) alreadyProcessed(ctx context.Context, notificationID string, log *logger.ContextLogger) bool {
	if r.ledger == nil {
		return false
	}

	seen, err := r.ledger.Processed(ctx, notificationID)
	if err != nil {
		log.Warn("Notification ledger unavailable: " + err.Error())
		return false
	}
	return seen
}

// markProcessed records the notification id once a final outcome is
// reached. Retryable failures (order not found, payment method missing)
// are never recorded, so the provider's retry runs the full pipeline
// again.
func (r *Reconciler) markProcessed(ctx context.Context, notificationID string, log *logger.ContextLogger) {
	if r.ledger == nil {
		return
	}

	if _, err := r.ledger.MarkProcessed(ctx, notificationID); err != nil {
		log.Warn("Notification ledger unavailable: " + err.Error())
	}
}

// resolveMethod finds the enabled payment method whose handler code
// matches this integration
func (r *Reconciler) resolveMethod(ctx context.Context, tctx order.TenantContext) (*order.PaymentMethod, error) {
	methods, err := r.methods.ListConfigured(ctx, tctx)
	if err != nil {
		return nil, fmt.Errorf("listing payment methods: %w", err)
	}

	for i := range methods {
		if methods[i].HandlerCode == HandlerCode && methods[i].Enabled {
			return &methods[i], nil
		}
	}

	return nil, ErrPaymentMethodMissing
}

func parseNotification(body []byte) (*InvoiceNotification, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyNotification
	}

	var n InvoiceNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyNotification, err)
	}

	if n.ID == "" || n.ExternalID == "" {
		return nil, ErrEmptyNotification
	}

	return &n, nil
}
