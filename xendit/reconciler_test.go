package xendit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomkit/xenbridge/order"
)

// mockStore counts every call so tests can assert exactly which store
// operations a notification triggered.
type mockStore struct {
	findCalls       int
	transitionCalls int
	addPaymentCalls int

	findFunc       func(ctx context.Context, tctx order.TenantContext, code string) (*order.Order, error)
	transitionFunc func(ctx context.Context, tctx order.TenantContext, orderID int64, target order.State) error
	addPaymentFunc func(ctx context.Context, tctx order.TenantContext, orderID int64, input order.PaymentInput) (*order.Order, error)
}

func (m *mockStore) FindByCode(ctx context.Context, tctx order.TenantContext, code string) (*order.Order, error) {
	m.findCalls++
	if m.findFunc != nil {
		return m.findFunc(ctx, tctx, code)
	}
	return nil, order.ErrOrderNotFound
}

func (m *mockStore) TransitionState(ctx context.Context, tctx order.TenantContext, orderID int64, target order.State) error {
	m.transitionCalls++
	if m.transitionFunc != nil {
		return m.transitionFunc(ctx, tctx, orderID, target)
	}
	return nil
}

func (m *mockStore) AddPayment(ctx context.Context, tctx order.TenantContext, orderID int64, input order.PaymentInput) (*order.Order, error) {
	m.addPaymentCalls++
	if m.addPaymentFunc != nil {
		return m.addPaymentFunc(ctx, tctx, orderID, input)
	}
	return &order.Order{ID: orderID, State: order.StatePaymentSettled}, nil
}

type mockRegistry struct {
	listCalls int
	listFunc  func(ctx context.Context, tctx order.TenantContext) ([]order.PaymentMethod, error)
}

func (m *mockRegistry) ListConfigured(ctx context.Context, tctx order.TenantContext) ([]order.PaymentMethod, error) {
	m.listCalls++
	if m.listFunc != nil {
		return m.listFunc(ctx, tctx)
	}
	return []order.PaymentMethod{
		{ID: 1, Code: "xendit-invoice", HandlerCode: HandlerCode, Enabled: true},
	}, nil
}

func newTestReconciler(store *mockStore, registry *mockRegistry, opts ...func(*Reconciler)) *Reconciler {
	r := NewReconciler(NewVerifier("abc"), store, registry, order.NewContextFactory(), NewMemoryLedger())
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func callback(token string, body string) Callback {
	return Callback{
		Token:    token,
		HasToken: true,
		Body:     []byte(body),
		Meta:     order.RequestMeta{RequestID: "req-1", ClientIP: "10.0.0.1"},
	}
}

const settledBody = `{"id":"inv-1","external_id":"ORD123","description":"tenant1_55","status":"PAID","amount":150000,"currency":"IDR"}`

func TestReconcile_RecordsPaymentAndTransitions(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, tctx order.TenantContext, code string) (*order.Order, error) {
			assert.Equal(t, "tenant1", tctx.ChannelToken)
			assert.Equal(t, "ORD123", code)
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateAddingItems}, nil
		},
		addPaymentFunc: func(_ context.Context, _ order.TenantContext, orderID int64, input order.PaymentInput) (*order.Order, error) {
			assert.Equal(t, int64(7), orderID)
			assert.Equal(t, "xendit-invoice", input.Method)
			assert.Equal(t, "inv-1", input.TransactionID)
			assert.Equal(t, 150000.0, input.Amount)
			assert.JSONEq(t, settledBody, string(input.Metadata))
			return &order.Order{ID: orderID, State: order.StatePaymentSettled}, nil
		},
	}
	registry := &mockRegistry{}
	r := newTestReconciler(store, registry)

	res := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StatePaymentRecorded, res.State)
	assert.Equal(t, "inv-1", res.NotificationID)
	assert.Equal(t, "ORD123", res.OrderCode)
	assert.Equal(t, "tenant1", res.ChannelToken)
	assert.NoError(t, res.Err)
	assert.True(t, res.Succeeded())

	// order was in AddingItems, so exactly one transition before payment
	assert.Equal(t, 1, store.findCalls)
	assert.Equal(t, 1, store.transitionCalls)
	assert.Equal(t, 1, store.addPaymentCalls)
}

func TestReconcile_SkipsTransitionWhenAlreadyArrangingPayment(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateArrangingPayment}, nil
		},
	}
	r := newTestReconciler(store, &mockRegistry{})

	res := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StatePaymentRecorded, res.State)
	assert.Equal(t, 0, store.transitionCalls)
	assert.Equal(t, 1, store.addPaymentCalls)
}

func TestReconcile_MissingToken(t *testing.T) {
	store := &mockStore{}
	r := newTestReconciler(store, &mockRegistry{})

	res := r.Reconcile(context.Background(), Callback{Body: []byte(settledBody)})

	assert.Equal(t, StateRejectedNoToken, res.State)
	assert.ErrorIs(t, res.Err, ErrMissingCallbackToken)
	assert.False(t, res.Succeeded())

	// nothing downstream may run before token verification
	assert.Equal(t, 0, store.findCalls)
	assert.Equal(t, 0, store.transitionCalls)
	assert.Equal(t, 0, store.addPaymentCalls)
}

func TestReconcile_InvalidToken(t *testing.T) {
	store := &mockStore{}
	r := newTestReconciler(store, &mockRegistry{})

	res := r.Reconcile(context.Background(), callback("xyz", settledBody))

	assert.Equal(t, StateRejectedBadSignature, res.State)
	assert.ErrorIs(t, res.Err, ErrInvalidCallbackToken)
	assert.Equal(t, 0, store.findCalls)
	assert.Equal(t, 0, store.addPaymentCalls)
}

func TestReconcile_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"whitespace only", "   \n"},
		{"not json", "definitely not json"},
		{"missing id", `{"external_id":"ORD123","status":"PAID"}`},
		{"missing external id", `{"id":"inv-1","status":"PAID"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			r := newTestReconciler(store, &mockRegistry{})

			res := r.Reconcile(context.Background(), callback("abc", tt.body))

			assert.Equal(t, StateRejectedNoBody, res.State)
			assert.ErrorIs(t, res.Err, ErrEmptyNotification)
			assert.Equal(t, 0, store.findCalls)
		})
	}
}

func TestReconcile_OrderNotFound(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		},
	}
	r := newTestReconciler(store, &mockRegistry{})

	res := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StateOrderNotFound, res.State)
	assert.ErrorIs(t, res.Err, order.ErrOrderNotFound)
	assert.Equal(t, 0, store.transitionCalls)
	assert.Equal(t, 0, store.addPaymentCalls)
}

func TestReconcile_StoreLookupErrorTreatedAsNotFound(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return nil, errors.New("connection reset")
		},
	}
	r := newTestReconciler(store, &mockRegistry{})

	res := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StateOrderNotFound, res.State)
	assert.Equal(t, 0, store.addPaymentCalls)
}

func TestReconcile_TransitionRefused(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateCancelled}, nil
		},
		transitionFunc: func(_ context.Context, _ order.TenantContext, _ int64, _ order.State) error {
			return &order.TransitionError{OrderCode: "ORD123", From: order.StateCancelled, To: order.StateArrangingPayment}
		},
	}
	r := newTestReconciler(store, &mockRegistry{})

	res := r.Reconcile(context.Background(), callback("abc", settledBody))

	// refused transitions are acknowledged, not retried
	assert.Equal(t, StateTransitionFailed, res.State)
	assert.True(t, res.Succeeded())
	var terr *order.TransitionError
	assert.ErrorAs(t, res.Err, &terr)
	assert.Equal(t, 0, store.addPaymentCalls)
}

func TestReconcile_PaymentMethodMissing(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateAddingItems}, nil
		},
	}
	registry := &mockRegistry{
		listFunc: func(_ context.Context, _ order.TenantContext) ([]order.PaymentMethod, error) {
			return []order.PaymentMethod{
				{ID: 2, Code: "stripe-card", HandlerCode: "stripe", Enabled: true},
				{ID: 3, Code: "xendit-disabled", HandlerCode: HandlerCode, Enabled: false},
			}, nil
		},
	}
	r := newTestReconciler(store, registry)

	res := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StatePaymentMethodMissing, res.State)
	assert.ErrorIs(t, res.Err, ErrPaymentMethodMissing)
	assert.False(t, res.Succeeded())

	// transition already happened, but no payment may be recorded
	assert.Equal(t, 1, store.transitionCalls)
	assert.Equal(t, 0, store.addPaymentCalls)
}

func TestReconcile_PaymentRejectedByStore(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateArrangingPayment}, nil
		},
		addPaymentFunc: func(_ context.Context, _ order.TenantContext, _ int64, _ order.PaymentInput) (*order.Order, error) {
			return nil, &order.DomainError{Code: "DUPLICATE_PAYMENT", Message: "payment already recorded"}
		},
	}
	r := newTestReconciler(store, &mockRegistry{})

	res := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StatePaymentRecordFailed, res.State)
	assert.True(t, res.Succeeded())
	var derr *order.DomainError
	assert.ErrorAs(t, res.Err, &derr)
}

func TestReconcile_ExpiredInvoiceIgnored(t *testing.T) {
	store := &mockStore{}
	r := newTestReconciler(store, &mockRegistry{})

	body := `{"id":"inv-9","external_id":"ORD123","description":"tenant1_55","status":"EXPIRED"}`
	res := r.Reconcile(context.Background(), callback("abc", body))

	assert.Equal(t, StateExpiredIgnored, res.State)
	assert.True(t, res.Succeeded())
	assert.Equal(t, 0, store.findCalls)
	assert.Equal(t, 0, store.addPaymentCalls)
}

func TestReconcile_ReplayedNotificationSkipped(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateArrangingPayment}, nil
		},
	}
	r := newTestReconciler(store, &mockRegistry{})

	first := r.Reconcile(context.Background(), callback("abc", settledBody))
	require.Equal(t, StatePaymentRecorded, first.State)

	second := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StateAlreadyProcessed, second.State)
	assert.True(t, second.Succeeded())
	assert.Equal(t, 1, store.findCalls)
	assert.Equal(t, 1, store.addPaymentCalls)
}

func TestReconcile_NilLedgerStillProcesses(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateArrangingPayment}, nil
		},
	}
	r := NewReconciler(NewVerifier("abc"), store, &mockRegistry{}, order.NewContextFactory(), nil)

	res := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StatePaymentRecorded, res.State)
}

type failingLedger struct{}

func (failingLedger) MarkProcessed(context.Context, string) (bool, error) {
	return false, errors.New("disk full")
}

func (failingLedger) Processed(context.Context, string) (bool, error) {
	return false, errors.New("disk full")
}

func TestReconcile_LedgerFailureIsNotFatal(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateArrangingPayment}, nil
		},
	}
	r := NewReconciler(NewVerifier("abc"), store, &mockRegistry{}, order.NewContextFactory(), failingLedger{})

	res := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StatePaymentRecorded, res.State)
}

func TestReconcile_RetryAfterTransientLookupFailure(t *testing.T) {
	lookupFailures := 1
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			if lookupFailures > 0 {
				lookupFailures--
				return nil, errors.New("connection refused")
			}
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateArrangingPayment}, nil
		},
	}
	r := newTestReconciler(store, &mockRegistry{})

	first := r.Reconcile(context.Background(), callback("abc", settledBody))
	require.Equal(t, StateOrderNotFound, first.State)

	// the failed attempt must not be ledgered; the provider's retry gets
	// a full re-run and records the payment
	second := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StatePaymentRecorded, second.State)
	assert.Equal(t, 2, store.findCalls)
	assert.Equal(t, 1, store.addPaymentCalls)
}

func TestReconcile_RetryAfterMethodConfigured(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateArrangingPayment}, nil
		},
	}
	methodConfigured := false
	registry := &mockRegistry{
		listFunc: func(context.Context, order.TenantContext) ([]order.PaymentMethod, error) {
			if !methodConfigured {
				return nil, nil
			}
			return []order.PaymentMethod{
				{ID: 1, Code: "xendit-invoice", HandlerCode: HandlerCode, Enabled: true},
			}, nil
		},
	}
	r := newTestReconciler(store, registry)

	first := r.Reconcile(context.Background(), callback("abc", settledBody))
	require.Equal(t, StatePaymentMethodMissing, first.State)
	assert.Equal(t, 0, store.addPaymentCalls)

	// operator fixes the deployment; the retried notification succeeds
	methodConfigured = true
	second := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StatePaymentRecorded, second.State)
	assert.Equal(t, 1, store.addPaymentCalls)
}

func TestReconcile_RefusedTransitionIsLedgered(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateCancelled}, nil
		},
		transitionFunc: func(_ context.Context, _ order.TenantContext, _ int64, _ order.State) error {
			return &order.TransitionError{OrderCode: "ORD123", From: order.StateCancelled, To: order.StateArrangingPayment}
		},
	}
	r := newTestReconciler(store, &mockRegistry{})

	first := r.Reconcile(context.Background(), callback("abc", settledBody))
	require.Equal(t, StateTransitionFailed, first.State)

	// a refused transition is final; the replay skips the store entirely
	second := r.Reconcile(context.Background(), callback("abc", settledBody))

	assert.Equal(t, StateAlreadyProcessed, second.State)
	assert.Equal(t, 1, store.findCalls)
}

func TestReconcile_NoTokenConfiguredAcceptsAnything(t *testing.T) {
	store := &mockStore{
		findFunc: func(_ context.Context, _ order.TenantContext, _ string) (*order.Order, error) {
			return &order.Order{ID: 7, Code: "ORD123", State: order.StateArrangingPayment}, nil
		},
	}
	r := NewReconciler(NewVerifier(""), store, &mockRegistry{}, order.NewContextFactory(), NewMemoryLedger())

	res := r.Reconcile(context.Background(), callback("whatever", settledBody))

	assert.Equal(t, StatePaymentRecorded, res.State)
}
