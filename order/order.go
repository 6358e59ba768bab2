package order

import (
	"fmt"
	"time"
)

// State represents a position in the order lifecycle
type State string

const (
	StateAddingItems       State = "AddingItems"
	StateArrangingPayment  State = "ArrangingPayment"
	StatePaymentAuthorized State = "PaymentAuthorized"
	StatePaymentSettled    State = "PaymentSettled"
	StateShipped           State = "Shipped"
	StateDelivered         State = "Delivered"
	StateCancelled         State = "Cancelled"
)

// allowedTransitions defines the legal order state machine. A payment can
// only be recorded while the order sits in ArrangingPayment, so settlement
// notifications for orders that already left that state are rejected by
// the store rather than re-applied.
var allowedTransitions = map[State][]State{
	StateAddingItems:       {StateArrangingPayment, StateCancelled},
	StateArrangingPayment:  {StatePaymentAuthorized, StatePaymentSettled, StateAddingItems, StateCancelled},
	StatePaymentAuthorized: {StatePaymentSettled, StateCancelled},
	StatePaymentSettled:    {StateShipped, StateCancelled},
	StateShipped:           {StateDelivered},
	StateDelivered:         {},
	StateCancelled:         {},
}

// CanTransition reports whether moving from one state to another is legal
func CanTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is the authoritative order record owned by the order store
type Order struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	ChannelToken string    `json:"channelToken"`
	State        State     `json:"state"`
	CurrencyCode string    `json:"currencyCode"`
	Total        float64   `json:"total"`
	Payments     []Payment `json:"payments,omitempty"`
}

// Payment is a settled payment recorded against an order
type Payment struct {
	ID            string    `json:"id"`
	Method        string    `json:"method"`
	Amount        float64   `json:"amount"`
	TransactionID string    `json:"transactionId"`
	State         string    `json:"state"`
	Metadata      []byte    `json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PaymentInput carries everything needed to record a payment.
// Metadata holds the full raw provider notification as opaque bytes.
type PaymentInput struct {
	Method        string
	Amount        float64
	TransactionID string
	Metadata      []byte
}

// PaymentMethod is a configured payment method entry. HandlerCode names
// the gateway integration that services the method.
type PaymentMethod struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	HandlerCode string `json:"handlerCode"`
	Enabled     bool   `json:"enabled"`
}

// TransitionError reports an illegal state transition request. It is a
// reported outcome rather than a propagated failure: a duplicate or late
// settlement notification for an already-settled order surfaces as one of
// these and the caller stops gracefully.
type TransitionError struct {
	OrderCode string
	From      State
	To        State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: illegal transition from %s to %s", e.OrderCode, e.From, e.To)
}

// DomainError reports a business-rule rejection from the order store,
// e.g. a duplicate payment or an order that is not accepting payments.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("order: %s: %s", e.Code, e.Message)
}
