package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrOrderNotFound is returned by Store.FindByCode when no order matches
// the given code in the tenant's channel.
var ErrOrderNotFound = errors.New("order: not found")

// TenantContext scopes store operations to one sales channel. It is
// request-scoped and never stored.
type TenantContext struct {
	ChannelToken string
	RequestID    string
	ClientIP     string
}

// RequestMeta carries per-request metadata into a tenant context
type RequestMeta struct {
	RequestID string
	ClientIP  string
}

// TenantContextFactory builds tenant contexts from a channel token and
// request metadata
type TenantContextFactory interface {
	Create(channelToken string, meta RequestMeta) TenantContext
}

// ContextFactory is the default TenantContextFactory
type ContextFactory struct{}

// NewContextFactory creates the default tenant context factory
func NewContextFactory() ContextFactory {
	return ContextFactory{}
}

// Create builds a tenant context, minting a request id when the caller
// did not supply one
func (ContextFactory) Create(channelToken string, meta RequestMeta) TenantContext {
	requestID := meta.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return TenantContext{
		ChannelToken: channelToken,
		RequestID:    requestID,
		ClientIP:     meta.ClientIP,
	}
}

// Store is the authoritative source of orders
type Store interface {
	// FindByCode looks up an order by its human-facing code within the
	// tenant's channel. Returns ErrOrderNotFound when absent.
	FindByCode(ctx context.Context, tctx TenantContext, code string) (*Order, error)

	// TransitionState moves an order to the target state. Illegal
	// transitions return a *TransitionError.
	TransitionState(ctx context.Context, tctx TenantContext, orderID int64, target State) error

	// AddPayment records a payment against an order. Business-rule
	// rejections return a *DomainError.
	AddPayment(ctx context.Context, tctx TenantContext, orderID int64, input PaymentInput) (*Order, error)
}

// MethodRegistry resolves the configured payment methods for a channel
type MethodRegistry interface {
	ListConfigured(ctx context.Context, tctx TenantContext) ([]PaymentMethod, error)
}
