package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/ecomkit/xenbridge/handler"
	"github.com/ecomkit/xenbridge/infra/middle"
)

// Handlers bundles everything the route tree needs
type Handlers struct {
	Webhook *handler.WebhookHandler
	Invoice *handler.InvoiceHandler
	Health  *handler.HealthHandler
	APIKey  string
}

// Routes mounts all application routes on r. Webhook and health routes
// are unauthenticated; the management API under /v1 requires the API key.
func Routes(r chi.Router, h Handlers) {
	r.Get("/health", h.Health.Check)

	// Provider callbacks authenticate with the callback token, not the
	// API key
	r.Route("/payments", func(r chi.Router) {
		r.Post("/xendit", h.Webhook.HandleCallback)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middle.AuthMiddleware(h.APIKey))

		r.Post("/invoices", h.Invoice.CreateInvoice)
		r.Get("/invoices/{invoiceID}", h.Invoice.GetInvoice)
	})
}
