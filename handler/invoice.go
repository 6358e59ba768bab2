package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ecomkit/xenbridge/infra/metrics"
	"github.com/ecomkit/xenbridge/infra/response"
	"github.com/ecomkit/xenbridge/xendit"
)

// InvoiceClient is the provider API surface the invoice endpoints need
type InvoiceClient interface {
	CreateInvoice(ctx context.Context, req xendit.CreateInvoiceRequest) (*xendit.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*xendit.Invoice, error)
}

// InvoiceHandler exposes hosted invoice creation and lookup
type InvoiceHandler struct {
	client   InvoiceClient
	validate *validator.Validate
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(client InvoiceClient) *InvoiceHandler {
	return &InvoiceHandler{
		client:   client,
		validate: validator.New(),
	}
}

// CreateInvoice processes POST /v1/invoices
func (h *InvoiceHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req xendit.CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	inv, err := h.client.CreateInvoice(r.Context(), req)
	if err != nil {
		metrics.CountInvoiceCreation("failure")
		response.Error(w, http.StatusBadGateway, "Invoice creation failed", err)
		return
	}

	metrics.CountInvoiceCreation("success")
	response.Success(w, http.StatusCreated, "Invoice created", inv)
}

// GetInvoice processes GET /v1/invoices/{invoiceID}
func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoiceID")
	if invoiceID == "" {
		response.Error(w, http.StatusBadRequest, "Invoice id is required", nil)
		return
	}

	inv, err := h.client.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, xendit.ErrInvoiceNotFound) {
			response.Error(w, http.StatusNotFound, "Invoice not found", nil)
			return
		}
		response.Error(w, http.StatusBadGateway, "Invoice lookup failed", err)
		return
	}

	response.Success(w, http.StatusOK, "Invoice retrieved", inv)
}
