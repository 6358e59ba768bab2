package xendit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ecomkit/xenbridge/infra/config"
	"github.com/ecomkit/xenbridge/infra/logger"
)

const defaultRequestTimeout = 30 * time.Second

// ErrInvoiceCreateFailed is the generic failure surfaced to callers when
// invoice creation does not succeed. The provider's raw response is
// logged, not returned, so that provider internals never leak to API
// consumers.
var ErrInvoiceCreateFailed = errors.New("xendit: invoice creation failed")

// ErrInvoiceNotFound reports a lookup for an unknown invoice id
var ErrInvoiceNotFound = errors.New("xendit: invoice not found")

// Client talks to the Xendit invoice API. Authentication is HTTP basic
// with the API key as username and an empty password.
type Client struct {
	apiKey          string
	baseURL         string
	invoiceDuration int
	paymentMethods  []string
	httpClient      *http.Client
}

// NewClient creates an invoice API client from validated configuration
func NewClient(cfg *config.XenditConfig) *Client {
	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		invoiceDuration: cfg.InvoiceDuration,
		paymentMethods:  cfg.PaymentMethods,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

// CreateInvoice creates a hosted invoice for the given request. Defaults
// from configuration fill in the invoice duration and payment method
// restriction when the caller left them empty.
func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	if req.InvoiceDuration == 0 {
		req.InvoiceDuration = c.invoiceDuration
	}
	if len(req.PaymentMethods) == 0 && len(c.paymentMethods) > 0 {
		req.PaymentMethods = c.paymentMethods
	}

	body, status, err := c.send(ctx, http.MethodPost, "/v2/invoices", req)
	if err != nil {
		logger.Error("Invoice creation request failed", err)
		return nil, ErrInvoiceCreateFailed
	}

	if status < 200 || status >= 300 {
		logger.Error("Invoice creation rejected", fmt.Errorf("status %d: %s", status, string(body)),
			logger.LogContext{Fields: map[string]any{"external_id": req.ExternalID}})
		return nil, ErrInvoiceCreateFailed
	}

	var inv Invoice
	if err := json.Unmarshal(body, &inv); err != nil {
		logger.Error("Invoice creation response unreadable", err)
		return nil, ErrInvoiceCreateFailed
	}

	return &inv, nil
}

// GetInvoice fetches one invoice by its provider-side id
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	body, status, err := c.send(ctx, http.MethodGet, "/v2/invoices/"+invoiceID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching invoice %s: %w", invoiceID, err)
	}

	if status == http.StatusNotFound {
		return nil, ErrInvoiceNotFound
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("fetching invoice %s: status %d: %s", invoiceID, status, string(body))
	}

	var inv Invoice
	if err := json.Unmarshal(body, &inv); err != nil {
		return nil, fmt.Errorf("fetching invoice %s: %w", invoiceID, err)
	}

	return &inv, nil
}

// CreateRefund is deliberately a no-op: hosted invoices are refunded
// through the provider dashboard, and the order platform treats the
// returned acknowledgement as a manual-settlement marker.
func (c *Client) CreateRefund(_ context.Context, invoiceID string) (string, error) {
	return "Refunds for invoice " + invoiceID + " are settled manually via the provider dashboard", nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload any) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return respBody, resp.StatusCode, nil
}
