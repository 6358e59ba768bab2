package xendit

import (
	"strconv"
	"strings"
)

// HandlerCode identifies this gateway integration. The payment method
// attached to a recorded payment must carry this handler code.
const HandlerCode = "xendit"

// CallbackTokenHeader carries the shared-secret token on webhook requests
const CallbackTokenHeader = "X-Callback-Token"

// InvoiceStatus is a typed invoice status returned by Xendit
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusSettled InvoiceStatus = "SETTLED"
	InvoiceStatusExpired InvoiceStatus = "EXPIRED"
)

// InvoiceNotification is the JSON body Xendit posts to the webhook
// endpoint when an invoice settles, pays or expires. It is untrusted
// until the callback token has been verified.
type InvoiceNotification struct {
	ID             string        `json:"id"`
	ExternalID     string        `json:"external_id"`
	Description    string        `json:"description,omitempty"`
	Status         InvoiceStatus `json:"status"`
	Amount         float64       `json:"amount,omitempty"`
	Currency       string        `json:"currency,omitempty"`
	PaymentChannel string        `json:"payment_channel,omitempty"`
	PaymentMethod  string        `json:"payment_method,omitempty"`
	PayerEmail     string        `json:"payer_email,omitempty"`
	PaidAt         string        `json:"paid_at,omitempty"`
	Created        string        `json:"created,omitempty"`
	Updated        string        `json:"updated,omitempty"`
}

// CreateInvoiceRequest is the outbound request to create a hosted invoice
type CreateInvoiceRequest struct {
	ExternalID      string   `json:"external_id" validate:"required"`
	Amount          float64  `json:"amount" validate:"gt=0"`
	Currency        string   `json:"currency,omitempty"`
	PayerEmail      string   `json:"payer_email,omitempty"`
	Description     string   `json:"description,omitempty"`
	InvoiceDuration int      `json:"invoice_duration,omitempty"`
	PaymentMethods  []string `json:"payment_methods,omitempty"`
}

// BankChannel is one bank transfer option attached to a created invoice
type BankChannel struct {
	BankCode          string  `json:"bank_code"`
	CollectionType    string  `json:"collection_type,omitempty"`
	BankAccountNumber string  `json:"bank_account_number,omitempty"`
	TransferAmount    float64 `json:"transfer_amount,omitempty"`
}

// EwalletChannel is one e-wallet option attached to a created invoice
type EwalletChannel struct {
	EwalletType string `json:"ewallet_type"`
}

// Invoice is the provider's representation of a hosted invoice
type Invoice struct {
	ID                string           `json:"id"`
	ExternalID        string           `json:"external_id"`
	Status            InvoiceStatus    `json:"status"`
	InvoiceURL        string           `json:"invoice_url"`
	ExpiryDate        string           `json:"expiry_date,omitempty"`
	Amount            float64          `json:"amount"`
	Currency          string           `json:"currency,omitempty"`
	Description       string           `json:"description,omitempty"`
	AvailableBanks    []BankChannel    `json:"available_banks,omitempty"`
	AvailableEwallets []EwalletChannel `json:"available_ewallets,omitempty"`
}

// ChannelTokenFromDescription recovers the channel token from the
// composite description "<channelToken>_<orderID>" by splitting on the
// first underscore. The encoding is isolated here so it can be swapped
// for a structured correlation id without touching the reconciler.
func ChannelTokenFromDescription(description string) string {
	if idx := strings.Index(description, "_"); idx != -1 {
		return description[:idx]
	}
	return description
}

// InvoiceDescription builds the composite description for an order
func InvoiceDescription(channelToken string, orderID int64) string {
	return channelToken + "_" + strconv.FormatInt(orderID, 10)
}
