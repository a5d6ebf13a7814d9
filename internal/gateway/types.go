package gateway

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the gateway's wire vocabulary for a payment. It is mapped onto
// entity.TransactionStatus by the reconciler and never stored directly.
type PaymentStatus string

const (
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusInProcess PaymentStatus = "in_process"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PreferenceItem struct {
	ID          string      `json:"id,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Quantity    int         `json:"quantity"`
	CurrencyID  string      `json:"currency_id"`
	UnitPrice   json.Number `json:"unit_price"`
}

type BackURLs struct {
	Success string `json:"success"`
	Pending string `json:"pending"`
	Failure string `json:"failure"`
}

type PreferenceRequest struct {
	Items               []PreferenceItem `json:"items"`
	BackURLs            BackURLs         `json:"back_urls"`
	AutoReturn          string           `json:"auto_return,omitempty"`
	ExternalReference   string           `json:"external_reference"`
	NotificationURL     string           `json:"notification_url"`
	StatementDescriptor string           `json:"statement_descriptor,omitempty"`
	Expires             bool             `json:"expires"`
	ExpirationDateTo    *time.Time       `json:"expiration_date_to,omitempty"`
}

// Preference is the checkout session minted by the gateway.
type Preference struct {
	ID                string `json:"id"`
	InitPoint         string `json:"init_point"`
	SandboxInitPoint  string `json:"sandbox_init_point"`
	ExternalReference string `json:"external_reference"`
}

type Card struct {
	FirstSixDigits string `json:"first_six_digits"`
	LastFourDigits string `json:"last_four_digits"`
}

// Payment is the authoritative gateway view of a payment.
type Payment struct {
	ID                int64           `json:"id"`
	Status            PaymentStatus   `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	PaymentMethodID   string          `json:"payment_method_id"`
	PaymentTypeID     string          `json:"payment_type_id"`
	Description       string          `json:"description"`
	Card              *Card           `json:"card,omitempty"`
	DateApproved      *time.Time      `json:"date_approved,omitempty"`
}

// HasCard reports whether the payment carries usable card details.
func (p *Payment) HasCard() bool {
	return p.Card != nil && p.Card.LastFourDigits != ""
}

// apiError is the error document returned on non-2xx responses.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}
