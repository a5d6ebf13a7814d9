package response

import (
	"encoding/json"
	"time"

	"payment-service/internal/data/entity"
)

type PaymentMethodResponse struct {
	ID             string                   `json:"id"`
	Name           string                   `json:"name"`
	Type           entity.PaymentMethodType `json:"type"`
	Description    *string                  `json:"description,omitempty"`
	Commission     json.Number              `json:"commission"`
	ProcessingDays int                      `json:"processing_days"`
	IsActive       bool                     `json:"is_active"`
}

type TransactionResponse struct {
	ID                string                   `json:"id"`
	OrderCode         string                   `json:"order_code"`
	PaymentMethodID   string                   `json:"payment_method_id"`
	PaymentMethodName string                   `json:"payment_method_name,omitempty"`
	Amount            json.Number              `json:"amount"`
	Status            entity.TransactionStatus `json:"status"`
	ReferenceNumber   *string                  `json:"reference_number,omitempty"`
	Description       string                   `json:"description,omitempty"`
	RejectionReason   *string                  `json:"rejection_reason,omitempty"`
	MaskedCardNumber  *string                  `json:"masked_card_number,omitempty"`
	CardType          *string                  `json:"card_type,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
	ProcessedAt       *time.Time               `json:"processed_at,omitempty"`
}

type PreferenceResponse struct {
	TransactionID string `json:"transaction_id"`
	PreferenceID  string `json:"preference_id"`
	RedirectURL   string `json:"redirect_url"`
}

type WebhookStatusResponse struct {
	Status                string    `json:"status"`
	Message               string    `json:"message"`
	SignatureVerification bool      `json:"signature_verification"`
	Timestamp             time.Time `json:"timestamp"`
}

// Helper converters
func PaymentMethodToResponse(pm *entity.PaymentMethod) PaymentMethodResponse {
	return PaymentMethodResponse{
		ID:             pm.ID,
		Name:           pm.Name,
		Type:           pm.Type,
		Description:    pm.Description,
		Commission:     json.Number(pm.Commission.String()),
		ProcessingDays: pm.ProcessingDays,
		IsActive:       pm.IsActive,
	}
}

func TransactionToResponse(tx *entity.Transaction, methodName string) TransactionResponse {
	return TransactionResponse{
		ID:                tx.ID.String(),
		OrderCode:         tx.OrderCode,
		PaymentMethodID:   tx.PaymentMethodID,
		PaymentMethodName: methodName,
		Amount:            json.Number(tx.Amount.StringFixed(2)),
		Status:            tx.Status,
		ReferenceNumber:   tx.ReferenceNumber,
		Description:       tx.Description,
		RejectionReason:   tx.RejectionReason,
		MaskedCardNumber:  tx.MaskedCardNumber,
		CardType:          tx.CardType,
		CreatedAt:         tx.CreatedAt,
		ProcessedAt:       tx.ProcessedAt,
	}
}
