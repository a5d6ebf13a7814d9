package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusApproved   TransactionStatus = "APPROVED"
	TransactionStatusRejected   TransactionStatus = "REJECTED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
	TransactionStatusRefunded   TransactionStatus = "REFUNDED"
)

// IsTerminal reports whether no further transition is allowed, except refunds of approvals.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusApproved, TransactionStatusRejected, TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo enforces the lifecycle PENDING -> PROCESSING -> terminal.
// Non-terminal states move freely between each other; APPROVED may still become REFUNDED.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if s == next {
		return true
	}
	if !s.IsTerminal() {
		return true
	}
	return s == TransactionStatusApproved && next == TransactionStatusRefunded
}

// Transaction is one payment attempt for an order. Several attempts may share an order code.
type Transaction struct {
	Base
	ID               uuid.UUID         `db:"id"`
	OrderCode        string            `db:"order_code"`
	PaymentMethodID  string            `db:"payment_method_id"`
	Amount           decimal.Decimal   `db:"amount"`
	Status           TransactionStatus `db:"status"`
	ReferenceNumber  *string           `db:"reference_number"`
	Description      string            `db:"description"`
	RejectionReason  *string           `db:"rejection_reason"`
	MaskedCardNumber *string           `db:"masked_card_number"`
	CardType         *string           `db:"card_type"`
	ProcessedAt      *time.Time        `db:"processed_at"`
	Version          int               `db:"version"`
}

// Reference returns the gateway reference number or "".
func (t *Transaction) Reference() string {
	if t.ReferenceNumber == nil {
		return ""
	}
	return *t.ReferenceNumber
}
