package entity

import (
	"github.com/shopspring/decimal"
)

type PaymentMethodType string

const (
	PaymentMethodTypeCard          PaymentMethodType = "CARD"
	PaymentMethodTypeCash          PaymentMethodType = "CASH"
	PaymentMethodTypeTransfer      PaymentMethodType = "TRANSFER"
	PaymentMethodTypeDigitalWallet PaymentMethodType = "DIGITAL_WALLET"
)

// CashPaymentMethodID is the seeded identifier of the cash method.
const CashPaymentMethodID = "CASH"

type PaymentMethod struct {
	Base
	ID             string            `db:"id" json:"id"`
	Name           string            `db:"name" json:"name"`
	Type           PaymentMethodType `db:"type" json:"type"`
	Description    *string           `db:"description" json:"description,omitempty"`
	Commission     decimal.Decimal   `db:"commission" json:"commission"`
	ProcessingDays int               `db:"processing_days" json:"processing_days"`
	IsActive       bool              `db:"is_active" json:"is_active"`
}
