package request

import "github.com/shopspring/decimal"

type PaymentRequest struct {
	OrderCode       string          `json:"order_code" validate:"required,max=64"`
	PaymentMethodID string          `json:"payment_method_id" validate:"required,max=32"`
	Amount          decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Description     string          `json:"description" validate:"max=255"`

	// preference item title, optional
	ProductName string `json:"product_name,omitempty" validate:"max=255"`
}
