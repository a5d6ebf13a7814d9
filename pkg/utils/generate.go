package utils

import (
	"fmt"

	"github.com/google/uuid"
)

func GenerateUUID() uuid.UUID {
	return uuid.New()
}

func GenerateUUIDString() string {
	return uuid.New().String()
}

// FallbackOrderCode is used when a gateway payment carries no external reference.
// Format: ORDER-<gateway payment id>
func FallbackOrderCode(paymentID string) string {
	return fmt.Sprintf("ORDER-%s", paymentID)
}

// MaskCardNumber renders the last four digits the way receipts show them.
func MaskCardNumber(lastFour string) string {
	return "**** **** **** " + lastFour
}
