package adaptor

import (
	"payment-service/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Payment  *PaymentHandler
	Webhook  *WebhookHandler
	Checkout *CheckoutHandler
	Root     *RootHandler
}

func NewHandler(service *usecase.Service, verifier SignatureStatus, db Pinger, log *zap.Logger) *Handler {
	return &Handler{
		Payment:  NewPaymentHandler(service.Payment, log),
		Webhook:  NewWebhookHandler(service.Webhook, verifier, log),
		Checkout: NewCheckoutHandler(service.Payment, log),
		Root:     NewRootHandler(db, log),
	}
}
