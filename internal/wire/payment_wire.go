package wire

import (
	"payment-service/internal/adaptor"
	"payment-service/internal/gateway"
	"payment-service/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wirePayment(
	r chi.Router,
	handler *adaptor.Handler,
	verifier *gateway.SignatureVerifier,
	log *zap.Logger,
) {
	r.Route("/api/payments", func(r chi.Router) {
		// client facing
		r.Post("/preference", handler.Payment.CreatePreference)
		r.Post("/create-preference", handler.Payment.CreatePreference)
		r.Post("/process", handler.Payment.ProcessPayment)
		r.Get("/status/{paymentId}", handler.Payment.GetStatus)
		r.Get("/methods", handler.Payment.GetMethods)
		r.Get("/order/{orderCode}", handler.Payment.GetByOrder)

		// gateway notifications, signature checked before the handler
		r.With(middleware.WebhookSignature(verifier, log)).Post("/webhook", handler.Webhook.Receive)
		r.Get("/webhook", handler.Webhook.Ping)
		r.Get("/webhook/verify", handler.Webhook.Verify)

		// checkout back URLs, the gateway may redirect with either verb
		for _, m := range []string{"GET", "POST"} {
			r.MethodFunc(m, "/success", handler.Checkout.Success)
			r.MethodFunc(m, "/failure", handler.Checkout.Failure)
			r.MethodFunc(m, "/pending", handler.Checkout.Pending)
		}
	})
}
