package adaptor

import (
	"net/http"
	"strings"

	"payment-service/internal/dto/response"
	"payment-service/internal/usecase"
	"payment-service/pkg/utils"

	"go.uber.org/zap"
)

// CheckoutHandler serves the pages the gateway redirects buyers back to. They are informational
// and always answer 200.
type CheckoutHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewCheckoutHandler(service usecase.PaymentService, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		log:     log.With(zap.String("handler", "checkout")),
	}
}

type checkoutResult struct {
	PaymentID         string                        `json:"payment_id,omitempty"`
	Status            string                        `json:"status,omitempty"`
	ExternalReference string                        `json:"external_reference,omitempty"`
	Transaction       *response.TransactionResponse `json:"transaction,omitempty"`
}

// Success handles GET|POST /api/payments/success. A payment_id triggers a status reconciliation.
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	result := landingResult(r)

	if result.PaymentID == "" {
		utils.ResponseSuccess(w, "Payment successful", result)
		return
	}

	tx, err := h.service.GetStatus(r.Context(), result.PaymentID)
	if err != nil {
		h.log.Warn("Status lookup after checkout failed",
			zap.Error(err),
			zap.String("payment_id", result.PaymentID),
		)
		utils.ResponseSuccess(w, "Payment received, status will be confirmed shortly", result)
		return
	}

	result.Transaction = tx
	utils.ResponseSuccess(w, "Payment successful", result)
}

// Failure handles GET|POST /api/payments/failure
func (h *CheckoutHandler) Failure(w http.ResponseWriter, r *http.Request) {
	result := landingResult(r)
	h.log.Info("Checkout failed", zap.String("payment_id", result.PaymentID), zap.String("order_code", result.ExternalReference))
	utils.ResponseSuccess(w, "Payment failed", result)
}

// Pending handles GET|POST /api/payments/pending
func (h *CheckoutHandler) Pending(w http.ResponseWriter, r *http.Request) {
	utils.ResponseSuccess(w, "Payment pending", landingResult(r))
}

func landingResult(r *http.Request) checkoutResult {
	q := r.URL.Query()

	paymentID := q.Get("payment_id")
	if paymentID == "" {
		paymentID = q.Get("collection_id")
	}
	status := q.Get("status")
	if status == "" {
		status = q.Get("collection_status")
	}

	return checkoutResult{
		PaymentID:         strings.TrimSpace(paymentID),
		Status:            status,
		ExternalReference: q.Get("external_reference"),
	}
}
