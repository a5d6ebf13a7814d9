package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"

	"payment-service/internal/dto/request"
	"payment-service/internal/usecase"
	"payment-service/pkg/apperror"
	"payment-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// CreatePreference handles POST /api/payments/preference
func (h *PaymentHandler) CreatePreference(w http.ResponseWriter, r *http.Request) {
	var req request.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	pref, err := h.service.CreatePreference(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err, "create preference")
		return
	}

	utils.ResponseSuccess(w, "Preference created successfully", pref)
}

// ProcessPayment handles POST /api/payments/process
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req request.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	tx, err := h.service.ProcessPayment(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err, "process payment")
		return
	}

	utils.ResponseSuccess(w, "Payment processed successfully", tx)
}

// GetStatus handles GET /api/payments/status/{paymentId}
func (h *PaymentHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	tx, err := h.service.GetStatus(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		h.handleServiceError(w, err, "get payment status")
		return
	}

	utils.ResponseSuccess(w, "Payment status retrieved successfully", tx)
}

// GetMethods handles GET /api/payments/methods
func (h *PaymentHandler) GetMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.ListActiveMethods(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "list payment methods")
		return
	}

	utils.ResponseSuccess(w, "success", methods)
}

// GetByOrder handles GET /api/payments/order/{orderCode}
func (h *PaymentHandler) GetByOrder(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.service.ListByOrder(r.Context(), chi.URLParam(r, "orderCode"))
	if err != nil {
		h.handleServiceError(w, err, "list order transactions")
		return
	}

	utils.ResponseSuccess(w, "success", transactions)
}

// handleServiceError maps the error taxonomy onto status codes. Internal detail never leaves the 500 path.
func (h *PaymentHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	var validationErr *apperror.ValidationError
	var notFoundErr *apperror.NotFoundError
	var gatewayErr *apperror.GatewayError

	switch {
	case errors.As(err, &validationErr):
		h.log.Warn(operation+" validation failed", zap.Error(err))
		utils.ResponseBadRequest(w, "Validation failed", validationErrorBody(validationErr))

	case errors.As(err, &notFoundErr):
		h.log.Warn(operation+" failed - not found", zap.Error(err))
		utils.ResponseNotFound(w, notFoundErr.Error())

	case errors.As(err, &gatewayErr):
		h.log.Warn(operation+" failed - gateway error",
			zap.Error(err),
			zap.String("code", gatewayErr.Code),
			zap.Int("gateway_status", gatewayErr.StatusCode),
		)
		utils.ResponseBadRequest(w, gatewayErr.Message, map[string]any{
			"code":      gatewayErr.Code,
			"retryable": gatewayErr.Retryable,
		})

	default:
		h.log.Error("Failed to "+operation, zap.Error(err))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

func validationErrorBody(err *apperror.ValidationError) any {
	if len(err.Fields) > 0 {
		return err.Fields
	}
	return map[string]string{"message": err.Message}
}
