package adaptor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"payment-service/internal/dto/request"
	"payment-service/internal/dto/response"
	"payment-service/internal/usecase"
	"payment-service/pkg/middleware"
	"payment-service/pkg/utils"

	"go.uber.org/zap"
)

const webhookTimeout = 30 * time.Second

type SignatureStatus interface {
	Enabled() bool
}

type WebhookHandler struct {
	service  usecase.WebhookService
	verifier SignatureStatus
	now      func() time.Time
	log      *zap.Logger
}

func NewWebhookHandler(service usecase.WebhookService, verifier SignatureStatus, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:  service,
		verifier: verifier,
		now:      time.Now,
		log:      log.With(zap.String("handler", "webhook")),
	}
}

// Receive handles POST /api/payments/webhook. The gateway retires endpoints that keep failing,
// so every path answers 200 "OK" and errors stay in the log.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(middleware.RequestIDHeader)

	n, ok := h.decode(r)
	if !ok {
		h.log.Warn("Unreadable webhook notification",
			zap.String("request_id", requestID),
			zap.String("query", r.URL.RawQuery),
		)
		utils.ResponseText(w, http.StatusOK, "OK")
		return
	}

	// the gateway may hang up early; the fold should still finish
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), webhookTimeout)
	defer cancel()

	tx, err := h.service.HandleNotification(ctx, requestID, n)
	if err != nil {
		h.log.Error("Webhook processing failed",
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.String("type", n.EventType()),
			zap.String("data_id", n.Data.ID.String()),
		)
	} else if tx != nil {
		h.log.Debug("Webhook acknowledged",
			zap.String("request_id", requestID),
			zap.String("transaction_id", tx.ID.String()),
		)
	}

	utils.ResponseText(w, http.StatusOK, "OK")
}

// decode reads the JSON envelope, falling back to the legacy query-string form.
func (h *WebhookHandler) decode(r *http.Request) (*request.WebhookNotification, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return nil, false
	}

	if len(bytes.TrimSpace(body)) > 0 {
		var n request.WebhookNotification
		if err := json.Unmarshal(body, &n); err == nil && n.EventType() != "" {
			return &n, true
		}
	}
	return request.NotificationFromQuery(r.URL.Query())
}

// Ping handles GET /api/payments/webhook
func (h *WebhookHandler) Ping(w http.ResponseWriter, r *http.Request) {
	utils.ResponseText(w, http.StatusOK, "Webhook is working")
}

// Verify handles GET /api/payments/webhook/verify
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	utils.ResponseSuccess(w, "success", response.WebhookStatusResponse{
		Status:                "active",
		Message:               "Webhook endpoint is ready to receive notifications",
		SignatureVerification: h.verifier != nil && h.verifier.Enabled(),
		Timestamp:             h.now().UTC(),
	})
}
