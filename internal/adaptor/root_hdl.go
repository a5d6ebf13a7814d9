package adaptor

import (
	"context"
	"net/http"
	"time"

	"payment-service/pkg/utils"

	"go.uber.org/zap"
)

const Version = "1.0.0"

type Pinger interface {
	Ping(ctx context.Context) error
}

type RootHandler struct {
	db  Pinger
	log *zap.Logger
}

func NewRootHandler(db Pinger, log *zap.Logger) *RootHandler {
	return &RootHandler{
		db:  db,
		log: log.With(zap.String("handler", "root")),
	}
}

// Index handles GET /
func (h *RootHandler) Index(w http.ResponseWriter, r *http.Request) {
	utils.ResponseSuccess(w, "success", map[string]any{
		"name":    "payment-service",
		"status":  "running",
		"version": Version,
		"endpoints": map[string]string{
			"preference": "POST /api/payments/preference",
			"process":    "POST /api/payments/process",
			"status":     "GET /api/payments/status/{paymentId}",
			"methods":    "GET /api/payments/methods",
			"order":      "GET /api/payments/order/{orderCode}",
			"webhook":    "POST /api/payments/webhook",
			"health":     "GET /health",
			"metrics":    "GET /metrics",
		},
	})
}

// Health handles GET /health
func (h *RootHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.log.Error("Database health check failed", zap.Error(err))
		utils.ResponseJSON(w, http.StatusServiceUnavailable, false, "unhealthy", map[string]string{"database": "down"}, nil)
		return
	}
	utils.ResponseSuccess(w, "healthy", map[string]string{"database": "up"})
}
