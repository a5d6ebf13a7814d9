package usecase

import (
	"context"
	"time"

	"payment-service/internal/data/entity"
	"payment-service/internal/data/repository"
	"payment-service/internal/gateway"
	"payment-service/internal/metrics"
	"payment-service/pkg/utils"

	"go.uber.org/zap"
)

// PaymentGateway is the subset of the gateway client the services call.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, req gateway.PreferenceRequest) (*gateway.Preference, error)
	GetPayment(ctx context.Context, id int64) (*gateway.Payment, error)
}

// Notifier hands a committed transaction to downstream consumers without blocking.
type Notifier interface {
	Dispatch(tx *entity.Transaction)
}

// DeliveryClaimer remembers webhook deliveries already handled.
type DeliveryClaimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Dependencies struct {
	Gateway  PaymentGateway
	Notifier Notifier
	Dedupe   DeliveryClaimer
	Metrics  *metrics.Metrics
}

type Service struct {
	Payment PaymentService
	Webhook WebhookService
}

func NewService(repo *repository.Repository, deps Dependencies, config *utils.Config, log *zap.Logger) *Service {
	rec := newReconciler(repo, deps.Gateway, deps.Metrics, time.Now, log)

	return &Service{
		Payment: NewPaymentService(repo, deps.Gateway, rec, config, log),
		Webhook: NewWebhookService(rec, deps.Notifier, deps.Dedupe, config.Redis.DedupeTTL, deps.Metrics, log),
	}
}
