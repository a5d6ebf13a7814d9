package usecase

import (
	"context"
	"time"

	"payment-service/internal/data/entity"
	"payment-service/internal/dto/request"
	"payment-service/internal/metrics"

	"go.uber.org/zap"
)

const (
	outcomeProcessed = "processed"
	outcomeIgnored   = "ignored"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"

	deliveryKeyPrefix = "webhook:delivery:"
)

type WebhookService interface {
	// HandleNotification reconciles a gateway notification. The caller acknowledges the
	// delivery whatever this returns; errors are only for logging.
	HandleNotification(ctx context.Context, requestID string, n *request.WebhookNotification) (*entity.Transaction, error)
}

type webhookService struct {
	reconciler *reconciler
	notifier   Notifier
	dedupe     DeliveryClaimer
	dedupeTTL  time.Duration
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func NewWebhookService(rec *reconciler, notifier Notifier, dedupe DeliveryClaimer, dedupeTTL time.Duration, m *metrics.Metrics, log *zap.Logger) WebhookService {
	return &webhookService{
		reconciler: rec,
		notifier:   notifier,
		dedupe:     dedupe,
		dedupeTTL:  dedupeTTL,
		metrics:    m,
		log:        log.With(zap.String("service", "webhook")),
	}
}

func (s *webhookService) HandleNotification(ctx context.Context, requestID string, n *request.WebhookNotification) (*entity.Transaction, error) {
	eventType := n.EventType()

	if !n.IsPayment() {
		s.log.Info("Ignoring non-payment notification",
			zap.String("type", eventType),
			zap.String("action", n.Action),
		)
		s.count(eventType, outcomeIgnored)
		return nil, nil
	}

	paymentID, err := ParsePaymentID(n.Data.ID.String())
	if err != nil {
		s.count(eventType, outcomeFailed)
		return nil, err
	}

	key := ""
	if requestID != "" && s.dedupe != nil {
		key = deliveryKeyPrefix + requestID
		claimed, err := s.dedupe.Claim(ctx, key, s.dedupeTTL)
		switch {
		case err != nil:
			// without the claim store we fall back to the idempotent fold
			s.log.Warn("Delivery dedupe unavailable", zap.Error(err), zap.String("request_id", requestID))
			key = ""
		case !claimed:
			s.log.Info("Duplicate webhook delivery",
				zap.String("request_id", requestID),
				zap.Int64("payment_id", paymentID),
			)
			s.count(eventType, outcomeDuplicate)
			return nil, nil
		}
	}

	tx, err := s.reconciler.Reconcile(ctx, paymentID, "webhook")
	if err != nil {
		if key != "" {
			// let the gateway's redelivery try again
			if relErr := s.dedupe.Release(ctx, key); relErr != nil {
				s.log.Warn("Failed to release delivery claim", zap.Error(relErr), zap.String("request_id", requestID))
			}
		}
		s.count(eventType, outcomeFailed)
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Dispatch(tx)
	}
	s.count(eventType, outcomeProcessed)

	s.log.Info("Webhook processed",
		zap.Int64("payment_id", paymentID),
		zap.String("order_code", tx.OrderCode),
		zap.String("status", string(tx.Status)),
	)
	return tx, nil
}

func (s *webhookService) count(eventType, outcome string) {
	if s.metrics == nil {
		return
	}
	// keep label cardinality bounded
	if eventType != request.NotificationTypePayment {
		eventType = "other"
	}
	s.metrics.WebhooksReceived.WithLabelValues(eventType, outcome).Inc()
}
