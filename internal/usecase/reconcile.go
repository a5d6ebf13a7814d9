package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"payment-service/internal/data/entity"
	"payment-service/internal/data/repository"
	"payment-service/internal/gateway"
	"payment-service/internal/metrics"
	"payment-service/pkg/apperror"
	"payment-service/pkg/utils"

	"go.uber.org/zap"
)

const (
	maxReconcileAttempts   = 5
	defaultGatewayMethodID = "MERCADOPAGO"
)

// gatewayStatusTable bridges the gateway vocabulary to local states.
var gatewayStatusTable = map[gateway.PaymentStatus]entity.TransactionStatus{
	gateway.PaymentStatusApproved:  entity.TransactionStatusApproved,
	gateway.PaymentStatusPending:   entity.TransactionStatusPending,
	gateway.PaymentStatusInProcess: entity.TransactionStatusProcessing,
	gateway.PaymentStatusRejected:  entity.TransactionStatusRejected,
	gateway.PaymentStatusCancelled: entity.TransactionStatusCancelled,
	gateway.PaymentStatusRefunded:  entity.TransactionStatusRefunded,
}

// mapGatewayStatus returns PROCESSING and false for statuses outside the table.
func mapGatewayStatus(status gateway.PaymentStatus) (entity.TransactionStatus, bool) {
	local, ok := gatewayStatusTable[status]
	if !ok {
		return entity.TransactionStatusProcessing, false
	}
	return local, true
}

func stampsProcessedAt(status entity.TransactionStatus) bool {
	return status.IsTerminal()
}

// applyGatewayPayment folds the gateway view into tx and reports whether anything changed.
// Folding the same payment twice leaves tx untouched the second time.
func applyGatewayPayment(tx *entity.Transaction, payment *gateway.Payment, now time.Time, log *zap.Logger) bool {
	changed := false

	target, known := mapGatewayStatus(payment.Status)
	if !known {
		log.Warn("Unrecognized gateway status",
			zap.String("gateway_status", string(payment.Status)),
			zap.Int64("payment_id", payment.ID),
		)
	}

	statusApplied := true
	switch {
	case tx.Status == target:
	case tx.Status.CanTransitionTo(target):
		tx.Status = target
		changed = true
	default:
		statusApplied = false
		log.Warn("Ignoring transition out of terminal status",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("from", string(tx.Status)),
			zap.String("to", string(target)),
		)
	}

	if statusApplied && stampsProcessedAt(target) && (changed || tx.ProcessedAt == nil) {
		stamp := now
		tx.ProcessedAt = &stamp
		changed = true
	}

	if statusApplied && target == entity.TransactionStatusRejected {
		reason := payment.StatusDetail
		if reason == "" {
			reason = string(payment.Status)
		}
		if tx.RejectionReason == nil || *tx.RejectionReason != reason {
			tx.RejectionReason = &reason
			changed = true
		}
	}

	if payment.HasCard() {
		masked := utils.MaskCardNumber(payment.Card.LastFourDigits)
		if tx.MaskedCardNumber == nil || *tx.MaskedCardNumber != masked {
			tx.MaskedCardNumber = &masked
			changed = true
		}
		if payment.PaymentMethodID != "" && (tx.CardType == nil || *tx.CardType != payment.PaymentMethodID) {
			cardType := payment.PaymentMethodID
			tx.CardType = &cardType
			changed = true
		}
	}

	// the gateway is the source of truth for the settled amount
	if payment.TransactionAmount.IsPositive() && !tx.Amount.Equal(payment.TransactionAmount) {
		tx.Amount = payment.TransactionAmount
		changed = true
	}

	if changed {
		tx.UpdatedAt = now
	}
	return changed
}

// reconciler resolves a gateway payment to its local transaction and persists the fold.
// Both the webhook and the polling status query go through it.
type reconciler struct {
	transactions repository.TransactionRepository
	gateway      PaymentGateway
	metrics      *metrics.Metrics
	now          func() time.Time
	log          *zap.Logger
}

func newReconciler(repo *repository.Repository, gw PaymentGateway, m *metrics.Metrics, now func() time.Time, log *zap.Logger) *reconciler {
	return &reconciler{
		transactions: repo.Transaction,
		gateway:      gw,
		metrics:      m,
		now:          now,
		log:          log.With(zap.String("service", "reconciler")),
	}
}

// ParsePaymentID rejects anything that is not a gateway numeric id.
func ParsePaymentID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewValidation(fmt.Sprintf("payment id must be numeric: %q", raw))
	}
	return id, nil
}

// Reconcile fetches the payment from the gateway and folds it into the store.
// source labels the caller in metrics and logs.
func (r *reconciler) Reconcile(ctx context.Context, paymentID int64, source string) (*entity.Transaction, error) {
	reference := strconv.FormatInt(paymentID, 10)

	payment, err := r.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		if gwErr, ok := apperror.AsGateway(err); ok && gwErr.NotFound() {
			return nil, apperror.NewNotFound("payment", reference)
		}
		return nil, err
	}

	r.log.Info("Gateway payment fetched",
		zap.String("source", source),
		zap.Int64("payment_id", payment.ID),
		zap.String("gateway_status", string(payment.Status)),
		zap.String("external_reference", payment.ExternalReference),
	)

	for attempt := 1; attempt <= maxReconcileAttempts; attempt++ {
		tx, err := r.fold(ctx, reference, payment)
		if err == nil {
			if r.metrics != nil {
				r.metrics.Reconciliations.WithLabelValues(source, string(tx.Status)).Inc()
			}
			return tx, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) && !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		r.log.Debug("Concurrent reconciliation, retrying",
			zap.String("payment_id", reference),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("reconcile payment %s: %w", reference, repository.ErrVersionConflict)
}

func (r *reconciler) fold(ctx context.Context, reference string, payment *gateway.Payment) (*entity.Transaction, error) {
	now := r.now().UTC()

	tx, err := r.resolve(ctx, reference, payment)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return r.synthesize(ctx, reference, payment, now)
	}

	changed := false
	if tx.Reference() != reference {
		tx.ReferenceNumber = &reference
		changed = true
	}
	if applyGatewayPayment(tx, payment, now, r.log) {
		changed = true
	}
	if !changed {
		return tx, nil
	}
	tx.UpdatedAt = now

	if err := r.transactions.Update(ctx, tx); err != nil {
		return nil, err
	}

	r.log.Info("Transaction reconciled",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("order_code", tx.OrderCode),
		zap.String("status", string(tx.Status)),
	)
	return tx, nil
}

// resolve looks the payment up by reference number, then by the order code the gateway reports.
// An order's latest attempt is only reused when it is not already bound to another gateway
// payment and can still move to the reported status.
func (r *reconciler) resolve(ctx context.Context, reference string, payment *gateway.Payment) (*entity.Transaction, error) {
	tx, err := r.transactions.FindByReferenceNumber(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("find transaction by reference: %w", err)
	}
	if tx != nil {
		return tx, nil
	}

	if payment.ExternalReference == "" {
		return nil, nil
	}

	tx, err = r.transactions.FindLatestByOrderCode(ctx, payment.ExternalReference)
	if err != nil {
		return nil, fmt.Errorf("find transaction by order code: %w", err)
	}
	if tx == nil {
		return nil, nil
	}

	if isGatewayPaymentReference(tx.Reference()) {
		r.log.Info("Latest attempt belongs to another gateway payment",
			zap.String("order_code", tx.OrderCode),
			zap.String("bound_to", tx.Reference()),
			zap.String("payment_id", reference),
		)
		return nil, nil
	}

	target, _ := mapGatewayStatus(payment.Status)
	if !tx.Status.CanTransitionTo(target) {
		return nil, nil
	}
	return tx, nil
}

// synthesize records a payment the gateway knows about but the store does not.
func (r *reconciler) synthesize(ctx context.Context, reference string, payment *gateway.Payment, now time.Time) (*entity.Transaction, error) {
	orderCode := payment.ExternalReference
	if orderCode == "" {
		orderCode = utils.FallbackOrderCode(reference)
	}
	methodID := payment.PaymentMethodID
	if methodID == "" {
		methodID = defaultGatewayMethodID
	}

	tx := &entity.Transaction{
		Base:            entity.Base{CreatedAt: now, UpdatedAt: now},
		ID:              utils.GenerateUUID(),
		OrderCode:       orderCode,
		PaymentMethodID: methodID,
		Amount:          payment.TransactionAmount,
		Status:          entity.TransactionStatusPending,
		ReferenceNumber: &reference,
		Description:     "Payment created from gateway notification " + reference,
		Version:         1,
	}
	applyGatewayPayment(tx, payment, now, r.log)

	if err := r.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}

	r.log.Info("Transaction synthesized from gateway payment",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("order_code", tx.OrderCode),
		zap.String("payment_id", reference),
		zap.String("status", string(tx.Status)),
	)
	return tx, nil
}

func isGatewayPaymentReference(ref string) bool {
	if ref == "" {
		return false
	}
	_, err := strconv.ParseInt(ref, 10, 64)
	return err == nil
}
