package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-service/internal/data/entity"
	"payment-service/internal/data/repository"
	"payment-service/internal/dto/request"
	"payment-service/internal/dto/response"
	"payment-service/internal/gateway"
	"payment-service/pkg/apperror"
	"payment-service/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	currencyPlaces     = 2
	preferenceLifetime = 24 * time.Hour
	cashDiscountNote   = " - 15% cash discount applied"
	maxProcessAttempts = 3
)

var cashDiscountRate = decimal.RequireFromString("0.15")

type PaymentService interface {
	CreatePreference(ctx context.Context, req *request.PaymentRequest) (*response.PreferenceResponse, error)
	ProcessPayment(ctx context.Context, req *request.PaymentRequest) (*response.TransactionResponse, error)

	// GetStatus folds the gateway's current view of paymentID into the store.
	GetStatus(ctx context.Context, paymentID string) (*response.TransactionResponse, error)

	ListByOrder(ctx context.Context, orderCode string) ([]response.TransactionResponse, error)
	ListActiveMethods(ctx context.Context) ([]response.PaymentMethodResponse, error)
}

type paymentService struct {
	repo       *repository.Repository
	gateway    PaymentGateway
	reconciler *reconciler
	config     *utils.Config
	now        func() time.Time
	log        *zap.Logger
}

func NewPaymentService(repo *repository.Repository, gw PaymentGateway, rec *reconciler, config *utils.Config, log *zap.Logger) PaymentService {
	return &paymentService{
		repo:       repo,
		gateway:    gw,
		reconciler: rec,
		config:     config,
		now:        time.Now,
		log:        log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) CreatePreference(ctx context.Context, req *request.PaymentRequest) (*response.PreferenceResponse, error) {
	if err := validatePaymentRequest(req); err != nil {
		s.log.Warn("Create preference validation failed", zap.Error(err))
		return nil, err
	}

	now := s.now().UTC()
	tx := newPendingTransaction(req, now)
	if err := s.repo.Transaction.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create pending transaction: %w", err)
	}

	pref, err := s.gateway.CreatePreference(ctx, s.preferenceRequest(req, now))
	if err != nil {
		// the pending attempt stays without a reference
		s.log.Error("Gateway preference creation failed",
			zap.Error(err),
			zap.String("order_code", req.OrderCode),
			zap.String("transaction_id", tx.ID.String()),
		)
		if _, ok := apperror.AsGateway(err); ok {
			return nil, err
		}
		return nil, &apperror.GatewayError{Code: "preference_failed", Message: err.Error(), Err: err}
	}

	if err := s.storePreferenceReference(ctx, tx, pref.ID); err != nil {
		return nil, fmt.Errorf("store preference reference: %w", err)
	}

	s.log.Info("Preference created",
		zap.String("order_code", tx.OrderCode),
		zap.String("preference_id", pref.ID),
		zap.String("transaction_id", tx.ID.String()),
	)

	return &response.PreferenceResponse{
		TransactionID: tx.ID.String(),
		PreferenceID:  pref.ID,
		RedirectURL:   s.redirectURL(pref),
	}, nil
}

// storePreferenceReference writes preferenceID onto tx. A webhook may bind the attempt to a
// gateway payment while the preference call is in flight; that binding wins and the
// preference is still handed back to the client.
func (s *paymentService) storePreferenceReference(ctx context.Context, tx *entity.Transaction, preferenceID string) error {
	for attempt := 1; attempt <= maxProcessAttempts; attempt++ {
		tx.ReferenceNumber = &preferenceID
		tx.UpdatedAt = s.now().UTC()

		err := s.repo.Transaction.Update(ctx, tx)
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}

		current, err := s.repo.Transaction.FindByID(ctx, tx.ID)
		if err != nil {
			return fmt.Errorf("reload transaction %s: %w", tx.ID, err)
		}
		if current == nil {
			return repository.ErrVersionConflict
		}
		if ref := current.Reference(); ref != "" {
			if ref != preferenceID {
				s.log.Warn("Transaction bound to a gateway payment before the preference was stored",
					zap.String("transaction_id", current.ID.String()),
					zap.String("reference_number", ref),
					zap.String("preference_id", preferenceID),
				)
			}
			*tx = *current
			return nil
		}
		*tx = *current
	}
	return repository.ErrVersionConflict
}

func (s *paymentService) preferenceRequest(req *request.PaymentRequest, now time.Time) gateway.PreferenceRequest {
	base := s.config.App.BaseURL + "/api/payments"

	title := req.ProductName
	if title == "" {
		title = "Order " + req.OrderCode
	}
	description := req.Description
	if description == "" {
		description = "Payment for order " + req.OrderCode
	}
	expiresAt := now.Add(preferenceLifetime)

	return gateway.PreferenceRequest{
		Items: []gateway.PreferenceItem{{
			ID:          req.OrderCode,
			Title:       title,
			Description: description,
			Quantity:    1,
			CurrencyID:  s.config.Gateway.Currency,
			UnitPrice:   json.Number(req.Amount.StringFixed(currencyPlaces)),
		}},
		BackURLs: gateway.BackURLs{
			Success: base + "/success",
			Pending: base + "/pending",
			Failure: base + "/failure",
		},
		AutoReturn:          "approved",
		ExternalReference:   req.OrderCode,
		NotificationURL:     base + "/webhook",
		StatementDescriptor: s.config.Gateway.StatementDescriptor,
		Expires:             true,
		ExpirationDateTo:    &expiresAt,
	}
}

func (s *paymentService) redirectURL(pref *gateway.Preference) string {
	if s.config.Gateway.Sandbox && pref.SandboxInitPoint != "" {
		return pref.SandboxInitPoint
	}
	if pref.InitPoint != "" {
		return pref.InitPoint
	}
	return pref.SandboxInitPoint
}

func (s *paymentService) ProcessPayment(ctx context.Context, req *request.PaymentRequest) (*response.TransactionResponse, error) {
	if err := validatePaymentRequest(req); err != nil {
		s.log.Warn("Process payment validation failed", zap.Error(err))
		return nil, err
	}

	method, err := s.repo.PaymentMethod.FindByID(ctx, req.PaymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("find payment method %s: %w", req.PaymentMethodID, err)
	}
	if method == nil || !method.IsActive {
		return nil, apperror.NewValidationFields(map[string]string{
			"PaymentMethodID": fmt.Sprintf("Unknown or inactive payment method %s", req.PaymentMethodID),
		})
	}

	var tx *entity.Transaction
	for attempt := 1; attempt <= maxProcessAttempts; attempt++ {
		tx, err = s.processPayment(ctx, req, method)
		if !errors.Is(err, repository.ErrVersionConflict) {
			break
		}
		s.log.Debug("Transaction changed while processing, retrying",
			zap.String("order_code", req.OrderCode),
			zap.Int("attempt", attempt),
		)
	}
	if err != nil {
		s.log.Error("Process payment failed",
			zap.Error(err),
			zap.String("order_code", req.OrderCode),
		)
		s.markRejected(ctx, req.OrderCode, err)
		return nil, err
	}

	resp := response.TransactionToResponse(tx, method.Name)
	return &resp, nil
}

func (s *paymentService) processPayment(ctx context.Context, req *request.PaymentRequest, method *entity.PaymentMethod) (*entity.Transaction, error) {
	now := s.now().UTC()

	tx, err := s.repo.Transaction.FindLatestByOrderCode(ctx, req.OrderCode)
	if err != nil {
		return nil, fmt.Errorf("find transaction for order %s: %w", req.OrderCode, err)
	}

	// settled attempts are history; a new payment starts a new attempt
	if tx == nil || tx.Status.IsTerminal() {
		tx = newPendingTransaction(req, now)
		if err := s.repo.Transaction.Create(ctx, tx); err != nil {
			return nil, fmt.Errorf("create transaction: %w", err)
		}
	}

	tx.PaymentMethodID = req.PaymentMethodID
	tx.Status = entity.TransactionStatusProcessing
	tx.ProcessedAt = &now
	tx.UpdatedAt = now

	if isCash(req, method) {
		tx.Amount = applyCashDiscount(req.Amount)
		tx.Status = entity.TransactionStatusApproved
		tx.Description = strings.TrimSpace(tx.Description + cashDiscountNote)
	}

	if err := s.repo.Transaction.Update(ctx, tx); err != nil {
		return nil, err
	}

	s.log.Info("Payment processed",
		zap.String("order_code", tx.OrderCode),
		zap.String("transaction_id", tx.ID.String()),
		zap.String("payment_method_id", tx.PaymentMethodID),
		zap.String("status", string(tx.Status)),
		zap.String("amount", tx.Amount.StringFixed(currencyPlaces)),
	)
	return tx, nil
}

// markRejected records cause on the order's open attempt. Settled attempts are left alone.
func (s *paymentService) markRejected(ctx context.Context, orderCode string, cause error) {
	reason := cause.Error()

	for attempt := 1; attempt <= maxProcessAttempts; attempt++ {
		tx, err := s.repo.Transaction.FindLatestByOrderCode(ctx, orderCode)
		if err != nil {
			s.log.Error("Failed to load transaction to reject", zap.Error(err), zap.String("order_code", orderCode))
			return
		}
		if tx == nil {
			s.log.Warn("No transaction to mark as rejected", zap.String("order_code", orderCode))
			return
		}
		if tx.Status.IsTerminal() {
			s.log.Warn("Transaction already settled, not rejecting",
				zap.String("transaction_id", tx.ID.String()),
				zap.String("status", string(tx.Status)),
			)
			return
		}

		now := s.now().UTC()
		tx.Status = entity.TransactionStatusRejected
		tx.RejectionReason = &reason
		tx.ProcessedAt = &now
		tx.UpdatedAt = now

		err = s.repo.Transaction.Update(ctx, tx)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			s.log.Error("Failed to mark transaction as rejected", zap.Error(err), zap.String("order_code", orderCode))
			return
		}

		s.log.Info("Transaction marked as rejected",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("reason", reason),
		)
		return
	}
}

func (s *paymentService) GetStatus(ctx context.Context, paymentID string) (*response.TransactionResponse, error) {
	id, err := ParsePaymentID(strings.TrimSpace(paymentID))
	if err != nil {
		return nil, err
	}

	tx, err := s.reconciler.Reconcile(ctx, id, "poll")
	if err != nil {
		s.log.Warn("Payment status lookup failed", zap.Error(err), zap.Int64("payment_id", id))
		return nil, err
	}

	resp := response.TransactionToResponse(tx, s.methodName(ctx, tx.PaymentMethodID))
	return &resp, nil
}

func (s *paymentService) ListByOrder(ctx context.Context, orderCode string) ([]response.TransactionResponse, error) {
	orderCode = strings.TrimSpace(orderCode)
	if orderCode == "" {
		return nil, apperror.NewValidation("order code is required")
	}

	transactions, err := s.repo.Transaction.FindByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, fmt.Errorf("list transactions for order %s: %w", orderCode, err)
	}

	names := make(map[string]string)
	result := make([]response.TransactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		name, ok := names[tx.PaymentMethodID]
		if !ok {
			name = s.methodName(ctx, tx.PaymentMethodID)
			names[tx.PaymentMethodID] = name
		}
		result = append(result, response.TransactionToResponse(tx, name))
	}
	return result, nil
}

func (s *paymentService) ListActiveMethods(ctx context.Context) ([]response.PaymentMethodResponse, error) {
	methods, err := s.repo.PaymentMethod.FindAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active payment methods: %w", err)
	}

	result := make([]response.PaymentMethodResponse, 0, len(methods))
	for _, m := range methods {
		result = append(result, response.PaymentMethodToResponse(m))
	}
	return result, nil
}

// methodName is display enrichment only; lookup failures yield "".
func (s *paymentService) methodName(ctx context.Context, id string) string {
	method, err := s.repo.PaymentMethod.FindByID(ctx, id)
	if err != nil {
		s.log.Warn("Payment method lookup failed", zap.Error(err), zap.String("payment_method_id", id))
		return ""
	}
	if method == nil {
		return ""
	}
	return method.Name
}

func validatePaymentRequest(req *request.PaymentRequest) error {
	if req == nil {
		return apperror.NewValidation("request body is required")
	}
	req.OrderCode = strings.TrimSpace(req.OrderCode)
	req.PaymentMethodID = strings.TrimSpace(req.PaymentMethodID)

	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return apperror.NewValidationFields(errs)
	}
	if !utils.HasMinorUnitPrecision(req.Amount, currencyPlaces) {
		return apperror.NewValidationFields(map[string]string{
			"Amount": fmt.Sprintf("At most %d decimal places", currencyPlaces),
		})
	}
	return nil
}

func newPendingTransaction(req *request.PaymentRequest, now time.Time) *entity.Transaction {
	return &entity.Transaction{
		Base:            entity.Base{CreatedAt: now, UpdatedAt: now},
		ID:              utils.GenerateUUID(),
		OrderCode:       req.OrderCode,
		PaymentMethodID: req.PaymentMethodID,
		Amount:          req.Amount,
		Status:          entity.TransactionStatusPending,
		Description:     req.Description,
		Version:         1,
	}
}

func isCash(req *request.PaymentRequest, method *entity.PaymentMethod) bool {
	return req.PaymentMethodID == entity.CashPaymentMethodID || method.Type == entity.PaymentMethodTypeCash
}

func applyCashDiscount(amount decimal.Decimal) decimal.Decimal {
	return amount.Sub(amount.Mul(cashDiscountRate)).Round(currencyPlaces)
}
