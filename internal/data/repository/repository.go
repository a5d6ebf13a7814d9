package repository

import (
	"time"

	"payment-service/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Transaction   TransactionRepository
	PaymentMethod PaymentMethodRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Transaction:   NewTransactionRepository(db, log),
		PaymentMethod: NewPaymentMethodRepository(db, log),
	}
}

// WithMethodCache fronts the payment method lookups with cache.
func (r *Repository) WithMethodCache(cache Cache, ttl time.Duration, log *zap.Logger) *Repository {
	r.PaymentMethod = NewCachedPaymentMethodRepository(r.PaymentMethod, cache, ttl, log)
	return r
}
