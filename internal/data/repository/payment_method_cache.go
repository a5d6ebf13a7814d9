package repository

import (
	"context"
	"encoding/json"
	"time"

	"payment-service/internal/data/entity"

	"go.uber.org/zap"
)

// Cache is the byte cache used to front read-mostly reference data.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const (
	activeMethodsKey = "payment_methods:active"
	methodKeyPrefix  = "payment_methods:id:"
)

type cachedPaymentMethodRepository struct {
	inner PaymentMethodRepository
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
}

// NewCachedPaymentMethodRepository serves payment methods from cache, falling back to inner.
// Cache failures are logged and never fail the lookup.
func NewCachedPaymentMethodRepository(inner PaymentMethodRepository, cache Cache, ttl time.Duration, log *zap.Logger) PaymentMethodRepository {
	return &cachedPaymentMethodRepository{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   log.With(zap.String("repository", "payment_method_cache")),
	}
}

func (r *cachedPaymentMethodRepository) FindByID(ctx context.Context, id string) (*entity.PaymentMethod, error) {
	key := methodKeyPrefix + id

	var cached entity.PaymentMethod
	if r.load(ctx, key, &cached) {
		return &cached, nil
	}

	pm, err := r.inner.FindByID(ctx, id)
	if err != nil || pm == nil {
		return pm, err
	}

	r.store(ctx, key, pm)
	return pm, nil
}

func (r *cachedPaymentMethodRepository) FindAllActive(ctx context.Context) ([]*entity.PaymentMethod, error) {
	var cached []*entity.PaymentMethod
	if r.load(ctx, activeMethodsKey, &cached) {
		return cached, nil
	}

	methods, err := r.inner.FindAllActive(ctx)
	if err != nil {
		return nil, err
	}

	r.store(ctx, activeMethodsKey, methods)
	return methods, nil
}

func (r *cachedPaymentMethodRepository) load(ctx context.Context, key string, dest any) bool {
	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		r.log.Warn("Cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (r *cachedPaymentMethodRepository) store(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		r.log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}
