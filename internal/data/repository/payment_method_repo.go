package repository

import (
	"context"
	"errors"
	"fmt"

	"payment-service/internal/data/entity"
	"payment-service/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PaymentMethodRepository interface {
	FindByID(ctx context.Context, id string) (*entity.PaymentMethod, error)
	FindAllActive(ctx context.Context) ([]*entity.PaymentMethod, error)
}

const paymentMethodColumns = `id, name, type, description, commission, processing_days, is_active, created_at, updated_at`

type paymentMethodRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentMethodRepository(db database.PgxIface, log *zap.Logger) PaymentMethodRepository {
	return &paymentMethodRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_method")),
	}
}

func (r *paymentMethodRepository) FindByID(ctx context.Context, id string) (*entity.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE id = $1`

	pm, err := scanPaymentMethod(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment method by ID",
			zap.Error(err),
			zap.String("payment_method_id", id),
		)
		return nil, fmt.Errorf("find payment method by ID %s: %w", id, err)
	}

	return pm, nil
}

func (r *paymentMethodRepository) FindAllActive(ctx context.Context) ([]*entity.PaymentMethod, error) {
	query := `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods
		WHERE is_active = true
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.Error("Failed to find all active payment methods", zap.Error(err))
		return nil, fmt.Errorf("find all active payment methods: %w", err)
	}
	defer rows.Close()

	var paymentMethods []*entity.PaymentMethod
	for rows.Next() {
		pm, err := scanPaymentMethod(rows)
		if err != nil {
			r.log.Error("Failed to scan payment method row", zap.Error(err))
			return nil, fmt.Errorf("scan payment method row: %w", err)
		}
		paymentMethods = append(paymentMethods, pm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment methods: %w", err)
	}

	return paymentMethods, nil
}

func scanPaymentMethod(row rowScanner) (*entity.PaymentMethod, error) {
	var pm entity.PaymentMethod
	err := row.Scan(
		&pm.ID,
		&pm.Name,
		&pm.Type,
		&pm.Description,
		&pm.Commission,
		&pm.ProcessingDays,
		&pm.IsActive,
		&pm.CreatedAt,
		&pm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pm, nil
}
