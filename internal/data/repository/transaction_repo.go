package repository

import (
	"context"
	"errors"
	"fmt"

	"payment-service/internal/data/entity"
	"payment-service/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var (
	// ErrVersionConflict means the row changed since it was read.
	ErrVersionConflict = errors.New("transaction version conflict")
	// ErrDuplicate means the reference number already belongs to another transaction.
	ErrDuplicate = errors.New("duplicate transaction reference")
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error)
	FindByReferenceNumber(ctx context.Context, reference string) (*entity.Transaction, error)
	FindLatestByOrderCode(ctx context.Context, orderCode string) (*entity.Transaction, error)
	FindByOrderCode(ctx context.Context, orderCode string) ([]*entity.Transaction, error)

	// Update writes tx only if its version is unchanged, then bumps tx.Version.
	Update(ctx context.Context, tx *entity.Transaction) error
}

const transactionColumns = `id, order_code, payment_method_id, amount, status, reference_number, description,
		rejection_reason, masked_card_number, card_type, version, created_at, updated_at, processed_at`

type transactionRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewTransactionRepository(db database.PgxIface, log *zap.Logger) TransactionRepository {
	return &transactionRepository{
		db:  db,
		log: log.With(zap.String("repository", "transaction")),
	}
}

func (r *transactionRepository) Create(ctx context.Context, tx *entity.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	if tx.Version == 0 {
		tx.Version = 1
	}

	_, err := r.db.Exec(ctx, query,
		tx.ID,
		tx.OrderCode,
		tx.PaymentMethodID,
		tx.Amount,
		tx.Status,
		tx.ReferenceNumber,
		tx.Description,
		tx.RejectionReason,
		tx.MaskedCardNumber,
		tx.CardType,
		tx.Version,
		tx.CreatedAt,
		tx.UpdatedAt,
		tx.ProcessedAt,
	)

	if database.IsUniqueViolation(err) {
		return fmt.Errorf("create transaction for order %s: %w", tx.OrderCode, ErrDuplicate)
	}
	if err != nil {
		r.log.Error("Failed to create transaction",
			zap.Error(err),
			zap.String("order_code", tx.OrderCode),
			zap.String("payment_method_id", tx.PaymentMethodID),
		)
		return fmt.Errorf("create transaction for order %s: %w", tx.OrderCode, err)
	}

	return nil
}

func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find transaction by ID",
			zap.Error(err),
			zap.String("transaction_id", id.String()),
		)
		return nil, fmt.Errorf("find transaction by ID %s: %w", id.String(), err)
	}

	return tx, nil
}

func (r *transactionRepository) FindByReferenceNumber(ctx context.Context, reference string) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference_number = $1`

	tx, err := scanTransaction(r.db.QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find transaction by reference number",
			zap.Error(err),
			zap.String("reference_number", reference),
		)
		return nil, fmt.Errorf("find transaction by reference %s: %w", reference, err)
	}

	return tx, nil
}

func (r *transactionRepository) FindLatestByOrderCode(ctx context.Context, orderCode string) (*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE order_code = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	tx, err := scanTransaction(r.db.QueryRow(ctx, query, orderCode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find latest transaction by order code",
			zap.Error(err),
			zap.String("order_code", orderCode),
		)
		return nil, fmt.Errorf("find latest transaction for order %s: %w", orderCode, err)
	}

	return tx, nil
}

func (r *transactionRepository) FindByOrderCode(ctx context.Context, orderCode string) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE order_code = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, orderCode)
	if err != nil {
		r.log.Error("Failed to find transactions by order code",
			zap.Error(err),
			zap.String("order_code", orderCode),
		)
		return nil, fmt.Errorf("find transactions for order %s: %w", orderCode, err)
	}
	defer rows.Close()

	var transactions []*entity.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			r.log.Error("Failed to scan transaction row", zap.Error(err))
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions for order %s: %w", orderCode, err)
	}

	return transactions, nil
}

func (r *transactionRepository) Update(ctx context.Context, tx *entity.Transaction) error {
	query := `
		UPDATE transactions
		SET payment_method_id = $3, amount = $4, status = $5, reference_number = $6,
		    description = $7, rejection_reason = $8, masked_card_number = $9, card_type = $10,
		    processed_at = $11, updated_at = $12, version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.Exec(ctx, query,
		tx.ID,
		tx.Version,
		tx.PaymentMethodID,
		tx.Amount,
		tx.Status,
		tx.ReferenceNumber,
		tx.Description,
		tx.RejectionReason,
		tx.MaskedCardNumber,
		tx.CardType,
		tx.ProcessedAt,
		tx.UpdatedAt,
	)

	if database.IsUniqueViolation(err) {
		return fmt.Errorf("update transaction %s: %w", tx.ID.String(), ErrDuplicate)
	}
	if err != nil {
		r.log.Error("Failed to update transaction",
			zap.Error(err),
			zap.String("transaction_id", tx.ID.String()),
			zap.String("status", string(tx.Status)),
		)
		return fmt.Errorf("update transaction %s: %w", tx.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		r.log.Warn("Transaction changed concurrently",
			zap.String("transaction_id", tx.ID.String()),
			zap.Int("version", tx.Version),
		)
		return fmt.Errorf("update transaction %s at version %d: %w", tx.ID.String(), tx.Version, ErrVersionConflict)
	}

	tx.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*entity.Transaction, error) {
	var tx entity.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.OrderCode,
		&tx.PaymentMethodID,
		&tx.Amount,
		&tx.Status,
		&tx.ReferenceNumber,
		&tx.Description,
		&tx.RejectionReason,
		&tx.MaskedCardNumber,
		&tx.CardType,
		&tx.Version,
		&tx.CreatedAt,
		&tx.UpdatedAt,
		&tx.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
