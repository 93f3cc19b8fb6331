package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/soul-service/soul_service/internal/domain/entities"
	domainerrors "github.com/soul-service/soul_service/internal/domain/errors"
	"github.com/soul-service/soul_service/internal/infrastructure/database"
)

// TransactionRepository handles transaction record persistence
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create creates a new transaction record
func (r *TransactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	query := `
		INSERT INTO transactions (
			id, type, status, amount, from_wallet_id, to_wallet_id,
			description, idempotency_key, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	row := database.Executor(ctx, r.db).QueryRowxContext(ctx, query,
		tx.ID, tx.Type, tx.Status, tx.Amount, tx.FromWalletID, tx.ToWalletID,
		tx.Description, tx.IdempotencyKey, now, now)
	if err := row.Scan(&tx.CreatedAt, &tx.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.AlreadyExistsError("transaction")
		}
		return fmt.Errorf("create transaction: %w", err)
	}

	return nil
}

// UpdateStatus updates a transaction lifecycle status
func (r *TransactionRepository) UpdateStatus(ctx context.Context, txID uuid.UUID, status entities.TransactionStatus) error {
	query := `
		UPDATE transactions
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, status, time.Now(), txID)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domainerrors.NotFoundError("transaction")
	}

	return nil
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, txID uuid.UUID) (*entities.Transaction, error) {
	query := `
		SELECT id, type, status, amount, from_wallet_id, to_wallet_id,
		       description, idempotency_key, created_at, updated_at
		FROM transactions
		WHERE id = $1
	`

	var tx entities.Transaction
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &tx, query, txID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("transaction")
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	return &tx, nil
}

// GetByIdempotencyKey retrieves a transaction by idempotency key. A missing
// key is a valid outcome and returns nil, nil.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error) {
	query := `
		SELECT id, type, status, amount, from_wallet_id, to_wallet_id,
		       description, idempotency_key, created_at, updated_at
		FROM transactions
		WHERE idempotency_key = $1
	`

	var tx entities.Transaction
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &tx, query, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by idempotency key: %w", err)
	}

	return &tx, nil
}

// ListByWallet retrieves transactions touching a wallet, newest first
func (r *TransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entities.Transaction, error) {
	query := `
		SELECT id, type, status, amount, from_wallet_id, to_wallet_id,
		       description, idempotency_key, created_at, updated_at
		FROM transactions
		WHERE from_wallet_id = $1 OR to_wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var txs []*entities.Transaction
	err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &txs, query, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return txs, nil
}

// SumInviteeSpend aggregates completed transaction amounts in the window,
// grouped by source wallet, restricted to wallets of users who are invitees.
// Referral reward credits are excluded from the spend base.
func (r *TransactionRepository) SumInviteeSpend(ctx context.Context, from, to time.Time) ([]*entities.WalletSpend, error) {
	query := `
		SELECT t.from_wallet_id, u.id AS user_id, SUM(t.amount) AS total
		FROM transactions t
		JOIN wallets w ON w.id = t.from_wallet_id AND w.owner_kind = 'user'
		JOIN users u ON u.id = w.owner_ref
		JOIN invites i ON i.invitee_id = u.id
		WHERE t.created_at > $1
		  AND t.created_at <= $2
		  AND t.status = 'COMPLETED'
		  AND t.type <> 'REFERRAL_REWARD'
		GROUP BY t.from_wallet_id, u.id
	`

	var spends []*entities.WalletSpend
	err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &spends, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum invitee spend: %w", err)
	}

	return spends, nil
}
