package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/soul-service/soul_service/internal/domain/entities"
	domainerrors "github.com/soul-service/soul_service/internal/domain/errors"
	"github.com/soul-service/soul_service/internal/infrastructure/database"
)

// WalletRepository handles wallet persistence. Balance mutations are issued as
// conditional updates so the funds check and the mutation are a single atomic
// statement; they are expected to run under a context-carried transaction.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create creates a new wallet with zero balance
func (r *WalletRepository) Create(ctx context.Context, ownerKind entities.OwnerKind, ownerRef *uuid.UUID) (*entities.Wallet, error) {
	wallet := &entities.Wallet{
		ID:        uuid.New(),
		OwnerKind: ownerKind,
		OwnerRef:  ownerRef,
		Balance:   decimal.Zero,
	}

	if err := wallet.Validate(); err != nil {
		return nil, fmt.Errorf("validate wallet: %w", err)
	}

	query := `
		INSERT INTO wallets (id, owner_kind, owner_ref, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	row := database.Executor(ctx, r.db).QueryRowxContext(ctx, query,
		wallet.ID, wallet.OwnerKind, wallet.OwnerRef, wallet.Balance, now, now)
	if err := row.Scan(&wallet.CreatedAt, &wallet.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, domainerrors.AlreadyExistsError("wallet")
		}
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	return wallet, nil
}

// GetByID retrieves a wallet by ID
func (r *WalletRepository) GetByID(ctx context.Context, walletID uuid.UUID) (*entities.Wallet, error) {
	query := `
		SELECT id, owner_kind, owner_ref, balance, created_at, updated_at
		FROM wallets
		WHERE id = $1
	`

	var wallet entities.Wallet
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &wallet, query, walletID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("wallet")
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	return &wallet, nil
}

// GetSystemWallet retrieves the singleton system wallet, if present
func (r *WalletRepository) GetSystemWallet(ctx context.Context) (*entities.Wallet, error) {
	query := `
		SELECT id, owner_kind, owner_ref, balance, created_at, updated_at
		FROM wallets
		WHERE owner_kind = 'system'
	`

	var wallet entities.Wallet
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &wallet, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("system wallet")
		}
		return nil, fmt.Errorf("get system wallet: %w", err)
	}

	return &wallet, nil
}

// CreateSystemWallet creates the singleton system wallet with a seed balance
func (r *WalletRepository) CreateSystemWallet(ctx context.Context, seed decimal.Decimal) (*entities.Wallet, error) {
	wallet := &entities.Wallet{
		ID:        uuid.New(),
		OwnerKind: entities.OwnerKindSystem,
		Balance:   seed,
	}

	query := `
		INSERT INTO wallets (id, owner_kind, owner_ref, balance, created_at, updated_at)
		VALUES ($1, 'system', NULL, $2, $3, $3)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	row := database.Executor(ctx, r.db).QueryRowxContext(ctx, query, wallet.ID, seed, now)
	if err := row.Scan(&wallet.CreatedAt, &wallet.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, domainerrors.AlreadyExistsError("system wallet")
		}
		return nil, fmt.Errorf("create system wallet: %w", err)
	}

	return wallet, nil
}

// GetWithOwnership retrieves a wallet joined with the identities allowed to
// debit it: the owning user, or the owning event's creator.
func (r *WalletRepository) GetWithOwnership(ctx context.Context, walletID uuid.UUID) (*entities.WalletOwnership, error) {
	query := `
		SELECT w.id, w.owner_kind, w.owner_ref, w.balance, w.created_at, w.updated_at,
		       u.id AS owner_user_id,
		       e.creator_id AS event_creator_id
		FROM wallets w
		LEFT JOIN users u ON w.owner_kind = 'user' AND u.id = w.owner_ref
		LEFT JOIN events e ON w.owner_kind = 'event' AND e.id = w.owner_ref
		WHERE w.id = $1
	`

	var ownership entities.WalletOwnership
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &ownership, query, walletID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("wallet")
		}
		return nil, fmt.Errorf("get wallet ownership: %w", err)
	}

	return &ownership, nil
}

// TryDebit decrements the wallet balance if and only if the balance covers the
// amount. Returns false without error when funds are insufficient.
func (r *WalletRepository) TryDebit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error) {
	query := `
		UPDATE wallets
		SET balance = balance - $1, updated_at = $2
		WHERE id = $3 AND balance >= $1
	`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, amount, time.Now(), walletID)
	if err != nil {
		return false, fmt.Errorf("debit wallet: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// Credit increments the wallet balance
func (r *WalletRepository) Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE wallets
		SET balance = balance + $1, updated_at = $2
		WHERE id = $3
	`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, amount, time.Now(), walletID)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domainerrors.NotFoundError("wallet")
	}

	return nil
}

// ForceZero sets the wallet balance to exactly zero. Used by the residual
// sweep to clear rounding residue from escrow wallets.
func (r *WalletRepository) ForceZero(ctx context.Context, walletID uuid.UUID) error {
	query := `
		UPDATE wallets
		SET balance = 0, updated_at = $1
		WHERE id = $2
	`

	if _, err := database.Executor(ctx, r.db).ExecContext(ctx, query, time.Now(), walletID); err != nil {
		return fmt.Errorf("zero wallet: %w", err)
	}

	return nil
}
