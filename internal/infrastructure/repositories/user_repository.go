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

// UserRepository handles user persistence
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user row
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	query := `
		INSERT INTO users (id, username, wallet_id, total_referral_points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	row := database.Executor(ctx, r.db).QueryRowxContext(ctx, query,
		user.ID, user.Username, user.WalletID, user.TotalReferralPoints, now, now)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.AlreadyExistsError("user")
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	query := `
		SELECT id, username, wallet_id, total_referral_points, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user entities.User
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &user, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

// IncrementTotalReferralPoints adds earned commission to a user's lifetime total
func (r *UserRepository) IncrementTotalReferralPoints(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE users
		SET total_referral_points = total_referral_points + $1, updated_at = $2
		WHERE id = $3
	`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, amount, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("increment total referral points: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domainerrors.NotFoundError("user")
	}

	return nil
}
