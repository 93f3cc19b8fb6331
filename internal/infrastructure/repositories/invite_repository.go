package repositories

import (
	"context"
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

// InviteRepository handles referral relationship persistence
type InviteRepository struct {
	db *sqlx.DB
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db *sqlx.DB) *InviteRepository {
	return &InviteRepository{db: db}
}

// Create records a referral relationship between two users
func (r *InviteRepository) Create(ctx context.Context, invite *entities.Invite) error {
	if err := invite.Validate(); err != nil {
		return fmt.Errorf("validate invite: %w", err)
	}

	query := `
		INSERT INTO invites (id, inviter_id, invitee_id, referral_points_given, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	row := database.Executor(ctx, r.db).QueryRowxContext(ctx, query,
		invite.ID, invite.InviterID, invite.InviteeID, invite.ReferralPointsGiven, now, now)
	if err := row.Scan(&invite.CreatedAt, &invite.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.AlreadyExistsError("invite")
		}
		return fmt.Errorf("create invite: %w", err)
	}

	return nil
}

// GetChainsByInvitees resolves invite rows for a set of invitees together
// with each inviter's wallet. Every invitee passed in must resolve to a
// complete chain; a missing link means the referral data is inconsistent.
func (r *InviteRepository) GetChainsByInvitees(ctx context.Context, inviteeIDs []uuid.UUID) ([]*entities.InviteChain, error) {
	if len(inviteeIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT i.id AS invite_id, i.invitee_id, i.inviter_id, u.wallet_id AS inviter_wallet_id
		FROM invites i
		JOIN users u ON u.id = i.inviter_id
		WHERE i.invitee_id = ANY($1)
	`

	var chains []*entities.InviteChain
	err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &chains, query, pq.Array(inviteeIDs))
	if err != nil {
		return nil, fmt.Errorf("resolve invite chains: %w", err)
	}

	if len(chains) != len(inviteeIDs) {
		return nil, domainerrors.InconsistentDataError(
			fmt.Sprintf("resolved %d invite chains for %d invitees", len(chains), len(inviteeIDs)))
	}

	return chains, nil
}

// IncrementReferralPoints adds earned commission to an invite row
func (r *InviteRepository) IncrementReferralPoints(ctx context.Context, inviteID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE invites
		SET referral_points_given = referral_points_given + $1, updated_at = $2
		WHERE id = $3
	`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, amount, time.Now(), inviteID)
	if err != nil {
		return fmt.Errorf("increment referral points: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domainerrors.NotFoundError("invite")
	}

	return nil
}
