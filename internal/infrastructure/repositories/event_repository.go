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

// EventRepository handles event and participation persistence
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create creates a new event row
func (r *EventRepository) Create(ctx context.Context, event *entities.Event) error {
	query := `
		INSERT INTO events (
			id, creator_id, wallet_id, deposit, bonus_distribution_type,
			bonus_distribution_n, finish_date, is_archived, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	row := database.Executor(ctx, r.db).QueryRowxContext(ctx, query,
		event.ID, event.CreatorID, event.WalletID, event.Deposit,
		event.BonusDistributionType, event.BonusDistributionN,
		event.FinishDate, event.IsArchived, now, now)
	if err := row.Scan(&event.CreatedAt, &event.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.AlreadyExistsError("event")
		}
		return fmt.Errorf("create event: %w", err)
	}

	return nil
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(ctx context.Context, eventID uuid.UUID) (*entities.Event, error) {
	query := `
		SELECT id, creator_id, wallet_id, deposit, bonus_distribution_type,
		       bonus_distribution_n, finish_date, is_archived, created_at, updated_at
		FROM events
		WHERE id = $1
	`

	var event entities.Event
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &event, query, eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("event")
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	return &event, nil
}

// FindFinishedUnarchived retrieves events whose finish date fell inside the
// window and that have not been archived yet.
func (r *EventRepository) FindFinishedUnarchived(ctx context.Context, from, to time.Time) ([]*entities.Event, error) {
	query := `
		SELECT id, creator_id, wallet_id, deposit, bonus_distribution_type,
		       bonus_distribution_n, finish_date, is_archived, created_at, updated_at
		FROM events
		WHERE finish_date > $1
		  AND finish_date <= $2
		  AND is_archived = FALSE
		ORDER BY finish_date ASC
	`

	var events []*entities.Event
	err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &events, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("find finished events: %w", err)
	}

	return events, nil
}

// FindFinishedInWindow retrieves all events whose finish date fell inside the
// window, archived or not. The residual sweep reads escrow wallets through it.
func (r *EventRepository) FindFinishedInWindow(ctx context.Context, from, to time.Time) ([]*entities.Event, error) {
	query := `
		SELECT id, creator_id, wallet_id, deposit, bonus_distribution_type,
		       bonus_distribution_n, finish_date, is_archived, created_at, updated_at
		FROM events
		WHERE finish_date > $1
		  AND finish_date <= $2
		ORDER BY finish_date ASC
	`

	var events []*entities.Event
	err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &events, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("find finished events in window: %w", err)
	}

	return events, nil
}

// Archive marks an event as archived so it is not picked up again
func (r *EventRepository) Archive(ctx context.Context, eventID uuid.UUID) error {
	query := `
		UPDATE events
		SET is_archived = TRUE, updated_at = $1
		WHERE id = $2
	`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, time.Now(), eventID)
	if err != nil {
		return fmt.Errorf("archive event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domainerrors.NotFoundError("event")
	}

	return nil
}

// CreateActivity records a user joining an event
func (r *EventRepository) CreateActivity(ctx context.Context, activity *entities.Activity) error {
	query := `
		INSERT INTO activities (id, user_id, event_id, is_confirmed, received_points, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING joined_at
	`

	row := database.Executor(ctx, r.db).QueryRowxContext(ctx, query,
		activity.ID, activity.UserID, activity.EventID,
		activity.IsConfirmed, activity.ReceivedPoints, time.Now())
	if err := row.Scan(&activity.JoinedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.AlreadyExistsError("activity")
		}
		return fmt.Errorf("create activity: %w", err)
	}

	return nil
}

// ConfirmActivity marks a participation as confirmed by the event creator
func (r *EventRepository) ConfirmActivity(ctx context.Context, activityID uuid.UUID) error {
	query := `
		UPDATE activities
		SET is_confirmed = TRUE
		WHERE id = $1
	`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, activityID)
	if err != nil {
		return fmt.Errorf("confirm activity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domainerrors.NotFoundError("activity")
	}

	return nil
}

// GetActivityByID retrieves a single participation row
func (r *EventRepository) GetActivityByID(ctx context.Context, activityID uuid.UUID) (*entities.Activity, error) {
	query := `
		SELECT id, user_id, event_id, is_confirmed, received_points, joined_at
		FROM activities
		WHERE id = $1
	`

	var activity entities.Activity
	err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &activity, query, activityID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("activity")
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}

	return &activity, nil
}

// ListConfirmedByEvent retrieves confirmed participations ordered by join time
func (r *EventRepository) ListConfirmedByEvent(ctx context.Context, eventID uuid.UUID) ([]*entities.Activity, error) {
	query := `
		SELECT id, user_id, event_id, is_confirmed, received_points, joined_at
		FROM activities
		WHERE event_id = $1 AND is_confirmed = TRUE
		ORDER BY joined_at ASC
	`

	var activities []*entities.Activity
	err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &activities, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list confirmed activities: %w", err)
	}

	return activities, nil
}

// StampReceivedPoints records the amount a participant received for an event
func (r *EventRepository) StampReceivedPoints(ctx context.Context, activityID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE activities
		SET received_points = $1
		WHERE id = $2
	`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, amount, activityID)
	if err != nil {
		return fmt.Errorf("stamp received points: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domainerrors.NotFoundError("activity")
	}

	return nil
}
