package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BonusDistributionType is the rule for splitting an event's deposit among
// confirmed attendees after the event finishes.
type BonusDistributionType string

const (
	BonusDistributionAll    BonusDistributionType = "ALL"
	BonusDistributionFirst  BonusDistributionType = "FIRST"
	BonusDistributionFirstN BonusDistributionType = "FIRST_N"
)

// Validate checks if the distribution type is valid
func (t BonusDistributionType) Validate() error {
	switch t {
	case BonusDistributionAll, BonusDistributionFirst, BonusDistributionFirstN:
		return nil
	default:
		return fmt.Errorf("invalid bonus distribution type: %s", t)
	}
}

// Event holds the ledger-relevant fields of an event. Its wallet is the escrow
// for the deposit between creation and the post-finish distribution run.
type Event struct {
	ID                    uuid.UUID             `json:"id" db:"id"`
	CreatorID             uuid.UUID             `json:"creator_id" db:"creator_id"`
	WalletID              uuid.UUID             `json:"wallet_id" db:"wallet_id"`
	Deposit               *decimal.Decimal      `json:"deposit,omitempty" db:"deposit"`
	BonusDistributionType BonusDistributionType `json:"bonus_distribution_type" db:"bonus_distribution_type"`
	BonusDistributionN    *int                  `json:"bonus_distribution_n,omitempty" db:"bonus_distribution_n"`
	FinishDate            time.Time             `json:"finish_date" db:"finish_date"`
	IsArchived            bool                  `json:"is_archived" db:"is_archived"`
	CreatedAt             time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at" db:"updated_at"`
}

// Validate validates the event
func (e *Event) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("event ID is required")
	}

	if e.CreatorID == uuid.Nil {
		return fmt.Errorf("event creator ID is required")
	}

	if e.WalletID == uuid.Nil {
		return fmt.Errorf("event wallet ID is required")
	}

	if err := e.BonusDistributionType.Validate(); err != nil {
		return err
	}

	if e.Deposit != nil && e.Deposit.IsNegative() {
		return fmt.Errorf("event deposit cannot be negative")
	}

	if e.FinishDate.IsZero() {
		return fmt.Errorf("event finish date is required")
	}

	return nil
}

// Activity is a user's RSVP to an event. ReceivedPoints is stamped exactly once
// by the distribution scheduler when the activity is selected as a recipient.
type Activity struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	UserID         uuid.UUID        `json:"user_id" db:"user_id"`
	EventID        uuid.UUID        `json:"event_id" db:"event_id"`
	IsConfirmed    bool             `json:"is_confirmed" db:"is_confirmed"`
	ReceivedPoints *decimal.Decimal `json:"received_points,omitempty" db:"received_points"`
	JoinedAt       time.Time        `json:"joined_at" db:"joined_at"`
}

// CreateEventRequest carries the ledger-relevant parameters of event creation.
type CreateEventRequest struct {
	Deposit               *decimal.Decimal
	BonusDistributionType BonusDistributionType
	BonusDistributionN    *int
	FinishDate            time.Time
}

// Validate validates the create event request
func (r *CreateEventRequest) Validate() error {
	if err := r.BonusDistributionType.Validate(); err != nil {
		return err
	}

	if r.Deposit != nil && !r.Deposit.IsPositive() {
		return fmt.Errorf("event deposit must be positive when set")
	}

	if r.BonusDistributionType == BonusDistributionFirstN && r.BonusDistributionN == nil {
		return fmt.Errorf("bonus_distribution_n is required for FIRST_N")
	}

	if r.FinishDate.IsZero() {
		return fmt.Errorf("finish date is required")
	}

	return nil
}
