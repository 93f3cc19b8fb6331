package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the business reason for a point transfer
type TransactionType string

const (
	TransactionTypeEventFundDeposit      TransactionType = "EVENT_FUND_DEPOSIT"
	TransactionTypeEventFundDistribution TransactionType = "EVENT_FUND_DISTRIBUTION"
	TransactionTypeEventFundRefund       TransactionType = "EVENT_FUND_REFUND"
	TransactionTypeEventCreationCharge   TransactionType = "EVENT_CREATION_CHARGE"
	TransactionTypeWelcomeBonus          TransactionType = "WELCOME_BONUS"
	TransactionTypeFarmReward            TransactionType = "FARM_REWARD"
	TransactionTypeTaskReward            TransactionType = "TASK_REWARD"
	TransactionTypeReferralReward        TransactionType = "REFERRAL_REWARD"
	TransactionTypeBustFriendsCharge     TransactionType = "BUST_FRIENDS_CHARGE"
	TransactionTypeForumReward           TransactionType = "FORUM_REWARD"
	TransactionTypeRatingReward          TransactionType = "RATING_REWARD"
	TransactionTypeGratitudeReward       TransactionType = "GRATITUDE_REWARD"
	TransactionTypeInvitePurchase        TransactionType = "INVITE_PURCHASE"
	TransactionTypePremiumCharge         TransactionType = "PREMIUM_CHARGE"
	TransactionTypeManualAdjustment      TransactionType = "MANUAL_ADJUSTMENT"
)

// Validate checks if the transaction type is valid
func (t TransactionType) Validate() error {
	switch t {
	case TransactionTypeEventFundDeposit, TransactionTypeEventFundDistribution,
		TransactionTypeEventFundRefund, TransactionTypeEventCreationCharge,
		TransactionTypeWelcomeBonus, TransactionTypeFarmReward,
		TransactionTypeTaskReward, TransactionTypeReferralReward,
		TransactionTypeBustFriendsCharge, TransactionTypeForumReward,
		TransactionTypeRatingReward, TransactionTypeGratitudeReward,
		TransactionTypeInvitePurchase, TransactionTypePremiumCharge,
		TransactionTypeManualAdjustment:
		return nil
	default:
		return fmt.Errorf("invalid transaction type: %s", t)
	}
}

// TransactionStatus represents the lifecycle status of a transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Validate checks if the transaction status is valid
func (s TransactionStatus) Validate() error {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid transaction status: %s", s)
	}
}

// Transaction is an atomic record of value moved between two wallets. It is
// created PENDING and flipped to COMPLETED in the same database transaction as
// the two balance mutations; immutable once completed.
type Transaction struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	Type           TransactionType   `json:"type" db:"type"`
	Status         TransactionStatus `json:"status" db:"status"`
	Amount         decimal.Decimal   `json:"amount" db:"amount"`
	FromWalletID   uuid.UUID         `json:"from_wallet_id" db:"from_wallet_id"`
	ToWalletID     uuid.UUID         `json:"to_wallet_id" db:"to_wallet_id"`
	Description    *string           `json:"description,omitempty" db:"description"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// Validate validates the transaction
func (t *Transaction) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("transaction ID is required")
	}

	if err := t.Type.Validate(); err != nil {
		return err
	}

	if err := t.Status.Validate(); err != nil {
		return err
	}

	if !t.Amount.IsPositive() {
		return fmt.Errorf("transaction amount must be positive")
	}

	if t.FromWalletID == uuid.Nil || t.ToWalletID == uuid.Nil {
		return fmt.Errorf("transaction requires both wallet IDs")
	}

	if t.FromWalletID == t.ToWalletID {
		return fmt.Errorf("transaction cannot transfer to the same wallet")
	}

	return nil
}

// MarkCompleted marks the transaction as completed
func (t *Transaction) MarkCompleted() {
	t.Status = TransactionStatusCompleted
	t.UpdatedAt = time.Now()
}

// TransferRequest describes a requested point transfer between two wallets.
type TransferRequest struct {
	FromWalletID   uuid.UUID
	ToWalletID     uuid.UUID
	Amount         decimal.Decimal
	Type           TransactionType
	Description    *string
	IdempotencyKey *string
}

// Validate validates the transfer request
func (r *TransferRequest) Validate() error {
	if r.FromWalletID == uuid.Nil {
		return fmt.Errorf("source wallet ID is required")
	}

	if r.ToWalletID == uuid.Nil {
		return fmt.Errorf("destination wallet ID is required")
	}

	if r.FromWalletID == r.ToWalletID {
		return fmt.Errorf("cannot transfer to the same wallet")
	}

	if err := r.Type.Validate(); err != nil {
		return err
	}

	if !r.Amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive")
	}

	return nil
}

// WalletSpend is an aggregated sum of transaction amounts debited from one
// wallet inside a time window. Produced by the referral commission query.
type WalletSpend struct {
	FromWalletID uuid.UUID       `db:"from_wallet_id"`
	UserID       uuid.UUID       `db:"user_id"`
	Total        decimal.Decimal `db:"total"`
}
