package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User holds the ledger-relevant fields of a user account. Identity details
// (Telegram profile, auth state) live in the external auth flow.
type User struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	Username            string          `json:"username" db:"username"`
	WalletID            uuid.UUID       `json:"wallet_id" db:"wallet_id"`
	TotalReferralPoints decimal.Decimal `json:"total_referral_points" db:"total_referral_points"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// Invite links an invitee to their inviter. ReferralPointsGiven is the running
// total of commission credited to the inviter for this invitee's spend.
type Invite struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	InviterID           uuid.UUID       `json:"inviter_id" db:"inviter_id"`
	InviteeID           uuid.UUID       `json:"invitee_id" db:"invitee_id"`
	ReferralPointsGiven decimal.Decimal `json:"referral_points_given" db:"referral_points_given"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// Validate validates the invite
func (i *Invite) Validate() error {
	if i.InviterID == uuid.Nil || i.InviteeID == uuid.Nil {
		return fmt.Errorf("invite requires both inviter and invitee")
	}

	if i.InviterID == i.InviteeID {
		return fmt.Errorf("user cannot invite themselves")
	}

	if i.ReferralPointsGiven.IsNegative() {
		return fmt.Errorf("referral points given cannot be negative")
	}

	return nil
}

// InviteChain resolves an invitee's spend back to the inviter's wallet. All
// links must be present; a missing link means inconsistent referral data.
type InviteChain struct {
	InviteID        uuid.UUID `db:"invite_id"`
	InviteeID       uuid.UUID `db:"invitee_id"`
	InviterID       uuid.UUID `db:"inviter_id"`
	InviterWalletID uuid.UUID `db:"inviter_wallet_id"`
}

// ErrorResponse is the envelope for API error payloads.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
