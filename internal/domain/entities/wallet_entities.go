package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OwnerKind identifies what kind of entity owns a wallet
type OwnerKind string

const (
	OwnerKindUser   OwnerKind = "user"
	OwnerKindEvent  OwnerKind = "event"
	OwnerKindSystem OwnerKind = "system"
)

// Validate checks if the owner kind is valid
func (k OwnerKind) Validate() error {
	switch k {
	case OwnerKindUser, OwnerKindEvent, OwnerKindSystem:
		return nil
	default:
		return fmt.Errorf("invalid owner kind: %s", k)
	}
}

// Wallet is a balance-holding account owned by a user, an event (escrow) or the
// system. Balances are mutated only by the ledger inside a database transaction.
type Wallet struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OwnerKind OwnerKind       `json:"owner_kind" db:"owner_kind"`
	OwnerRef  *uuid.UUID      `json:"owner_ref,omitempty" db:"owner_ref"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Validate validates the wallet
func (w *Wallet) Validate() error {
	if w.ID == uuid.Nil {
		return fmt.Errorf("wallet ID is required")
	}

	if err := w.OwnerKind.Validate(); err != nil {
		return err
	}

	// The system wallet is the only wallet without an owner reference
	if w.OwnerKind == OwnerKindSystem && w.OwnerRef != nil {
		return fmt.Errorf("system wallet cannot have owner_ref")
	}
	if w.OwnerKind != OwnerKindSystem && w.OwnerRef == nil {
		return fmt.Errorf("%s wallet requires owner_ref", w.OwnerKind)
	}

	if w.Balance.IsNegative() {
		return fmt.Errorf("wallet balance cannot be negative")
	}

	return nil
}

// IsSystemWallet returns true if this is the infrastructure account
func (w *Wallet) IsSystemWallet() bool {
	return w.OwnerKind == OwnerKindSystem
}

// WalletOwnership is a wallet joined with the identities allowed to debit it: the
// owning user for user wallets, the owning event's creator for escrow wallets.
type WalletOwnership struct {
	Wallet
	OwnerUserID    *uuid.UUID `db:"owner_user_id"`
	EventCreatorID *uuid.UUID `db:"event_creator_id"`
}

// CanBeDebitedBy reports whether the acting user may debit this wallet.
// The system wallet is never debited through the authorized path.
func (o *WalletOwnership) CanBeDebitedBy(actingUserID uuid.UUID) bool {
	if o.OwnerUserID != nil && *o.OwnerUserID == actingUserID {
		return true
	}
	if o.EventCreatorID != nil && *o.EventCreatorID == actingUserID {
		return true
	}
	return false
}
