package distribution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soul-service/soul_service/internal/domain/entities"
	"github.com/soul-service/soul_service/pkg/logger"
)

// EventRepository defines event and participation operations distribution needs
type EventRepository interface {
	FindFinishedUnarchived(ctx context.Context, from, to time.Time) ([]*entities.Event, error)
	FindFinishedInWindow(ctx context.Context, from, to time.Time) ([]*entities.Event, error)
	Archive(ctx context.Context, eventID uuid.UUID) error
	ListConfirmedByEvent(ctx context.Context, eventID uuid.UUID) ([]*entities.Activity, error)
	StampReceivedPoints(ctx context.Context, activityID uuid.UUID, amount decimal.Decimal) error
}

// UserRepository resolves users to their wallets
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*entities.User, error)
}

// WalletRepository defines wallet operations distribution needs
type WalletRepository interface {
	GetByID(ctx context.Context, walletID uuid.UUID) (*entities.Wallet, error)
	ForceZero(ctx context.Context, walletID uuid.UUID) error
}

// Transferer executes system-initiated ledger transfers
type Transferer interface {
	SystemTransfer(ctx context.Context, req *entities.TransferRequest) (*entities.Transaction, error)
}

// Treasury resolves the system wallet for sweeps and refund fallbacks
type Treasury interface {
	SystemWalletID(ctx context.Context) (uuid.UUID, error)
}

// Service pays out event escrow after events finish. Each finished event's
// deposit is split among confirmed attendees per the event's distribution
// policy; events with nobody to pay are refunded to the creator. Rounding
// residue left in escrow is swept to the system wallet.
type Service struct {
	eventRepo  EventRepository
	walletRepo WalletRepository
	userRepo   UserRepository
	ledger     Transferer
	treasury   Treasury
	logger     *logger.Logger
}

// NewService creates a new distribution service
func NewService(
	eventRepo EventRepository,
	walletRepo WalletRepository,
	userRepo UserRepository,
	ledger Transferer,
	treasury Treasury,
	logger *logger.Logger,
) *Service {
	return &Service{
		eventRepo:  eventRepo,
		walletRepo: walletRepo,
		userRepo:   userRepo,
		ledger:     ledger,
		treasury:   treasury,
		logger:     logger,
	}
}

// RunResult summarizes one distribution run.
type RunResult struct {
	EventsProcessed int
	EventsFailed    int
	EventsRefunded  int
	WalletsSwept    int
}

// DistributeFinishedEvents processes events whose finish date fell inside the
// window. A failing event is logged and skipped; it stays unarchived and is
// retried on the next run, with idempotency keys guarding replayed payouts.
func (s *Service) DistributeFinishedEvents(ctx context.Context, from, to time.Time) (*RunResult, error) {
	events, err := s.eventRepo.FindFinishedUnarchived(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("find finished events: %w", err)
	}

	result := &RunResult{}
	for _, event := range events {
		refunded, err := s.distributeEvent(ctx, event)
		if err != nil {
			s.logger.Error("Event distribution failed",
				"event_id", event.ID,
				"error", err)
			result.EventsFailed++
			continue
		}
		if refunded {
			result.EventsRefunded++
		}
		result.EventsProcessed++
	}

	swept, err := s.SweepResiduals(ctx, from, to)
	if err != nil {
		return result, fmt.Errorf("sweep residuals: %w", err)
	}
	result.WalletsSwept = swept

	return result, nil
}

// distributeEvent pays out one event and archives it. Returns true if the
// deposit was refunded to the creator instead of distributed.
func (s *Service) distributeEvent(ctx context.Context, event *entities.Event) (bool, error) {
	if event.Deposit == nil || !event.Deposit.IsPositive() {
		// Nothing in escrow, just retire the event
		if err := s.eventRepo.Archive(ctx, event.ID); err != nil {
			return false, fmt.Errorf("archive event: %w", err)
		}
		return false, nil
	}

	activities, err := s.eventRepo.ListConfirmedByEvent(ctx, event.ID)
	if err != nil {
		return false, fmt.Errorf("list confirmed activities: %w", err)
	}

	recipients := selectRecipients(event, activities)
	if len(recipients) == 0 {
		if err := s.refundToCreator(ctx, event); err != nil {
			return false, fmt.Errorf("refund deposit: %w", err)
		}
		if err := s.eventRepo.Archive(ctx, event.ID); err != nil {
			return true, fmt.Errorf("archive event: %w", err)
		}
		s.logger.Info("Event deposit refunded, no confirmed participants",
			"event_id", event.ID,
			"deposit", event.Deposit)
		return true, nil
	}

	// Truncate rather than round: shares must never sum past the escrow
	// balance, or the last payout fails and the event cannot retire. What the
	// truncation leaves behind goes to the residual sweep.
	share := event.Deposit.Div(decimal.NewFromInt(int64(len(recipients)))).RoundDown(2)

	for _, activity := range recipients {
		wallet, err := s.userWallet(ctx, activity.UserID)
		if err != nil {
			return false, fmt.Errorf("resolve wallet for user %s: %w", activity.UserID, err)
		}

		key := fmt.Sprintf("distribution-%s-%s", event.ID, activity.ID)
		_, err = s.ledger.SystemTransfer(ctx, &entities.TransferRequest{
			FromWalletID:   event.WalletID,
			ToWalletID:     wallet,
			Amount:         share,
			Type:           entities.TransactionTypeEventFundDistribution,
			IdempotencyKey: &key,
		})
		if err != nil {
			return false, fmt.Errorf("pay out activity %s: %w", activity.ID, err)
		}

		if err := s.eventRepo.StampReceivedPoints(ctx, activity.ID, share); err != nil {
			return false, fmt.Errorf("stamp received points: %w", err)
		}
	}

	if err := s.eventRepo.Archive(ctx, event.ID); err != nil {
		return false, fmt.Errorf("archive event: %w", err)
	}

	s.logger.Info("Event deposit distributed",
		"event_id", event.ID,
		"deposit", event.Deposit,
		"recipients", len(recipients),
		"share", share)

	return false, nil
}

// selectRecipients applies the event's distribution policy to the confirmed
// activities, which arrive ordered by join time.
func selectRecipients(event *entities.Event, activities []*entities.Activity) []*entities.Activity {
	if len(activities) == 0 {
		return nil
	}

	switch event.BonusDistributionType {
	case entities.BonusDistributionFirst:
		return activities[:1]
	case entities.BonusDistributionFirstN:
		// A missing or invalid N degrades to paying everyone
		if event.BonusDistributionN == nil || *event.BonusDistributionN <= 0 {
			return activities
		}
		if n := *event.BonusDistributionN; n < len(activities) {
			return activities[:n]
		}
		return activities
	default:
		return activities
	}
}

func (s *Service) refundToCreator(ctx context.Context, event *entities.Event) error {
	wallet, err := s.userWallet(ctx, event.CreatorID)
	if err != nil {
		return fmt.Errorf("resolve creator wallet: %w", err)
	}

	key := fmt.Sprintf("refund-%s", event.ID)
	_, err = s.ledger.SystemTransfer(ctx, &entities.TransferRequest{
		FromWalletID:   event.WalletID,
		ToWalletID:     wallet,
		Amount:         *event.Deposit,
		Type:           entities.TransactionTypeEventFundRefund,
		IdempotencyKey: &key,
	})
	return err
}

// SweepResiduals moves leftover escrow balances from events processed inside
// the window to the system wallet and zeroes the wallets. Only wallets with a
// positive balance produce a transfer.
func (s *Service) SweepResiduals(ctx context.Context, from, to time.Time) (int, error) {
	// Freshly archived events are excluded from FindFinishedUnarchived, so
	// residual escrow is found by re-reading wallets of all the window's
	// finished events, archived ones included
	events, err := s.eventRepo.FindFinishedInWindow(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("find finished events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	systemWalletID, err := s.treasury.SystemWalletID(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve system wallet: %w", err)
	}

	swept := 0
	for _, event := range events {
		// Unarchived events were not paid out yet; their escrow is not residue
		if !event.IsArchived {
			continue
		}

		wallet, err := s.walletRepo.GetByID(ctx, event.WalletID)
		if err != nil {
			s.logger.Error("Residual sweep failed to read escrow wallet",
				"event_id", event.ID,
				"wallet_id", event.WalletID,
				"error", err)
			continue
		}

		if !wallet.Balance.IsPositive() {
			continue
		}

		key := fmt.Sprintf("sweep-%s", event.ID)
		_, err = s.ledger.SystemTransfer(ctx, &entities.TransferRequest{
			FromWalletID:   wallet.ID,
			ToWalletID:     systemWalletID,
			Amount:         wallet.Balance,
			Type:           entities.TransactionTypeEventFundRefund,
			IdempotencyKey: &key,
		})
		if err != nil {
			s.logger.Error("Residual sweep transfer failed",
				"event_id", event.ID,
				"wallet_id", wallet.ID,
				"error", err)
			continue
		}

		if err := s.walletRepo.ForceZero(ctx, wallet.ID); err != nil {
			s.logger.Error("Residual sweep failed to zero escrow wallet",
				"wallet_id", wallet.ID,
				"error", err)
			continue
		}

		s.logger.Info("Residual escrow swept",
			"event_id", event.ID,
			"wallet_id", wallet.ID,
			"amount", wallet.Balance)
		swept++
	}

	return swept, nil
}

func (s *Service) userWallet(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return user.WalletID, nil
}
