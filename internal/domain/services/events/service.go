package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soul-service/soul_service/internal/domain/entities"
	domainerrors "github.com/soul-service/soul_service/internal/domain/errors"
	"github.com/soul-service/soul_service/internal/infrastructure/database"
	"github.com/soul-service/soul_service/pkg/logger"
)

// EventRepository defines event persistence operations
type EventRepository interface {
	Create(ctx context.Context, event *entities.Event) error
	GetByID(ctx context.Context, eventID uuid.UUID) (*entities.Event, error)
	CreateActivity(ctx context.Context, activity *entities.Activity) error
	GetActivityByID(ctx context.Context, activityID uuid.UUID) (*entities.Activity, error)
	ConfirmActivity(ctx context.Context, activityID uuid.UUID) error
}

// WalletRepository creates escrow wallets for events
type WalletRepository interface {
	Create(ctx context.Context, ownerKind entities.OwnerKind, ownerRef *uuid.UUID) (*entities.Wallet, error)
}

// UserRepository resolves creators to their wallets
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*entities.User, error)
}

// Ledger moves points between wallets with ownership checks
type Ledger interface {
	Transfer(ctx context.Context, actingUserID uuid.UUID, req *entities.TransferRequest) (*entities.Transaction, error)
}

// Treasury collects the event creation fee
type Treasury interface {
	ChargeToSystem(ctx context.Context, actingUserID, fromWalletID uuid.UUID, amount decimal.Decimal, txType entities.TransactionType, idempotencyKey *string) (*entities.Transaction, error)
}

// Service handles the money side of events: the creation fee, the escrow
// deposit, joining and confirmation. The deposit sits in the event's escrow
// wallet until the distribution run pays it out.
type Service struct {
	eventRepo  EventRepository
	walletRepo WalletRepository
	userRepo   UserRepository
	ledger     Ledger
	treasury   Treasury
	txManager  database.TxManager
	fee        decimal.Decimal
	logger     *logger.Logger
}

// NewService creates a new events service
func NewService(
	eventRepo EventRepository,
	walletRepo WalletRepository,
	userRepo UserRepository,
	ledger Ledger,
	treasury Treasury,
	txManager database.TxManager,
	fee decimal.Decimal,
	logger *logger.Logger,
) *Service {
	return &Service{
		eventRepo:  eventRepo,
		walletRepo: walletRepo,
		userRepo:   userRepo,
		ledger:     ledger,
		treasury:   treasury,
		txManager:  txManager,
		fee:        fee,
		logger:     logger,
	}
}

// Create creates an event: charges the creation fee, opens the escrow wallet
// and moves the deposit into it. Everything runs in one database transaction,
// so a creator is never charged for an event that failed to materialize.
func (s *Service) Create(ctx context.Context, creatorID uuid.UUID, req *entities.CreateEventRequest) (*entities.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, domainerrors.ValidationError("event", err.Error())
	}

	creator, err := s.userRepo.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("resolve creator: %w", err)
	}

	eventID := uuid.New()
	var event *entities.Event

	err = s.txManager.WithTx(ctx, func(ctx context.Context) error {
		feeKey := fmt.Sprintf("event-fee-%s", eventID)
		if _, err := s.treasury.ChargeToSystem(ctx, creatorID, creator.WalletID, s.fee, entities.TransactionTypeEventCreationCharge, &feeKey); err != nil {
			return fmt.Errorf("charge creation fee: %w", err)
		}

		escrow, err := s.walletRepo.Create(ctx, entities.OwnerKindEvent, &eventID)
		if err != nil {
			return fmt.Errorf("create escrow wallet: %w", err)
		}

		event = &entities.Event{
			ID:                    eventID,
			CreatorID:             creatorID,
			WalletID:              escrow.ID,
			Deposit:               req.Deposit,
			BonusDistributionType: req.BonusDistributionType,
			BonusDistributionN:    req.BonusDistributionN,
			FinishDate:            req.FinishDate,
		}
		if err := s.eventRepo.Create(ctx, event); err != nil {
			return fmt.Errorf("create event: %w", err)
		}

		if req.Deposit != nil && req.Deposit.IsPositive() {
			depositKey := fmt.Sprintf("event-deposit-%s", eventID)
			_, err := s.ledger.Transfer(ctx, creatorID, &entities.TransferRequest{
				FromWalletID:   creator.WalletID,
				ToWalletID:     escrow.ID,
				Amount:         *req.Deposit,
				Type:           entities.TransactionTypeEventFundDeposit,
				IdempotencyKey: &depositKey,
			})
			if err != nil {
				return fmt.Errorf("deposit escrow: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Event created",
		"event_id", event.ID,
		"creator_id", creatorID,
		"deposit", req.Deposit,
		"distribution_type", req.BonusDistributionType)

	return event, nil
}

// Join records a user's participation in an event
func (s *Service) Join(ctx context.Context, userID, eventID uuid.UUID) (*entities.Activity, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.IsArchived {
		return nil, domainerrors.ValidationError("event", "event is already archived")
	}

	activity := &entities.Activity{
		ID:      uuid.New(),
		UserID:  userID,
		EventID: eventID,
	}
	if err := s.eventRepo.CreateActivity(ctx, activity); err != nil {
		return nil, err
	}

	return activity, nil
}

// Confirm marks a participation as confirmed. Only the event creator may
// confirm attendance.
func (s *Service) Confirm(ctx context.Context, actingUserID, activityID uuid.UUID) error {
	activity, err := s.eventRepo.GetActivityByID(ctx, activityID)
	if err != nil {
		return err
	}

	event, err := s.eventRepo.GetByID(ctx, activity.EventID)
	if err != nil {
		return err
	}

	if event.CreatorID != actingUserID {
		return domainerrors.ForbiddenError("only the event creator can confirm attendance")
	}
	if event.IsArchived {
		return domainerrors.ValidationError("event", "event is already archived")
	}

	return s.eventRepo.ConfirmActivity(ctx, activityID)
}

// Get retrieves an event by ID
func (s *Service) Get(ctx context.Context, eventID uuid.UUID) (*entities.Event, error) {
	return s.eventRepo.GetByID(ctx, eventID)
}
