package users

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

// UserRepository defines user persistence operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, userID uuid.UUID) (*entities.User, error)
}

// WalletRepository creates user wallets
type WalletRepository interface {
	Create(ctx context.Context, ownerKind entities.OwnerKind, ownerRef *uuid.UUID) (*entities.Wallet, error)
}

// InviteRepository records referral relationships
type InviteRepository interface {
	Create(ctx context.Context, invite *entities.Invite) error
}

// Treasury mints the welcome bonus
type Treasury interface {
	MintTo(ctx context.Context, toWalletID uuid.UUID, amount decimal.Decimal, txType entities.TransactionType, idempotencyKey *string) (*entities.Transaction, error)
}

// RegisterRequest carries registration parameters.
type RegisterRequest struct {
	Username  string
	InviterID *uuid.UUID
}

// Service handles user onboarding: wallet creation, the welcome bonus and the
// referral link to the inviter.
type Service struct {
	userRepo   UserRepository
	walletRepo WalletRepository
	inviteRepo InviteRepository
	treasury   Treasury
	txManager  database.TxManager
	bonus      decimal.Decimal
	logger     *logger.Logger
}

// NewService creates a new users service
func NewService(
	userRepo UserRepository,
	walletRepo WalletRepository,
	inviteRepo InviteRepository,
	treasury Treasury,
	txManager database.TxManager,
	bonus decimal.Decimal,
	logger *logger.Logger,
) *Service {
	return &Service{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		inviteRepo: inviteRepo,
		treasury:   treasury,
		txManager:  txManager,
		bonus:      bonus,
		logger:     logger,
	}
}

// Register creates a user with a wallet, mints the welcome bonus and records
// the invite when an inviter is given. One database transaction: a user row
// never exists without its wallet and bonus.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*entities.User, error) {
	if req.Username == "" {
		return nil, domainerrors.ValidationError("username", "username is required")
	}

	userID := uuid.New()
	if req.InviterID != nil {
		if _, err := s.userRepo.GetByID(ctx, *req.InviterID); err != nil {
			return nil, fmt.Errorf("resolve inviter: %w", err)
		}
	}

	var user *entities.User
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		wallet, err := s.walletRepo.Create(ctx, entities.OwnerKindUser, &userID)
		if err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}

		user = &entities.User{
			ID:                  userID,
			Username:            req.Username,
			WalletID:            wallet.ID,
			TotalReferralPoints: decimal.Zero,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		if s.bonus.IsPositive() {
			bonusKey := fmt.Sprintf("welcome-%s", userID)
			if _, err := s.treasury.MintTo(ctx, wallet.ID, s.bonus, entities.TransactionTypeWelcomeBonus, &bonusKey); err != nil {
				return fmt.Errorf("mint welcome bonus: %w", err)
			}
		}

		if req.InviterID != nil {
			invite := &entities.Invite{
				ID:                  uuid.New(),
				InviterID:           *req.InviterID,
				InviteeID:           userID,
				ReferralPointsGiven: decimal.Zero,
			}
			if err := s.inviteRepo.Create(ctx, invite); err != nil {
				return fmt.Errorf("create invite: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered",
		"user_id", user.ID,
		"username", user.Username,
		"wallet_id", user.WalletID,
		"invited", req.InviterID != nil)

	return user, nil
}

// Get retrieves a user by ID
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
