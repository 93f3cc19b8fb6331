package treasury

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soul-service/soul_service/internal/domain/entities"
	domainerrors "github.com/soul-service/soul_service/internal/domain/errors"
	"github.com/soul-service/soul_service/pkg/logger"
	"github.com/soul-service/soul_service/pkg/metrics"
)

// WalletRepository defines wallet operations the treasury needs
type WalletRepository interface {
	GetSystemWallet(ctx context.Context) (*entities.Wallet, error)
	CreateSystemWallet(ctx context.Context, seed decimal.Decimal) (*entities.Wallet, error)
	Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error
}

// Transferer executes ledger transfers on behalf of the treasury
type Transferer interface {
	Transfer(ctx context.Context, actingUserID uuid.UUID, req *entities.TransferRequest) (*entities.Transaction, error)
	SystemTransfer(ctx context.Context, req *entities.TransferRequest) (*entities.Transaction, error)
}

// Service owns the singleton system wallet: the source of minted rewards and
// the sink for fees. Minting tops the wallet up when its balance cannot cover
// a payout, so reward flows never stall on treasury liquidity.
type Service struct {
	walletRepo WalletRepository
	ledger     Transferer
	seed       decimal.Decimal
	logger     *logger.Logger
}

// NewService creates a new treasury service
func NewService(walletRepo WalletRepository, ledger Transferer, seed decimal.Decimal, logger *logger.Logger) *Service {
	return &Service{
		walletRepo: walletRepo,
		ledger:     ledger,
		seed:       seed,
		logger:     logger,
	}
}

// EnsureSystemWallet returns the system wallet, creating it with the seed
// balance on first run.
func (s *Service) EnsureSystemWallet(ctx context.Context) (*entities.Wallet, error) {
	wallet, err := s.walletRepo.GetSystemWallet(ctx)
	if err == nil {
		return wallet, nil
	}
	if !domainerrors.IsNotFound(err) {
		return nil, fmt.Errorf("get system wallet: %w", err)
	}

	wallet, err = s.walletRepo.CreateSystemWallet(ctx, s.seed)
	if err != nil {
		// Lost the race to another instance; the singleton already exists
		if domainerrors.IsAlreadyExists(err) {
			return s.walletRepo.GetSystemWallet(ctx)
		}
		return nil, fmt.Errorf("create system wallet: %w", err)
	}

	s.logger.Info("System wallet created",
		"wallet_id", wallet.ID,
		"seed_balance", s.seed)

	return wallet, nil
}

// MintTo credits points from the system wallet to a destination wallet. The
// system balance is re-read at call time; a shortfall triggers a top-up for
// the missing amount before the transfer.
func (s *Service) MintTo(ctx context.Context, toWalletID uuid.UUID, amount decimal.Decimal, txType entities.TransactionType, idempotencyKey *string) (*entities.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domainerrors.ValidationError("amount", "mint amount must be positive")
	}

	system, err := s.walletRepo.GetSystemWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("get system wallet: %w", err)
	}

	if system.Balance.LessThan(amount) {
		shortfall := amount.Sub(system.Balance)
		s.logger.Warn("System wallet balance below mint amount, topping up",
			"system_wallet_id", system.ID,
			"balance", system.Balance,
			"amount", amount,
			"top_up", shortfall)
		if err := s.walletRepo.Credit(ctx, system.ID, shortfall); err != nil {
			return nil, fmt.Errorf("top up system wallet: %w", err)
		}
		metrics.SystemTopUpsTotal.Inc()
	}

	return s.ledger.SystemTransfer(ctx, &entities.TransferRequest{
		FromWalletID:   system.ID,
		ToWalletID:     toWalletID,
		Amount:         amount,
		Type:           txType,
		IdempotencyKey: idempotencyKey,
	})
}

// ChargeToSystem debits points from a wallet into the system wallet. Used for
// fees and other sinks; the acting user must be allowed to spend from the
// source wallet, so the debit goes through the authorized transfer path.
func (s *Service) ChargeToSystem(ctx context.Context, actingUserID, fromWalletID uuid.UUID, amount decimal.Decimal, txType entities.TransactionType, idempotencyKey *string) (*entities.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domainerrors.ValidationError("amount", "charge amount must be positive")
	}

	system, err := s.walletRepo.GetSystemWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("get system wallet: %w", err)
	}

	return s.ledger.Transfer(ctx, actingUserID, &entities.TransferRequest{
		FromWalletID:   fromWalletID,
		ToWalletID:     system.ID,
		Amount:         amount,
		Type:           txType,
		IdempotencyKey: idempotencyKey,
	})
}

// SystemWalletID returns the ID of the system wallet
func (s *Service) SystemWalletID(ctx context.Context) (uuid.UUID, error) {
	system, err := s.walletRepo.GetSystemWallet(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return system.ID, nil
}
