package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soul-service/soul_service/internal/domain/entities"
	domainerrors "github.com/soul-service/soul_service/internal/domain/errors"
	"github.com/soul-service/soul_service/internal/infrastructure/database"
	"github.com/soul-service/soul_service/pkg/logger"
	"github.com/soul-service/soul_service/pkg/metrics"
)

// WalletRepository defines wallet operations the ledger needs
type WalletRepository interface {
	GetByID(ctx context.Context, walletID uuid.UUID) (*entities.Wallet, error)
	GetWithOwnership(ctx context.Context, walletID uuid.UUID) (*entities.WalletOwnership, error)
	TryDebit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error)
	Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error
}

// TransactionRepository defines transaction record operations the ledger needs
type TransactionRepository interface {
	Create(ctx context.Context, tx *entities.Transaction) error
	UpdateStatus(ctx context.Context, txID uuid.UUID, status entities.TransactionStatus) error
	GetByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error)
}

// Service moves points between wallets. Every transfer runs inside a single
// database transaction: the PENDING record, both balance mutations and the
// COMPLETED flip commit together or not at all.
type Service struct {
	walletRepo WalletRepository
	txRepo     TransactionRepository
	txManager  database.TxManager
	logger     *logger.Logger
}

// NewService creates a new ledger service
func NewService(
	walletRepo WalletRepository,
	txRepo TransactionRepository,
	txManager database.TxManager,
	logger *logger.Logger,
) *Service {
	return &Service{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		txManager:  txManager,
		logger:     logger,
	}
}

// Transfer moves points on behalf of an acting user. The source wallet must be
// debitable by that user: their own wallet, or the escrow wallet of an event
// they created.
func (s *Service) Transfer(ctx context.Context, actingUserID uuid.UUID, req *entities.TransferRequest) (*entities.Transaction, error) {
	if err := req.Validate(); err != nil {
		metrics.TransfersTotal.WithLabelValues(string(req.Type), "rejected").Inc()
		return nil, domainerrors.ValidationError("transfer", err.Error())
	}

	ownership, err := s.walletRepo.GetWithOwnership(ctx, req.FromWalletID)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues(string(req.Type), "error").Inc()
		return nil, fmt.Errorf("resolve source wallet: %w", err)
	}

	if !ownership.CanBeDebitedBy(actingUserID) {
		s.logger.Warn("Unauthorized transfer attempt",
			"acting_user_id", actingUserID,
			"from_wallet_id", req.FromWalletID)
		metrics.TransfersTotal.WithLabelValues(string(req.Type), "forbidden").Inc()
		return nil, domainerrors.ForbiddenError("wallet cannot be debited by this user")
	}

	return s.execute(ctx, req)
}

// SystemTransfer moves points without ownership checks. Reserved for internal
// callers acting for the service itself (minting, escrow payouts, sweeps).
func (s *Service) SystemTransfer(ctx context.Context, req *entities.TransferRequest) (*entities.Transaction, error) {
	if err := req.Validate(); err != nil {
		metrics.TransfersTotal.WithLabelValues(string(req.Type), "rejected").Inc()
		return nil, domainerrors.ValidationError("transfer", err.Error())
	}

	return s.execute(ctx, req)
}

func (s *Service) execute(ctx context.Context, req *entities.TransferRequest) (*entities.Transaction, error) {
	// Idempotent replay returns the recorded transaction without moving funds
	if req.IdempotencyKey != nil {
		existing, err := s.txRepo.GetByIdempotencyKey(ctx, *req.IdempotencyKey)
		if err != nil {
			metrics.TransfersTotal.WithLabelValues(string(req.Type), "error").Inc()
			return nil, fmt.Errorf("check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Transfer already recorded (idempotent)",
				"idempotency_key", *req.IdempotencyKey,
				"transaction_id", existing.ID)
			metrics.TransfersTotal.WithLabelValues(string(req.Type), "replayed").Inc()
			return existing, nil
		}
	}

	transaction := &entities.Transaction{
		ID:             uuid.New(),
		Type:           req.Type,
		Status:         entities.TransactionStatusPending,
		Amount:         req.Amount,
		FromWalletID:   req.FromWalletID,
		ToWalletID:     req.ToWalletID,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	}

	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := s.txRepo.Create(ctx, transaction); err != nil {
			return fmt.Errorf("create transaction record: %w", err)
		}

		// Conditional debit: the WHERE clause enforces sufficient funds, no
		// read-then-write gap to race against
		debited, err := s.walletRepo.TryDebit(ctx, req.FromWalletID, req.Amount)
		if err != nil {
			return fmt.Errorf("debit source wallet: %w", err)
		}
		if !debited {
			return domainerrors.InsufficientFundsError(
				fmt.Sprintf("wallet %s has insufficient balance for %s", req.FromWalletID, req.Amount))
		}

		if err := s.walletRepo.Credit(ctx, req.ToWalletID, req.Amount); err != nil {
			return fmt.Errorf("credit destination wallet: %w", err)
		}

		if err := s.txRepo.UpdateStatus(ctx, transaction.ID, entities.TransactionStatusCompleted); err != nil {
			return fmt.Errorf("complete transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		// A concurrent call with the same key can slip past the lookup above
		// and win the insert; the unique index turns the loser into a replay
		if req.IdempotencyKey != nil && domainerrors.IsAlreadyExists(err) {
			existing, lookupErr := s.txRepo.GetByIdempotencyKey(ctx, *req.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				s.logger.Info("Transfer already recorded (idempotent)",
					"idempotency_key", *req.IdempotencyKey,
					"transaction_id", existing.ID)
				metrics.TransfersTotal.WithLabelValues(string(req.Type), "replayed").Inc()
				return existing, nil
			}
		}
		outcome := "error"
		if domainerrors.IsInsufficientFunds(err) {
			outcome = "insufficient_funds"
		}
		metrics.TransfersTotal.WithLabelValues(string(req.Type), outcome).Inc()
		return nil, err
	}

	transaction.MarkCompleted()
	metrics.TransfersTotal.WithLabelValues(string(req.Type), "success").Inc()

	s.logger.Info("Transfer completed",
		"transaction_id", transaction.ID,
		"type", transaction.Type,
		"amount", transaction.Amount,
		"from_wallet_id", transaction.FromWalletID,
		"to_wallet_id", transaction.ToWalletID)

	return transaction, nil
}

// GetWallet retrieves a wallet by ID
func (s *Service) GetWallet(ctx context.Context, walletID uuid.UUID) (*entities.Wallet, error) {
	return s.walletRepo.GetByID(ctx, walletID)
}
