package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soul-service/soul_service/internal/domain/entities"
	"github.com/soul-service/soul_service/internal/infrastructure/database"
	"github.com/soul-service/soul_service/pkg/logger"
)

// TransactionRepository aggregates invitee spend for commission runs
type TransactionRepository interface {
	SumInviteeSpend(ctx context.Context, from, to time.Time) ([]*entities.WalletSpend, error)
}

// InviteRepository resolves and updates referral relationships
type InviteRepository interface {
	GetChainsByInvitees(ctx context.Context, inviteeIDs []uuid.UUID) ([]*entities.InviteChain, error)
	IncrementReferralPoints(ctx context.Context, inviteID uuid.UUID, amount decimal.Decimal) error
}

// UserRepository updates inviter commission totals
type UserRepository interface {
	IncrementTotalReferralPoints(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
}

// Treasury mints commission payouts from the system wallet
type Treasury interface {
	MintTo(ctx context.Context, toWalletID uuid.UUID, amount decimal.Decimal, txType entities.TransactionType, idempotencyKey *string) (*entities.Transaction, error)
}

// Service pays referral commission: a percentage of each invitee's completed
// spend inside the window is minted to the inviter. Referral rewards themselves
// never count toward the spend base, so commission cannot compound.
type Service struct {
	txRepo     TransactionRepository
	inviteRepo InviteRepository
	userRepo   UserRepository
	treasury   Treasury
	txManager  database.TxManager
	rate       decimal.Decimal
	logger     *logger.Logger
}

// NewService creates a new referral service
func NewService(
	txRepo TransactionRepository,
	inviteRepo InviteRepository,
	userRepo UserRepository,
	treasury Treasury,
	txManager database.TxManager,
	rate decimal.Decimal,
	logger *logger.Logger,
) *Service {
	return &Service{
		txRepo:     txRepo,
		inviteRepo: inviteRepo,
		userRepo:   userRepo,
		treasury:   treasury,
		txManager:  txManager,
		rate:       rate,
		logger:     logger,
	}
}

// RunResult summarizes one commission run.
type RunResult struct {
	InviteesProcessed int
	InviteesFailed    int
	TotalCommission   decimal.Decimal
}

// ProcessWindow computes and pays commission for the window. The whole run
// aborts if any invitee's referral chain cannot be resolved: paying some
// inviters against inconsistent data is worse than paying none. Individual
// payout failures are logged and the run continues.
func (s *Service) ProcessWindow(ctx context.Context, from, to time.Time) (*RunResult, error) {
	spends, err := s.txRepo.SumInviteeSpend(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregate invitee spend: %w", err)
	}

	result := &RunResult{TotalCommission: decimal.Zero}
	if len(spends) == 0 {
		return result, nil
	}

	inviteeIDs := make([]uuid.UUID, 0, len(spends))
	for _, spend := range spends {
		inviteeIDs = append(inviteeIDs, spend.UserID)
	}

	chains, err := s.inviteRepo.GetChainsByInvitees(ctx, inviteeIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve referral chains: %w", err)
	}

	chainByInvitee := make(map[uuid.UUID]*entities.InviteChain, len(chains))
	for _, chain := range chains {
		chainByInvitee[chain.InviteeID] = chain
	}

	windowTag := to.UTC().Format("2006-01-02T15")
	for _, spend := range spends {
		chain, ok := chainByInvitee[spend.UserID]
		if !ok {
			// GetChainsByInvitees already fails on count mismatch; this guards
			// against duplicate invite rows shadowing a missing one
			return result, fmt.Errorf("no referral chain for invitee %s", spend.UserID)
		}

		commission := spend.Total.Mul(s.rate).Round(2)
		if !commission.IsPositive() {
			continue
		}

		if err := s.payCommission(ctx, chain, commission, windowTag); err != nil {
			s.logger.Error("Referral commission payout failed",
				"invitee_id", spend.UserID,
				"inviter_id", chain.InviterID,
				"commission", commission,
				"error", err)
			result.InviteesFailed++
			continue
		}

		result.InviteesProcessed++
		result.TotalCommission = result.TotalCommission.Add(commission)
	}

	return result, nil
}

// payCommission mints the commission and bumps both referral counters in one
// database transaction, so the payout and its bookkeeping cannot diverge.
func (s *Service) payCommission(ctx context.Context, chain *entities.InviteChain, commission decimal.Decimal, windowTag string) error {
	key := fmt.Sprintf("referral-%s-%s", chain.InviteID, windowTag)

	return s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.treasury.MintTo(ctx, chain.InviterWalletID, commission, entities.TransactionTypeReferralReward, &key); err != nil {
			return fmt.Errorf("mint commission: %w", err)
		}

		if err := s.inviteRepo.IncrementReferralPoints(ctx, chain.InviteID, commission); err != nil {
			return fmt.Errorf("increment invite counter: %w", err)
		}

		if err := s.userRepo.IncrementTotalReferralPoints(ctx, chain.InviterID, commission); err != nil {
			return fmt.Errorf("increment user counter: %w", err)
		}

		return nil
	})
}
