package referral_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/soul-service/soul_service/internal/domain/entities"
	domainerrors "github.com/soul-service/soul_service/internal/domain/errors"
	"github.com/soul-service/soul_service/internal/domain/services/referral"
	"github.com/soul-service/soul_service/pkg/logger"
)

type MockTransactionRepository struct {
	spends []*entities.WalletSpend
}

func (m *MockTransactionRepository) SumInviteeSpend(ctx context.Context, from, to time.Time) ([]*entities.WalletSpend, error) {
	return m.spends, nil
}

type MockInviteRepository struct {
	chains      map[uuid.UUID]*entities.InviteChain
	increments  map[uuid.UUID]decimal.Decimal
	failInvites map[uuid.UUID]bool
}

func NewMockInviteRepository() *MockInviteRepository {
	return &MockInviteRepository{
		chains:      make(map[uuid.UUID]*entities.InviteChain),
		increments:  make(map[uuid.UUID]decimal.Decimal),
		failInvites: make(map[uuid.UUID]bool),
	}
}

func (m *MockInviteRepository) GetChainsByInvitees(ctx context.Context, inviteeIDs []uuid.UUID) ([]*entities.InviteChain, error) {
	var chains []*entities.InviteChain
	for _, id := range inviteeIDs {
		if chain, ok := m.chains[id]; ok {
			chains = append(chains, chain)
		}
	}
	if len(chains) != len(inviteeIDs) {
		return nil, domainerrors.InconsistentDataError("missing invite chains")
	}
	return chains, nil
}

func (m *MockInviteRepository) IncrementReferralPoints(ctx context.Context, inviteID uuid.UUID, amount decimal.Decimal) error {
	if m.failInvites[inviteID] {
		return domainerrors.InternalError("increment failed", nil)
	}
	m.increments[inviteID] = m.increments[inviteID].Add(amount)
	return nil
}

type MockUserRepository struct {
	totals map[uuid.UUID]decimal.Decimal
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{totals: make(map[uuid.UUID]decimal.Decimal)}
}

func (m *MockUserRepository) IncrementTotalReferralPoints(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	m.totals[userID] = m.totals[userID].Add(amount)
	return nil
}

type MockTreasury struct {
	minted map[uuid.UUID]decimal.Decimal
	keys   []string
}

func NewMockTreasury() *MockTreasury {
	return &MockTreasury{minted: make(map[uuid.UUID]decimal.Decimal)}
}

func (m *MockTreasury) MintTo(ctx context.Context, toWalletID uuid.UUID, amount decimal.Decimal, txType entities.TransactionType, idempotencyKey *string) (*entities.Transaction, error) {
	m.minted[toWalletID] = m.minted[toWalletID].Add(amount)
	if idempotencyKey != nil {
		m.keys = append(m.keys, *idempotencyKey)
	}
	return &entities.Transaction{
		ID:     uuid.New(),
		Type:   txType,
		Status: entities.TransactionStatusCompleted,
		Amount: amount,
	}, nil
}

type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newService(txRepo *MockTransactionRepository, inviteRepo *MockInviteRepository, userRepo *MockUserRepository, tre *MockTreasury) *referral.Service {
	zapLog, _ := zap.NewDevelopment()
	rate := decimal.RequireFromString("0.05")
	return referral.NewService(txRepo, inviteRepo, userRepo, tre, fakeTxManager{}, rate, logger.NewLogger(zapLog))
}

func addChain(inviteRepo *MockInviteRepository, inviteeID uuid.UUID) *entities.InviteChain {
	chain := &entities.InviteChain{
		InviteID:        uuid.New(),
		InviteeID:       inviteeID,
		InviterID:       uuid.New(),
		InviterWalletID: uuid.New(),
	}
	inviteRepo.chains[inviteeID] = chain
	return chain
}

func TestProcessWindow_PaysCommissionAtRate(t *testing.T) {
	inviteeID := uuid.New()
	txRepo := &MockTransactionRepository{spends: []*entities.WalletSpend{
		{FromWalletID: uuid.New(), UserID: inviteeID, Total: decimal.NewFromInt(200)},
	}}
	inviteRepo := NewMockInviteRepository()
	chain := addChain(inviteRepo, inviteeID)
	userRepo := NewMockUserRepository()
	tre := NewMockTreasury()

	svc := newService(txRepo, inviteRepo, userRepo, tre)
	result, err := svc.ProcessWindow(context.Background(), time.Now().Add(-time.Hour), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 1, result.InviteesProcessed)
	// 5% of 200
	commission := decimal.NewFromInt(10)
	assert.True(t, tre.minted[chain.InviterWalletID].Equal(commission))
	assert.True(t, inviteRepo.increments[chain.InviteID].Equal(commission))
	assert.True(t, userRepo.totals[chain.InviterID].Equal(commission))
	assert.True(t, result.TotalCommission.Equal(commission))
}

func TestProcessWindow_EmptyWindow(t *testing.T) {
	svc := newService(&MockTransactionRepository{}, NewMockInviteRepository(), NewMockUserRepository(), NewMockTreasury())

	result, err := svc.ProcessWindow(context.Background(), time.Now().Add(-time.Hour), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 0, result.InviteesProcessed)
	assert.True(t, result.TotalCommission.IsZero())
}

func TestProcessWindow_MissingChainAbortsRun(t *testing.T) {
	withChain := uuid.New()
	withoutChain := uuid.New()
	txRepo := &MockTransactionRepository{spends: []*entities.WalletSpend{
		{FromWalletID: uuid.New(), UserID: withChain, Total: decimal.NewFromInt(100)},
		{FromWalletID: uuid.New(), UserID: withoutChain, Total: decimal.NewFromInt(100)},
	}}
	inviteRepo := NewMockInviteRepository()
	addChain(inviteRepo, withChain)
	tre := NewMockTreasury()

	svc := newService(txRepo, inviteRepo, NewMockUserRepository(), tre)
	_, err := svc.ProcessWindow(context.Background(), time.Now().Add(-time.Hour), time.Now())

	require.Error(t, err)
	// Nobody got paid against inconsistent data
	assert.Empty(t, tre.minted)
}

func TestProcessWindow_SkipsSubCentCommission(t *testing.T) {
	inviteeID := uuid.New()
	txRepo := &MockTransactionRepository{spends: []*entities.WalletSpend{
		{FromWalletID: uuid.New(), UserID: inviteeID, Total: decimal.RequireFromString("0.05")},
	}}
	inviteRepo := NewMockInviteRepository()
	addChain(inviteRepo, inviteeID)
	tre := NewMockTreasury()

	svc := newService(txRepo, inviteRepo, NewMockUserRepository(), tre)
	result, err := svc.ProcessWindow(context.Background(), time.Now().Add(-time.Hour), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 0, result.InviteesProcessed)
	assert.Empty(t, tre.minted)
}

func TestProcessWindow_FailedPayoutDoesNotAbortOthers(t *testing.T) {
	brokenInvitee := uuid.New()
	healthyInvitee := uuid.New()
	txRepo := &MockTransactionRepository{spends: []*entities.WalletSpend{
		{FromWalletID: uuid.New(), UserID: brokenInvitee, Total: decimal.NewFromInt(100)},
		{FromWalletID: uuid.New(), UserID: healthyInvitee, Total: decimal.NewFromInt(100)},
	}}
	inviteRepo := NewMockInviteRepository()
	brokenChain := addChain(inviteRepo, brokenInvitee)
	healthyChain := addChain(inviteRepo, healthyInvitee)
	inviteRepo.failInvites[brokenChain.InviteID] = true
	userRepo := NewMockUserRepository()
	tre := NewMockTreasury()

	svc := newService(txRepo, inviteRepo, userRepo, tre)
	result, err := svc.ProcessWindow(context.Background(), time.Now().Add(-time.Hour), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 1, result.InviteesProcessed)
	assert.Equal(t, 1, result.InviteesFailed)
	assert.True(t, tre.minted[healthyChain.InviterWalletID].Equal(decimal.NewFromInt(5)))
	assert.True(t, userRepo.totals[healthyChain.InviterID].Equal(decimal.NewFromInt(5)))
	assert.True(t, userRepo.totals[brokenChain.InviterID].IsZero())
}
