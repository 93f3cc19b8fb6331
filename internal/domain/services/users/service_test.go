package users_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/soul-service/soul_service/internal/domain/entities"
	domainerrors "github.com/soul-service/soul_service/internal/domain/errors"
	"github.com/soul-service/soul_service/internal/domain/services/users"
	"github.com/soul-service/soul_service/pkg/logger"
)

type MockUserRepository struct {
	users map[uuid.UUID]*entities.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]*entities.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	if user, ok := m.users[userID]; ok {
		return user, nil
	}
	return nil, domainerrors.NotFoundError("user")
}

type MockWalletRepository struct {
	created []*entities.Wallet
}

func (m *MockWalletRepository) Create(ctx context.Context, ownerKind entities.OwnerKind, ownerRef *uuid.UUID) (*entities.Wallet, error) {
	wallet := &entities.Wallet{
		ID:        uuid.New(),
		OwnerKind: ownerKind,
		OwnerRef:  ownerRef,
		Balance:   decimal.Zero,
	}
	m.created = append(m.created, wallet)
	return wallet, nil
}

type MockInviteRepository struct {
	invites []*entities.Invite
}

func (m *MockInviteRepository) Create(ctx context.Context, invite *entities.Invite) error {
	m.invites = append(m.invites, invite)
	return nil
}

type MockTreasury struct {
	minted map[uuid.UUID]decimal.Decimal
}

func NewMockTreasury() *MockTreasury {
	return &MockTreasury{minted: make(map[uuid.UUID]decimal.Decimal)}
}

func (m *MockTreasury) MintTo(ctx context.Context, toWalletID uuid.UUID, amount decimal.Decimal, txType entities.TransactionType, idempotencyKey *string) (*entities.Transaction, error) {
	m.minted[toWalletID] = m.minted[toWalletID].Add(amount)
	return &entities.Transaction{ID: uuid.New(), Type: txType, Amount: amount}, nil
}

type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newService(userRepo *MockUserRepository, walletRepo *MockWalletRepository, inviteRepo *MockInviteRepository, tre *MockTreasury) *users.Service {
	zapLog, _ := zap.NewDevelopment()
	bonus := decimal.NewFromInt(1020)
	return users.NewService(userRepo, walletRepo, inviteRepo, tre, fakeTxManager{}, bonus, logger.NewLogger(zapLog))
}

func TestRegister_CreatesWalletAndMintsBonus(t *testing.T) {
	userRepo := NewMockUserRepository()
	walletRepo := &MockWalletRepository{}
	inviteRepo := &MockInviteRepository{}
	tre := NewMockTreasury()
	svc := newService(userRepo, walletRepo, inviteRepo, tre)

	user, err := svc.Register(context.Background(), &users.RegisterRequest{Username: "soulmate"})

	require.NoError(t, err)
	require.Len(t, walletRepo.created, 1)
	assert.Equal(t, entities.OwnerKindUser, walletRepo.created[0].OwnerKind)
	assert.Equal(t, user.WalletID, walletRepo.created[0].ID)
	assert.True(t, tre.minted[user.WalletID].Equal(decimal.NewFromInt(1020)))
	assert.Empty(t, inviteRepo.invites)
}

func TestRegister_RecordsInvite(t *testing.T) {
	userRepo := NewMockUserRepository()
	walletRepo := &MockWalletRepository{}
	inviteRepo := &MockInviteRepository{}
	tre := NewMockTreasury()
	svc := newService(userRepo, walletRepo, inviteRepo, tre)

	inviter, err := svc.Register(context.Background(), &users.RegisterRequest{Username: "inviter"})
	require.NoError(t, err)

	invitee, err := svc.Register(context.Background(), &users.RegisterRequest{
		Username:  "invitee",
		InviterID: &inviter.ID,
	})
	require.NoError(t, err)

	require.Len(t, inviteRepo.invites, 1)
	invite := inviteRepo.invites[0]
	assert.Equal(t, inviter.ID, invite.InviterID)
	assert.Equal(t, invitee.ID, invite.InviteeID)
	assert.True(t, invite.ReferralPointsGiven.IsZero())
}

func TestRegister_RejectsUnknownInviter(t *testing.T) {
	svc := newService(NewMockUserRepository(), &MockWalletRepository{}, &MockInviteRepository{}, NewMockTreasury())

	ghost := uuid.New()
	_, err := svc.Register(context.Background(), &users.RegisterRequest{
		Username:  "orphan",
		InviterID: &ghost,
	})

	require.Error(t, err)
	assert.True(t, domainerrors.IsNotFound(err))
}

func TestRegister_RejectsEmptyUsername(t *testing.T) {
	svc := newService(NewMockUserRepository(), &MockWalletRepository{}, &MockInviteRepository{}, NewMockTreasury())

	_, err := svc.Register(context.Background(), &users.RegisterRequest{})

	assert.True(t, domainerrors.IsInvalidInput(err))
}
