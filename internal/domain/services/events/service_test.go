package events_test

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
	"github.com/soul-service/soul_service/internal/domain/services/events"
	"github.com/soul-service/soul_service/pkg/logger"
)

type MockEventRepository struct {
	events     map[uuid.UUID]*entities.Event
	activities map[uuid.UUID]*entities.Activity
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{
		events:     make(map[uuid.UUID]*entities.Event),
		activities: make(map[uuid.UUID]*entities.Activity),
	}
}

func (m *MockEventRepository) Create(ctx context.Context, event *entities.Event) error {
	m.events[event.ID] = event
	return nil
}

func (m *MockEventRepository) GetByID(ctx context.Context, eventID uuid.UUID) (*entities.Event, error) {
	if event, ok := m.events[eventID]; ok {
		return event, nil
	}
	return nil, domainerrors.NotFoundError("event")
}

func (m *MockEventRepository) CreateActivity(ctx context.Context, activity *entities.Activity) error {
	for _, existing := range m.activities {
		if existing.UserID == activity.UserID && existing.EventID == activity.EventID {
			return domainerrors.AlreadyExistsError("activity")
		}
	}
	m.activities[activity.ID] = activity
	return nil
}

func (m *MockEventRepository) GetActivityByID(ctx context.Context, activityID uuid.UUID) (*entities.Activity, error) {
	if activity, ok := m.activities[activityID]; ok {
		return activity, nil
	}
	return nil, domainerrors.NotFoundError("activity")
}

func (m *MockEventRepository) ConfirmActivity(ctx context.Context, activityID uuid.UUID) error {
	activity, ok := m.activities[activityID]
	if !ok {
		return domainerrors.NotFoundError("activity")
	}
	activity.IsConfirmed = true
	return nil
}

type MockWalletRepository struct{}

func (m *MockWalletRepository) Create(ctx context.Context, ownerKind entities.OwnerKind, ownerRef *uuid.UUID) (*entities.Wallet, error) {
	return &entities.Wallet{
		ID:        uuid.New(),
		OwnerKind: ownerKind,
		OwnerRef:  ownerRef,
		Balance:   decimal.Zero,
	}, nil
}

type MockUserRepository struct {
	users map[uuid.UUID]*entities.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]*entities.User)}
}

func (m *MockUserRepository) AddUser() *entities.User {
	user := &entities.User{ID: uuid.New(), WalletID: uuid.New()}
	m.users[user.ID] = user
	return user
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	if user, ok := m.users[userID]; ok {
		return user, nil
	}
	return nil, domainerrors.NotFoundError("user")
}

type MockLedger struct {
	transfers []*entities.TransferRequest
}

func (m *MockLedger) Transfer(ctx context.Context, actingUserID uuid.UUID, req *entities.TransferRequest) (*entities.Transaction, error) {
	m.transfers = append(m.transfers, req)
	return &entities.Transaction{ID: uuid.New(), Type: req.Type, Amount: req.Amount}, nil
}

type MockTreasury struct {
	charges   []decimal.Decimal
	chargedBy []uuid.UUID
	fail      bool
}

func (m *MockTreasury) ChargeToSystem(ctx context.Context, actingUserID, fromWalletID uuid.UUID, amount decimal.Decimal, txType entities.TransactionType, idempotencyKey *string) (*entities.Transaction, error) {
	if m.fail {
		return nil, domainerrors.InsufficientFundsError("insufficient balance")
	}
	m.charges = append(m.charges, amount)
	m.chargedBy = append(m.chargedBy, actingUserID)
	return &entities.Transaction{ID: uuid.New(), Type: txType, Amount: amount}, nil
}

type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newService(eventRepo *MockEventRepository, userRepo *MockUserRepository, ledger *MockLedger, tre *MockTreasury) *events.Service {
	zapLog, _ := zap.NewDevelopment()
	fee := decimal.NewFromInt(50)
	return events.NewService(eventRepo, &MockWalletRepository{}, userRepo, ledger, tre, fakeTxManager{}, fee, logger.NewLogger(zapLog))
}

func TestCreate_ChargesFeeAndDepositsEscrow(t *testing.T) {
	eventRepo := NewMockEventRepository()
	userRepo := NewMockUserRepository()
	ledger := &MockLedger{}
	tre := &MockTreasury{}
	svc := newService(eventRepo, userRepo, ledger, tre)

	creator := userRepo.AddUser()
	deposit := decimal.NewFromInt(300)
	event, err := svc.Create(context.Background(), creator.ID, &entities.CreateEventRequest{
		Deposit:               &deposit,
		BonusDistributionType: entities.BonusDistributionAll,
		FinishDate:            time.Now().Add(24 * time.Hour),
	})

	require.NoError(t, err)
	require.Len(t, tre.charges, 1)
	assert.True(t, tre.charges[0].Equal(decimal.NewFromInt(50)))
	// The fee debit runs on the creator's own authority
	assert.Equal(t, creator.ID, tre.chargedBy[0])
	require.Len(t, ledger.transfers, 1)
	assert.True(t, ledger.transfers[0].Amount.Equal(deposit))
	assert.Equal(t, event.WalletID, ledger.transfers[0].ToWalletID)
	assert.Equal(t, entities.TransactionTypeEventFundDeposit, ledger.transfers[0].Type)
}

func TestCreate_NoDepositSkipsEscrowTransfer(t *testing.T) {
	eventRepo := NewMockEventRepository()
	userRepo := NewMockUserRepository()
	ledger := &MockLedger{}
	tre := &MockTreasury{}
	svc := newService(eventRepo, userRepo, ledger, tre)

	creator := userRepo.AddUser()
	_, err := svc.Create(context.Background(), creator.ID, &entities.CreateEventRequest{
		BonusDistributionType: entities.BonusDistributionAll,
		FinishDate:            time.Now().Add(24 * time.Hour),
	})

	require.NoError(t, err)
	assert.Len(t, tre.charges, 1)
	assert.Empty(t, ledger.transfers)
}

func TestCreate_FirstNRequiresN(t *testing.T) {
	userRepo := NewMockUserRepository()
	svc := newService(NewMockEventRepository(), userRepo, &MockLedger{}, &MockTreasury{})

	creator := userRepo.AddUser()
	_, err := svc.Create(context.Background(), creator.ID, &entities.CreateEventRequest{
		BonusDistributionType: entities.BonusDistributionFirstN,
		FinishDate:            time.Now().Add(24 * time.Hour),
	})

	assert.True(t, domainerrors.IsInvalidInput(err))
}

func TestCreate_FeeFailureAbortsEvent(t *testing.T) {
	eventRepo := NewMockEventRepository()
	userRepo := NewMockUserRepository()
	svc := newService(eventRepo, userRepo, &MockLedger{}, &MockTreasury{fail: true})

	creator := userRepo.AddUser()
	_, err := svc.Create(context.Background(), creator.ID, &entities.CreateEventRequest{
		BonusDistributionType: entities.BonusDistributionAll,
		FinishDate:            time.Now().Add(24 * time.Hour),
	})

	require.Error(t, err)
	assert.True(t, domainerrors.IsInsufficientFunds(err))
	assert.Empty(t, eventRepo.events)
}

func TestJoin_And_ConfirmByCreator(t *testing.T) {
	eventRepo := NewMockEventRepository()
	userRepo := NewMockUserRepository()
	svc := newService(eventRepo, userRepo, &MockLedger{}, &MockTreasury{})

	creator := userRepo.AddUser()
	participant := userRepo.AddUser()
	event, err := svc.Create(context.Background(), creator.ID, &entities.CreateEventRequest{
		BonusDistributionType: entities.BonusDistributionAll,
		FinishDate:            time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	activity, err := svc.Join(context.Background(), participant.ID, event.ID)
	require.NoError(t, err)
	assert.False(t, activity.IsConfirmed)

	err = svc.Confirm(context.Background(), creator.ID, activity.ID)
	require.NoError(t, err)
	assert.True(t, eventRepo.activities[activity.ID].IsConfirmed)
}

func TestConfirm_RejectsNonCreator(t *testing.T) {
	eventRepo := NewMockEventRepository()
	userRepo := NewMockUserRepository()
	svc := newService(eventRepo, userRepo, &MockLedger{}, &MockTreasury{})

	creator := userRepo.AddUser()
	participant := userRepo.AddUser()
	event, err := svc.Create(context.Background(), creator.ID, &entities.CreateEventRequest{
		BonusDistributionType: entities.BonusDistributionAll,
		FinishDate:            time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	activity, err := svc.Join(context.Background(), participant.ID, event.ID)
	require.NoError(t, err)

	err = svc.Confirm(context.Background(), participant.ID, activity.ID)
	assert.True(t, domainerrors.IsForbidden(err))
}

func TestJoin_RejectsDuplicate(t *testing.T) {
	eventRepo := NewMockEventRepository()
	userRepo := NewMockUserRepository()
	svc := newService(eventRepo, userRepo, &MockLedger{}, &MockTreasury{})

	creator := userRepo.AddUser()
	participant := userRepo.AddUser()
	event, err := svc.Create(context.Background(), creator.ID, &entities.CreateEventRequest{
		BonusDistributionType: entities.BonusDistributionAll,
		FinishDate:            time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), participant.ID, event.ID)
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), participant.ID, event.ID)
	assert.True(t, domainerrors.IsAlreadyExists(err))
}
