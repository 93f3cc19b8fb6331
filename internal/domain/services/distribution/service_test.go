package distribution_test

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
	"github.com/soul-service/soul_service/internal/domain/services/distribution"
	"github.com/soul-service/soul_service/pkg/logger"
)

// testEnv wires map-backed mocks around the distribution service
type testEnv struct {
	events   *MockEventRepository
	wallets  *MockWalletRepository
	users    *MockUserRepository
	ledger   *MockTransferer
	systemID uuid.UUID
	svc      *distribution.Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		events:   NewMockEventRepository(),
		wallets:  NewMockWalletRepository(),
		users:    NewMockUserRepository(),
		systemID: uuid.New(),
	}
	env.wallets.balances[env.systemID] = decimal.Zero
	env.ledger = &MockTransferer{wallets: env.wallets}

	zapLog, _ := zap.NewDevelopment()
	env.svc = distribution.NewService(
		env.events, env.wallets, env.users, env.ledger,
		mockTreasury{id: env.systemID}, logger.NewLogger(zapLog))
	return env
}

// addUser creates a user with a wallet and returns both IDs
func (e *testEnv) addUser() (userID, walletID uuid.UUID) {
	userID = uuid.New()
	walletID = uuid.New()
	e.wallets.balances[walletID] = decimal.Zero
	e.users.users[userID] = &entities.User{ID: userID, WalletID: walletID}
	return userID, walletID
}

// addEvent creates an event with a funded escrow wallet
func (e *testEnv) addEvent(creatorID uuid.UUID, deposit decimal.Decimal, distType entities.BonusDistributionType, n *int, finish time.Time) *entities.Event {
	escrowID := uuid.New()
	e.wallets.balances[escrowID] = deposit
	event := &entities.Event{
		ID:                    uuid.New(),
		CreatorID:             creatorID,
		WalletID:              escrowID,
		Deposit:               &deposit,
		BonusDistributionType: distType,
		BonusDistributionN:    n,
		FinishDate:            finish,
	}
	e.events.events[event.ID] = event
	return event
}

// confirm adds a confirmed activity with an explicit join time
func (e *testEnv) confirm(eventID, userID uuid.UUID, joinedAt time.Time) *entities.Activity {
	activity := &entities.Activity{
		ID:          uuid.New(),
		UserID:      userID,
		EventID:     eventID,
		IsConfirmed: true,
		JoinedAt:    joinedAt,
	}
	e.events.activities[activity.ID] = activity
	return activity
}

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

func (m *MockEventRepository) FindFinishedUnarchived(ctx context.Context, from, to time.Time) ([]*entities.Event, error) {
	var found []*entities.Event
	for _, event := range m.events {
		if !event.IsArchived && event.FinishDate.After(from) && !event.FinishDate.After(to) {
			found = append(found, event)
		}
	}
	return found, nil
}

func (m *MockEventRepository) FindFinishedInWindow(ctx context.Context, from, to time.Time) ([]*entities.Event, error) {
	var found []*entities.Event
	for _, event := range m.events {
		if event.FinishDate.After(from) && !event.FinishDate.After(to) {
			found = append(found, event)
		}
	}
	return found, nil
}

func (m *MockEventRepository) Archive(ctx context.Context, eventID uuid.UUID) error {
	event, ok := m.events[eventID]
	if !ok {
		return domainerrors.NotFoundError("event")
	}
	event.IsArchived = true
	return nil
}

func (m *MockEventRepository) ListConfirmedByEvent(ctx context.Context, eventID uuid.UUID) ([]*entities.Activity, error) {
	var confirmed []*entities.Activity
	for _, activity := range m.activities {
		if activity.EventID == eventID && activity.IsConfirmed {
			confirmed = append(confirmed, activity)
		}
	}
	// joined_at ascending, matching the repository query
	for i := 0; i < len(confirmed); i++ {
		for j := i + 1; j < len(confirmed); j++ {
			if confirmed[j].JoinedAt.Before(confirmed[i].JoinedAt) {
				confirmed[i], confirmed[j] = confirmed[j], confirmed[i]
			}
		}
	}
	return confirmed, nil
}

func (m *MockEventRepository) StampReceivedPoints(ctx context.Context, activityID uuid.UUID, amount decimal.Decimal) error {
	activity, ok := m.activities[activityID]
	if !ok {
		return domainerrors.NotFoundError("activity")
	}
	activity.ReceivedPoints = &amount
	return nil
}

type MockWalletRepository struct {
	balances map[uuid.UUID]decimal.Decimal
}

func NewMockWalletRepository() *MockWalletRepository {
	return &MockWalletRepository{balances: make(map[uuid.UUID]decimal.Decimal)}
}

func (m *MockWalletRepository) GetByID(ctx context.Context, walletID uuid.UUID) (*entities.Wallet, error) {
	balance, ok := m.balances[walletID]
	if !ok {
		return nil, domainerrors.NotFoundError("wallet")
	}
	return &entities.Wallet{ID: walletID, Balance: balance}, nil
}

func (m *MockWalletRepository) ForceZero(ctx context.Context, walletID uuid.UUID) error {
	if _, ok := m.balances[walletID]; !ok {
		return domainerrors.NotFoundError("wallet")
	}
	m.balances[walletID] = decimal.Zero
	return nil
}

type MockUserRepository struct {
	users map[uuid.UUID]*entities.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]*entities.User)}
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	if user, ok := m.users[userID]; ok {
		return user, nil
	}
	return nil, domainerrors.NotFoundError("user")
}

// MockTransferer moves balances in the wallet mock and records requests
type MockTransferer struct {
	wallets  *MockWalletRepository
	requests []*entities.TransferRequest
	seenKeys map[string]*entities.Transaction
}

func (m *MockTransferer) SystemTransfer(ctx context.Context, req *entities.TransferRequest) (*entities.Transaction, error) {
	if m.seenKeys == nil {
		m.seenKeys = make(map[string]*entities.Transaction)
	}
	if req.IdempotencyKey != nil {
		if tx, ok := m.seenKeys[*req.IdempotencyKey]; ok {
			return tx, nil
		}
	}

	from := m.wallets.balances[req.FromWalletID]
	if from.LessThan(req.Amount) {
		return nil, domainerrors.InsufficientFundsError("insufficient balance")
	}
	m.wallets.balances[req.FromWalletID] = from.Sub(req.Amount)
	m.wallets.balances[req.ToWalletID] = m.wallets.balances[req.ToWalletID].Add(req.Amount)

	tx := &entities.Transaction{
		ID:           uuid.New(),
		Type:         req.Type,
		Status:       entities.TransactionStatusCompleted,
		Amount:       req.Amount,
		FromWalletID: req.FromWalletID,
		ToWalletID:   req.ToWalletID,
	}
	m.requests = append(m.requests, req)
	if req.IdempotencyKey != nil {
		m.seenKeys[*req.IdempotencyKey] = tx
	}
	return tx, nil
}

type mockTreasury struct {
	id uuid.UUID
}

func (m mockTreasury) SystemWalletID(ctx context.Context) (uuid.UUID, error) {
	return m.id, nil
}

func window() (time.Time, time.Time, time.Time) {
	now := time.Now()
	return now.Add(-time.Hour), now, now.Add(-30 * time.Minute)
}

func TestDistribute_AllPolicySplitsEvenly(t *testing.T) {
	env := newTestEnv()
	from, to, finish := window()

	creator, _ := env.addUser()
	event := env.addEvent(creator, decimal.NewFromInt(90), entities.BonusDistributionAll, nil, finish)

	var walletIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		userID, walletID := env.addUser()
		env.confirm(event.ID, userID, finish.Add(-time.Duration(i)*time.Minute))
		walletIDs = append(walletIDs, walletID)
	}

	result, err := env.svc.DistributeFinishedEvents(context.Background(), from, to)

	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsProcessed)
	assert.Equal(t, 0, result.EventsFailed)
	for _, walletID := range walletIDs {
		assert.True(t, env.wallets.balances[walletID].Equal(decimal.NewFromInt(30)))
	}
	assert.True(t, env.events.events[event.ID].IsArchived)
}

func TestDistribute_FirstPolicyPaysEarliestJoiner(t *testing.T) {
	env := newTestEnv()
	from, to, finish := window()

	creator, _ := env.addUser()
	event := env.addEvent(creator, decimal.NewFromInt(50), entities.BonusDistributionFirst, nil, finish)

	earlyUser, earlyWallet := env.addUser()
	lateUser, lateWallet := env.addUser()
	env.confirm(event.ID, lateUser, finish.Add(-1*time.Minute))
	env.confirm(event.ID, earlyUser, finish.Add(-2*time.Hour))

	_, err := env.svc.DistributeFinishedEvents(context.Background(), from, to)

	require.NoError(t, err)
	assert.True(t, env.wallets.balances[earlyWallet].Equal(decimal.NewFromInt(50)))
	assert.True(t, env.wallets.balances[lateWallet].Equal(decimal.Zero))
}

func TestDistribute_FirstNPolicyCapsRecipients(t *testing.T) {
	env := newTestEnv()
	from, to, finish := window()

	creator, _ := env.addUser()
	n := 2
	event := env.addEvent(creator, decimal.NewFromInt(100), entities.BonusDistributionFirstN, &n, finish)

	var walletIDs []uuid.UUID
	for i := 0; i < 4; i++ {
		userID, walletID := env.addUser()
		env.confirm(event.ID, userID, finish.Add(time.Duration(i-10)*time.Minute))
		walletIDs = append(walletIDs, walletID)
	}

	_, err := env.svc.DistributeFinishedEvents(context.Background(), from, to)

	require.NoError(t, err)
	assert.True(t, env.wallets.balances[walletIDs[0]].Equal(decimal.NewFromInt(50)))
	assert.True(t, env.wallets.balances[walletIDs[1]].Equal(decimal.NewFromInt(50)))
	assert.True(t, env.wallets.balances[walletIDs[2]].Equal(decimal.Zero))
	assert.True(t, env.wallets.balances[walletIDs[3]].Equal(decimal.Zero))
}

func TestDistribute_FirstNWithoutNPaysEveryone(t *testing.T) {
	env := newTestEnv()
	from, to, finish := window()

	creator, _ := env.addUser()
	event := env.addEvent(creator, decimal.NewFromInt(60), entities.BonusDistributionFirstN, nil, finish)

	var walletIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		userID, walletID := env.addUser()
		env.confirm(event.ID, userID, finish.Add(time.Duration(-i)*time.Minute))
		walletIDs = append(walletIDs, walletID)
	}

	_, err := env.svc.DistributeFinishedEvents(context.Background(), from, to)

	require.NoError(t, err)
	for _, walletID := range walletIDs {
		assert.True(t, env.wallets.balances[walletID].Equal(decimal.NewFromInt(20)))
	}
}

func TestDistribute_NoParticipantsRefundsCreator(t *testing.T) {
	env := newTestEnv()
	from, to, finish := window()

	creator, creatorWallet := env.addUser()
	event := env.addEvent(creator, decimal.NewFromInt(75), entities.BonusDistributionAll, nil, finish)

	result, err := env.svc.DistributeFinishedEvents(context.Background(), from, to)

	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsRefunded)
	assert.True(t, env.wallets.balances[creatorWallet].Equal(decimal.NewFromInt(75)))
	assert.True(t, env.events.events[event.ID].IsArchived)
}

func TestDistribute_SweepsRoundingResidue(t *testing.T) {
	env := newTestEnv()
	from, to, finish := window()

	creator, _ := env.addUser()
	// 100 / 3 = 33.33 each, 0.01 residue left in escrow
	event := env.addEvent(creator, decimal.NewFromInt(100), entities.BonusDistributionAll, nil, finish)

	for i := 0; i < 3; i++ {
		userID, _ := env.addUser()
		env.confirm(event.ID, userID, finish.Add(time.Duration(-i)*time.Minute))
	}

	result, err := env.svc.DistributeFinishedEvents(context.Background(), from, to)

	require.NoError(t, err)
	assert.Equal(t, 1, result.WalletsSwept)
	assert.True(t, env.wallets.balances[event.WalletID].Equal(decimal.Zero))
	assert.True(t, env.wallets.balances[env.systemID].Equal(decimal.RequireFromString("0.01")))
}

func TestDistribute_UpwardRoundingNeverOverdrawsEscrow(t *testing.T) {
	env := newTestEnv()
	from, to, finish := window()

	creator, _ := env.addUser()
	// 200 / 3 would round up to 66.67 and the last payout would exceed the
	// escrow balance; truncation pays 66.66 each and sweeps the 0.02 residue
	event := env.addEvent(creator, decimal.NewFromInt(200), entities.BonusDistributionAll, nil, finish)

	var walletIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		userID, walletID := env.addUser()
		env.confirm(event.ID, userID, finish.Add(time.Duration(-i)*time.Minute))
		walletIDs = append(walletIDs, walletID)
	}

	result, err := env.svc.DistributeFinishedEvents(context.Background(), from, to)

	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsProcessed)
	assert.Equal(t, 0, result.EventsFailed)
	for _, walletID := range walletIDs {
		assert.True(t, env.wallets.balances[walletID].Equal(decimal.RequireFromString("66.66")))
	}
	assert.True(t, env.events.events[event.ID].IsArchived)
	assert.Equal(t, 1, result.WalletsSwept)
	assert.True(t, env.wallets.balances[event.WalletID].Equal(decimal.Zero))
	assert.True(t, env.wallets.balances[env.systemID].Equal(decimal.RequireFromString("0.02")))
}

func TestDistribute_FailingEventDoesNotAbortRun(t *testing.T) {
	env := newTestEnv()
	from, to, finish := window()

	creator, _ := env.addUser()
	broken := env.addEvent(creator, decimal.NewFromInt(10), entities.BonusDistributionAll, nil, finish)
	// Participant without a user row makes wallet resolution fail
	env.confirm(broken.ID, uuid.New(), finish.Add(-time.Minute))

	healthy := env.addEvent(creator, decimal.NewFromInt(20), entities.BonusDistributionAll, nil, finish)
	userID, walletID := env.addUser()
	env.confirm(healthy.ID, userID, finish.Add(-time.Minute))

	result, err := env.svc.DistributeFinishedEvents(context.Background(), from, to)

	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsProcessed)
	assert.Equal(t, 1, result.EventsFailed)
	assert.True(t, env.wallets.balances[walletID].Equal(decimal.NewFromInt(20)))
	assert.False(t, env.events.events[broken.ID].IsArchived)
	assert.True(t, env.events.events[healthy.ID].IsArchived)
}
