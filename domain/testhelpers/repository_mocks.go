package testhelpers

import (
	"context"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/events"
	"gambler/settlement/domain/interfaces"

	"github.com/stretchr/testify/mock"
)

// MockWagerRepository is a mock implementation of WagerRepository
type MockWagerRepository struct {
	mock.Mock
}

func (m *MockWagerRepository) Create(ctx context.Context, wager *entities.Wager) error {
	args := m.Called(ctx, wager)
	return args.Error(0)
}

func (m *MockWagerRepository) GetByID(ctx context.Context, id int64) (*entities.Wager, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetByFundingTx(ctx context.Context, fundingTxID string) (*entities.Wager, error) {
	args := m.Called(ctx, fundingTxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetLatestByGameInstance(ctx context.Context, gameType entities.GameType, instanceID string) (*entities.Wager, error) {
	args := m.Called(ctx, gameType, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wager), args.Error(1)
}

func (m *MockWagerRepository) UpdateStatus(ctx context.Context, wager *entities.Wager, expected entities.WagerStatus) (bool, error) {
	args := m.Called(ctx, wager, expected)
	return args.Bool(0), args.Error(1)
}

func (m *MockWagerRepository) ListByStatusCreatedBefore(ctx context.Context, status entities.WagerStatus, before time.Time, limit int) ([]*entities.Wager, error) {
	args := m.Called(ctx, status, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Wager), args.Error(1)
}

func (m *MockWagerRepository) ListFundedByEvent(ctx context.Context, eventID string) ([]*entities.Wager, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Wager), args.Error(1)
}

// MockGameRoundRepository is a mock implementation of GameRoundRepository
type MockGameRoundRepository struct {
	mock.Mock
}

func (m *MockGameRoundRepository) Create(ctx context.Context, round *entities.GameRound) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

func (m *MockGameRoundRepository) GetByID(ctx context.Context, id int64) (*entities.GameRound, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GameRound), args.Error(1)
}

func (m *MockGameRoundRepository) GetLatest(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error) {
	args := m.Called(ctx, playerID, gameType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GameRound), args.Error(1)
}

func (m *MockGameRoundRepository) CompareAndSet(ctx context.Context, round *entities.GameRound) (bool, error) {
	args := m.Called(ctx, round)
	return args.Bool(0), args.Error(1)
}

func (m *MockGameRoundRepository) ListIdle(ctx context.Context, idleSince time.Time, limit int) ([]*entities.GameRound, error) {
	args := m.Called(ctx, idleSince, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.GameRound), args.Error(1)
}

// MockReferralRepository is a mock implementation of ReferralRepository
type MockReferralRepository struct {
	mock.Mock
}

func (m *MockReferralRepository) GetByPlayer(ctx context.Context, playerID string) (*entities.ReferralAccount, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReferralAccount), args.Error(1)
}

func (m *MockReferralRepository) GetByPlayerForUpdate(ctx context.Context, playerID string) (*entities.ReferralAccount, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReferralAccount), args.Error(1)
}

func (m *MockReferralRepository) GetByCode(ctx context.Context, code string) (*entities.ReferralAccount, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReferralAccount), args.Error(1)
}

func (m *MockReferralRepository) Create(ctx context.Context, account *entities.ReferralAccount) (bool, error) {
	args := m.Called(ctx, account)
	return args.Bool(0), args.Error(1)
}

func (m *MockReferralRepository) SetReferredBy(ctx context.Context, playerID, referrerID string) (bool, error) {
	args := m.Called(ctx, playerID, referrerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReferralRepository) IncrementReferralCount(ctx context.Context, playerID string) error {
	args := m.Called(ctx, playerID)
	return args.Error(0)
}

func (m *MockReferralRepository) RecordCredit(ctx context.Context, credit *entities.ReferralCredit) (bool, error) {
	args := m.Called(ctx, credit)
	return args.Bool(0), args.Error(1)
}

func (m *MockReferralRepository) GetCreditByWager(ctx context.Context, wagerID int64) (*entities.ReferralCredit, error) {
	args := m.Called(ctx, wagerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReferralCredit), args.Error(1)
}

func (m *MockReferralRepository) AddBonus(ctx context.Context, playerID string, amount int64) error {
	args := m.Called(ctx, playerID, amount)
	return args.Error(0)
}

func (m *MockReferralRepository) ZeroBonus(ctx context.Context, playerID string, at time.Time) error {
	args := m.Called(ctx, playerID, at)
	return args.Error(0)
}

func (m *MockReferralRepository) CreatePayout(ctx context.Context, payout *entities.BonusPayout) error {
	args := m.Called(ctx, payout)
	return args.Error(0)
}

func (m *MockReferralRepository) UpdatePayout(ctx context.Context, payout *entities.BonusPayout) error {
	args := m.Called(ctx, payout)
	return args.Error(0)
}

// MockEventResultRepository is a mock implementation of EventResultRepository
type MockEventResultRepository struct {
	mock.Mock
}

func (m *MockEventResultRepository) Record(ctx context.Context, result *entities.EventResult) (*entities.EventResult, error) {
	args := m.Called(ctx, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.EventResult), args.Error(1)
}

func (m *MockEventResultRepository) Get(ctx context.Context, eventID string) (*entities.EventResult, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.EventResult), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockUnitOfWork is a mock implementation of UnitOfWork wired to the mock repositories
type MockUnitOfWork struct {
	mock.Mock

	Wagers       *MockWagerRepository
	Rounds       *MockGameRoundRepository
	Referrals    *MockReferralRepository
	EventResults *MockEventResultRepository
	Events       *MockEventPublisher
}

// NewMockUnitOfWork creates a MockUnitOfWork with fresh repository mocks
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		Wagers:       new(MockWagerRepository),
		Rounds:       new(MockGameRoundRepository),
		Referrals:    new(MockReferralRepository),
		EventResults: new(MockEventResultRepository),
		Events:       new(MockEventPublisher),
	}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) WagerRepository() interfaces.WagerRepository {
	return m.Wagers
}

func (m *MockUnitOfWork) GameRoundRepository() interfaces.GameRoundRepository {
	return m.Rounds
}

func (m *MockUnitOfWork) ReferralRepository() interfaces.ReferralRepository {
	return m.Referrals
}

func (m *MockUnitOfWork) EventResultRepository() interfaces.EventResultRepository {
	return m.EventResults
}

func (m *MockUnitOfWork) EventBus() interfaces.EventPublisher {
	return m.Events
}

// ExpectCommit sets up the Begin/Commit/Rollback expectations of a successful transaction
func (m *MockUnitOfWork) ExpectCommit() {
	m.On("Begin", mock.Anything).Return(nil)
	m.On("Commit").Return(nil)
	m.On("Rollback").Return(nil).Maybe()
}

// ExpectRollback sets up the Begin/Rollback expectations of an aborted transaction
func (m *MockUnitOfWork) ExpectRollback() {
	m.On("Begin", mock.Anything).Return(nil)
	m.On("Rollback").Return(nil)
}

// AssertAllExpectations asserts expectations on the unit of work and every repository mock
func (m *MockUnitOfWork) AssertAllExpectations(t mock.TestingT) {
	m.Mock.AssertExpectations(t)
	m.Wagers.AssertExpectations(t)
	m.Rounds.AssertExpectations(t)
	m.Referrals.AssertExpectations(t)
	m.EventResults.AssertExpectations(t)
	m.Events.AssertExpectations(t)
}

// MockUnitOfWorkFactory returns the same MockUnitOfWork for every Create call
type MockUnitOfWorkFactory struct {
	UoW *MockUnitOfWork
}

func (f *MockUnitOfWorkFactory) Create() interfaces.UnitOfWork {
	return f.UoW
}

// PassthroughLocker is a KeyLocker that never blocks
type PassthroughLocker struct{}

func (PassthroughLocker) Lock(ctx context.Context, key string) (func(), error) {
	return func() {}, ctx.Err()
}
