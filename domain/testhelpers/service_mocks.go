package testhelpers

import (
	"context"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/interfaces"

	"github.com/stretchr/testify/mock"
)

// MockWagerLedger is a mock implementation of WagerLedger
type MockWagerLedger struct {
	mock.Mock
}

func (m *MockWagerLedger) wager(args mock.Arguments) (*entities.Wager, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wager), args.Error(1)
}

func (m *MockWagerLedger) round(args mock.Arguments) (*entities.GameRound, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GameRound), args.Error(1)
}

func (m *MockWagerLedger) CreateWager(ctx context.Context, wager *entities.Wager) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, wager))
}

func (m *MockWagerLedger) GetWager(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, wagerID))
}

func (m *MockWagerLedger) GetWagerByFundingTx(ctx context.Context, fundingTxID string) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, fundingTxID))
}

func (m *MockWagerLedger) GetWagerForRound(ctx context.Context, round *entities.GameRound) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, round))
}

func (m *MockWagerLedger) MarkFunded(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, wagerID))
}

func (m *MockWagerLedger) MarkFailed(ctx context.Context, wagerID int64, reason string, from ...entities.WagerStatus) (*entities.Wager, error) {
	args := []any{ctx, wagerID, reason}
	for _, status := range from {
		args = append(args, status)
	}
	return m.wager(m.Called(args...))
}

func (m *MockWagerLedger) ResolveWager(ctx context.Context, wagerID int64, payout int64, outcome string) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, wagerID, payout, outcome))
}

func (m *MockWagerLedger) ResolveWagerWith(ctx context.Context, wagerID int64, decide interfaces.ResolutionFunc) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, wagerID, decide))
}

func (m *MockWagerLedger) ListPendingWagers(ctx context.Context, createdBefore time.Time, limit int) ([]*entities.Wager, error) {
	args := m.Called(ctx, createdBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Wager), args.Error(1)
}

func (m *MockWagerLedger) ListFundedWagersForEvent(ctx context.Context, eventID string) ([]*entities.Wager, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Wager), args.Error(1)
}

func (m *MockWagerLedger) CreateOrGetRound(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error) {
	return m.round(m.Called(ctx, playerID, gameType))
}

func (m *MockWagerLedger) GetRound(ctx context.Context, roundID int64) (*entities.GameRound, error) {
	return m.round(m.Called(ctx, roundID))
}

func (m *MockWagerLedger) GetLatestRound(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error) {
	return m.round(m.Called(ctx, playerID, gameType))
}

func (m *MockWagerLedger) ApplyRoundUpdate(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, payload entities.RoundPayload) (*entities.GameRound, error) {
	return m.round(m.Called(ctx, playerID, gameType, nonce, payload))
}

func (m *MockWagerLedger) MutateRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, mutate interfaces.RoundMutation) (*entities.GameRound, error) {
	return m.round(m.Called(ctx, playerID, gameType, nonce, mutate))
}

func (m *MockWagerLedger) EndRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, payload entities.RoundPayload) (*entities.GameRound, error) {
	return m.round(m.Called(ctx, playerID, gameType, nonce, payload))
}

func (m *MockWagerLedger) ListIdleRounds(ctx context.Context, idleSince time.Time, limit int) ([]*entities.GameRound, error) {
	args := m.Called(ctx, idleSince, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.GameRound), args.Error(1)
}

func (m *MockWagerLedger) RecordEventResult(ctx context.Context, eventID, winningOutcome string) (*entities.EventResult, error) {
	args := m.Called(ctx, eventID, winningOutcome)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.EventResult), args.Error(1)
}

func (m *MockWagerLedger) GetEventResult(ctx context.Context, eventID string) (*entities.EventResult, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.EventResult), args.Error(1)
}

// MockReferralService is a mock implementation of ReferralService
type MockReferralService struct {
	mock.Mock
}

func (m *MockReferralService) GetOrCreateAccount(ctx context.Context, playerID string) (*entities.ReferralAccount, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReferralAccount), args.Error(1)
}

func (m *MockReferralService) Claim(ctx context.Context, playerID, code string) (*entities.ReferralAccount, error) {
	args := m.Called(ctx, playerID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReferralAccount), args.Error(1)
}

func (m *MockReferralService) Credit(ctx context.Context, wagerID int64, refereeID string, stake int64) (*entities.ReferralCredit, error) {
	args := m.Called(ctx, wagerID, refereeID, stake)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReferralCredit), args.Error(1)
}

func (m *MockReferralService) Withdraw(ctx context.Context, playerID, destination string) (*entities.BonusPayout, error) {
	args := m.Called(ctx, playerID, destination)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BonusPayout), args.Error(1)
}

// MockQuoteService is a mock implementation of QuoteService
type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) CurrentQuotes(ctx context.Context, eventID string) ([]entities.OddsQuote, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.OddsQuote), args.Error(1)
}

func (m *MockQuoteService) Quote(ctx context.Context, eventID, outcome string) (entities.OddsQuote, error) {
	args := m.Called(ctx, eventID, outcome)
	return args.Get(0).(entities.OddsQuote), args.Error(1)
}

// MockSettlementCoordinator is a mock implementation of SettlementCoordinator
type MockSettlementCoordinator struct {
	mock.Mock
}

func (m *MockSettlementCoordinator) wager(args mock.Arguments) (*entities.Wager, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wager), args.Error(1)
}

func (m *MockSettlementCoordinator) outcome(args mock.Arguments) (*interfaces.RoundOutcome, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.RoundOutcome), args.Error(1)
}

func (m *MockSettlementCoordinator) PlaceWager(ctx context.Context, req interfaces.PlaceWagerRequest) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, req))
}

func (m *MockSettlementCoordinator) ConfirmFunding(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, wagerID))
}

func (m *MockSettlementCoordinator) ConfirmFundingByTx(ctx context.Context, fundingTxID string) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, fundingTxID))
}

func (m *MockSettlementCoordinator) ConfirmPendingWagers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSettlementCoordinator) ResolveWager(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, wagerID))
}

func (m *MockSettlementCoordinator) SettleEvent(ctx context.Context, eventID, winningOutcome string) ([]*entities.Wager, error) {
	args := m.Called(ctx, eventID, winningOutcome)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Wager), args.Error(1)
}

func (m *MockSettlementCoordinator) ExpireStaleFunding(ctx context.Context, timeout time.Duration) (int, error) {
	args := m.Called(ctx, timeout)
	return args.Int(0), args.Error(1)
}

func (m *MockSettlementCoordinator) AwaitSettlement(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, wagerID))
}

func (m *MockSettlementCoordinator) GetWager(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	return m.wager(m.Called(ctx, wagerID))
}

func (m *MockSettlementCoordinator) StartRound(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error) {
	args := m.Called(ctx, playerID, gameType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GameRound), args.Error(1)
}

func (m *MockSettlementCoordinator) UpdateRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, step entities.RoundPayload) (*interfaces.RoundOutcome, error) {
	return m.outcome(m.Called(ctx, playerID, gameType, nonce, step))
}

func (m *MockSettlementCoordinator) EndRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, payload entities.RoundPayload) (*interfaces.RoundOutcome, error) {
	return m.outcome(m.Called(ctx, playerID, gameType, nonce, payload))
}

func (m *MockSettlementCoordinator) VoidIdleRounds(ctx context.Context, idleFor time.Duration) (int, error) {
	args := m.Called(ctx, idleFor)
	return args.Int(0), args.Error(1)
}

// MockWalletCollaborator is a mock implementation of WalletCollaborator
type MockWalletCollaborator struct {
	mock.Mock
}

func (m *MockWalletCollaborator) GetAccounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockWalletCollaborator) RequestAccounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockWalletCollaborator) SendFunds(ctx context.Context, destination string, amount int64) (string, error) {
	args := m.Called(ctx, destination, amount)
	return args.String(0), args.Error(1)
}

func (m *MockWalletCollaborator) GetBalance(ctx context.Context, account string) (int64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletCollaborator) ConfirmTransaction(ctx context.Context, txReference string) (entities.TxStatus, error) {
	args := m.Called(ctx, txReference)
	return args.Get(0).(entities.TxStatus), args.Error(1)
}

func (m *MockWalletCollaborator) SubscribeToEvents(ctx context.Context) (<-chan entities.WalletEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan entities.WalletEvent), args.Error(1)
}

// MockOddsFeed is a mock implementation of OddsFeed
type MockOddsFeed struct {
	mock.Mock
}

func (m *MockOddsFeed) FetchQuotes(ctx context.Context, eventID string) ([]entities.RawQuote, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.RawQuote), args.Error(1)
}

// MockOddsCache is a mock implementation of OddsCache
type MockOddsCache struct {
	mock.Mock
}

func (m *MockOddsCache) Get(ctx context.Context, eventID string) ([]entities.OddsQuote, bool, error) {
	args := m.Called(ctx, eventID)
	quotes, _ := args.Get(0).([]entities.OddsQuote)
	return quotes, args.Bool(1), args.Error(2)
}

func (m *MockOddsCache) Set(ctx context.Context, eventID string, quotes []entities.OddsQuote, ttl time.Duration) error {
	args := m.Called(ctx, eventID, quotes, ttl)
	return args.Error(0)
}
