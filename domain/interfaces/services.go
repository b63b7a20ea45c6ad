package interfaces

import (
	"context"
	"time"

	"gambler/settlement/domain/entities"
)

// PlaceWagerRequest carries everything needed to record a new wager
type PlaceWagerRequest struct {
	PlayerID      string
	GameType      entities.GameType
	EventID       string
	ChosenOutcome string
	StakeAmount   int64
	FundingTxID   string
}

// RoundOutcome is the result of a round operation. Wager is set when the
// operation settled the wager linked to the round.
type RoundOutcome struct {
	Round *entities.GameRound
	Wager *entities.Wager
}

// ResolutionFunc decides the result of a funded wager.
// It runs while the wager is locked and must not perform I/O.
type ResolutionFunc func(wager *entities.Wager) (entities.Resolution, error)

// RoundMutation computes the next payload of an open round and whether the round ends.
// It runs while the round is locked and must not perform I/O.
type RoundMutation func(round *entities.GameRound) (payload entities.RoundPayload, end bool, err error)

// QuoteService defines the interface for retrieving normalized odds
type QuoteService interface {
	// CurrentQuotes returns the house-adjusted quotes of every available outcome of an event
	CurrentQuotes(ctx context.Context, eventID string) ([]entities.OddsQuote, error)

	// Quote returns the house-adjusted quote for one outcome.
	// Returns an OUTCOME_UNAVAILABLE error if the outcome has no valid quotes.
	Quote(ctx context.Context, eventID, outcome string) (entities.OddsQuote, error)
}

// WagerLedger is the source of truth for wagers and game rounds
type WagerLedger interface {
	CreateWager(ctx context.Context, wager *entities.Wager) (*entities.Wager, error)
	GetWager(ctx context.Context, wagerID int64) (*entities.Wager, error)
	GetWagerByFundingTx(ctx context.Context, fundingTxID string) (*entities.Wager, error)
	GetWagerForRound(ctx context.Context, round *entities.GameRound) (*entities.Wager, error)
	MarkFunded(ctx context.Context, wagerID int64) (*entities.Wager, error)
	MarkFailed(ctx context.Context, wagerID int64, reason string, from ...entities.WagerStatus) (*entities.Wager, error)
	ResolveWager(ctx context.Context, wagerID int64, payout int64, outcome string) (*entities.Wager, error)
	ResolveWagerWith(ctx context.Context, wagerID int64, decide ResolutionFunc) (*entities.Wager, error)
	ListPendingWagers(ctx context.Context, createdBefore time.Time, limit int) ([]*entities.Wager, error)
	ListFundedWagersForEvent(ctx context.Context, eventID string) ([]*entities.Wager, error)

	CreateOrGetRound(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error)
	GetRound(ctx context.Context, roundID int64) (*entities.GameRound, error)
	GetLatestRound(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error)
	ApplyRoundUpdate(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, payload entities.RoundPayload) (*entities.GameRound, error)
	MutateRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, mutate RoundMutation) (*entities.GameRound, error)
	EndRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, payload entities.RoundPayload) (*entities.GameRound, error)
	ListIdleRounds(ctx context.Context, idleSince time.Time, limit int) ([]*entities.GameRound, error)

	RecordEventResult(ctx context.Context, eventID, winningOutcome string) (*entities.EventResult, error)
	GetEventResult(ctx context.Context, eventID string) (*entities.EventResult, error)
}

// ReferralService defines the interface for referral links and bonus accrual
type ReferralService interface {
	// GetOrCreateAccount returns the player's account, creating it with a fresh code if needed
	GetOrCreateAccount(ctx context.Context, playerID string) (*entities.ReferralAccount, error)

	// Claim links the player to the owner of code
	Claim(ctx context.Context, playerID, code string) (*entities.ReferralAccount, error)

	// Credit accrues the referral bonus for a resolved wager exactly once.
	// Returns nil if the referee has no referrer.
	Credit(ctx context.Context, wagerID int64, refereeID string, stake int64) (*entities.ReferralCredit, error)

	// Withdraw pays the accrued bonus out to destination
	Withdraw(ctx context.Context, playerID, destination string) (*entities.BonusPayout, error)
}

// SettlementCoordinator orchestrates the wager lifecycle
type SettlementCoordinator interface {
	PlaceWager(ctx context.Context, req PlaceWagerRequest) (*entities.Wager, error)
	ConfirmFunding(ctx context.Context, wagerID int64) (*entities.Wager, error)
	ConfirmFundingByTx(ctx context.Context, fundingTxID string) (*entities.Wager, error)
	ConfirmPendingWagers(ctx context.Context) (int, error)
	ResolveWager(ctx context.Context, wagerID int64) (*entities.Wager, error)
	SettleEvent(ctx context.Context, eventID, winningOutcome string) ([]*entities.Wager, error)
	ExpireStaleFunding(ctx context.Context, timeout time.Duration) (int, error)
	AwaitSettlement(ctx context.Context, wagerID int64) (*entities.Wager, error)
	GetWager(ctx context.Context, wagerID int64) (*entities.Wager, error)

	StartRound(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error)
	UpdateRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, step entities.RoundPayload) (*RoundOutcome, error)
	EndRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, payload entities.RoundPayload) (*RoundOutcome, error)
	VoidIdleRounds(ctx context.Context, idleFor time.Duration) (int, error)
}
