package interfaces

import (
	"context"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/events"
)

// WagerRepository defines the interface for wager data access
type WagerRepository interface {
	// Create inserts a new wager and sets its ID and CreatedAt.
	// Returns a DUPLICATE_FUNDING_TX error if the funding reference is already recorded.
	Create(ctx context.Context, wager *entities.Wager) error

	// GetByID retrieves a wager by its ID
	GetByID(ctx context.Context, id int64) (*entities.Wager, error)

	// GetByFundingTx retrieves a wager by its funding transaction reference
	GetByFundingTx(ctx context.Context, fundingTxID string) (*entities.Wager, error)

	// GetLatestByGameInstance returns the most recent wager placed on a game instance
	GetLatestByGameInstance(ctx context.Context, gameType entities.GameType, instanceID string) (*entities.Wager, error)

	// UpdateStatus writes the wager's status fields if the stored status still equals expected.
	// Returns false if another writer moved the wager first.
	UpdateStatus(ctx context.Context, wager *entities.Wager, expected entities.WagerStatus) (bool, error)

	// ListByStatusCreatedBefore returns wagers in a status created before the cutoff, oldest first
	ListByStatusCreatedBefore(ctx context.Context, status entities.WagerStatus, before time.Time, limit int) ([]*entities.Wager, error)

	// ListFundedByEvent returns every funded wager on an event
	ListFundedByEvent(ctx context.Context, eventID string) ([]*entities.Wager, error)
}

// GameRoundRepository defines the interface for game round data access
type GameRoundRepository interface {
	// Create inserts a new round and sets its ID and timestamps
	Create(ctx context.Context, round *entities.GameRound) error

	// GetByID retrieves a round by its ID
	GetByID(ctx context.Context, id int64) (*entities.GameRound, error)

	// GetLatest returns the most recently created round for a player and game type
	GetLatest(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error)

	// CompareAndSet writes nonce, payload, state and endedAt if the stored round is still open
	// and its nonce does not exceed the new one. Returns false when the guard rejects the write.
	CompareAndSet(ctx context.Context, round *entities.GameRound) (bool, error)

	// ListIdle returns open rounds with no update since idleSince
	ListIdle(ctx context.Context, idleSince time.Time, limit int) ([]*entities.GameRound, error)
}

// ReferralRepository defines the interface for referral accounts, credits and payouts
type ReferralRepository interface {
	// GetByPlayer retrieves a referral account by player
	GetByPlayer(ctx context.Context, playerID string) (*entities.ReferralAccount, error)

	// GetByPlayerForUpdate retrieves a referral account and locks the row for the transaction
	GetByPlayerForUpdate(ctx context.Context, playerID string) (*entities.ReferralAccount, error)

	// GetByCode retrieves the account owning a referral code
	GetByCode(ctx context.Context, code string) (*entities.ReferralAccount, error)

	// Create inserts a new account. Returns false if the player already has one.
	Create(ctx context.Context, account *entities.ReferralAccount) (bool, error)

	// SetReferredBy sets the referrer if none is set yet. Returns false if already set.
	SetReferredBy(ctx context.Context, playerID, referrerID string) (bool, error)

	// IncrementReferralCount bumps the number of players referred by playerID
	IncrementReferralCount(ctx context.Context, playerID string) error

	// RecordCredit inserts the accrual record for a wager. Returns false if the wager was already credited.
	RecordCredit(ctx context.Context, credit *entities.ReferralCredit) (bool, error)

	// GetCreditByWager retrieves the accrual record for a wager
	GetCreditByWager(ctx context.Context, wagerID int64) (*entities.ReferralCredit, error)

	// AddBonus adds amount to the player's bonus balance
	AddBonus(ctx context.Context, playerID string, amount int64) error

	// ZeroBonus clears the bonus balance and stamps the payout time
	ZeroBonus(ctx context.Context, playerID string, at time.Time) error

	// CreatePayout inserts a bonus payout record
	CreatePayout(ctx context.Context, payout *entities.BonusPayout) error

	// UpdatePayout writes the status and transaction reference of a payout
	UpdatePayout(ctx context.Context, payout *entities.BonusPayout) error
}

// EventResultRepository defines the interface for real-world event results
type EventResultRepository interface {
	// Record stores a result. The first recorded result for an event wins and is returned.
	Record(ctx context.Context, result *entities.EventResult) (*entities.EventResult, error)

	// Get retrieves the result for an event
	Get(ctx context.Context, eventID string) (*entities.EventResult, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher buffers events until the owning transaction commits
type TransactionalEventPublisher interface {
	EventPublisher

	// Flush publishes every buffered event
	Flush(ctx context.Context) error

	// Discard drops every buffered event
	Discard()
}
