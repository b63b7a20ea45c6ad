package interfaces

import (
	"context"
	"time"

	"gambler/settlement/domain/entities"
)

// KeyLocker provides mutual exclusion per key. Different keys never block each other.
type KeyLocker interface {
	// Lock blocks until the key is held or ctx is done. The returned func releases the key.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// OddsFeed fetches raw bookmaker quotes for an event
type OddsFeed interface {
	FetchQuotes(ctx context.Context, eventID string) ([]entities.RawQuote, error)
}

// OddsCache caches normalized quotes for a short time
type OddsCache interface {
	// Get returns the cached quotes and whether the entry existed
	Get(ctx context.Context, eventID string) ([]entities.OddsQuote, bool, error)

	// Set stores quotes for ttl
	Set(ctx context.Context, eventID string, quotes []entities.OddsQuote, ttl time.Duration) error
}

// WalletCollaborator is the capability set the engine needs from the wallet and chain
type WalletCollaborator interface {
	// GetAccounts returns the accounts already authorized
	GetAccounts(ctx context.Context) ([]string, error)

	// RequestAccounts asks the wallet to authorize accounts
	RequestAccounts(ctx context.Context) ([]string, error)

	// SendFunds transfers amount minor units to destination and returns the transaction reference
	SendFunds(ctx context.Context, destination string, amount int64) (string, error)

	// GetBalance returns the balance of an account in minor units
	GetBalance(ctx context.Context, account string) (int64, error)

	// ConfirmTransaction reports the chain status of a transaction
	ConfirmTransaction(ctx context.Context, txReference string) (entities.TxStatus, error)

	// SubscribeToEvents streams wallet notifications until ctx is done
	SubscribeToEvents(ctx context.Context) (<-chan entities.WalletEvent, error)
}
