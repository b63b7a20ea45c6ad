package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawQuote is a single bookmaker price for an outcome as delivered by the odds feed
type RawQuote struct {
	Source      string          `json:"source"`
	OutcomeName string          `json:"outcomeName"`
	Price       decimal.Decimal `json:"price"`
	Timestamp   time.Time       `json:"timestamp"`
}

// OddsQuote is the normalized, house-adjusted price for one outcome of an event
type OddsQuote struct {
	EventID         string          `json:"eventId"`
	OutcomeName     string          `json:"outcomeName"`
	RawPrice        decimal.Decimal `json:"rawPrice"`
	AdjustedPrice   decimal.Decimal `json:"adjustedPrice"`
	SourceTimestamp time.Time       `json:"sourceTimestamp"`
	Sources         int             `json:"sources"`
}

// EventResult is the real-world result used to settle event wagers
type EventResult struct {
	EventID        string    `db:"event_id"`
	WinningOutcome string    `db:"winning_outcome"`
	SettledAt      time.Time `db:"settled_at"`
}
