package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// WagerStatus represents where a wager is in its settlement lifecycle
type WagerStatus string

const (
	WagerStatusPending  WagerStatus = "pending"
	WagerStatusFunded   WagerStatus = "funded"
	WagerStatusResolved WagerStatus = "resolved"
	WagerStatusFailed   WagerStatus = "failed"
)

// Failure reasons recorded on failed wagers
const (
	FailureReasonFundingRejected = "funding_rejected"
	FailureReasonFundingTimeout  = "funding_timeout"
)

// Wager is a player's stake on a chosen outcome, backed by an on-chain funding transaction.
// Amounts are minor units (1/100 of the display unit).
type Wager struct {
	ID             int64           `db:"id"`
	PlayerID       string          `db:"player_id"`
	GameType       GameType        `db:"game_type"`
	GameInstanceID string          `db:"game_instance_id"`
	EventID        *string         `db:"event_id"`
	StakeAmount    int64           `db:"stake_amount"`
	ChosenOutcome  string          `db:"chosen_outcome"`
	ImpliedOdds    decimal.Decimal `db:"implied_odds"`
	FundingTxID    string          `db:"funding_tx_id"`
	Status         WagerStatus     `db:"status"`
	PayoutAmount   *int64          `db:"payout_amount"`
	Outcome        *string         `db:"outcome"`
	FailureReason  *string         `db:"failure_reason"`
	CreatedAt      time.Time       `db:"created_at"`
	FundedAt       *time.Time      `db:"funded_at"`
	ResolvedAt     *time.Time      `db:"resolved_at"`
}

// IsPending checks if the wager is still waiting for funding confirmation
func (w *Wager) IsPending() bool {
	return w.Status == WagerStatusPending
}

// IsFunded checks if the funding transaction has been confirmed
func (w *Wager) IsFunded() bool {
	return w.Status == WagerStatusFunded
}

// IsResolved checks if the wager has a payout
func (w *Wager) IsResolved() bool {
	return w.Status == WagerStatusResolved
}

// IsTerminal checks if the wager can no longer change
func (w *Wager) IsTerminal() bool {
	return w.Status == WagerStatusResolved || w.Status == WagerStatusFailed
}

// IsWin checks if the resolved wager paid out anything
func (w *Wager) IsWin() bool {
	return w.PayoutAmount != nil && *w.PayoutAmount > 0
}

// MarkFunded moves a pending wager to funded. Returns false if the transition is not allowed.
func (w *Wager) MarkFunded(at time.Time) bool {
	if w.Status != WagerStatusPending {
		return false
	}
	w.Status = WagerStatusFunded
	w.FundedAt = &at
	return true
}

// MarkFailed moves a pending or funded wager to failed
func (w *Wager) MarkFailed(reason string) bool {
	if w.IsTerminal() {
		return false
	}
	w.Status = WagerStatusFailed
	w.FailureReason = &reason
	return true
}

// Resolution is the decided result of a funded wager.
// Odds, when non-zero, replaces the implied odds (mines cash-out multiplier).
type Resolution struct {
	Payout  int64
	Outcome string
	Odds    decimal.Decimal
}

// Resolve records the payout on a funded wager
func (w *Wager) Resolve(res Resolution, at time.Time) bool {
	if w.Status != WagerStatusFunded || res.Payout < 0 {
		return false
	}
	if !res.Odds.IsZero() {
		w.ImpliedOdds = res.Odds
	}
	payout := res.Payout
	outcome := res.Outcome
	w.Status = WagerStatusResolved
	w.PayoutAmount = &payout
	w.Outcome = &outcome
	w.ResolvedAt = &at
	return true
}

// PotentialPayout returns stake * multiplier floored to the minor unit
func (w *Wager) PotentialPayout(multiplier decimal.Decimal) int64 {
	return CalculatePayout(w.StakeAmount, multiplier)
}

// CalculatePayout returns stake * multiplier floored to the minor unit
func CalculatePayout(stake int64, multiplier decimal.Decimal) int64 {
	return decimal.NewFromInt(stake).Mul(multiplier).Floor().IntPart()
}
