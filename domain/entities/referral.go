package entities

import "time"

// ReferralAccount tracks who referred a player and the bonus they have accrued
type ReferralAccount struct {
	PlayerID      string     `db:"player_id"`
	ReferralCode  string     `db:"referral_code"`
	ReferredBy    *string    `db:"referred_by"`
	ReferralCount int        `db:"referral_count"`
	BonusBalance  int64      `db:"bonus_balance"`
	LastPayoutAt  *time.Time `db:"last_payout_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// HasReferrer checks if the account has claimed a referral code
func (a *ReferralAccount) HasReferrer() bool {
	return a.ReferredBy != nil && *a.ReferredBy != ""
}

// ReferralCredit is the accrual record that makes bonus crediting exactly-once per wager
type ReferralCredit struct {
	ID         int64     `db:"id"`
	WagerID    int64     `db:"wager_id"`
	ReferrerID string    `db:"referrer_id"`
	RefereeID  string    `db:"referee_id"`
	Amount     int64     `db:"amount"`
	CreatedAt  time.Time `db:"created_at"`
}

// BonusPayoutStatus represents the progress of a bonus withdrawal
type BonusPayoutStatus string

const (
	BonusPayoutStatusRequested BonusPayoutStatus = "requested"
	BonusPayoutStatusSent      BonusPayoutStatus = "sent"
	BonusPayoutStatusFailed    BonusPayoutStatus = "failed"
)

// BonusPayout records a withdrawal of accrued referral bonus to an external destination.
// A failed payout is left for manual recovery; the balance is not re-credited.
type BonusPayout struct {
	ID          int64             `db:"id"`
	PlayerID    string            `db:"player_id"`
	Amount      int64             `db:"amount"`
	Destination string            `db:"destination"`
	TxReference *string           `db:"tx_reference"`
	Status      BonusPayoutStatus `db:"status"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
}
