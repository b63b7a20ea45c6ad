package repository

import (
	"context"
	"fmt"
	"time"

	"gambler/settlement/database"
	"gambler/settlement/domain/entities"

	"github.com/jackc/pgx/v5"
)

// ReferralRepository implements referral account, credit and payout data access
type ReferralRepository struct {
	q Queryable
}

// NewReferralRepository creates a new referral repository
func NewReferralRepository(db *database.DB) *ReferralRepository {
	return &ReferralRepository{q: db.Pool}
}

// newReferralRepositoryWithTx creates a new referral repository with a transaction
func newReferralRepositoryWithTx(tx Queryable) *ReferralRepository {
	return &ReferralRepository{q: tx}
}

const referralAccountColumns = `
	player_id, referral_code, referred_by, referral_count, bonus_balance,
	last_payout_at, created_at, updated_at`

// GetByPlayer retrieves a referral account by player
func (r *ReferralRepository) GetByPlayer(ctx context.Context, playerID string) (*entities.ReferralAccount, error) {
	query := `SELECT ` + referralAccountColumns + ` FROM referral_accounts WHERE player_id = $1`
	return r.getAccount(ctx, query, playerID)
}

// GetByPlayerForUpdate retrieves a referral account and locks the row
func (r *ReferralRepository) GetByPlayerForUpdate(ctx context.Context, playerID string) (*entities.ReferralAccount, error) {
	query := `SELECT ` + referralAccountColumns + ` FROM referral_accounts WHERE player_id = $1 FOR UPDATE`
	return r.getAccount(ctx, query, playerID)
}

// GetByCode retrieves the account owning a referral code
func (r *ReferralRepository) GetByCode(ctx context.Context, code string) (*entities.ReferralAccount, error) {
	query := `SELECT ` + referralAccountColumns + ` FROM referral_accounts WHERE referral_code = $1`
	return r.getAccount(ctx, query, code)
}

func (r *ReferralRepository) getAccount(ctx context.Context, query string, arg any) (*entities.ReferralAccount, error) {
	var account entities.ReferralAccount
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&account.PlayerID,
		&account.ReferralCode,
		&account.ReferredBy,
		&account.ReferralCount,
		&account.BonusBalance,
		&account.LastPayoutAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get referral account")
	}

	return &account, nil
}

// Create inserts a new account. Returns false if the player already has one.
func (r *ReferralRepository) Create(ctx context.Context, account *entities.ReferralAccount) (bool, error) {
	query := `
		INSERT INTO referral_accounts (player_id, referral_code, referred_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id) DO NOTHING
		RETURNING referral_count, bonus_balance, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		account.PlayerID,
		account.ReferralCode,
		account.ReferredBy,
	).Scan(&account.ReferralCount, &account.BonusBalance, &account.CreatedAt, &account.UpdatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, classify(err, "failed to create referral account")
	}

	return true, nil
}

// SetReferredBy sets the referrer if none is set yet
func (r *ReferralRepository) SetReferredBy(ctx context.Context, playerID, referrerID string) (bool, error) {
	query := `
		UPDATE referral_accounts
		SET referred_by = $2, updated_at = NOW()
		WHERE player_id = $1 AND referred_by IS NULL
	`

	tag, err := r.q.Exec(ctx, query, playerID, referrerID)
	if err != nil {
		return false, classify(err, "failed to set referrer")
	}

	return tag.RowsAffected() == 1, nil
}

// IncrementReferralCount bumps the number of players referred by playerID
func (r *ReferralRepository) IncrementReferralCount(ctx context.Context, playerID string) error {
	query := `
		UPDATE referral_accounts
		SET referral_count = referral_count + 1, updated_at = NOW()
		WHERE player_id = $1
	`

	tag, err := r.q.Exec(ctx, query, playerID)
	if err != nil {
		return classify(err, "failed to increment referral count")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("referral account %s not found", playerID)
	}

	return nil
}

// RecordCredit inserts the accrual record for a wager. Returns false if the wager was already credited.
func (r *ReferralRepository) RecordCredit(ctx context.Context, credit *entities.ReferralCredit) (bool, error) {
	query := `
		INSERT INTO referral_credits (wager_id, referrer_id, referee_id, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wager_id) DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		credit.WagerID,
		credit.ReferrerID,
		credit.RefereeID,
		credit.Amount,
	).Scan(&credit.ID, &credit.CreatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, classify(err, "failed to record referral credit")
	}

	return true, nil
}

// GetCreditByWager retrieves the accrual record for a wager
func (r *ReferralRepository) GetCreditByWager(ctx context.Context, wagerID int64) (*entities.ReferralCredit, error) {
	query := `
		SELECT id, wager_id, referrer_id, referee_id, amount, created_at
		FROM referral_credits
		WHERE wager_id = $1
	`

	var credit entities.ReferralCredit
	err := r.q.QueryRow(ctx, query, wagerID).Scan(
		&credit.ID,
		&credit.WagerID,
		&credit.ReferrerID,
		&credit.RefereeID,
		&credit.Amount,
		&credit.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get referral credit")
	}

	return &credit, nil
}

// AddBonus adds amount to the player's bonus balance
func (r *ReferralRepository) AddBonus(ctx context.Context, playerID string, amount int64) error {
	query := `
		UPDATE referral_accounts
		SET bonus_balance = bonus_balance + $2, updated_at = NOW()
		WHERE player_id = $1
	`

	tag, err := r.q.Exec(ctx, query, playerID, amount)
	if err != nil {
		return classify(err, "failed to add referral bonus")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("referral account %s not found", playerID)
	}

	return nil
}

// ZeroBonus clears the bonus balance and stamps the payout time
func (r *ReferralRepository) ZeroBonus(ctx context.Context, playerID string, at time.Time) error {
	query := `
		UPDATE referral_accounts
		SET bonus_balance = 0, last_payout_at = $2, updated_at = NOW()
		WHERE player_id = $1
	`

	if _, err := r.q.Exec(ctx, query, playerID, at); err != nil {
		return classify(err, "failed to zero referral bonus")
	}

	return nil
}

// CreatePayout inserts a bonus payout record
func (r *ReferralRepository) CreatePayout(ctx context.Context, payout *entities.BonusPayout) error {
	query := `
		INSERT INTO bonus_payouts (player_id, amount, destination, tx_reference, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		payout.PlayerID,
		payout.Amount,
		payout.Destination,
		payout.TxReference,
		payout.Status,
	).Scan(&payout.ID, &payout.CreatedAt, &payout.UpdatedAt)
	if err != nil {
		return classify(err, "failed to create bonus payout")
	}

	return nil
}

// UpdatePayout writes the status and transaction reference of a payout
func (r *ReferralRepository) UpdatePayout(ctx context.Context, payout *entities.BonusPayout) error {
	query := `
		UPDATE bonus_payouts
		SET status = $2, tx_reference = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query, payout.ID, payout.Status, payout.TxReference).Scan(&payout.UpdatedAt)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("bonus payout %d not found", payout.ID)
	}
	if err != nil {
		return classify(err, "failed to update bonus payout")
	}

	return nil
}
