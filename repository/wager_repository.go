package repository

import (
	"context"
	"fmt"
	"time"

	"gambler/settlement/database"
	"gambler/settlement/domain/entities"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WagerRepository implements wager data access
type WagerRepository struct {
	q Queryable
}

// NewWagerRepository creates a new wager repository
func NewWagerRepository(db *database.DB) *WagerRepository {
	return &WagerRepository{q: db.Pool}
}

// newWagerRepositoryWithTx creates a new wager repository with a transaction
func newWagerRepositoryWithTx(tx Queryable) *WagerRepository {
	return &WagerRepository{q: tx}
}

// implied_odds is read as text so the decimal keeps its exact scale
const wagerColumns = `
	id, player_id, game_type, game_instance_id, event_id, stake_amount,
	chosen_outcome, implied_odds::text, funding_tx_id, status, payout_amount,
	outcome, failure_reason, created_at, funded_at, resolved_at`

// Create creates a new wager
func (r *WagerRepository) Create(ctx context.Context, wager *entities.Wager) error {
	query := `
		INSERT INTO wagers (
			player_id, game_type, game_instance_id, event_id, stake_amount,
			chosen_outcome, implied_odds, funding_tx_id, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		wager.PlayerID,
		wager.GameType,
		wager.GameInstanceID,
		wager.EventID,
		wager.StakeAmount,
		wager.ChosenOutcome,
		wager.ImpliedOdds.StringFixed(2),
		wager.FundingTxID,
		wager.Status,
	).Scan(&wager.ID, &wager.CreatedAt)
	if err != nil {
		return classify(err, "failed to create wager")
	}

	return nil
}

// GetByID retrieves a wager by its ID
func (r *WagerRepository) GetByID(ctx context.Context, id int64) (*entities.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE id = $1`

	wager, err := scanWager(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get wager")
	}

	return wager, nil
}

// GetByFundingTx retrieves a wager by its funding transaction reference
func (r *WagerRepository) GetByFundingTx(ctx context.Context, fundingTxID string) (*entities.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE funding_tx_id = $1`

	wager, err := scanWager(r.q.QueryRow(ctx, query, fundingTxID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get wager by funding tx")
	}

	return wager, nil
}

// GetLatestByGameInstance returns the most recent wager placed on a game instance
func (r *WagerRepository) GetLatestByGameInstance(ctx context.Context, gameType entities.GameType, instanceID string) (*entities.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE game_type = $1 AND game_instance_id = $2
		ORDER BY id DESC
		LIMIT 1
	`

	wager, err := scanWager(r.q.QueryRow(ctx, query, gameType, instanceID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get latest wager for game instance")
	}

	return wager, nil
}

// UpdateStatus writes the status fields guarded by the expected current status
func (r *WagerRepository) UpdateStatus(ctx context.Context, wager *entities.Wager, expected entities.WagerStatus) (bool, error) {
	query := `
		UPDATE wagers
		SET status = $2,
			payout_amount = $3,
			outcome = $4,
			failure_reason = $5,
			implied_odds = $6::numeric,
			funded_at = $7,
			resolved_at = $8
		WHERE id = $1 AND status = $9
	`

	tag, err := r.q.Exec(ctx, query,
		wager.ID,
		wager.Status,
		wager.PayoutAmount,
		wager.Outcome,
		wager.FailureReason,
		wager.ImpliedOdds.StringFixed(2),
		wager.FundedAt,
		wager.ResolvedAt,
		expected,
	)
	if err != nil {
		return false, classify(err, "failed to update wager status")
	}

	return tag.RowsAffected() == 1, nil
}

// ListByStatusCreatedBefore returns wagers in a status created before the cutoff, oldest first
func (r *WagerRepository) ListByStatusCreatedBefore(ctx context.Context, status entities.WagerStatus, before time.Time, limit int) ([]*entities.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, status, before, limit)
	if err != nil {
		return nil, classify(err, "failed to list wagers by status")
	}
	defer rows.Close()

	return collectWagers(rows)
}

// ListFundedByEvent returns every funded wager on an event
func (r *WagerRepository) ListFundedByEvent(ctx context.Context, eventID string) ([]*entities.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE event_id = $1 AND status = 'funded'
		ORDER BY id ASC
	`

	rows, err := r.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, classify(err, "failed to list funded wagers for event")
	}
	defer rows.Close()

	return collectWagers(rows)
}

func collectWagers(rows pgx.Rows) ([]*entities.Wager, error) {
	var wagers []*entities.Wager
	for rows.Next() {
		wager, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, wager)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err, "error iterating wagers")
	}

	return wagers, nil
}

func scanWager(row pgx.Row) (*entities.Wager, error) {
	var wager entities.Wager
	var odds string

	err := row.Scan(
		&wager.ID,
		&wager.PlayerID,
		&wager.GameType,
		&wager.GameInstanceID,
		&wager.EventID,
		&wager.StakeAmount,
		&wager.ChosenOutcome,
		&odds,
		&wager.FundingTxID,
		&wager.Status,
		&wager.PayoutAmount,
		&wager.Outcome,
		&wager.FailureReason,
		&wager.CreatedAt,
		&wager.FundedAt,
		&wager.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	wager.ImpliedOdds, err = decimal.NewFromString(odds)
	if err != nil {
		return nil, fmt.Errorf("failed to parse implied odds %q: %w", odds, err)
	}

	return &wager, nil
}
