package repository

import (
	"context"
	"fmt"
	"time"

	"gambler/settlement/database"
	"gambler/settlement/domain/entities"

	"github.com/jackc/pgx/v5"
)

// GameRoundRepository implements game round data access
type GameRoundRepository struct {
	q Queryable
}

// NewGameRoundRepository creates a new game round repository
func NewGameRoundRepository(db *database.DB) *GameRoundRepository {
	return &GameRoundRepository{q: db.Pool}
}

// newGameRoundRepositoryWithTx creates a new game round repository with a transaction
func newGameRoundRepositoryWithTx(tx Queryable) *GameRoundRepository {
	return &GameRoundRepository{q: tx}
}

const gameRoundColumns = `
	id, player_id, game_type, nonce, state, payload, created_at, updated_at, ended_at`

// Create creates a new round
func (r *GameRoundRepository) Create(ctx context.Context, round *entities.GameRound) error {
	if round.Payload == nil {
		round.Payload = entities.RoundPayload{}
	}

	query := `
		INSERT INTO game_rounds (player_id, game_type, nonce, state, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		round.PlayerID,
		round.GameType,
		round.Nonce,
		round.State,
		round.Payload,
	).Scan(&round.ID, &round.CreatedAt, &round.UpdatedAt)
	if err != nil {
		return classify(err, "failed to create game round")
	}

	return nil
}

// GetByID retrieves a round by its ID
func (r *GameRoundRepository) GetByID(ctx context.Context, id int64) (*entities.GameRound, error) {
	query := `SELECT ` + gameRoundColumns + ` FROM game_rounds WHERE id = $1`

	round, err := scanGameRound(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get game round")
	}

	return round, nil
}

// GetLatest returns the most recently created round for a player and game type
func (r *GameRoundRepository) GetLatest(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error) {
	query := `
		SELECT ` + gameRoundColumns + `
		FROM game_rounds
		WHERE player_id = $1 AND game_type = $2
		ORDER BY id DESC
		LIMIT 1
	`

	round, err := scanGameRound(r.q.QueryRow(ctx, query, playerID, gameType))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get latest game round")
	}

	return round, nil
}

// CompareAndSet writes the round if it is still open and the stored nonce does not exceed the new one
func (r *GameRoundRepository) CompareAndSet(ctx context.Context, round *entities.GameRound) (bool, error) {
	query := `
		UPDATE game_rounds
		SET nonce = $2,
			payload = $3,
			state = $4,
			ended_at = $5,
			updated_at = NOW()
		WHERE id = $1 AND nonce <= $2 AND ended_at IS NULL
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		round.ID,
		round.Nonce,
		round.Payload,
		round.State,
		round.EndedAt,
	).Scan(&round.UpdatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, classify(err, "failed to update game round")
	}

	return true, nil
}

// ListIdle returns open rounds with no update since idleSince, oldest first
func (r *GameRoundRepository) ListIdle(ctx context.Context, idleSince time.Time, limit int) ([]*entities.GameRound, error) {
	query := `
		SELECT ` + gameRoundColumns + `
		FROM game_rounds
		WHERE ended_at IS NULL AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, idleSince, limit)
	if err != nil {
		return nil, classify(err, "failed to list idle game rounds")
	}
	defer rows.Close()

	var rounds []*entities.GameRound
	for rows.Next() {
		round, err := scanGameRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game round: %w", err)
		}
		rounds = append(rounds, round)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err, "error iterating game rounds")
	}

	return rounds, nil
}

func scanGameRound(row pgx.Row) (*entities.GameRound, error) {
	var round entities.GameRound
	err := row.Scan(
		&round.ID,
		&round.PlayerID,
		&round.GameType,
		&round.Nonce,
		&round.State,
		&round.Payload,
		&round.CreatedAt,
		&round.UpdatedAt,
		&round.EndedAt,
	)
	if err != nil {
		return nil, err
	}

	if round.Payload == nil {
		round.Payload = entities.RoundPayload{}
	}

	return &round, nil
}
