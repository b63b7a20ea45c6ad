package repository

import (
	"context"

	"gambler/settlement/database"
	"gambler/settlement/domain/entities"

	"github.com/jackc/pgx/v5"
)

// EventResultRepository implements event result data access
type EventResultRepository struct {
	q Queryable
}

// NewEventResultRepository creates a new event result repository
func NewEventResultRepository(db *database.DB) *EventResultRepository {
	return &EventResultRepository{q: db.Pool}
}

// newEventResultRepositoryWithTx creates a new event result repository with a transaction
func newEventResultRepositoryWithTx(tx Queryable) *EventResultRepository {
	return &EventResultRepository{q: tx}
}

// Record stores a result if the event has none yet and returns the stored one
func (r *EventResultRepository) Record(ctx context.Context, result *entities.EventResult) (*entities.EventResult, error) {
	insert := `
		INSERT INTO event_results (event_id, winning_outcome, settled_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, insert, result.EventID, result.WinningOutcome, result.SettledAt); err != nil {
		return nil, classify(err, "failed to record event result")
	}

	stored, err := r.Get(ctx, result.EventID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, classify(pgx.ErrNoRows, "event result vanished after insert")
	}

	return stored, nil
}

// Get retrieves the result for an event
func (r *EventResultRepository) Get(ctx context.Context, eventID string) (*entities.EventResult, error) {
	query := `
		SELECT event_id, winning_outcome, settled_at
		FROM event_results
		WHERE event_id = $1
	`

	var result entities.EventResult
	err := r.q.QueryRow(ctx, query, eventID).Scan(&result.EventID, &result.WinningOutcome, &result.SettledAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get event result")
	}

	return &result, nil
}
