package repository

import (
	"context"
	"errors"
	"fmt"

	"gambler/settlement/domain/errs"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// Constraint names from the migrations that map to domain conflicts
const (
	constraintWagerFundingTx = "wagers_funding_tx_id_key"
	constraintOpenRound      = "ux_game_rounds_open"
)

// classify turns driver errors into domain errors. Unknown failures are
// wrapped with msg and left unclassified.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			switch pgErr.ConstraintName {
			case constraintWagerFundingTx:
				return errs.Wrap(errs.CodeDuplicateFundingTx, err, "funding transaction already backs a wager")
			case constraintOpenRound:
				return errs.Wrap(errs.CodeRoundInProgress, err, "an open round already exists")
			}
		case serializationFailure, deadlockDetected:
			return errs.Transient(err, msg)
		}
		return fmt.Errorf("%s: %w", msg, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return errs.Transient(err, msg)
	}

	return fmt.Errorf("%s: %w", msg, err)
}
