package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gambler/settlement/domain/errs"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		code      errs.Code
		transient bool
	}{
		{
			name: "duplicate funding",
			err:  &pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintWagerFundingTx},
			code: errs.CodeDuplicateFundingTx,
		},
		{
			name: "open round exists",
			err:  fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintOpenRound}),
			code: errs.CodeRoundInProgress,
		},
		{
			name:      "serialization failure",
			err:       &pgconn.PgError{Code: serializationFailure},
			code:      errs.CodeStoreUnavailable,
			transient: true,
		},
		{
			name:      "deadline",
			err:       context.DeadlineExceeded,
			code:      errs.CodeStoreUnavailable,
			transient: true,
		},
		{
			name: "other unique violation",
			err:  &pgconn.PgError{Code: uniqueViolation, ConstraintName: "referral_accounts_code_key"},
			code: errs.CodeInternal,
		},
		{
			name: "plain error",
			err:  errors.New("syntax error"),
			code: errs.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classify(tt.err, "failed to write")
			assert.Equal(t, tt.code, errs.CodeOf(got))
			assert.Equal(t, tt.transient, errs.IsTransient(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, classify(nil, "unused"))
}
