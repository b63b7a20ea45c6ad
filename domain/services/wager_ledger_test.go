package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"
	"gambler/settlement/domain/events"
	"gambler/settlement/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLedger(uow *testhelpers.MockUnitOfWork) *wagerLedger {
	l := NewWagerLedger(&testhelpers.MockUnitOfWorkFactory{UoW: uow}, testhelpers.PassthroughLocker{}).(*wagerLedger)
	l.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return l
}

func fundedWager(id int64) *entities.Wager {
	return &entities.Wager{
		ID:             id,
		PlayerID:       "player-1",
		GameType:       entities.GameTypeDice,
		GameInstanceID: "10",
		StakeAmount:    100,
		ChosenOutcome:  "under:50",
		ImpliedOdds:    d("1.94"),
		FundingTxID:    "0xabc",
		Status:         entities.WagerStatusFunded,
	}
}

func TestWagerLedger_CreateWager(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	uow.Wagers.On("GetByFundingTx", ctx, "0xabc").Return(nil, nil)
	uow.Wagers.On("Create", ctx, mock.MatchedBy(func(w *entities.Wager) bool {
		return w.Status == entities.WagerStatusPending && w.StakeAmount == 100
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.Wager).ID = 7
	})
	uow.Events.On("Publish", mock.MatchedBy(func(e events.WagerPlacedEvent) bool {
		return e.WagerID == 7 && e.ImpliedOdds == "1.94" && e.FundingTxID == "0xabc"
	})).Return(nil)

	w, err := ledger.CreateWager(ctx, &entities.Wager{
		PlayerID:      "player-1",
		GameType:      entities.GameTypeDice,
		StakeAmount:   100,
		ChosenOutcome: "under:50",
		ImpliedOdds:   d("1.94"),
		FundingTxID:   "0xabc",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), w.ID)
	assert.True(t, w.IsPending())
	assert.Nil(t, w.PayoutAmount)
	uow.AssertAllExpectations(t)
}

func TestWagerLedger_CreateWager_DuplicateFunding(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectRollback()
	ledger := newTestLedger(uow)

	uow.Wagers.On("GetByFundingTx", ctx, "0xabc").Return(fundedWager(3), nil)

	_, err := ledger.CreateWager(ctx, &entities.Wager{
		PlayerID:    "player-1",
		GameType:    entities.GameTypeDice,
		StakeAmount: 100,
		ImpliedOdds: d("1.94"),
		FundingTxID: "0xabc",
	})

	assert.True(t, errs.Is(err, errs.CodeDuplicateFundingTx))
	uow.Wagers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	uow.AssertAllExpectations(t)
}

func TestWagerLedger_CreateWager_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		wager entities.Wager
		code  errs.Code
	}{
		{"zero stake", entities.Wager{StakeAmount: 0, ImpliedOdds: d("2"), FundingTxID: "tx"}, errs.CodeInvalidStake},
		{"negative stake", entities.Wager{StakeAmount: -5, ImpliedOdds: d("2"), FundingTxID: "tx"}, errs.CodeInvalidStake},
		{"odds below one", entities.Wager{StakeAmount: 10, ImpliedOdds: d("0.95"), FundingTxID: "tx"}, errs.CodeInvalidOutcome},
		{"missing funding", entities.Wager{StakeAmount: 10, ImpliedOdds: d("2"), FundingTxID: "  "}, errs.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			uow := testhelpers.NewMockUnitOfWork()
			ledger := newTestLedger(uow)

			w := tt.wager
			_, err := ledger.CreateWager(context.Background(), &w)

			assert.True(t, errs.Is(err, tt.code), "got %v", err)
			uow.AssertNotCalled(t, "Begin", mock.Anything)
		})
	}
}

func TestWagerLedger_MarkFunded(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	pending := fundedWager(5)
	pending.Status = entities.WagerStatusPending

	uow.Wagers.On("GetByID", ctx, int64(5)).Return(pending, nil)
	uow.Wagers.On("UpdateStatus", ctx, mock.Anything, entities.WagerStatusPending).Return(true, nil)
	uow.Events.On("Publish", events.WagerFundedEvent{WagerID: 5, PlayerID: "player-1"}).Return(nil)

	w, err := ledger.MarkFunded(ctx, 5)

	require.NoError(t, err)
	assert.True(t, w.IsFunded())
	require.NotNil(t, w.FundedAt)
	assert.Equal(t, ledger.now(), *w.FundedAt)
	uow.AssertAllExpectations(t)
}

func TestWagerLedger_MarkFunded_AlreadyFunded(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	uow.Wagers.On("GetByID", ctx, int64(5)).Return(fundedWager(5), nil)

	w, err := ledger.MarkFunded(ctx, 5)

	require.NoError(t, err)
	assert.True(t, w.IsFunded())
	uow.Wagers.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	uow.Events.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestWagerLedger_MarkFunded_Failed(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectRollback()
	ledger := newTestLedger(uow)

	failed := fundedWager(5)
	failed.Status = entities.WagerStatusFailed
	uow.Wagers.On("GetByID", ctx, int64(5)).Return(failed, nil)

	_, err := ledger.MarkFunded(ctx, 5)

	assert.True(t, errs.Is(err, errs.CodeWagerFailed))
	uow.AssertAllExpectations(t)
}

func TestWagerLedger_MarkFailed_Resolved(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectRollback()
	ledger := newTestLedger(uow)

	resolved := fundedWager(5)
	payout := int64(0)
	resolved.Status = entities.WagerStatusResolved
	resolved.PayoutAmount = &payout
	uow.Wagers.On("GetByID", ctx, int64(5)).Return(resolved, nil)

	_, err := ledger.MarkFailed(ctx, 5, entities.FailureReasonFundingTimeout)

	assert.True(t, errs.Is(err, errs.CodeAlreadyResolved))
}

func TestWagerLedger_MarkFailed_OnlyFromGivenStatus(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	uow.Wagers.On("GetByID", ctx, int64(5)).Return(fundedWager(5), nil)

	w, err := ledger.MarkFailed(ctx, 5, entities.FailureReasonFundingTimeout, entities.WagerStatusPending)

	require.NoError(t, err)
	assert.True(t, w.IsFunded())
	assert.Nil(t, w.FailureReason)
	uow.Wagers.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	uow.Events.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestWagerLedger_MarkFailed_Pending(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	pending := fundedWager(5)
	pending.Status = entities.WagerStatusPending

	uow.Wagers.On("GetByID", ctx, int64(5)).Return(pending, nil)
	uow.Wagers.On("UpdateStatus", ctx, mock.Anything, entities.WagerStatusPending).Return(true, nil)
	uow.Events.On("Publish", mock.AnythingOfType("events.WagerFailedEvent")).Return(nil)

	w, err := ledger.MarkFailed(ctx, 5, entities.FailureReasonFundingTimeout, entities.WagerStatusPending)

	require.NoError(t, err)
	assert.Equal(t, entities.WagerStatusFailed, w.Status)
	require.NotNil(t, w.FailureReason)
	assert.Equal(t, entities.FailureReasonFundingTimeout, *w.FailureReason)
	uow.AssertAllExpectations(t)
}

func TestWagerLedger_ResolveWagerWith(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	uow.Wagers.On("GetByID", ctx, int64(9)).Return(fundedWager(9), nil)
	uow.Wagers.On("UpdateStatus", ctx, mock.MatchedBy(func(w *entities.Wager) bool {
		return w.IsResolved() && *w.PayoutAmount == 194
	}), entities.WagerStatusFunded).Return(true, nil)
	uow.Events.On("Publish", mock.MatchedBy(func(e events.WagerResolvedEvent) bool {
		return e.WagerID == 9 && e.PayoutAmount == 194 && e.Won && e.Outcome == "roll:12"
	})).Return(nil)

	w, err := ledger.ResolveWagerWith(ctx, 9, func(w *entities.Wager) (entities.Resolution, error) {
		return entities.Resolution{Payout: 194, Outcome: "roll:12"}, nil
	})

	require.NoError(t, err)
	assert.True(t, w.IsResolved())
	assert.Equal(t, int64(194), *w.PayoutAmount)
	uow.AssertAllExpectations(t)
}

func TestWagerLedger_ResolveWagerWith_StatusGuards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status entities.WagerStatus
		code   errs.Code
	}{
		{"resolved", entities.WagerStatusResolved, errs.CodeAlreadyResolved},
		{"failed", entities.WagerStatusFailed, errs.CodeWagerFailed},
		{"pending", entities.WagerStatusPending, errs.CodeNotFunded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			uow := testhelpers.NewMockUnitOfWork()
			uow.ExpectRollback()
			ledger := newTestLedger(uow)

			w := fundedWager(9)
			w.Status = tt.status
			uow.Wagers.On("GetByID", ctx, int64(9)).Return(w, nil)

			decided := false
			_, err := ledger.ResolveWagerWith(ctx, 9, func(*entities.Wager) (entities.Resolution, error) {
				decided = true
				return entities.Resolution{}, nil
			})

			assert.True(t, errs.Is(err, tt.code), "got %v", err)
			assert.False(t, decided)
		})
	}
}

func TestWagerLedger_TransitionLostRace(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectRollback()
	ledger := newTestLedger(uow)

	uow.Wagers.On("GetByID", ctx, int64(9)).Return(fundedWager(9), nil)
	uow.Wagers.On("UpdateStatus", ctx, mock.Anything, entities.WagerStatusFunded).Return(false, nil)

	_, err := ledger.ResolveWager(ctx, 9, 0, "roll:80")

	assert.True(t, errs.IsTransient(err))
}

func TestWagerLedger_BeginFailureIsTransient(t *testing.T) {
	uow := testhelpers.NewMockUnitOfWork()
	uow.On("Begin", mock.Anything).Return(errors.New("connection refused"))
	ledger := newTestLedger(uow)

	_, err := ledger.GetWager(context.Background(), 1)

	assert.True(t, errs.IsTransient(err))
	assert.Equal(t, errs.CodeStoreUnavailable, errs.CodeOf(err))
}

func TestWagerLedger_GetWager_NotFound(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	uow.Wagers.On("GetByID", ctx, int64(404)).Return(nil, nil)

	_, err := ledger.GetWager(ctx, 404)

	assert.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
}

func openRound(nonce int64) *entities.GameRound {
	return &entities.GameRound{
		ID:       10,
		PlayerID: "player-1",
		GameType: entities.GameTypeMines,
		Nonce:    nonce,
		State:    entities.RoundStateActive,
		Payload:  entities.RoundPayload{},
	}
}

func TestWagerLedger_CreateOrGetRound_ReturnsOpenRound(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	uow.Rounds.On("GetLatest", ctx, "player-1", entities.GameTypeMines).Return(openRound(4), nil)

	round, err := ledger.CreateOrGetRound(ctx, "player-1", entities.GameTypeMines)

	require.NoError(t, err)
	assert.Equal(t, int64(4), round.Nonce)
	uow.Rounds.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestWagerLedger_CreateOrGetRound_StartsAfterEnded(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	ended := openRound(3)
	endedAt := ledger.now()
	ended.State = entities.RoundStateEnded
	ended.EndedAt = &endedAt

	uow.Rounds.On("GetLatest", ctx, "player-1", entities.GameTypeMines).Return(ended, nil)
	uow.Rounds.On("Create", ctx, mock.MatchedBy(func(r *entities.GameRound) bool {
		return r.Nonce == 0 && r.State == entities.RoundStateActive && r.EndedAt == nil
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.GameRound).ID = 11
	})

	round, err := ledger.CreateOrGetRound(ctx, "player-1", entities.GameTypeMines)

	require.NoError(t, err)
	assert.Equal(t, int64(11), round.ID)
	uow.AssertAllExpectations(t)
}

func TestWagerLedger_MutateRound(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	uow.Rounds.On("GetLatest", ctx, "player-1", entities.GameTypeMines).Return(openRound(5), nil)
	uow.Rounds.On("CompareAndSet", ctx, mock.MatchedBy(func(r *entities.GameRound) bool {
		return r.Nonce == 6 && r.Payload["step"] == "b"
	})).Return(true, nil)

	round, err := ledger.ApplyRoundUpdate(ctx, "player-1", entities.GameTypeMines, 6, entities.RoundPayload{"step": "b"})

	require.NoError(t, err)
	assert.Equal(t, int64(6), round.Nonce)
	assert.False(t, round.IsEnded())
	uow.Events.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestWagerLedger_MutateRound_EqualNonceIsAccepted(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	uow.Rounds.On("GetLatest", ctx, "player-1", entities.GameTypeMines).Return(openRound(5), nil)
	uow.Rounds.On("CompareAndSet", ctx, mock.Anything).Return(true, nil)

	_, err := ledger.ApplyRoundUpdate(ctx, "player-1", entities.GameTypeMines, 5, entities.RoundPayload{})

	assert.NoError(t, err)
}

func TestWagerLedger_MutateRound_Rejections(t *testing.T) {
	t.Parallel()

	endedAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ended := openRound(2)
	ended.State = entities.RoundStateEnded
	ended.EndedAt = &endedAt

	tests := []struct {
		name   string
		latest *entities.GameRound
		nonce  int64
		code   errs.Code
	}{
		{"stale nonce", openRound(6), 5, errs.CodeStaleNonce},
		{"ended round", ended, 3, errs.CodeRoundClosed},
		{"no round", nil, 1, errs.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			uow := testhelpers.NewMockUnitOfWork()
			uow.ExpectRollback()
			ledger := newTestLedger(uow)

			if tt.latest == nil {
				uow.Rounds.On("GetLatest", ctx, "player-1", entities.GameTypeMines).Return(nil, nil)
			} else {
				uow.Rounds.On("GetLatest", ctx, "player-1", entities.GameTypeMines).Return(tt.latest, nil)
			}

			_, err := ledger.ApplyRoundUpdate(ctx, "player-1", entities.GameTypeMines, tt.nonce, entities.RoundPayload{})

			assert.True(t, errs.Is(err, tt.code), "got %v", err)
			uow.Rounds.AssertNotCalled(t, "CompareAndSet", mock.Anything, mock.Anything)
		})
	}
}

func TestWagerLedger_MutateRound_NegativeNonce(t *testing.T) {
	uow := testhelpers.NewMockUnitOfWork()
	ledger := newTestLedger(uow)

	_, err := ledger.ApplyRoundUpdate(context.Background(), "player-1", entities.GameTypeMines, -1, nil)

	assert.True(t, errs.Is(err, errs.CodeInvalidRequest))
}

func TestWagerLedger_MutateRound_LostCompareAndSet(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectRollback()
	ledger := newTestLedger(uow)

	endedAt := ledger.now()
	stored := openRound(7)
	stored.State = entities.RoundStateEnded
	stored.EndedAt = &endedAt

	uow.Rounds.On("GetLatest", ctx, "player-1", entities.GameTypeMines).Return(openRound(5), nil)
	uow.Rounds.On("CompareAndSet", ctx, mock.Anything).Return(false, nil)
	uow.Rounds.On("GetByID", ctx, int64(10)).Return(stored, nil)

	_, err := ledger.ApplyRoundUpdate(ctx, "player-1", entities.GameTypeMines, 6, entities.RoundPayload{})

	assert.True(t, errs.Is(err, errs.CodeRoundClosed))
}

func TestWagerLedger_EndRound_PublishesEvent(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	uow.Rounds.On("GetLatest", ctx, "player-1", entities.GameTypeMines).Return(openRound(1), nil)
	uow.Rounds.On("CompareAndSet", ctx, mock.MatchedBy(func(r *entities.GameRound) bool {
		return r.IsEnded() && r.State == entities.RoundStateEnded
	})).Return(true, nil)
	uow.Events.On("Publish", mock.MatchedBy(func(e events.RoundEndedEvent) bool {
		return e.RoundID == 10 && e.Nonce == 2 && !e.Voided
	})).Return(nil)

	round, err := ledger.EndRound(ctx, "player-1", entities.GameTypeMines, 2, entities.RoundPayload{"cashedOut": true})

	require.NoError(t, err)
	assert.True(t, round.IsEnded())
	uow.AssertAllExpectations(t)
}

func TestWagerLedger_RecordEventResult_FirstWins(t *testing.T) {
	ctx := context.Background()
	uow := testhelpers.NewMockUnitOfWork()
	uow.ExpectCommit()
	ledger := newTestLedger(uow)

	first := &entities.EventResult{EventID: "evt-1", WinningOutcome: "home"}
	uow.EventResults.On("Record", ctx, mock.MatchedBy(func(r *entities.EventResult) bool {
		return r.EventID == "evt-1" && r.WinningOutcome == "away"
	})).Return(first, nil)

	result, err := ledger.RecordEventResult(ctx, "evt-1", "away")

	require.NoError(t, err)
	assert.Equal(t, "home", result.WinningOutcome)
}
