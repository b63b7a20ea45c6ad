package entities

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWager_Transitions(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name      string
		status    WagerStatus
		apply     func(w *Wager) bool
		wantOK    bool
		wantState WagerStatus
	}{
		{"fund pending", WagerStatusPending, func(w *Wager) bool { return w.MarkFunded(now) }, true, WagerStatusFunded},
		{"fund funded", WagerStatusFunded, func(w *Wager) bool { return w.MarkFunded(now) }, false, WagerStatusFunded},
		{"resolve funded", WagerStatusFunded, func(w *Wager) bool { return w.Resolve(Resolution{Payout: 150, Outcome: "win"}, now) }, true, WagerStatusResolved},
		{"resolve pending", WagerStatusPending, func(w *Wager) bool { return w.Resolve(Resolution{Payout: 150, Outcome: "win"}, now) }, false, WagerStatusPending},
		{"resolve resolved", WagerStatusResolved, func(w *Wager) bool { return w.Resolve(Resolution{Payout: 150, Outcome: "win"}, now) }, false, WagerStatusResolved},
		{"fail pending", WagerStatusPending, func(w *Wager) bool { return w.MarkFailed(FailureReasonFundingTimeout) }, true, WagerStatusFailed},
		{"fail funded", WagerStatusFunded, func(w *Wager) bool { return w.MarkFailed(FailureReasonFundingRejected) }, true, WagerStatusFailed},
		{"fail resolved", WagerStatusResolved, func(w *Wager) bool { return w.MarkFailed("x") }, false, WagerStatusResolved},
		{"fund failed", WagerStatusFailed, func(w *Wager) bool { return w.MarkFunded(now) }, false, WagerStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := &Wager{Status: tt.status}
			if tt.status == WagerStatusResolved {
				payout := int64(0)
				w.PayoutAmount = &payout
			}

			assert.Equal(t, tt.wantOK, tt.apply(w))
			assert.Equal(t, tt.wantState, w.Status)
		})
	}
}

func TestWager_PayoutSetOnlyWhenResolved(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(42, 7))
	now := time.Now()

	for i := 0; i < 2000; i++ {
		w := &Wager{Status: WagerStatusPending, StakeAmount: 100}
		for step := 0; step < 6; step++ {
			switch rng.IntN(4) {
			case 0:
				w.MarkFunded(now)
			case 1:
				w.MarkFailed(FailureReasonFundingTimeout)
			case 2:
				w.Resolve(Resolution{Payout: rng.Int64N(1000), Outcome: "roll"}, now)
			case 3:
				w.Resolve(Resolution{Payout: -1, Outcome: "invalid"}, now)
			}
			require.Equal(t, w.Status == WagerStatusResolved, w.PayoutAmount != nil,
				"payout presence must match resolved status (status=%s)", w.Status)
		}
	}
}

func TestCalculatePayout_FloorsToMinorUnit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(195), CalculatePayout(100, decimal.RequireFromString("1.95")))
	assert.Equal(t, int64(341), CalculatePayout(175, decimal.RequireFromString("1.95")))
	assert.Equal(t, int64(0), CalculatePayout(0, decimal.RequireFromString("3.50")))
}

func TestGameRound_AcceptsNonce(t *testing.T) {
	t.Parallel()

	round := &GameRound{Nonce: 4, State: RoundStateActive}
	assert.True(t, round.AcceptsNonce(4))
	assert.True(t, round.AcceptsNonce(6))
	assert.False(t, round.AcceptsNonce(3))

	ended := time.Now()
	round.EndedAt = &ended
	round.State = RoundStateEnded
	assert.False(t, round.AcceptsNonce(9))
}

func TestGameType_IsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, GameTypeDice.IsValid())
	assert.True(t, GameTypeEvent.IsValid())
	assert.False(t, GameType("blackjack").IsValid())
	assert.False(t, GameTypeEvent.IsSynchronous())
	assert.True(t, GameTypeMines.IsSynchronous())
}
