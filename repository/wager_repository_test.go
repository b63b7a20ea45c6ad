package repository

import (
	"context"
	"testing"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"
	"gambler/settlement/repository/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWagerRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewWagerRepository(testDB.DB)
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		testDB.Truncate(t)

		wager := testutil.CreateTestWager("player-1", "0xaaa")
		require.NoError(t, repo.Create(ctx, wager))
		assert.NotZero(t, wager.ID)
		assert.False(t, wager.CreatedAt.IsZero())

		got, err := repo.GetByID(ctx, wager.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "player-1", got.PlayerID)
		assert.Equal(t, entities.GameTypeDice, got.GameType)
		assert.Equal(t, "under:50", got.ChosenOutcome)
		assert.True(t, decimal.RequireFromString("1.94").Equal(got.ImpliedOdds))
		assert.Equal(t, entities.WagerStatusPending, got.Status)
		assert.Nil(t, got.PayoutAmount)
		assert.Nil(t, got.EventID)

		byTx, err := repo.GetByFundingTx(ctx, "0xaaa")
		require.NoError(t, err)
		require.NotNil(t, byTx)
		assert.Equal(t, wager.ID, byTx.ID)
	})

	t.Run("missing wager", func(t *testing.T) {
		testDB.Truncate(t)

		got, err := repo.GetByID(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = repo.GetByFundingTx(ctx, "0xnone")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate funding transaction", func(t *testing.T) {
		testDB.Truncate(t)

		require.NoError(t, repo.Create(ctx, testutil.CreateTestWager("player-1", "0xdup")))

		err := repo.Create(ctx, testutil.CreateTestWager("player-2", "0xdup"))
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.CodeDuplicateFundingTx))
	})

	t.Run("update status is guarded by the expected status", func(t *testing.T) {
		testDB.Truncate(t)

		wager := testutil.CreateTestWager("player-1", "0xbbb")
		require.NoError(t, repo.Create(ctx, wager))

		fundedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		require.True(t, wager.MarkFunded(fundedAt))
		ok, err := repo.UpdateStatus(ctx, wager, entities.WagerStatusPending)
		require.NoError(t, err)
		assert.True(t, ok)

		// a second writer still expecting pending loses
		ok, err = repo.UpdateStatus(ctx, wager, entities.WagerStatusPending)
		require.NoError(t, err)
		assert.False(t, ok)

		resolvedAt := fundedAt.Add(time.Minute)
		require.True(t, wager.Resolve(entities.Resolution{Payout: 1940, Outcome: "roll:12"}, resolvedAt))
		ok, err = repo.UpdateStatus(ctx, wager, entities.WagerStatusFunded)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetByID(ctx, wager.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.WagerStatusResolved, got.Status)
		require.NotNil(t, got.PayoutAmount)
		assert.Equal(t, int64(1940), *got.PayoutAmount)
		require.NotNil(t, got.Outcome)
		assert.Equal(t, "roll:12", *got.Outcome)
		require.NotNil(t, got.FundedAt)
		assert.True(t, fundedAt.Equal(*got.FundedAt))
	})

	t.Run("latest by game instance", func(t *testing.T) {
		testDB.Truncate(t)

		first := testutil.CreateTestWager("player-1", "0x1")
		second := testutil.CreateTestWager("player-1", "0x2")
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))

		got, err := repo.GetLatestByGameInstance(ctx, entities.GameTypeDice, "1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, second.ID, got.ID)

		got, err = repo.GetLatestByGameInstance(ctx, entities.GameTypeMines, "1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list pending before cutoff", func(t *testing.T) {
		testDB.Truncate(t)

		for _, tx := range []string{"0x1", "0x2", "0x3"} {
			require.NoError(t, repo.Create(ctx, testutil.CreateTestWager("player-1", tx)))
		}

		wagers, err := repo.ListByStatusCreatedBefore(ctx, entities.WagerStatusPending, time.Now().Add(time.Hour), 2)
		require.NoError(t, err)
		require.Len(t, wagers, 2)
		assert.Equal(t, "0x1", wagers[0].FundingTxID)

		wagers, err = repo.ListByStatusCreatedBefore(ctx, entities.WagerStatusPending, time.Now().Add(-time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, wagers)
	})

	t.Run("list funded by event", func(t *testing.T) {
		testDB.Truncate(t)

		funded := testutil.CreateTestEventWager("player-1", "0x1", "match-1", "home")
		pending := testutil.CreateTestEventWager("player-2", "0x2", "match-1", "away")
		other := testutil.CreateTestEventWager("player-3", "0x3", "match-2", "home")
		for _, w := range []*entities.Wager{funded, pending, other} {
			require.NoError(t, repo.Create(ctx, w))
		}
		require.True(t, funded.MarkFunded(time.Now().UTC()))
		ok, err := repo.UpdateStatus(ctx, funded, entities.WagerStatusPending)
		require.NoError(t, err)
		require.True(t, ok)

		wagers, err := repo.ListFundedByEvent(ctx, "match-1")
		require.NoError(t, err)
		require.Len(t, wagers, 1)
		assert.Equal(t, funded.ID, wagers[0].ID)
		require.NotNil(t, wagers[0].EventID)
		assert.Equal(t, "match-1", *wagers[0].EventID)
		assert.True(t, decimal.RequireFromString("2.10").Equal(wagers[0].ImpliedOdds))
	})
}
