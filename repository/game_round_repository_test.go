package repository

import (
	"context"
	"testing"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"
	"gambler/settlement/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameRoundRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewGameRoundRepository(testDB.DB)
	ctx := context.Background()

	t.Run("create and get latest", func(t *testing.T) {
		testDB.Truncate(t)

		round := testutil.CreateTestRound("player-1", entities.GameTypeMines)
		round.Payload = entities.RoundPayload{"mines": 3, "revealed": []any{}}
		require.NoError(t, repo.Create(ctx, round))
		assert.NotZero(t, round.ID)

		got, err := repo.GetLatest(ctx, "player-1", entities.GameTypeMines)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, round.ID, got.ID)
		assert.Equal(t, entities.RoundStateActive, got.State)
		// JSON numbers decode as float64
		assert.Equal(t, float64(3), got.Payload["mines"])

		none, err := repo.GetLatest(ctx, "player-1", entities.GameTypeDice)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("idle is never stored", func(t *testing.T) {
		testDB.Truncate(t)

		_, err := testDB.DB.Exec(ctx,
			`INSERT INTO game_rounds (player_id, game_type, state) VALUES ($1, $2, 'idle')`,
			"player-1", string(entities.GameTypeDice))
		require.Error(t, err)

		none, err := repo.GetLatest(ctx, "player-1", entities.GameTypeDice)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("one open round per player and game", func(t *testing.T) {
		testDB.Truncate(t)

		require.NoError(t, repo.Create(ctx, testutil.CreateTestRound("player-1", entities.GameTypeDice)))

		err := repo.Create(ctx, testutil.CreateTestRound("player-1", entities.GameTypeDice))
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.CodeRoundInProgress))

		// other games and players are independent
		require.NoError(t, repo.Create(ctx, testutil.CreateTestRound("player-1", entities.GameTypeRoulette)))
		require.NoError(t, repo.Create(ctx, testutil.CreateTestRound("player-2", entities.GameTypeDice)))
	})

	t.Run("compare and set", func(t *testing.T) {
		testDB.Truncate(t)

		round := testutil.CreateTestRound("player-1", entities.GameTypeMines)
		require.NoError(t, repo.Create(ctx, round))

		next := *round
		next.Nonce = 2
		next.Payload = entities.RoundPayload{"revealed": []any{4}}
		ok, err := repo.CompareAndSet(ctx, &next)
		require.NoError(t, err)
		assert.True(t, ok)

		// equal nonce is accepted
		ok, err = repo.CompareAndSet(ctx, &next)
		require.NoError(t, err)
		assert.True(t, ok)

		stale := *round
		stale.Nonce = 1
		ok, err = repo.CompareAndSet(ctx, &stale)
		require.NoError(t, err)
		assert.False(t, ok)

		endedAt := time.Now().UTC()
		final := next
		final.Nonce = 3
		final.State = entities.RoundStateEnded
		final.EndedAt = &endedAt
		ok, err = repo.CompareAndSet(ctx, &final)
		require.NoError(t, err)
		assert.True(t, ok)

		// ended rounds accept nothing
		later := final
		later.Nonce = 4
		later.State = entities.RoundStateActive
		later.EndedAt = nil
		ok, err = repo.CompareAndSet(ctx, &later)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.GetByID(ctx, round.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Nonce)
		assert.True(t, got.IsEnded())
	})

	t.Run("list idle", func(t *testing.T) {
		testDB.Truncate(t)

		open := testutil.CreateTestRound("player-1", entities.GameTypeMines)
		require.NoError(t, repo.Create(ctx, open))

		rounds, err := repo.ListIdle(ctx, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, rounds, 1)
		assert.Equal(t, open.ID, rounds[0].ID)

		rounds, err = repo.ListIdle(ctx, time.Now().Add(-time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, rounds)
	})
}
