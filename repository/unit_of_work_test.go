package repository

import (
	"context"
	"testing"

	"gambler/settlement/domain/events"
	"gambler/settlement/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	factory := newTestUnitOfWorkFactory(testDB.DB)
	ctx := context.Background()

	t.Run("commit flushes events", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))

		wager := testutil.CreateTestWager("player-1", "0xcommit")
		require.NoError(t, uow.WagerRepository().Create(ctx, wager))
		require.NoError(t, uow.EventBus().Publish(events.WagerPlacedEvent{WagerID: wager.ID}))
		require.NoError(t, uow.Commit())

		assert.Len(t, factory.publisher.Published(), 1)
		got, err := NewWagerRepository(testDB.DB).GetByFundingTx(ctx, "0xcommit")
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("rollback discards writes and events", func(t *testing.T) {
		before := len(factory.publisher.Published())

		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		require.Error(t, uow.Begin(ctx))

		wager := testutil.CreateTestWager("player-1", "0xrollback")
		require.NoError(t, uow.WagerRepository().Create(ctx, wager))
		require.NoError(t, uow.EventBus().Publish(events.WagerPlacedEvent{WagerID: wager.ID}))
		require.NoError(t, uow.Rollback())
		require.NoError(t, uow.Rollback())

		assert.Len(t, factory.publisher.Published(), before)
		got, err := NewWagerRepository(testDB.DB).GetByFundingTx(ctx, "0xrollback")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("getters panic before begin", func(t *testing.T) {
		uow := factory.Create()
		assert.Panics(t, func() { uow.WagerRepository() })
		assert.Panics(t, func() { uow.GameRoundRepository() })
	})
}
