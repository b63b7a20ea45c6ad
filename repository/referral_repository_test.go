package repository

import (
	"context"
	"testing"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewReferralRepository(testDB.DB)
	wagers := NewWagerRepository(testDB.DB)
	ctx := context.Background()

	t.Run("create is idempotent per player", func(t *testing.T) {
		testDB.Truncate(t)

		created, err := repo.Create(ctx, testutil.CreateTestReferralAccount("alice", "ALICE001"))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = repo.Create(ctx, testutil.CreateTestReferralAccount("alice", "ALICE002"))
		require.NoError(t, err)
		assert.False(t, created)

		byCode, err := repo.GetByCode(ctx, "ALICE001")
		require.NoError(t, err)
		require.NotNil(t, byCode)
		assert.Equal(t, "alice", byCode.PlayerID)

		missing, err := repo.GetByCode(ctx, "ALICE002")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("referrer is set once", func(t *testing.T) {
		testDB.Truncate(t)

		for _, a := range []*entities.ReferralAccount{
			testutil.CreateTestReferralAccount("alice", "ALICE001"),
			testutil.CreateTestReferralAccount("bob", "BOB00001"),
			testutil.CreateTestReferralAccount("carol", "CAROL001"),
		} {
			_, err := repo.Create(ctx, a)
			require.NoError(t, err)
		}

		set, err := repo.SetReferredBy(ctx, "bob", "alice")
		require.NoError(t, err)
		assert.True(t, set)

		set, err = repo.SetReferredBy(ctx, "bob", "carol")
		require.NoError(t, err)
		assert.False(t, set)

		require.NoError(t, repo.IncrementReferralCount(ctx, "alice"))

		bob, err := repo.GetByPlayerForUpdate(ctx, "bob")
		require.NoError(t, err)
		require.NotNil(t, bob.ReferredBy)
		assert.Equal(t, "alice", *bob.ReferredBy)

		alice, err := repo.GetByPlayer(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, alice.ReferralCount)

		assert.Error(t, repo.IncrementReferralCount(ctx, "nobody"))
	})

	t.Run("credit recorded once per wager", func(t *testing.T) {
		testDB.Truncate(t)

		_, err := repo.Create(ctx, testutil.CreateTestReferralAccount("alice", "ALICE001"))
		require.NoError(t, err)
		wager := testutil.CreateTestWager("bob", "0xcredit")
		require.NoError(t, wagers.Create(ctx, wager))

		credit := &entities.ReferralCredit{WagerID: wager.ID, ReferrerID: "alice", RefereeID: "bob", Amount: 10}
		inserted, err := repo.RecordCredit(ctx, credit)
		require.NoError(t, err)
		assert.True(t, inserted)

		again := &entities.ReferralCredit{WagerID: wager.ID, ReferrerID: "alice", RefereeID: "bob", Amount: 10}
		inserted, err = repo.RecordCredit(ctx, again)
		require.NoError(t, err)
		assert.False(t, inserted)

		stored, err := repo.GetCreditByWager(ctx, wager.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, credit.ID, stored.ID)
		assert.Equal(t, int64(10), stored.Amount)
	})

	t.Run("bonus balance and payouts", func(t *testing.T) {
		testDB.Truncate(t)

		_, err := repo.Create(ctx, testutil.CreateTestReferralAccount("alice", "ALICE001"))
		require.NoError(t, err)

		require.NoError(t, repo.AddBonus(ctx, "alice", 300))
		require.NoError(t, repo.AddBonus(ctx, "alice", 250))

		alice, err := repo.GetByPlayer(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(550), alice.BonusBalance)

		paidAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, repo.ZeroBonus(ctx, "alice", paidAt))

		payout := &entities.BonusPayout{
			PlayerID:    "alice",
			Amount:      550,
			Destination: "0xdest",
			Status:      entities.BonusPayoutStatusRequested,
		}
		require.NoError(t, repo.CreatePayout(ctx, payout))
		assert.NotZero(t, payout.ID)

		ref := "0xsent"
		payout.Status = entities.BonusPayoutStatusSent
		payout.TxReference = &ref
		require.NoError(t, repo.UpdatePayout(ctx, payout))

		alice, err = repo.GetByPlayer(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, alice.BonusBalance)
		require.NotNil(t, alice.LastPayoutAt)
		assert.True(t, paidAt.Equal(*alice.LastPayoutAt))

		missing := &entities.BonusPayout{ID: 999, Status: entities.BonusPayoutStatusFailed}
		assert.Error(t, repo.UpdatePayout(ctx, missing))
	})
}
