package testutil

import (
	"gambler/settlement/domain/entities"

	"github.com/shopspring/decimal"
)

// CreateTestWager creates a pending dice wager with default values
func CreateTestWager(playerID, fundingTxID string) *entities.Wager {
	return &entities.Wager{
		PlayerID:       playerID,
		GameType:       entities.GameTypeDice,
		GameInstanceID: "1",
		StakeAmount:    1000,
		ChosenOutcome:  "under:50",
		ImpliedOdds:    decimal.RequireFromString("1.94"),
		FundingTxID:    fundingTxID,
		Status:         entities.WagerStatusPending,
	}
}

// CreateTestEventWager creates a pending wager on a real-world event
func CreateTestEventWager(playerID, fundingTxID, eventID, outcome string) *entities.Wager {
	wager := CreateTestWager(playerID, fundingTxID)
	wager.GameType = entities.GameTypeEvent
	wager.GameInstanceID = eventID
	wager.EventID = &eventID
	wager.ChosenOutcome = outcome
	wager.ImpliedOdds = decimal.RequireFromString("2.10")
	return wager
}

// CreateTestRound creates an open round at nonce 0
func CreateTestRound(playerID string, gameType entities.GameType) *entities.GameRound {
	return &entities.GameRound{
		PlayerID: playerID,
		GameType: gameType,
		Nonce:    0,
		State:    entities.RoundStateActive,
		Payload:  entities.RoundPayload{},
	}
}

// CreateTestReferralAccount creates an account with no referrer
func CreateTestReferralAccount(playerID, code string) *entities.ReferralAccount {
	return &entities.ReferralAccount{
		PlayerID:     playerID,
		ReferralCode: code,
	}
}
