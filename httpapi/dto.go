package httpapi

import (
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/interfaces"
)

// PlaceWagerRequest is the body of POST /placeWager
type PlaceWagerRequest struct {
	PlayerID      string `json:"playerId" binding:"required"`
	GameType      string `json:"gameType" binding:"required"`
	EventID       string `json:"eventId"`
	ChosenOutcome string `json:"chosenOutcome" binding:"required"`
	StakeAmount   int64  `json:"stakeAmount"`
	FundingTxID   string `json:"fundingTxId" binding:"required"`
}

func (r PlaceWagerRequest) toDomain() interfaces.PlaceWagerRequest {
	return interfaces.PlaceWagerRequest{
		PlayerID:      r.PlayerID,
		GameType:      entities.GameType(r.GameType),
		EventID:       r.EventID,
		ChosenOutcome: r.ChosenOutcome,
		StakeAmount:   r.StakeAmount,
		FundingTxID:   r.FundingTxID,
	}
}

// RoundRequest is the body of the round endpoints. Step is the game move of
// updateRound; Payload is the final state sent with endRound.
type RoundRequest struct {
	PlayerID string                `json:"playerId" binding:"required"`
	GameType string                `json:"gameType" binding:"required"`
	Nonce    int64                 `json:"nonce" binding:"min=0"`
	Step     entities.RoundPayload `json:"step"`
	Payload  entities.RoundPayload `json:"payload"`
}

// WagerIDRequest identifies a wager by id
type WagerIDRequest struct {
	WagerID int64 `json:"wagerId" binding:"required,min=1"`
}

// ConfirmFundingRequest identifies a wager by id or by its funding transaction
type ConfirmFundingRequest struct {
	WagerID     int64  `json:"wagerId"`
	FundingTxID string `json:"fundingTxId"`
	Wait        bool   `json:"wait"`
}

// SettleEventRequest reports the winning outcome of an event
type SettleEventRequest struct {
	EventID        string `json:"eventId" binding:"required"`
	WinningOutcome string `json:"winningOutcome" binding:"required"`
}

// ClaimReferralRequest links a player to the owner of a referral code
type ClaimReferralRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// WithdrawReferralBonusRequest pays accrued bonus out to destination
type WithdrawReferralBonusRequest struct {
	PlayerID    string `json:"playerId" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

// WagerResponse is the API view of a wager
type WagerResponse struct {
	ID             int64      `json:"id"`
	PlayerID       string     `json:"playerId"`
	GameType       string     `json:"gameType"`
	GameInstanceID string     `json:"gameInstanceId"`
	EventID        *string    `json:"eventId,omitempty"`
	StakeAmount    int64      `json:"stakeAmount"`
	ChosenOutcome  string     `json:"chosenOutcome"`
	ImpliedOdds    string     `json:"impliedOdds"`
	FundingTxID    string     `json:"fundingTxId"`
	Status         string     `json:"status"`
	PayoutAmount   *int64     `json:"payoutAmount"`
	Outcome        *string    `json:"outcome,omitempty"`
	FailureReason  *string    `json:"failureReason,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	FundedAt       *time.Time `json:"fundedAt,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

func newWagerResponse(w *entities.Wager) *WagerResponse {
	if w == nil {
		return nil
	}
	return &WagerResponse{
		ID:             w.ID,
		PlayerID:       w.PlayerID,
		GameType:       string(w.GameType),
		GameInstanceID: w.GameInstanceID,
		EventID:        w.EventID,
		StakeAmount:    w.StakeAmount,
		ChosenOutcome:  w.ChosenOutcome,
		ImpliedOdds:    w.ImpliedOdds.StringFixed(2),
		FundingTxID:    w.FundingTxID,
		Status:         string(w.Status),
		PayoutAmount:   w.PayoutAmount,
		Outcome:        w.Outcome,
		FailureReason:  w.FailureReason,
		CreatedAt:      w.CreatedAt,
		FundedAt:       w.FundedAt,
		ResolvedAt:     w.ResolvedAt,
	}
}

func newWagerResponses(wagers []*entities.Wager) []*WagerResponse {
	out := make([]*WagerResponse, 0, len(wagers))
	for _, w := range wagers {
		out = append(out, newWagerResponse(w))
	}
	return out
}

// RoundResponse is the API view of a game round
type RoundResponse struct {
	ID        int64                 `json:"id"`
	PlayerID  string                `json:"playerId"`
	GameType  string                `json:"gameType"`
	Nonce     int64                 `json:"nonce"`
	State     string                `json:"state"`
	Payload   entities.RoundPayload `json:"payload"`
	UpdatedAt time.Time             `json:"updatedAt"`
	EndedAt   *time.Time            `json:"endedAt,omitempty"`
}

func newRoundResponse(r *entities.GameRound) *RoundResponse {
	if r == nil {
		return nil
	}
	return &RoundResponse{
		ID:        r.ID,
		PlayerID:  r.PlayerID,
		GameType:  string(r.GameType),
		Nonce:     r.Nonce,
		State:     string(r.State),
		Payload:   r.Payload,
		UpdatedAt: r.UpdatedAt,
		EndedAt:   r.EndedAt,
	}
}

// RoundOutcomeResponse pairs a round with the wager it settled, if any
type RoundOutcomeResponse struct {
	Round *RoundResponse `json:"round"`
	Wager *WagerResponse `json:"wager,omitempty"`
}

func newRoundOutcomeResponse(o *interfaces.RoundOutcome) *RoundOutcomeResponse {
	return &RoundOutcomeResponse{
		Round: newRoundResponse(o.Round),
		Wager: newWagerResponse(o.Wager),
	}
}

// ReferralAccountResponse is the API view of a referral account
type ReferralAccountResponse struct {
	PlayerID      string     `json:"playerId"`
	ReferralCode  string     `json:"referralCode"`
	ReferredBy    *string    `json:"referredBy,omitempty"`
	ReferralCount int        `json:"referralCount"`
	BonusBalance  int64      `json:"bonusBalance"`
	LastPayoutAt  *time.Time `json:"lastPayoutAt,omitempty"`
}

func newReferralAccountResponse(a *entities.ReferralAccount) *ReferralAccountResponse {
	return &ReferralAccountResponse{
		PlayerID:      a.PlayerID,
		ReferralCode:  a.ReferralCode,
		ReferredBy:    a.ReferredBy,
		ReferralCount: a.ReferralCount,
		BonusBalance:  a.BonusBalance,
		LastPayoutAt:  a.LastPayoutAt,
	}
}

// BonusPayoutResponse is the API view of a bonus withdrawal
type BonusPayoutResponse struct {
	ID          int64   `json:"id"`
	PlayerID    string  `json:"playerId"`
	Amount      int64   `json:"amount"`
	Destination string  `json:"destination"`
	TxReference *string `json:"txReference,omitempty"`
	Status      string  `json:"status"`
}

func newBonusPayoutResponse(p *entities.BonusPayout) *BonusPayoutResponse {
	return &BonusPayoutResponse{
		ID:          p.ID,
		PlayerID:    p.PlayerID,
		Amount:      p.Amount,
		Destination: p.Destination,
		TxReference: p.TxReference,
		Status:      string(p.Status),
	}
}

// OddsResponse lists the current house-adjusted quotes of an event
type OddsResponse struct {
	EventID string               `json:"eventId"`
	Quotes  []entities.OddsQuote `json:"quotes"`
}
