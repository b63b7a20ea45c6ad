package httpapi

import (
	"strconv"
	"strings"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"
	"gambler/settlement/domain/interfaces"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Handlers serves the request API on top of the settlement services
type Handlers struct {
	coordinator interfaces.SettlementCoordinator
	referrals   interfaces.ReferralService
	quotes      interfaces.QuoteService
}

// NewHandlers creates the request handlers
func NewHandlers(
	coordinator interfaces.SettlementCoordinator,
	referrals interfaces.ReferralService,
	quotes interfaces.QuoteService,
) *Handlers {
	return &Handlers{
		coordinator: coordinator,
		referrals:   referrals,
		quotes:      quotes,
	}
}

// PlaceWager records a pending wager
func (h *Handlers) PlaceWager(c *gin.Context) {
	var req PlaceWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidRequest(err))
		return
	}

	wager, err := h.coordinator.PlaceWager(c.Request.Context(), req.toDomain())
	if err != nil {
		respondError(c, err)
		return
	}

	log.WithFields(log.Fields{
		"wagerId":  wager.ID,
		"playerId": wager.PlayerID,
		"gameType": wager.GameType,
	}).Info("Wager placed")
	respondOK(c, newWagerResponse(wager))
}

// ConfirmFunding polls the chain once for a wager's funding transaction
func (h *Handlers) ConfirmFunding(c *gin.Context) {
	var req ConfirmFundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidRequest(err))
		return
	}

	ctx := c.Request.Context()
	var (
		wager *entities.Wager
		err   error
	)
	switch {
	case req.WagerID > 0:
		wager, err = h.coordinator.ConfirmFunding(ctx, req.WagerID)
	case strings.TrimSpace(req.FundingTxID) != "":
		wager, err = h.coordinator.ConfirmFundingByTx(ctx, strings.TrimSpace(req.FundingTxID))
	default:
		err = errs.New(errs.CodeInvalidRequest, "wagerId or fundingTxId is required")
	}
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Wait && !wager.IsTerminal() && !wager.IsPending() {
		wager, err = h.coordinator.AwaitSettlement(ctx, wager.ID)
		if err != nil {
			respondError(c, err)
			return
		}
	}
	respondOK(c, newWagerResponse(wager))
}

// ResolveWager determines the outcome of a funded wager
func (h *Handlers) ResolveWager(c *gin.Context) {
	var req WagerIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidRequest(err))
		return
	}

	wager, err := h.coordinator.ResolveWager(c.Request.Context(), req.WagerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, newWagerResponse(wager))
}

// SettleEvent records an event result and resolves its wagers
func (h *Handlers) SettleEvent(c *gin.Context) {
	var req SettleEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidRequest(err))
		return
	}

	resolved, err := h.coordinator.SettleEvent(c.Request.Context(), req.EventID, req.WinningOutcome)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, newWagerResponses(resolved))
}

// GetWager returns a wager. With ?wait=true it polls until the wager settles or attempts run out.
func (h *Handlers) GetWager(c *gin.Context) {
	wagerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || wagerID <= 0 {
		respondError(c, errs.Newf(errs.CodeInvalidRequest, "invalid wager id %q", c.Param("id")))
		return
	}

	ctx := c.Request.Context()
	var wager *entities.Wager
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		wager, err = h.coordinator.AwaitSettlement(ctx, wagerID)
	} else {
		wager, err = h.coordinator.GetWager(ctx, wagerID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, newWagerResponse(wager))
}

// StartRound returns the player's open round, creating it if needed
func (h *Handlers) StartRound(c *gin.Context) {
	var req RoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidRequest(err))
		return
	}

	round, err := h.coordinator.StartRound(c.Request.Context(), req.PlayerID, entities.GameType(req.GameType))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, newRoundResponse(round))
}

// UpdateRound applies one game step to the open round
func (h *Handlers) UpdateRound(c *gin.Context) {
	var req RoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidRequest(err))
		return
	}

	outcome, err := h.coordinator.UpdateRound(c.Request.Context(), req.PlayerID, entities.GameType(req.GameType), req.Nonce, req.Step)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, newRoundOutcomeResponse(outcome))
}

// EndRound closes the open round and settles its wager
func (h *Handlers) EndRound(c *gin.Context) {
	var req RoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidRequest(err))
		return
	}

	outcome, err := h.coordinator.EndRound(c.Request.Context(), req.PlayerID, entities.GameType(req.GameType), req.Nonce, req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, newRoundOutcomeResponse(outcome))
}

// ClaimReferral links the player to a referrer
func (h *Handlers) ClaimReferral(c *gin.Context) {
	var req ClaimReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidRequest(err))
		return
	}

	account, err := h.referrals.Claim(c.Request.Context(), req.PlayerID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, newReferralAccountResponse(account))
}

// WithdrawReferralBonus pays the accrued bonus out
func (h *Handlers) WithdrawReferralBonus(c *gin.Context) {
	var req WithdrawReferralBonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidRequest(err))
		return
	}

	payout, err := h.referrals.Withdraw(c.Request.Context(), req.PlayerID, req.Destination)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, newBonusPayoutResponse(payout))
}

// GetReferralAccount returns the player's referral account, creating it on first use
func (h *Handlers) GetReferralAccount(c *gin.Context) {
	account, err := h.referrals.GetOrCreateAccount(c.Request.Context(), c.Param("playerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, newReferralAccountResponse(account))
}

// GetOdds returns the current house-adjusted quotes of an event
func (h *Handlers) GetOdds(c *gin.Context) {
	eventID := c.Param("eventId")
	quotes, err := h.quotes.CurrentQuotes(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, OddsResponse{EventID: eventID, Quotes: quotes})
}
