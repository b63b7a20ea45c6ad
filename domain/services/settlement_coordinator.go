package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"
	"gambler/settlement/domain/interfaces"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// CoordinatorConfig holds settlement limits and retry behaviour
type CoordinatorConfig struct {
	MinStake int64
	MaxStake int64
	// Retry bounds retries of transient store, chain and feed errors
	Retry RetryPolicy
	// Await bounds the polling fallback of AwaitSettlement
	Await RetryPolicy
	// BatchSize bounds each background sweep
	BatchSize int
}

type settlementCoordinator struct {
	ledger    interfaces.WagerLedger
	machine   *GameRoundMachine
	quotes    interfaces.QuoteService
	referrals interfaces.ReferralService
	wallet    interfaces.WalletCollaborator
	config    CoordinatorConfig
	now       func() time.Time
}

// NewSettlementCoordinator creates the coordinator. It holds no durable state.
func NewSettlementCoordinator(
	ledger interfaces.WagerLedger,
	machine *GameRoundMachine,
	quotes interfaces.QuoteService,
	referrals interfaces.ReferralService,
	wallet interfaces.WalletCollaborator,
	config CoordinatorConfig,
) interfaces.SettlementCoordinator {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultListLimit
	}
	return &settlementCoordinator{
		ledger:    ledger,
		machine:   machine,
		quotes:    quotes,
		referrals: referrals,
		wallet:    wallet,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c *settlementCoordinator) stakeLimits(policy GamePolicy) (int64, int64) {
	minStake, maxStake := c.config.MinStake, c.config.MaxStake
	if policy.MinStake > 0 {
		minStake = policy.MinStake
	}
	if policy.MaxStake > 0 {
		maxStake = policy.MaxStake
	}
	return minStake, maxStake
}

// PlaceWager validates and records a pending wager. Funding is confirmed later.
func (c *settlementCoordinator) PlaceWager(ctx context.Context, req interfaces.PlaceWagerRequest) (*entities.Wager, error) {
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	req.FundingTxID = strings.TrimSpace(req.FundingTxID)
	req.ChosenOutcome = strings.TrimSpace(req.ChosenOutcome)

	if req.PlayerID == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "player id is required")
	}
	if req.FundingTxID == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "funding transaction reference is required")
	}
	if !req.GameType.IsValid() {
		return nil, errs.Newf(errs.CodeInvalidGameType, "unknown game type %q", req.GameType)
	}
	strategy, err := c.machine.Strategy(req.GameType)
	if err != nil {
		return nil, err
	}

	minStake, maxStake := c.stakeLimits(strategy.Policy())
	if req.StakeAmount <= 0 {
		return nil, errs.New(errs.CodeInvalidStake, "stake must be positive")
	}
	if minStake > 0 && req.StakeAmount < minStake {
		return nil, errs.Newf(errs.CodeInvalidStake, "stake %d is below the minimum %d", req.StakeAmount, minStake)
	}
	if maxStake > 0 && req.StakeAmount > maxStake {
		return nil, errs.Newf(errs.CodeInvalidStake, "stake %d is above the maximum %d", req.StakeAmount, maxStake)
	}
	if req.ChosenOutcome == "" {
		return nil, errs.New(errs.CodeInvalidOutcome, "chosen outcome is required")
	}

	wager := &entities.Wager{
		PlayerID:      req.PlayerID,
		GameType:      req.GameType,
		StakeAmount:   req.StakeAmount,
		ChosenOutcome: req.ChosenOutcome,
		FundingTxID:   req.FundingTxID,
	}

	if req.GameType == entities.GameTypeEvent {
		if err := c.priceEventWager(ctx, wager, req.EventID); err != nil {
			return nil, err
		}
	} else {
		if err := c.priceRoundWager(ctx, wager, strategy); err != nil {
			return nil, err
		}
	}

	return retryTransient(ctx, c.config.Retry, func() (*entities.Wager, error) {
		return c.ledger.CreateWager(ctx, wager)
	})
}

func (c *settlementCoordinator) priceEventWager(ctx context.Context, wager *entities.Wager, eventID string) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return errs.New(errs.CodeInvalidRequest, "event id is required for event wagers")
	}

	result, err := retryTransient(ctx, c.config.Retry, func() (*entities.EventResult, error) {
		return c.ledger.GetEventResult(ctx, eventID)
	})
	if err != nil {
		return err
	}
	if result != nil {
		return errs.Newf(errs.CodeInvalidOutcome, "event %s is already settled", eventID)
	}

	quote, err := retryTransient(ctx, c.config.Retry, func() (entities.OddsQuote, error) {
		return c.quotes.Quote(ctx, eventID, wager.ChosenOutcome)
	})
	if errs.Is(err, errs.CodeOutcomeUnavailable) {
		return errs.Wrap(errs.CodeInvalidOutcome, err, fmt.Sprintf("outcome %q is not currently offered", wager.ChosenOutcome))
	}
	if err != nil {
		return err
	}
	if quote.AdjustedPrice.LessThan(one) {
		return errs.Newf(errs.CodeInvalidOutcome, "outcome %q is priced below 1.00", wager.ChosenOutcome)
	}

	wager.EventID = &eventID
	wager.GameInstanceID = eventID
	wager.ImpliedOdds = quote.AdjustedPrice
	return nil
}

func (c *settlementCoordinator) priceRoundWager(ctx context.Context, wager *entities.Wager, strategy OutcomeStrategy) error {
	odds, err := strategy.Price(wager.ChosenOutcome)
	if err != nil {
		return err
	}

	round, err := c.openRoundFor(ctx, wager.PlayerID, wager.GameType)
	if err != nil {
		return err
	}

	wager.ImpliedOdds = odds
	wager.GameInstanceID = round.InstanceID()
	return nil
}

// openRoundFor returns an open round with no live wager on it. A round left
// open behind a finished wager is voided and replaced.
func (c *settlementCoordinator) openRoundFor(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error) {
	for attempt := 0; attempt < 2; attempt++ {
		round, err := retryTransient(ctx, c.config.Retry, func() (*entities.GameRound, error) {
			return c.machine.Start(ctx, playerID, gameType)
		})
		if err != nil {
			return nil, err
		}

		existing, err := retryTransient(ctx, c.config.Retry, func() (*entities.Wager, error) {
			return c.ledger.GetWagerForRound(ctx, round)
		})
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return round, nil
		}
		if !existing.IsTerminal() {
			return nil, errs.Newf(errs.CodeRoundInProgress, "wager %d is still open on this %s round", existing.ID, gameType)
		}

		if _, err := c.machine.Void(ctx, round, "superseded"); err != nil && !isRoundGone(err) {
			return nil, err
		}
	}
	return nil, errs.Newf(errs.CodeRoundInProgress, "could not open a fresh %s round", gameType)
}

func isRoundGone(err error) bool {
	return errs.Is(err, errs.CodeRoundClosed) || errs.Is(err, errs.CodeStaleNonce)
}

// ConfirmFunding asks the chain once about the funding transaction.
// Funded, resolved and failed wagers are returned unchanged.
func (c *settlementCoordinator) ConfirmFunding(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	wager, err := retryTransient(ctx, c.config.Retry, func() (*entities.Wager, error) {
		return c.ledger.GetWager(ctx, wagerID)
	})
	if err != nil {
		return nil, err
	}
	if !wager.IsPending() {
		return wager, nil
	}

	status, err := retryTransient(ctx, c.config.Retry, func() (entities.TxStatus, error) {
		return c.wallet.ConfirmTransaction(ctx, wager.FundingTxID)
	})
	if err != nil {
		return nil, err
	}

	switch status {
	case entities.TxStatusConfirmed:
		wager, err = retryTransient(ctx, c.config.Retry, func() (*entities.Wager, error) {
			return c.ledger.MarkFunded(ctx, wagerID)
		})
		if err != nil {
			return nil, err
		}
		return c.resolveIfReady(ctx, wager)

	case entities.TxStatusFailed:
		return c.failFunding(ctx, wager, entities.FailureReasonFundingRejected)

	default:
		return wager, nil
	}
}

// ConfirmFundingByTx confirms the wager backed by a funding transaction
func (c *settlementCoordinator) ConfirmFundingByTx(ctx context.Context, fundingTxID string) (*entities.Wager, error) {
	wager, err := retryTransient(ctx, c.config.Retry, func() (*entities.Wager, error) {
		return c.ledger.GetWagerByFundingTx(ctx, fundingTxID)
	})
	if err != nil {
		return nil, err
	}
	return c.ConfirmFunding(ctx, wager.ID)
}

// ConfirmPendingWagers polls the chain for every pending wager and returns how many moved
func (c *settlementCoordinator) ConfirmPendingWagers(ctx context.Context) (int, error) {
	pending, err := c.ledger.ListPendingWagers(ctx, c.now(), c.config.BatchSize)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, w := range pending {
		if ctx.Err() != nil {
			return moved, ctx.Err()
		}
		updated, err := c.ConfirmFunding(ctx, w.ID)
		if err != nil {
			log.WithFields(log.Fields{
				"wagerId": w.ID,
				"error":   err,
			}).Warn("Failed to confirm wager funding")
			continue
		}
		if !updated.IsPending() {
			moved++
		}
	}
	return moved, nil
}

// failFunding fails a wager that is still pending. A wager funded in the
// meantime is returned unchanged.
func (c *settlementCoordinator) failFunding(ctx context.Context, wager *entities.Wager, reason string) (*entities.Wager, error) {
	failed, err := retryTransient(ctx, c.config.Retry, func() (*entities.Wager, error) {
		return c.ledger.MarkFailed(ctx, wager.ID, reason, entities.WagerStatusPending)
	})
	if err != nil {
		return nil, err
	}
	if failed.Status != entities.WagerStatusFailed {
		return failed, nil
	}

	if failed.GameType.IsSynchronous() {
		if roundID, ok := parseInstanceID(failed.GameInstanceID); ok {
			c.voidRound(ctx, roundID, reason)
		}
	}

	log.WithFields(log.Fields{
		"wagerId": failed.ID,
		"reason":  reason,
	}).Info("Wager failed")

	return failed, nil
}

func (c *settlementCoordinator) voidRound(ctx context.Context, roundID int64, reason string) {
	round, err := c.ledger.GetRound(ctx, roundID)
	if err != nil || round.IsEnded() {
		return
	}
	if _, err := c.machine.Void(ctx, round, reason); err != nil && !isRoundGone(err) {
		log.WithFields(log.Fields{
			"roundId": roundID,
			"error":   err,
		}).Warn("Failed to void round")
	}
}

// resolveIfReady settles a freshly funded wager when its outcome is already decidable
func (c *settlementCoordinator) resolveIfReady(ctx context.Context, wager *entities.Wager) (*entities.Wager, error) {
	if !wager.IsFunded() {
		return wager, nil
	}

	strategy, err := c.machine.Strategy(wager.GameType)
	if err != nil {
		return nil, err
	}

	ready := strategy.ResolvesOnFunding()
	if wager.GameType == entities.GameTypeEvent && wager.EventID != nil {
		result, err := c.ledger.GetEventResult(ctx, *wager.EventID)
		if err != nil {
			return nil, err
		}
		ready = result != nil
	}
	if !ready {
		return wager, nil
	}
	return c.ResolveWager(ctx, wager.ID)
}

// ResolveWager settles a funded wager. Resolving a resolved wager returns the
// stored record and makes sure the referral credit exists.
func (c *settlementCoordinator) ResolveWager(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	wager, err := retryTransient(ctx, c.config.Retry, func() (*entities.Wager, error) {
		return c.ledger.GetWager(ctx, wagerID)
	})
	if err != nil {
		return nil, err
	}

	switch wager.Status {
	case entities.WagerStatusResolved:
		return c.creditReferral(ctx, wager)
	case entities.WagerStatusFailed:
		return nil, errs.Newf(errs.CodeWagerFailed, "wager %d has failed", wagerID)
	case entities.WagerStatusPending:
		return nil, errs.Newf(errs.CodeNotFunded, "wager %d is not funded", wagerID)
	}

	strategy, err := c.machine.Strategy(wager.GameType)
	if err != nil {
		return nil, err
	}

	input := SettleInput{Wager: wager}
	if wager.GameType == entities.GameTypeEvent {
		if wager.EventID == nil {
			return nil, fmt.Errorf("event wager %d has no event id", wagerID)
		}
		input.Result, err = retryTransient(ctx, c.config.Retry, func() (*entities.EventResult, error) {
			return c.ledger.GetEventResult(ctx, *wager.EventID)
		})
		if err != nil {
			return nil, err
		}
	} else if roundID, ok := parseInstanceID(wager.GameInstanceID); ok {
		input.Round, err = retryTransient(ctx, c.config.Retry, func() (*entities.GameRound, error) {
			return c.ledger.GetRound(ctx, roundID)
		})
		if err != nil {
			return nil, err
		}
	}

	var settled Settlement
	resolved, err := retryTransient(ctx, c.config.Retry, func() (*entities.Wager, error) {
		return c.ledger.ResolveWagerWith(ctx, wagerID, func(w *entities.Wager) (entities.Resolution, error) {
			input.Wager = w
			s, err := strategy.Settle(input, c.machine.Sampler())
			if err != nil {
				return entities.Resolution{}, err
			}
			settled = s
			return s.Resolution(w.StakeAmount), nil
		})
	})
	if errs.Is(err, errs.CodeAlreadyResolved) {
		resolved, err = c.ledger.GetWager(ctx, wagerID)
	}
	if err != nil {
		return nil, err
	}

	if settled.Payload != nil && input.Round != nil && !input.Round.IsEnded() {
		c.closeRound(ctx, input.Round, settled)
	}

	return c.creditReferral(ctx, resolved)
}

// closeRound writes the settlement payload onto the wager's round
func (c *settlementCoordinator) closeRound(ctx context.Context, round *entities.GameRound, settled Settlement) {
	current, err := c.ledger.GetRound(ctx, round.ID)
	if err != nil || current.IsEnded() {
		return
	}
	_, err = c.machine.End(ctx, current.PlayerID, current.GameType, current.Nonce+1, settled.Payload)
	if err != nil && !isRoundGone(err) {
		log.WithFields(log.Fields{
			"roundId": round.ID,
			"error":   err,
		}).Warn("Failed to close settled round")
	}
}

func (c *settlementCoordinator) creditReferral(ctx context.Context, wager *entities.Wager) (*entities.Wager, error) {
	_, err := retryTransient(ctx, c.config.Retry, func() (*entities.ReferralCredit, error) {
		return c.referrals.Credit(ctx, wager.ID, wager.PlayerID, wager.StakeAmount)
	})
	if err != nil {
		return nil, fmt.Errorf("wager %d resolved but referral credit failed: %w", wager.ID, err)
	}
	return wager, nil
}

// SettleEvent records an event result and resolves every funded wager on it
func (c *settlementCoordinator) SettleEvent(ctx context.Context, eventID, winningOutcome string) ([]*entities.Wager, error) {
	result, err := retryTransient(ctx, c.config.Retry, func() (*entities.EventResult, error) {
		return c.ledger.RecordEventResult(ctx, eventID, winningOutcome)
	})
	if err != nil {
		return nil, err
	}

	funded, err := retryTransient(ctx, c.config.Retry, func() ([]*entities.Wager, error) {
		return c.ledger.ListFundedWagersForEvent(ctx, result.EventID)
	})
	if err != nil {
		return nil, err
	}

	resolved := make([]*entities.Wager, 0, len(funded))
	var failures []error
	for _, w := range funded {
		r, err := c.ResolveWager(ctx, w.ID)
		if err != nil {
			failures = append(failures, fmt.Errorf("wager %d: %w", w.ID, err))
			continue
		}
		resolved = append(resolved, r)
	}

	log.WithFields(log.Fields{
		"eventId":        result.EventID,
		"winningOutcome": result.WinningOutcome,
		"resolved":       len(resolved),
		"failed":         len(failures),
	}).Info("Event settled")

	return resolved, errors.Join(failures...)
}

// ExpireStaleFunding fails pending wagers older than timeout after one last chain check
func (c *settlementCoordinator) ExpireStaleFunding(ctx context.Context, timeout time.Duration) (int, error) {
	stale, err := c.ledger.ListPendingWagers(ctx, c.now().Add(-timeout), c.config.BatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, w := range stale {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		current, err := c.ConfirmFunding(ctx, w.ID)
		if err != nil {
			log.WithFields(log.Fields{
				"wagerId": w.ID,
				"error":   err,
			}).Warn("Funding check failed before expiry")
			current = w
		}
		if !current.IsPending() {
			continue
		}
		failed, err := c.failFunding(ctx, current, entities.FailureReasonFundingTimeout)
		if err != nil {
			log.WithFields(log.Fields{
				"wagerId": w.ID,
				"error":   err,
			}).Error("Failed to expire wager")
			continue
		}
		if failed.Status == entities.WagerStatusFailed {
			expired++
		}
	}
	return expired, nil
}

var errNotSettled = errors.New("wager not settled yet")

// AwaitSettlement polls a wager until it is terminal or the await policy is
// exhausted, and returns the latest record either way.
func (c *settlementCoordinator) AwaitSettlement(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	wager, err := backoff.RetryWithData(func() (*entities.Wager, error) {
		w, err := c.ledger.GetWager(ctx, wagerID)
		if err != nil {
			if errs.IsTransient(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if !w.IsTerminal() {
			return w, errNotSettled
		}
		return w, nil
	}, c.config.Await.backOff(ctx))

	if errors.Is(err, errNotSettled) && wager != nil {
		return wager, nil
	}
	return wager, err
}

// GetWager returns a wager or a NOT_FOUND error
func (c *settlementCoordinator) GetWager(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	return retryTransient(ctx, c.config.Retry, func() (*entities.Wager, error) {
		return c.ledger.GetWager(ctx, wagerID)
	})
}

// StartRound opens the player's round for a synchronous game
func (c *settlementCoordinator) StartRound(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error) {
	if !gameType.IsValid() {
		return nil, errs.Newf(errs.CodeInvalidGameType, "unknown game type %q", gameType)
	}
	return retryTransient(ctx, c.config.Retry, func() (*entities.GameRound, error) {
		return c.machine.Start(ctx, playerID, gameType)
	})
}

// playableWager returns the funded wager on the player's open round
func (c *settlementCoordinator) playableWager(ctx context.Context, playerID string, gameType entities.GameType) (*entities.Wager, error) {
	round, err := c.ledger.GetLatestRound(ctx, playerID, gameType)
	if err != nil {
		return nil, err
	}
	if round.IsEnded() {
		return nil, errs.Newf(errs.CodeRoundClosed, "round %d has ended", round.ID)
	}
	wager, err := c.ledger.GetWagerForRound(ctx, round)
	if err != nil {
		return nil, err
	}
	if wager == nil {
		return nil, errs.Newf(errs.CodeNotFunded, "round %d has no wager", round.ID)
	}
	switch wager.Status {
	case entities.WagerStatusPending:
		return nil, errs.Newf(errs.CodeNotFunded, "wager %d is not funded", wager.ID)
	case entities.WagerStatusFailed:
		return nil, errs.Newf(errs.CodeWagerFailed, "wager %d has failed", wager.ID)
	case entities.WagerStatusResolved:
		return nil, errs.Newf(errs.CodeRoundClosed, "wager %d is already settled", wager.ID)
	}
	return wager, nil
}

// UpdateRound applies a player step. If the step ends the round, the wager is settled.
func (c *settlementCoordinator) UpdateRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, step entities.RoundPayload) (*interfaces.RoundOutcome, error) {
	if !gameType.IsValid() {
		return nil, errs.Newf(errs.CodeInvalidGameType, "unknown game type %q", gameType)
	}
	wager, err := c.playableWager(ctx, playerID, gameType)
	if err != nil {
		return nil, err
	}

	round, err := c.machine.Update(ctx, wager, playerID, gameType, nonce, step)
	if err != nil {
		return nil, err
	}

	outcome := &interfaces.RoundOutcome{Round: round}
	if round.IsEnded() {
		outcome.Wager, err = c.ResolveWager(ctx, wager.ID)
		if err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// EndRound closes the round and settles its wager
func (c *settlementCoordinator) EndRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, payload entities.RoundPayload) (*interfaces.RoundOutcome, error) {
	if !gameType.IsValid() {
		return nil, errs.Newf(errs.CodeInvalidGameType, "unknown game type %q", gameType)
	}
	strategy, err := c.machine.Strategy(gameType)
	if err != nil {
		return nil, err
	}

	wager, err := c.playableWager(ctx, playerID, gameType)
	if err != nil && !errs.Is(err, errs.CodeNotFunded) {
		return nil, err
	}

	// Single-draw games close their round as part of settlement
	if wager != nil && strategy.ResolvesOnFunding() {
		resolved, err := c.ResolveWager(ctx, wager.ID)
		if err != nil {
			return nil, err
		}
		round, err := c.ledger.GetLatestRound(ctx, playerID, gameType)
		if err != nil {
			return nil, err
		}
		return &interfaces.RoundOutcome{Round: round, Wager: resolved}, nil
	}

	round, err := c.machine.End(ctx, playerID, gameType, nonce, payload)
	if err != nil {
		return nil, err
	}

	outcome := &interfaces.RoundOutcome{Round: round}
	if wager != nil {
		outcome.Wager, err = c.ResolveWager(ctx, wager.ID)
		if err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// VoidIdleRounds ends rounds idle for longer than idleFor and settles any funded wager on them
func (c *settlementCoordinator) VoidIdleRounds(ctx context.Context, idleFor time.Duration) (int, error) {
	idle, err := c.ledger.ListIdleRounds(ctx, c.now().Add(-idleFor), c.config.BatchSize)
	if err != nil {
		return 0, err
	}

	voided := 0
	for _, round := range idle {
		if ctx.Err() != nil {
			return voided, ctx.Err()
		}
		if _, err := c.machine.Void(ctx, round, "idle_timeout"); err != nil {
			if !isRoundGone(err) {
				log.WithFields(log.Fields{
					"roundId": round.ID,
					"error":   err,
				}).Warn("Failed to void idle round")
			}
			continue
		}
		voided++

		wager, err := c.ledger.GetWagerForRound(ctx, round)
		if err != nil || wager == nil || !wager.IsFunded() {
			continue
		}
		if _, err := c.ResolveWager(ctx, wager.ID); err != nil {
			log.WithFields(log.Fields{
				"wagerId": wager.ID,
				"roundId": round.ID,
				"error":   err,
			}).Warn("Failed to settle wager on voided round")
		}
	}
	return voided, nil
}
