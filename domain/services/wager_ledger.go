package services

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"
	"gambler/settlement/domain/events"
	"gambler/settlement/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// Sizes of the read batches used by background sweeps
const defaultListLimit = 200

type wagerLedger struct {
	uowFactory interfaces.UnitOfWorkFactory
	locker     interfaces.KeyLocker
	now        func() time.Time
}

// NewWagerLedger creates the ledger. Every mutation holds the per-key lock only
// around its own transaction, and every write is also a guarded compare-and-set
// in storage so concurrent processes stay correct with an in-process locker.
func NewWagerLedger(uowFactory interfaces.UnitOfWorkFactory, locker interfaces.KeyLocker) interfaces.WagerLedger {
	return &wagerLedger{
		uowFactory: uowFactory,
		locker:     locker,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func wagerKey(wagerID int64) string {
	return fmt.Sprintf("wager:%d", wagerID)
}

func roundKey(playerID string, gameType entities.GameType) string {
	return fmt.Sprintf("round:%s:%s", playerID, gameType)
}

func fundingKey(fundingTxID string) string {
	return "funding:" + fundingTxID
}

// storeError classifies failures of the transaction itself as transient
func storeError(msg string, err error) error {
	if errs.KindOf(err) != errs.KindInternal {
		return err
	}
	return errs.Transient(err, msg)
}

func (l *wagerLedger) withLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := l.locker.Lock(ctx, key)
	if err != nil {
		return errs.Transient(err, fmt.Sprintf("failed to acquire lock %s", key))
	}
	defer unlock()
	return fn()
}

func (l *wagerLedger) inTx(ctx context.Context, fn func(uow interfaces.UnitOfWork) error) error {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storeError("failed to begin transaction", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return storeError("failed to commit transaction", err)
	}
	return nil
}

// CreateWager records a new pending wager
func (l *wagerLedger) CreateWager(ctx context.Context, wager *entities.Wager) (*entities.Wager, error) {
	if wager.StakeAmount <= 0 {
		return nil, errs.New(errs.CodeInvalidStake, "stake must be positive")
	}
	if wager.ImpliedOdds.LessThan(one) {
		return nil, errs.Newf(errs.CodeInvalidOutcome, "implied odds %s are below 1.00", wager.ImpliedOdds)
	}
	if strings.TrimSpace(wager.FundingTxID) == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "funding transaction reference is required")
	}

	wager.Status = entities.WagerStatusPending
	wager.PayoutAmount = nil
	wager.ResolvedAt = nil

	err := l.withLock(ctx, fundingKey(wager.FundingTxID), func() error {
		return l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
			existing, err := uow.WagerRepository().GetByFundingTx(ctx, wager.FundingTxID)
			if err != nil {
				return fmt.Errorf("failed to check funding reference: %w", err)
			}
			if existing != nil {
				return errs.Newf(errs.CodeDuplicateFundingTx, "funding transaction %s already backs wager %d", wager.FundingTxID, existing.ID)
			}

			if err := uow.WagerRepository().Create(ctx, wager); err != nil {
				return err
			}

			return uow.EventBus().Publish(events.WagerPlacedEvent{
				WagerID:       wager.ID,
				PlayerID:      wager.PlayerID,
				GameType:      string(wager.GameType),
				StakeAmount:   wager.StakeAmount,
				ChosenOutcome: wager.ChosenOutcome,
				ImpliedOdds:   wager.ImpliedOdds.String(),
				FundingTxID:   wager.FundingTxID,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"wagerId":  wager.ID,
		"playerId": wager.PlayerID,
		"gameType": wager.GameType,
		"stake":    wager.StakeAmount,
	}).Info("Wager recorded")

	return wager, nil
}

// GetWager returns a wager or a NOT_FOUND error
func (l *wagerLedger) GetWager(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	var wager *entities.Wager
	err := l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		wager, err = uow.WagerRepository().GetByID(ctx, wagerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if wager == nil {
		return nil, errs.NotFound("wager %d not found", wagerID)
	}
	return wager, nil
}

// GetWagerByFundingTx returns the wager backed by a funding transaction
func (l *wagerLedger) GetWagerByFundingTx(ctx context.Context, fundingTxID string) (*entities.Wager, error) {
	var wager *entities.Wager
	err := l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		wager, err = uow.WagerRepository().GetByFundingTx(ctx, fundingTxID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if wager == nil {
		return nil, errs.NotFound("no wager for funding transaction %s", fundingTxID)
	}
	return wager, nil
}

// GetWagerForRound returns the latest wager placed on a round, or nil
func (l *wagerLedger) GetWagerForRound(ctx context.Context, round *entities.GameRound) (*entities.Wager, error) {
	var wager *entities.Wager
	err := l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		wager, err = uow.WagerRepository().GetLatestByGameInstance(ctx, round.GameType, round.InstanceID())
		return err
	})
	return wager, err
}

// transitionWager loads a wager under its lock, applies change and writes it
// back guarded by the status it was read in.
func (l *wagerLedger) transitionWager(ctx context.Context, wagerID int64, change func(w *entities.Wager) (bool, error), event func(w *entities.Wager) events.Event) (*entities.Wager, error) {
	var wager *entities.Wager
	err := l.withLock(ctx, wagerKey(wagerID), func() error {
		return l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
			w, err := uow.WagerRepository().GetByID(ctx, wagerID)
			if err != nil {
				return fmt.Errorf("failed to get wager: %w", err)
			}
			if w == nil {
				return errs.NotFound("wager %d not found", wagerID)
			}

			expected := w.Status
			changed, err := change(w)
			if err != nil {
				return err
			}
			wager = w
			if !changed {
				return nil
			}

			ok, err := uow.WagerRepository().UpdateStatus(ctx, w, expected)
			if err != nil {
				return err
			}
			if !ok {
				return errs.Transient(nil, fmt.Sprintf("wager %d changed concurrently", wagerID))
			}

			return uow.EventBus().Publish(event(w))
		})
	})
	if err != nil {
		return nil, err
	}
	return wager, nil
}

// MarkFunded moves a pending wager to funded. Funded and resolved wagers are returned unchanged.
func (l *wagerLedger) MarkFunded(ctx context.Context, wagerID int64) (*entities.Wager, error) {
	return l.transitionWager(ctx, wagerID, func(w *entities.Wager) (bool, error) {
		switch w.Status {
		case entities.WagerStatusFunded, entities.WagerStatusResolved:
			return false, nil
		case entities.WagerStatusFailed:
			return false, errs.Newf(errs.CodeWagerFailed, "wager %d has failed", w.ID)
		}
		return w.MarkFunded(l.now()), nil
	}, func(w *entities.Wager) events.Event {
		return events.WagerFundedEvent{WagerID: w.ID, PlayerID: w.PlayerID}
	})
}

// MarkFailed moves a pending or funded wager to failed. When from is given, a
// wager in any other status is returned unchanged.
func (l *wagerLedger) MarkFailed(ctx context.Context, wagerID int64, reason string, from ...entities.WagerStatus) (*entities.Wager, error) {
	return l.transitionWager(ctx, wagerID, func(w *entities.Wager) (bool, error) {
		switch {
		case w.Status == entities.WagerStatusFailed:
			return false, nil
		case len(from) > 0 && !slices.Contains(from, w.Status):
			return false, nil
		case w.Status == entities.WagerStatusResolved:
			return false, errs.Newf(errs.CodeAlreadyResolved, "wager %d is already resolved", w.ID)
		}
		return w.MarkFailed(reason), nil
	}, func(w *entities.Wager) events.Event {
		return events.WagerFailedEvent{WagerID: w.ID, PlayerID: w.PlayerID, GameType: string(w.GameType), Reason: reason}
	})
}

// ResolveWager records a fixed payout on a funded wager
func (l *wagerLedger) ResolveWager(ctx context.Context, wagerID int64, payout int64, outcome string) (*entities.Wager, error) {
	return l.ResolveWagerWith(ctx, wagerID, func(*entities.Wager) (entities.Resolution, error) {
		return entities.Resolution{Payout: payout, Outcome: outcome}, nil
	})
}

// ResolveWagerWith decides and records the result of a funded wager while it is locked
func (l *wagerLedger) ResolveWagerWith(ctx context.Context, wagerID int64, decide interfaces.ResolutionFunc) (*entities.Wager, error) {
	wager, err := l.transitionWager(ctx, wagerID, func(w *entities.Wager) (bool, error) {
		switch w.Status {
		case entities.WagerStatusResolved:
			return false, errs.Newf(errs.CodeAlreadyResolved, "wager %d is already resolved", w.ID)
		case entities.WagerStatusFailed:
			return false, errs.Newf(errs.CodeWagerFailed, "wager %d has failed", w.ID)
		case entities.WagerStatusPending:
			return false, errs.Newf(errs.CodeNotFunded, "wager %d is not funded", w.ID)
		}

		res, err := decide(w)
		if err != nil {
			return false, err
		}
		if !w.Resolve(res, l.now()) {
			return false, fmt.Errorf("invalid resolution for wager %d: payout %d", w.ID, res.Payout)
		}
		return true, nil
	}, func(w *entities.Wager) events.Event {
		return events.WagerResolvedEvent{
			WagerID:      w.ID,
			PlayerID:     w.PlayerID,
			GameType:     string(w.GameType),
			StakeAmount:  w.StakeAmount,
			PayoutAmount: *w.PayoutAmount,
			Outcome:      *w.Outcome,
			Won:          w.IsWin(),
		}
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"wagerId": wager.ID,
		"payout":  *wager.PayoutAmount,
		"outcome": *wager.Outcome,
	}).Info("Wager resolved")

	return wager, nil
}

// ListPendingWagers returns pending wagers created before the cutoff
func (l *wagerLedger) ListPendingWagers(ctx context.Context, createdBefore time.Time, limit int) ([]*entities.Wager, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var wagers []*entities.Wager
	err := l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		wagers, err = uow.WagerRepository().ListByStatusCreatedBefore(ctx, entities.WagerStatusPending, createdBefore, limit)
		return err
	})
	return wagers, err
}

// ListFundedWagersForEvent returns funded wagers waiting on an event result
func (l *wagerLedger) ListFundedWagersForEvent(ctx context.Context, eventID string) ([]*entities.Wager, error) {
	var wagers []*entities.Wager
	err := l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		wagers, err = uow.WagerRepository().ListFundedByEvent(ctx, eventID)
		return err
	})
	return wagers, err
}

// CreateOrGetRound returns the open round for the key or starts one at nonce 0
func (l *wagerLedger) CreateOrGetRound(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error) {
	if strings.TrimSpace(playerID) == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "player id is required")
	}

	var round *entities.GameRound
	err := l.withLock(ctx, roundKey(playerID, gameType), func() error {
		err := l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
			latest, err := uow.GameRoundRepository().GetLatest(ctx, playerID, gameType)
			if err != nil {
				return fmt.Errorf("failed to get latest round: %w", err)
			}
			if latest != nil && !latest.IsEnded() {
				round = latest
				return nil
			}

			round = &entities.GameRound{
				PlayerID: playerID,
				GameType: gameType,
				Nonce:    0,
				State:    entities.RoundStateActive,
				Payload:  entities.RoundPayload{},
			}
			return uow.GameRoundRepository().Create(ctx, round)
		})
		if errs.Is(err, errs.CodeRoundInProgress) {
			// another process opened the round first
			return l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
				var err error
				round, err = uow.GameRoundRepository().GetLatest(ctx, playerID, gameType)
				return err
			})
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return round, nil
}

// GetRound returns a round by id or a NOT_FOUND error
func (l *wagerLedger) GetRound(ctx context.Context, roundID int64) (*entities.GameRound, error) {
	var round *entities.GameRound
	err := l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		round, err = uow.GameRoundRepository().GetByID(ctx, roundID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, errs.NotFound("round %d not found", roundID)
	}
	return round, nil
}

// GetLatestRound returns the most recent round for the key or a NOT_FOUND error
func (l *wagerLedger) GetLatestRound(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error) {
	var round *entities.GameRound
	err := l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		round, err = uow.GameRoundRepository().GetLatest(ctx, playerID, gameType)
		return err
	})
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, errs.NotFound("no %s round for player %s", gameType, playerID)
	}
	return round, nil
}

// ApplyRoundUpdate replaces the payload of the open round if nonce is not behind
func (l *wagerLedger) ApplyRoundUpdate(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, payload entities.RoundPayload) (*entities.GameRound, error) {
	return l.MutateRound(ctx, playerID, gameType, nonce, func(*entities.GameRound) (entities.RoundPayload, bool, error) {
		return payload, false, nil
	})
}

// EndRound closes the open round with a final payload
func (l *wagerLedger) EndRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, payload entities.RoundPayload) (*entities.GameRound, error) {
	return l.MutateRound(ctx, playerID, gameType, nonce, func(*entities.GameRound) (entities.RoundPayload, bool, error) {
		return payload, true, nil
	})
}

// MutateRound is the single compare-and-set path for round writes
func (l *wagerLedger) MutateRound(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, mutate interfaces.RoundMutation) (*entities.GameRound, error) {
	if nonce < 0 {
		return nil, errs.New(errs.CodeInvalidRequest, "nonce must not be negative")
	}

	var updated *entities.GameRound
	err := l.withLock(ctx, roundKey(playerID, gameType), func() error {
		return l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
			repo := uow.GameRoundRepository()
			current, err := repo.GetLatest(ctx, playerID, gameType)
			if err != nil {
				return fmt.Errorf("failed to get latest round: %w", err)
			}
			if current == nil {
				return errs.NotFound("no %s round for player %s", gameType, playerID)
			}
			if current.IsEnded() {
				return errs.Newf(errs.CodeRoundClosed, "round %d has ended", current.ID)
			}
			if nonce < current.Nonce {
				return errs.Newf(errs.CodeStaleNonce, "nonce %d is behind stored nonce %d", nonce, current.Nonce)
			}

			payload, end, err := mutate(current)
			if err != nil {
				return err
			}
			if payload == nil {
				payload = entities.RoundPayload{}
			}

			next := *current
			next.Nonce = nonce
			next.Payload = payload
			next.UpdatedAt = l.now()
			if end {
				endedAt := next.UpdatedAt
				next.State = entities.RoundStateEnded
				next.EndedAt = &endedAt
			}

			ok, err := repo.CompareAndSet(ctx, &next)
			if err != nil {
				return err
			}
			if !ok {
				stored, err := repo.GetByID(ctx, current.ID)
				if err != nil {
					return fmt.Errorf("failed to reload round: %w", err)
				}
				if stored == nil || stored.IsEnded() {
					return errs.Newf(errs.CodeRoundClosed, "round %d has ended", current.ID)
				}
				return errs.Newf(errs.CodeStaleNonce, "nonce %d is behind stored nonce %d", nonce, stored.Nonce)
			}
			updated = &next

			if end {
				return uow.EventBus().Publish(events.RoundEndedEvent{
					RoundID:  next.ID,
					PlayerID: next.PlayerID,
					GameType: string(next.GameType),
					Nonce:    next.Nonce,
					Payload:  next.Payload,
					Voided:   next.IsVoided(),
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"roundId":  updated.ID,
		"playerId": playerID,
		"gameType": gameType,
		"nonce":    nonce,
		"ended":    updated.IsEnded(),
	}).Debug("Round updated")

	return updated, nil
}

// ListIdleRounds returns open rounds not updated since idleSince
func (l *wagerLedger) ListIdleRounds(ctx context.Context, idleSince time.Time, limit int) ([]*entities.GameRound, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rounds []*entities.GameRound
	err := l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		rounds, err = uow.GameRoundRepository().ListIdle(ctx, idleSince, limit)
		return err
	})
	return rounds, err
}

// RecordEventResult stores an event result. The first result recorded wins.
func (l *wagerLedger) RecordEventResult(ctx context.Context, eventID, winningOutcome string) (*entities.EventResult, error) {
	if strings.TrimSpace(eventID) == "" || strings.TrimSpace(winningOutcome) == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "event id and winning outcome are required")
	}

	var stored *entities.EventResult
	err := l.withLock(ctx, "event:"+eventID, func() error {
		return l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
			var err error
			stored, err = uow.EventResultRepository().Record(ctx, &entities.EventResult{
				EventID:        eventID,
				WinningOutcome: winningOutcome,
				SettledAt:      l.now(),
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if stored.WinningOutcome != winningOutcome {
		log.WithFields(log.Fields{
			"eventId":  eventID,
			"recorded": stored.WinningOutcome,
			"ignored":  winningOutcome,
		}).Warn("Event already has a different result, keeping the first one")
	}
	return stored, nil
}

// GetEventResult returns the recorded result for an event, or nil
func (l *wagerLedger) GetEventResult(ctx context.Context, eventID string) (*entities.EventResult, error) {
	var result *entities.EventResult
	err := l.inTx(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		result, err = uow.EventResultRepository().Get(ctx, eventID)
		return err
	})
	return result, err
}

// parseInstanceID converts a wager's game instance id back to a round id
func parseInstanceID(instanceID string) (int64, bool) {
	id, err := strconv.ParseInt(instanceID, 10, 64)
	return id, err == nil
}
