package services

import (
	"context"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"
	"gambler/settlement/domain/interfaces"
)

// GameRoundMachine drives rounds through Idle -> Active -> Ended.
// Persistence and the nonce rules live in the ledger; the per-game payload
// rules live in the registered strategies.
type GameRoundMachine struct {
	ledger     interfaces.WagerLedger
	strategies *StrategyRegistry
	sampler    Sampler
}

// NewGameRoundMachine creates a round state machine
func NewGameRoundMachine(ledger interfaces.WagerLedger, strategies *StrategyRegistry, sampler Sampler) *GameRoundMachine {
	if sampler == nil {
		sampler = NewSampler()
	}
	return &GameRoundMachine{
		ledger:     ledger,
		strategies: strategies,
		sampler:    sampler,
	}
}

// Strategy returns the strategy for a game type
func (m *GameRoundMachine) Strategy(gameType entities.GameType) (OutcomeStrategy, error) {
	return m.strategies.Get(gameType)
}

// Sampler returns the machine's draw source
func (m *GameRoundMachine) Sampler() Sampler {
	return m.sampler
}

func (m *GameRoundMachine) roundStrategy(gameType entities.GameType) (OutcomeStrategy, error) {
	if !gameType.IsSynchronous() {
		return nil, errs.Newf(errs.CodeInvalidGameType, "%s wagers have no rounds", gameType)
	}
	return m.strategies.Get(gameType)
}

// Start moves the player's round for a game from Idle to Active. Idempotent.
func (m *GameRoundMachine) Start(ctx context.Context, playerID string, gameType entities.GameType) (*entities.GameRound, error) {
	if _, err := m.roundStrategy(gameType); err != nil {
		return nil, err
	}
	return m.ledger.CreateOrGetRound(ctx, playerID, gameType)
}

// Update applies a player step to the active round
func (m *GameRoundMachine) Update(ctx context.Context, wager *entities.Wager, playerID string, gameType entities.GameType, nonce int64, step entities.RoundPayload) (*entities.GameRound, error) {
	strategy, err := m.roundStrategy(gameType)
	if err != nil {
		return nil, err
	}
	return m.ledger.MutateRound(ctx, playerID, gameType, nonce, func(round *entities.GameRound) (entities.RoundPayload, bool, error) {
		return strategy.Advance(AdvanceInput{Round: round, Wager: wager, Nonce: nonce, Step: step}, m.sampler)
	})
}

// End moves the active round to Ended
func (m *GameRoundMachine) End(ctx context.Context, playerID string, gameType entities.GameType, nonce int64, payload entities.RoundPayload) (*entities.GameRound, error) {
	strategy, err := m.roundStrategy(gameType)
	if err != nil {
		return nil, err
	}
	return m.ledger.MutateRound(ctx, playerID, gameType, nonce, func(round *entities.GameRound) (entities.RoundPayload, bool, error) {
		final, err := strategy.Finish(round, payload)
		return final, true, err
	})
}

// Void ends a specific round without a game result, keeping its payload
func (m *GameRoundMachine) Void(ctx context.Context, round *entities.GameRound, reason string) (*entities.GameRound, error) {
	return m.ledger.MutateRound(ctx, round.PlayerID, round.GameType, round.Nonce, func(current *entities.GameRound) (entities.RoundPayload, bool, error) {
		if current.ID != round.ID {
			return nil, false, errs.Newf(errs.CodeRoundClosed, "round %d has ended", round.ID)
		}
		return mergePayload(current.Payload, entities.VoidedPayload(reason)), true, nil
	})
}
