package services

import (
	"fmt"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// GamePolicy holds the tunable parameters of one game
type GamePolicy struct {
	HouseEdge decimal.Decimal
	MinStake  int64
	MaxStake  int64
	// DefaultMines is used when a mines wager does not name a mine count
	DefaultMines int
}

// OutcomeStrategy is the per-game part of the round state machine:
// bet pricing, payload shape and the win predicate.
type OutcomeStrategy interface {
	GameType() entities.GameType
	Policy() GamePolicy

	// Price validates a chosen bet and returns its house-adjusted payout multiplier
	Price(choice string) (decimal.Decimal, error)

	// ResolvesOnFunding reports whether the wager settles as soon as funding confirms
	ResolvesOnFunding() bool

	// Advance applies a player step to an open round
	Advance(in AdvanceInput, sampler Sampler) (entities.RoundPayload, bool, error)

	// Finish builds the payload of a round the player is closing
	Finish(round *entities.GameRound, payload entities.RoundPayload) (entities.RoundPayload, error)

	// Settle decides the result of a funded wager
	Settle(in SettleInput, sampler Sampler) (Settlement, error)
}

// AdvanceInput is what a strategy sees when a player acts on a round
type AdvanceInput struct {
	Round *entities.GameRound
	Wager *entities.Wager
	Nonce int64
	Step  entities.RoundPayload
}

// SettleInput is what a strategy sees when a wager is settled
type SettleInput struct {
	Wager  *entities.Wager
	Round  *entities.GameRound
	Result *entities.EventResult
}

// Settlement is a strategy's verdict on a wager
type Settlement struct {
	Won        bool
	Multiplier decimal.Decimal
	Outcome    string
	Payload    entities.RoundPayload
}

// Resolution converts the verdict into the ledger's terms
func (s Settlement) Resolution(stake int64) entities.Resolution {
	if !s.Won {
		return entities.Resolution{Payout: 0, Outcome: s.Outcome}
	}
	return entities.Resolution{
		Payout:  entities.CalculatePayout(stake, s.Multiplier),
		Outcome: s.Outcome,
		Odds:    s.Multiplier,
	}
}

// quotedMultiplier applies the edge to a fair multiplier, truncating to cents
// and never quoting below 1.00.
func quotedMultiplier(edge, fair decimal.Decimal) decimal.Decimal {
	m := fair.Mul(one.Sub(edge)).Truncate(pricePlaces)
	if m.LessThan(one) {
		return one
	}
	return m
}

// winProbability is the single-draw target p = (1 - edge) / multiplier,
// which makes the expected return of every bet exactly 1 - edge.
func winProbability(edge, multiplier decimal.Decimal) float64 {
	p, _ := one.Sub(edge).Div(multiplier).Float64()
	if p > 1 {
		return 1
	}
	return p
}

// drawWin classifies one uniform draw. Never resampled.
func drawWin(sampler Sampler, p float64) bool {
	return sampler.Float64() < p
}

// pickFrom returns a uniform member of set
func pickFrom(sampler Sampler, set []int) int {
	return set[sampler.IntN(len(set))]
}

// partition splits 0..n-1 by the predicate
func partition(n int, wins func(int) bool) (winning, losing []int) {
	for v := 0; v < n; v++ {
		if wins(v) {
			winning = append(winning, v)
		} else {
			losing = append(losing, v)
		}
	}
	return winning, losing
}

// StrategyRegistry maps game types to their strategies
type StrategyRegistry struct {
	strategies map[entities.GameType]OutcomeStrategy
}

// NewStrategyRegistry creates a registry from strategies
func NewStrategyRegistry(strategies ...OutcomeStrategy) *StrategyRegistry {
	r := &StrategyRegistry{strategies: make(map[entities.GameType]OutcomeStrategy)}
	for _, s := range strategies {
		r.strategies[s.GameType()] = s
	}
	return r
}

// DefaultStrategies builds every built-in strategy. Games missing from policies use fallback.
func DefaultStrategies(policies map[entities.GameType]GamePolicy, fallback GamePolicy) *StrategyRegistry {
	policyFor := func(gt entities.GameType) GamePolicy {
		if p, ok := policies[gt]; ok {
			return p
		}
		return fallback
	}
	return NewStrategyRegistry(
		NewDiceStrategy(policyFor(entities.GameTypeDice)),
		NewRouletteStrategy(policyFor(entities.GameTypeRoulette)),
		NewMinesStrategy(policyFor(entities.GameTypeMines)),
		NewEventStrategy(policyFor(entities.GameTypeEvent)),
	)
}

// Get returns the strategy for a game type
func (r *StrategyRegistry) Get(gameType entities.GameType) (OutcomeStrategy, error) {
	s, ok := r.strategies[gameType]
	if !ok {
		return nil, errs.Newf(errs.CodeInvalidGameType, "unknown game type %q", gameType)
	}
	return s, nil
}

// GameTypes lists registered game types
func (r *StrategyRegistry) GameTypes() []entities.GameType {
	var out []entities.GameType
	for _, gt := range entities.AllGameTypes {
		if _, ok := r.strategies[gt]; ok {
			out = append(out, gt)
		}
	}
	return out
}

func invalidChoice(gameType entities.GameType, choice string, reason string) error {
	return errs.Newf(errs.CodeInvalidOutcome, "invalid %s bet %q: %s", gameType, choice, reason)
}

func mergePayload(base, extra entities.RoundPayload) entities.RoundPayload {
	out := make(entities.RoundPayload, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func noSteps(gameType entities.GameType) error {
	return errs.New(errs.CodeInvalidRequest, fmt.Sprintf("%s rounds take no intermediate steps", gameType))
}
