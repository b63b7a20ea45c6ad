package services

import (
	"fmt"
	"strconv"
	"strings"

	"gambler/settlement/domain/entities"

	"github.com/shopspring/decimal"
)

const roulettePockets = 37

var redPockets = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

func pocketColor(n int) string {
	switch {
	case n == 0:
		return "green"
	case redPockets[n]:
		return "red"
	default:
		return "black"
	}
}

// RouletteStrategy settles bets on a single-zero wheel
type RouletteStrategy struct {
	policy GamePolicy
}

// NewRouletteStrategy creates the roulette strategy
func NewRouletteStrategy(policy GamePolicy) *RouletteStrategy {
	return &RouletteStrategy{policy: policy}
}

func (s *RouletteStrategy) GameType() entities.GameType { return entities.GameTypeRoulette }
func (s *RouletteStrategy) Policy() GamePolicy          { return s.policy }
func (s *RouletteStrategy) ResolvesOnFunding() bool     { return true }

// predicate returns the win test for a bet
func (s *RouletteStrategy) predicate(choice string) (func(int) bool, error) {
	bet := strings.ToLower(strings.TrimSpace(choice))
	switch bet {
	case "red":
		return func(n int) bool { return pocketColor(n) == "red" }, nil
	case "black":
		return func(n int) bool { return pocketColor(n) == "black" }, nil
	case "odd":
		return func(n int) bool { return n != 0 && n%2 == 1 }, nil
	case "even":
		return func(n int) bool { return n != 0 && n%2 == 0 }, nil
	case "low":
		return func(n int) bool { return n >= 1 && n <= 18 }, nil
	case "high":
		return func(n int) bool { return n >= 19 && n <= 36 }, nil
	}

	if rawNumber, ok := strings.CutPrefix(bet, "straight:"); ok {
		number, err := strconv.Atoi(rawNumber)
		if err != nil || number < 0 || number >= roulettePockets {
			return nil, invalidChoice(entities.GameTypeRoulette, choice, "straight bets name a pocket 0..36")
		}
		return func(n int) bool { return n == number }, nil
	}

	return nil, invalidChoice(entities.GameTypeRoulette, choice, "expected red, black, odd, even, low, high or straight:<n>")
}

func (s *RouletteStrategy) multiplier(wins func(int) bool) decimal.Decimal {
	winning, _ := partition(roulettePockets, wins)
	fair := decimal.NewFromInt(roulettePockets).Div(decimal.NewFromInt(int64(len(winning))))
	return quotedMultiplier(s.policy.HouseEdge, fair)
}

// Price returns the multiplier for a roulette bet
func (s *RouletteStrategy) Price(choice string) (decimal.Decimal, error) {
	wins, err := s.predicate(choice)
	if err != nil {
		return decimal.Zero, err
	}
	return s.multiplier(wins), nil
}

func (s *RouletteStrategy) Advance(in AdvanceInput, sampler Sampler) (entities.RoundPayload, bool, error) {
	return nil, false, noSteps(entities.GameTypeRoulette)
}

func (s *RouletteStrategy) Finish(round *entities.GameRound, payload entities.RoundPayload) (entities.RoundPayload, error) {
	return mergePayload(round.Payload, payload), nil
}

// Settle draws once and then lands the ball on a pocket from the matching side
func (s *RouletteStrategy) Settle(in SettleInput, sampler Sampler) (Settlement, error) {
	wins, err := s.predicate(in.Wager.ChosenOutcome)
	if err != nil {
		return Settlement{}, err
	}
	m := s.multiplier(wins)
	won := drawWin(sampler, winProbability(s.policy.HouseEdge, m))

	winning, losing := partition(roulettePockets, wins)
	var pocket int
	if won {
		pocket = pickFrom(sampler, winning)
	} else {
		pocket = pickFrom(sampler, losing)
	}

	return Settlement{
		Won:        won,
		Multiplier: m,
		Outcome:    fmt.Sprintf("pocket:%d", pocket),
		Payload: entities.RoundPayload{
			"pocket": pocket,
			"color":  pocketColor(pocket),
			"bet":    strings.ToLower(strings.TrimSpace(in.Wager.ChosenOutcome)),
			"won":    won,
		},
	}, nil
}
