package services

import (
	"fmt"
	"strconv"
	"strings"

	"gambler/settlement/domain/entities"

	"github.com/shopspring/decimal"
)

const (
	diceFaces     = 100
	diceMinTarget = 2
	diceMaxTarget = 98
)

type diceBet struct {
	over   bool
	target int
}

func (b diceBet) wins(roll int) bool {
	if b.over {
		return roll > b.target
	}
	return roll < b.target
}

func (b diceBet) direction() string {
	if b.over {
		return "over"
	}
	return "under"
}

// DiceStrategy settles "under:<target>" and "over:<target>" bets on a 0..99 roll
type DiceStrategy struct {
	policy GamePolicy
}

// NewDiceStrategy creates the dice strategy
func NewDiceStrategy(policy GamePolicy) *DiceStrategy {
	return &DiceStrategy{policy: policy}
}

func (s *DiceStrategy) GameType() entities.GameType { return entities.GameTypeDice }
func (s *DiceStrategy) Policy() GamePolicy          { return s.policy }
func (s *DiceStrategy) ResolvesOnFunding() bool     { return true }

func (s *DiceStrategy) parse(choice string) (diceBet, error) {
	dir, rawTarget, ok := strings.Cut(strings.ToLower(strings.TrimSpace(choice)), ":")
	if !ok {
		return diceBet{}, invalidChoice(entities.GameTypeDice, choice, "expected under:<target> or over:<target>")
	}
	target, err := strconv.Atoi(rawTarget)
	if err != nil || target < diceMinTarget || target > diceMaxTarget {
		return diceBet{}, invalidChoice(entities.GameTypeDice, choice, fmt.Sprintf("target must be %d..%d", diceMinTarget, diceMaxTarget))
	}
	switch dir {
	case "under":
		return diceBet{target: target}, nil
	case "over":
		return diceBet{over: true, target: target}, nil
	default:
		return diceBet{}, invalidChoice(entities.GameTypeDice, choice, "direction must be under or over")
	}
}

func (s *DiceStrategy) multiplier(bet diceBet) decimal.Decimal {
	winning, _ := partition(diceFaces, bet.wins)
	fair := decimal.NewFromInt(diceFaces).Div(decimal.NewFromInt(int64(len(winning))))
	return quotedMultiplier(s.policy.HouseEdge, fair)
}

// Price returns the multiplier for a dice bet
func (s *DiceStrategy) Price(choice string) (decimal.Decimal, error) {
	bet, err := s.parse(choice)
	if err != nil {
		return decimal.Zero, err
	}
	return s.multiplier(bet), nil
}

func (s *DiceStrategy) Advance(in AdvanceInput, sampler Sampler) (entities.RoundPayload, bool, error) {
	return nil, false, noSteps(entities.GameTypeDice)
}

func (s *DiceStrategy) Finish(round *entities.GameRound, payload entities.RoundPayload) (entities.RoundPayload, error) {
	return mergePayload(round.Payload, payload), nil
}

// Settle draws once against the bet's win probability and then picks a roll
// from the matching side.
func (s *DiceStrategy) Settle(in SettleInput, sampler Sampler) (Settlement, error) {
	bet, err := s.parse(in.Wager.ChosenOutcome)
	if err != nil {
		return Settlement{}, err
	}
	m := s.multiplier(bet)
	won := drawWin(sampler, winProbability(s.policy.HouseEdge, m))

	winning, losing := partition(diceFaces, bet.wins)
	var roll int
	if won {
		roll = pickFrom(sampler, winning)
	} else {
		roll = pickFrom(sampler, losing)
	}

	return Settlement{
		Won:        won,
		Multiplier: m,
		Outcome:    fmt.Sprintf("roll:%d", roll),
		Payload: entities.RoundPayload{
			"roll":      roll,
			"target":    bet.target,
			"direction": bet.direction(),
			"won":       won,
		},
	}, nil
}
