package services

import (
	"strings"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"

	"github.com/shopspring/decimal"
)

// EventStrategy settles sports-style bets against a recorded event result
type EventStrategy struct {
	policy GamePolicy
}

// NewEventStrategy creates the event strategy
func NewEventStrategy(policy GamePolicy) *EventStrategy {
	return &EventStrategy{policy: policy}
}

func (s *EventStrategy) GameType() entities.GameType { return entities.GameTypeEvent }
func (s *EventStrategy) Policy() GamePolicy          { return s.policy }
func (s *EventStrategy) ResolvesOnFunding() bool     { return false }

// Price is not used for events; prices come from the odds feed
func (s *EventStrategy) Price(choice string) (decimal.Decimal, error) {
	return decimal.Zero, errs.New(errs.CodeInvalidRequest, "event bets are priced from the odds feed")
}

func (s *EventStrategy) Advance(in AdvanceInput, sampler Sampler) (entities.RoundPayload, bool, error) {
	return nil, false, errs.New(errs.CodeInvalidGameType, "event wagers have no rounds")
}

func (s *EventStrategy) Finish(round *entities.GameRound, payload entities.RoundPayload) (entities.RoundPayload, error) {
	return nil, errs.New(errs.CodeInvalidGameType, "event wagers have no rounds")
}

// Settle compares the chosen outcome with the recorded result
func (s *EventStrategy) Settle(in SettleInput, sampler Sampler) (Settlement, error) {
	if in.Result == nil {
		return Settlement{}, errs.New(errs.CodeResultPending, "event has no result yet")
	}
	won := strings.EqualFold(strings.TrimSpace(in.Wager.ChosenOutcome), strings.TrimSpace(in.Result.WinningOutcome))
	return Settlement{
		Won:        won,
		Multiplier: in.Wager.ImpliedOdds,
		Outcome:    in.Result.WinningOutcome,
	}, nil
}
