package services

import (
	"fmt"
	"strconv"
	"strings"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"

	"github.com/shopspring/decimal"
)

const (
	minesGridSize = 25
	minesMaxMines = minesGridSize - 1
)

// MinesStrategy runs a 5x5 grid where each reveal is a round update.
//
// The cash-out multiplier after k safe reveals is m(k), the house-adjusted fair
// multiplier for surviving k reveals. Reveal k survives with probability
// m(k-1)/m(k), where m(0) = 1 - edge, so the chance of reaching any cash-out
// tier is (1 - edge)/m(k).
type MinesStrategy struct {
	policy GamePolicy
}

// NewMinesStrategy creates the mines strategy
func NewMinesStrategy(policy GamePolicy) *MinesStrategy {
	if policy.DefaultMines <= 0 {
		policy.DefaultMines = 3
	}
	return &MinesStrategy{policy: policy}
}

func (s *MinesStrategy) GameType() entities.GameType { return entities.GameTypeMines }
func (s *MinesStrategy) Policy() GamePolicy          { return s.policy }
func (s *MinesStrategy) ResolvesOnFunding() bool     { return false }

func (s *MinesStrategy) mineCount(choice string) (int, error) {
	c := strings.ToLower(strings.TrimSpace(choice))
	if c == "mines" || c == "" {
		return s.policy.DefaultMines, nil
	}
	raw, ok := strings.CutPrefix(c, "mines:")
	if !ok {
		return 0, invalidChoice(entities.GameTypeMines, choice, "expected mines or mines:<count>")
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > minesMaxMines {
		return 0, invalidChoice(entities.GameTypeMines, choice, fmt.Sprintf("mine count must be 1..%d", minesMaxMines))
	}
	return n, nil
}

// Multiplier returns the cash-out multiplier after revealed safe cells
func (s *MinesStrategy) Multiplier(mines, revealed int) decimal.Decimal {
	if revealed == 0 {
		return one.Sub(s.policy.HouseEdge)
	}
	fair := one
	for j := 0; j < revealed; j++ {
		fair = fair.Mul(decimal.NewFromInt(int64(minesGridSize - j))).
			Div(decimal.NewFromInt(int64(minesGridSize - mines - j)))
	}
	return quotedMultiplier(s.policy.HouseEdge, fair)
}

// revealSurvival is the probability that reveal number k (1-based) is safe
func (s *MinesStrategy) revealSurvival(mines, k int) float64 {
	p, _ := s.Multiplier(mines, k-1).Div(s.Multiplier(mines, k)).Float64()
	if p > 1 {
		return 1
	}
	return p
}

// Price returns the multiplier after the first safe reveal
func (s *MinesStrategy) Price(choice string) (decimal.Decimal, error) {
	mines, err := s.mineCount(choice)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Multiplier(mines, 1), nil
}

// Advance reveals one cell. A replayed nonce returns the stored payload unchanged.
func (s *MinesStrategy) Advance(in AdvanceInput, sampler Sampler) (entities.RoundPayload, bool, error) {
	if in.Wager == nil {
		return nil, false, errs.New(errs.CodeNotFunded, "mines round has no wager")
	}
	mines, err := s.mineCount(in.Wager.ChosenOutcome)
	if err != nil {
		return nil, false, err
	}

	payload := mergePayload(in.Round.Payload, nil)
	payload["mines"] = mines
	revealed := payloadInts(payload, "revealed")
	steps := payloadSteps(payload)
	nonceKey := strconv.FormatInt(in.Nonce, 10)

	if _, replay := steps[nonceKey]; replay {
		return payload, payloadBool(payload, "hitMine") || len(revealed) == minesGridSize-mines, nil
	}
	if payloadBool(payload, "hitMine") {
		return nil, false, errs.New(errs.CodeRoundClosed, "round already hit a mine")
	}

	cell, ok := payloadInt(in.Step, "cell")
	if !ok || cell < 0 || cell >= minesGridSize {
		return nil, false, errs.Newf(errs.CodeInvalidRequest, "cell must be 0..%d", minesGridSize-1)
	}
	for _, r := range revealed {
		if r == cell {
			return nil, false, errs.Newf(errs.CodeInvalidRequest, "cell %d is already revealed", cell)
		}
	}

	k := len(revealed) + 1
	steps[nonceKey] = cell
	payload["steps"] = steps

	if drawWin(sampler, s.revealSurvival(mines, k)) {
		revealed = append(revealed, cell)
		payload["revealed"] = revealed
		payload["multiplier"] = s.Multiplier(mines, len(revealed)).String()
		return payload, len(revealed) == minesGridSize-mines, nil
	}

	payload["revealed"] = revealed
	payload["hitMine"] = true
	payload["mineCell"] = cell
	return payload, true, nil
}

// Finish cashes out. At least one safe reveal is required.
func (s *MinesStrategy) Finish(round *entities.GameRound, payload entities.RoundPayload) (entities.RoundPayload, error) {
	out := mergePayload(round.Payload, nil)
	if payloadBool(out, "hitMine") {
		return out, nil
	}
	if len(payloadInts(out, "revealed")) == 0 {
		return nil, errs.New(errs.CodeInvalidRequest, "reveal at least one cell before cashing out")
	}
	out["cashedOut"] = true
	return out, nil
}

// Settle reads the ended round. Voided rounds cash out whatever was revealed.
func (s *MinesStrategy) Settle(in SettleInput, sampler Sampler) (Settlement, error) {
	if in.Round == nil || !in.Round.IsEnded() {
		return Settlement{}, errs.New(errs.CodeResultPending, "mines round is still in play")
	}
	mines, err := s.mineCount(in.Wager.ChosenOutcome)
	if err != nil {
		return Settlement{}, err
	}

	revealed := len(payloadInts(in.Round.Payload, "revealed"))
	if payloadBool(in.Round.Payload, "hitMine") {
		cell, _ := payloadInt(in.Round.Payload, "mineCell")
		return Settlement{Outcome: fmt.Sprintf("mine:%d", cell)}, nil
	}
	if revealed == 0 {
		return Settlement{Outcome: "voided"}, nil
	}

	return Settlement{
		Won:        true,
		Multiplier: s.Multiplier(mines, revealed),
		Outcome:    fmt.Sprintf("cashout:%d", revealed),
	}, nil
}
