package services

import (
	"fmt"
	"sort"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const pricePlaces = 2

var minValidPrice = decimal.NewFromInt(1)

// OddsNormalizer converts raw bookmaker quotes into house-adjusted prices
type OddsNormalizer struct {
	houseEdge  decimal.Decimal
	edgeFactor decimal.Decimal
}

// NewOddsNormalizer creates a normalizer for a house edge in [0, 1)
func NewOddsNormalizer(houseEdge decimal.Decimal) (*OddsNormalizer, error) {
	if houseEdge.IsNegative() || houseEdge.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("house edge must be in [0, 1), got %s", houseEdge)
	}
	return &OddsNormalizer{
		houseEdge:  houseEdge,
		edgeFactor: decimal.NewFromInt(1).Sub(houseEdge),
	}, nil
}

// HouseEdge returns the configured edge
func (n *OddsNormalizer) HouseEdge() decimal.Decimal {
	return n.houseEdge
}

// AdjustPrice applies the house edge to a single price and rounds half-up to 2 places
func (n *OddsNormalizer) AdjustPrice(raw decimal.Decimal) decimal.Decimal {
	return raw.Mul(n.edgeFactor).Round(pricePlaces)
}

// NormalizeOutcome returns the quote for one outcome.
// Each valid quote is adjusted first, the adjusted prices are averaged, and
// only the mean is rounded.
func (n *OddsNormalizer) NormalizeOutcome(eventID, outcome string, quotes []entities.RawQuote) (entities.OddsQuote, error) {
	adjustedSum := decimal.Zero
	rawSum := decimal.Zero
	var latest time.Time
	count := 0

	for _, q := range quotes {
		if q.OutcomeName != outcome {
			continue
		}
		if q.Price.LessThan(minValidPrice) {
			log.WithFields(log.Fields{
				"eventId": eventID,
				"outcome": outcome,
				"source":  q.Source,
				"price":   q.Price.String(),
			}).Warn("Discarding quote with price below 1.0")
			continue
		}
		adjustedSum = adjustedSum.Add(q.Price.Mul(n.edgeFactor))
		rawSum = rawSum.Add(q.Price)
		if q.Timestamp.After(latest) {
			latest = q.Timestamp
		}
		count++
	}

	if count == 0 {
		return entities.OddsQuote{}, errs.Newf(errs.CodeOutcomeUnavailable, "no valid quotes for outcome %q of event %s", outcome, eventID)
	}

	divisor := decimal.NewFromInt(int64(count))
	return entities.OddsQuote{
		EventID:         eventID,
		OutcomeName:     outcome,
		RawPrice:        rawSum.Div(divisor).Round(pricePlaces),
		AdjustedPrice:   adjustedSum.Div(divisor).Round(pricePlaces),
		SourceTimestamp: latest,
		Sources:         count,
	}, nil
}

// Normalize returns quotes for every outcome with at least one valid price, sorted by outcome name.
// Outcomes without valid prices are left out.
func (n *OddsNormalizer) Normalize(eventID string, quotes []entities.RawQuote) []entities.OddsQuote {
	seen := make(map[string]struct{})
	var outcomes []string
	for _, q := range quotes {
		if _, ok := seen[q.OutcomeName]; ok {
			continue
		}
		seen[q.OutcomeName] = struct{}{}
		outcomes = append(outcomes, q.OutcomeName)
	}
	sort.Strings(outcomes)

	result := make([]entities.OddsQuote, 0, len(outcomes))
	for _, outcome := range outcomes {
		quote, err := n.NormalizeOutcome(eventID, outcome, quotes)
		if err != nil {
			continue
		}
		result = append(result, quote)
	}
	return result
}
