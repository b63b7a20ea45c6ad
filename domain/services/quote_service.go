package services

import (
	"context"
	"strings"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"
	"gambler/settlement/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

type quoteService struct {
	feed       interfaces.OddsFeed
	cache      interfaces.OddsCache
	normalizer *OddsNormalizer
	cacheTTL   time.Duration
}

// NewQuoteService creates a quote service. cache may be nil.
func NewQuoteService(feed interfaces.OddsFeed, cache interfaces.OddsCache, normalizer *OddsNormalizer, cacheTTL time.Duration) interfaces.QuoteService {
	return &quoteService{
		feed:       feed,
		cache:      cache,
		normalizer: normalizer,
		cacheTTL:   cacheTTL,
	}
}

// CurrentQuotes reads through the cache to the odds feed
func (s *quoteService) CurrentQuotes(ctx context.Context, eventID string) ([]entities.OddsQuote, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "event id is required")
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, eventID)
		if err != nil {
			log.WithFields(log.Fields{
				"eventId": eventID,
				"error":   err,
			}).Warn("Odds cache read failed, falling back to feed")
		} else if ok {
			return cached, nil
		}
	}

	raw, err := s.feed.FetchQuotes(ctx, eventID)
	if err != nil {
		return nil, err
	}

	quotes := s.normalizer.Normalize(eventID, raw)

	if s.cache != nil && len(quotes) > 0 {
		if err := s.cache.Set(ctx, eventID, quotes, s.cacheTTL); err != nil {
			log.WithFields(log.Fields{
				"eventId": eventID,
				"error":   err,
			}).Warn("Failed to cache odds quotes")
		}
	}

	return quotes, nil
}

// Quote returns the quote for a single outcome
func (s *quoteService) Quote(ctx context.Context, eventID, outcome string) (entities.OddsQuote, error) {
	quotes, err := s.CurrentQuotes(ctx, eventID)
	if err != nil {
		return entities.OddsQuote{}, err
	}
	for _, q := range quotes {
		if q.OutcomeName == outcome {
			return q, nil
		}
	}
	return entities.OddsQuote{}, errs.Newf(errs.CodeOutcomeUnavailable, "outcome %q is not available for event %s", outcome, eventID)
}
