package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"
	"gambler/settlement/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer(t *testing.T) *OddsNormalizer {
	t.Helper()
	n, err := NewOddsNormalizer(d("0.05"))
	require.NoError(t, err)
	return n
}

func TestQuoteService_CacheHitSkipsFeed(t *testing.T) {
	ctx := context.Background()
	feed := new(testhelpers.MockOddsFeed)
	cache := new(testhelpers.MockOddsCache)

	cached := []entities.OddsQuote{{EventID: "evt-1", OutcomeName: "home", AdjustedPrice: d("1.95")}}
	cache.On("Get", ctx, "evt-1").Return(cached, true, nil)

	svc := NewQuoteService(feed, cache, newTestNormalizer(t), time.Minute)
	quotes, err := svc.CurrentQuotes(ctx, "evt-1")

	require.NoError(t, err)
	assert.Equal(t, cached, quotes)
	feed.AssertNotCalled(t, "FetchQuotes", mock.Anything, mock.Anything)
}

func TestQuoteService_MissFetchesNormalizesAndCaches(t *testing.T) {
	ctx := context.Background()
	feed := new(testhelpers.MockOddsFeed)
	cache := new(testhelpers.MockOddsCache)

	cache.On("Get", ctx, "evt-1").Return(nil, false, nil)
	feed.On("FetchQuotes", ctx, "evt-1").Return([]entities.RawQuote{
		rawQuote("a", "home", "2.00"),
		rawQuote("b", "home", "2.10"),
	}, nil)
	cache.On("Set", ctx, "evt-1", mock.MatchedBy(func(q []entities.OddsQuote) bool {
		return len(q) == 1 && q[0].AdjustedPrice.Equal(d("1.95"))
	}), time.Minute).Return(nil)

	svc := NewQuoteService(feed, cache, newTestNormalizer(t), time.Minute)
	quote, err := svc.Quote(ctx, "evt-1", "home")

	require.NoError(t, err)
	assert.True(t, quote.AdjustedPrice.Equal(d("1.95")))
	feed.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestQuoteService_CacheErrorFallsBackToFeed(t *testing.T) {
	ctx := context.Background()
	feed := new(testhelpers.MockOddsFeed)
	cache := new(testhelpers.MockOddsCache)

	cache.On("Get", ctx, "evt-1").Return(nil, false, errors.New("redis down"))
	cache.On("Set", ctx, "evt-1", mock.Anything, time.Minute).Return(errors.New("redis down"))
	feed.On("FetchQuotes", ctx, "evt-1").Return([]entities.RawQuote{rawQuote("a", "away", "3.00")}, nil)

	svc := NewQuoteService(feed, cache, newTestNormalizer(t), time.Minute)
	quotes, err := svc.CurrentQuotes(ctx, "evt-1")

	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, quotes[0].AdjustedPrice.Equal(d("2.85")))
}

func TestQuoteService_UnknownOutcome(t *testing.T) {
	ctx := context.Background()
	feed := new(testhelpers.MockOddsFeed)
	feed.On("FetchQuotes", ctx, "evt-1").Return([]entities.RawQuote{rawQuote("a", "home", "0.70")}, nil)

	svc := NewQuoteService(feed, nil, newTestNormalizer(t), time.Minute)
	_, err := svc.Quote(ctx, "evt-1", "home")

	assert.ErrorIs(t, err, errs.ErrOutcomeUnavailable)
}

func TestQuoteService_PropagatesFeedErrors(t *testing.T) {
	ctx := context.Background()
	feed := new(testhelpers.MockOddsFeed)
	feed.On("FetchQuotes", ctx, "evt-1").Return(nil, errs.Wrap(errs.CodeUpstreamTimeout, context.DeadlineExceeded, "odds feed timed out"))

	svc := NewQuoteService(feed, nil, newTestNormalizer(t), time.Minute)
	_, err := svc.CurrentQuotes(ctx, "evt-1")

	assert.True(t, errs.IsTransient(err))
}
