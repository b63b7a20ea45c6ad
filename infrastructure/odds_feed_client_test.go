package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gambler/settlement/domain/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOddsFeedClient_FetchQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events/match-1/odds":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"bookmakers":[
				{"key":"alpha","last_update":"2024-05-01T12:00:00Z","outcomes":[{"name":"home","price":2.00},{"name":"away","price":1.80}]},
				{"key":"beta","outcomes":[{"name":"home","price":"2.10"}]}
			]}`))
		case "/events/busy/odds":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/events/bad/odds":
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewOddsFeedClient(server.URL+"/", time.Second)
	ctx := context.Background()

	quotes, err := client.FetchQuotes(ctx, "match-1")
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, "alpha", quotes[0].Source)
	assert.Equal(t, "home", quotes[0].OutcomeName)
	assert.True(t, decimal.RequireFromString("2").Equal(quotes[0].Price))
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), quotes[0].Timestamp)
	assert.True(t, decimal.RequireFromString("2.1").Equal(quotes[2].Price))
	assert.False(t, quotes[2].Timestamp.IsZero())

	_, err = client.FetchQuotes(ctx, "unknown")
	assert.True(t, errs.Is(err, errs.CodeNotFound))

	_, err = client.FetchQuotes(ctx, "busy")
	assert.True(t, errs.IsTransient(err))

	_, err = client.FetchQuotes(ctx, "bad")
	require.Error(t, err)
	assert.False(t, errs.IsTransient(err))
}

func TestOddsFeedClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewOddsFeedClient(url, 100*time.Millisecond).FetchQuotes(context.Background(), "match-1")
	assert.True(t, errs.Is(err, errs.CodeUpstreamTimeout))
}
