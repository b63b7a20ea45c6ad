package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"gambler/settlement/domain/events"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEvent(t *testing.T) {
	placedBefore := testutil.ToFloat64(WagersPlaced.WithLabelValues("dice"))
	payoutBefore := testutil.ToFloat64(PayoutVolume.WithLabelValues("dice"))
	voidedBefore := testutil.ToFloat64(RoundsEnded.WithLabelValues("mines", "voided"))

	ctx := context.Background()
	require.NoError(t, RecordEvent(ctx, events.WagerPlacedEvent{GameType: "dice"}))
	require.NoError(t, RecordEvent(ctx, events.WagerResolvedEvent{GameType: "dice", StakeAmount: 100, PayoutAmount: 194}))
	require.NoError(t, RecordEvent(ctx, events.RoundEndedEvent{GameType: "mines", Voided: true}))

	assert.Equal(t, placedBefore+1, testutil.ToFloat64(WagersPlaced.WithLabelValues("dice")))
	assert.Equal(t, payoutBefore+194, testutil.ToFloat64(PayoutVolume.WithLabelValues("dice")))
	assert.Equal(t, voidedBefore+1, testutil.ToFloat64(RoundsEnded.WithLabelValues("mines", "voided")))
}

func TestMetricsHandler(t *testing.T) {
	WagersPlaced.WithLabelValues("dice")
	healthy := NewMetricsHandler(func(ctx context.Context) error { return nil })
	unhealthy := NewMetricsHandler(func(ctx context.Context) error { return errors.New("db down") })

	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	unhealthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")

	rec = httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "settlement_wagers_placed_total")
}
