package brokerage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helios/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "test", Timeout: time.Second})
	require.NoError(t, err)
	return client
}

func TestAccountParsesSnapshot(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"realized_pnl":"150.5","unrealized_pnl":"-20","net_liquidation":"100000","buying_power":"50000"}`)
	})

	snap, err := client.Account(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.RealizedPnL.Equal(decimal.NewFromFloat(150.5)))
	assert.True(t, snap.UnrealizedPnL.Equal(decimal.NewFromInt(-20)))
	assert.True(t, snap.NetLiquidation.Equal(decimal.NewFromInt(100_000)))
}

func TestRateLimitedResponsesMapToSentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Account(context.Background())
	assert.ErrorIs(t, err, errors.ErrRateLimitExceeded)

	_, err = client.OpenPositions(context.Background())
	assert.ErrorIs(t, err, errors.ErrRateLimitExceeded)

	_, err = client.CancelAllOrders(context.Background())
	assert.ErrorIs(t, err, errors.ErrRateLimitExceeded)
}

func TestServerErrorsMapToBrokerUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Account(context.Background())
	assert.ErrorIs(t, err, errors.ErrBrokerUnavailable)
}
