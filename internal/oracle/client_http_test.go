package oracle

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "mizan/pkg/domain-errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestHTTPClient_GetMetalPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "USD", r.URL.Query().Get("currency"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"gold_per_gram": "75.50",
			"silver_per_gram": "0.85",
			"currency": "USD",
			"as_of": "2026-03-01T10:00:00Z"
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, discardLogger())
	prices, err := c.GetMetalPrices(context.Background(), "USD")
	require.NoError(t, err)

	assert.True(t, prices.Gold.Equal(decimal.NewFromFloat(75.50)))
	assert.True(t, prices.Silver.Equal(decimal.NewFromFloat(0.85)))
	assert.Equal(t, "USD", prices.Currency)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), prices.AsOf)
}

func TestHTTPClient_FeedFailureIsPriceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, discardLogger())
	_, err := c.GetMetalPrices(context.Background(), "USD")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePriceUnavailable))
}

func TestHTTPClient_RejectsNonPositivePrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"gold_per_gram": "0",
			"silver_per_gram": "0.85",
			"currency": "USD",
			"as_of": "2026-03-01T10:00:00Z"
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, discardLogger())
	_, err := c.GetMetalPrices(context.Background(), "USD")
	assert.Error(t, err)
}
