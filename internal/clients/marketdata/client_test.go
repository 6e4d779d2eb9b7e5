package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsnsmii/finport/internal/domain"
)

func newTestClient(url string) *Client {
	return NewClient(url, url, 2*time.Second, zerolog.Nop())
}

func TestGetQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile/AAPL", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"symbol": "AAPL",
			"companyName": "Apple Inc.",
			"price": 189.37,
			"sector": "Technology",
			"beta": 1.28,
			"changes": -1.12,
			"changesPercentage": -0.59
		}]`))
	}))
	defer server.Close()

	quote, err := newTestClient(server.URL).GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, "Apple Inc.", quote.CompanyName)
	assert.Equal(t, 189.37, quote.Price)
	assert.Equal(t, "Technology", quote.Sector)
	require.NotNil(t, quote.Beta)
	assert.Equal(t, 1.28, *quote.Beta)
	require.NotNil(t, quote.ChangePct)
	assert.InDelta(t, -0.59, *quote.ChangePct, 1e-9)
}

func TestGetQuote_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty payload", http.StatusOK, `[]`},
		{"zero price", http.StatusOK, `[{"symbol": "X", "price": 0}]`},
		{"malformed payload", http.StatusOK, `{"oops":`},
		{"not found", http.StatusNotFound, `{}`},
		{"server error", http.StatusInternalServerError, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).GetQuote(context.Background(), "X")
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrQuoteUnavailable))
		})
	}
}

func TestGetQuote_TimeoutIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, 50*time.Millisecond, zerolog.Nop())
	_, err := client.GetQuote(context.Background(), "SLOW")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrQuoteUnavailable))
}

func TestGetHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/historical-price/AAPL", r.URL.Path)
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"historical": [
			{"date": "2024-03-03", "close": 105.0},
			{"date": "2024-03-02", "close": 104.0},
			{"date": "2024-03-01", "close": 103.0}
		]}`))
	}))
	defer server.Close()

	bars, err := newTestClient(server.URL).GetHistory(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	require.Len(t, bars, 3)

	// Delivered newest-first, preserved as-is
	assert.Equal(t, "2024-03-03", bars[0].Date)
	assert.Equal(t, 105.0, bars[0].Close)
	assert.Equal(t, "2024-03-01", bars[2].Date)
}

func TestGetHistory_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetHistory(context.Background(), "AAPL", "1y")
	assert.Error(t, err)
}
