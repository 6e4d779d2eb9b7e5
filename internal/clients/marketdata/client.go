// Package marketdata provides client functionality for the market quote and
// price history APIs.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hsnsmii/finport/internal/domain"
)

// Client consumes the quote and history endpoints. A timeout is treated as
// the same failure class as a connection error.
type Client struct {
	quoteBaseURL   string
	historyBaseURL string
	http           *http.Client
	log            zerolog.Logger
}

// NewClient creates a new market data client
func NewClient(quoteBaseURL, historyBaseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		quoteBaseURL:   strings.TrimRight(quoteBaseURL, "/"),
		historyBaseURL: strings.TrimRight(historyBaseURL, "/"),
		http:           &http.Client{Timeout: timeout},
		log:            log.With().Str("client", "marketdata").Logger(),
	}
}

// profilePayload mirrors the quote source's wire format. The endpoint
// returns an array; element 0 carries the quote.
type profilePayload struct {
	Symbol            string   `json:"symbol"`
	CompanyName       string   `json:"companyName"`
	Price             float64  `json:"price"`
	Sector            string   `json:"sector"`
	Description       string   `json:"description"`
	Beta              *float64 `json:"beta"`
	PE                *float64 `json:"pe"`
	MarketCap         *float64 `json:"marketCap"`
	Changes           *float64 `json:"changes"`
	ChangesPercentage *float64 `json:"changesPercentage"`
}

// GetQuote fetches the current snapshot for a symbol. Any failure,
// including an empty payload or a non-positive price, wraps
// domain.ErrQuoteUnavailable so the enrichment engine can degrade the
// position instead of aborting the batch.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/profile/%s", c.quoteBaseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to build request: %v", domain.ErrQuoteUnavailable, symbol, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrQuoteUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: status %d", domain.ErrQuoteUnavailable, symbol, resp.StatusCode)
	}

	var payload []profilePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %s: malformed payload: %v", domain.ErrQuoteUnavailable, symbol, err)
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: %s: empty profile payload", domain.ErrQuoteUnavailable, symbol)
	}

	p := payload[0]
	if p.Price <= 0 {
		return nil, fmt.Errorf("%w: %s: no usable price", domain.ErrQuoteUnavailable, symbol)
	}

	quote := &domain.Quote{
		Symbol:      p.Symbol,
		CompanyName: p.CompanyName,
		Price:       p.Price,
		Sector:      p.Sector,
		Description: p.Description,
		Beta:        p.Beta,
		PE:          p.PE,
		MarketCap:   p.MarketCap,
		ChangeAbs:   p.Changes,
		ChangePct:   p.ChangesPercentage,
	}
	if quote.Symbol == "" {
		quote.Symbol = symbol
	}

	return quote, nil
}

// historyPayload wraps the history source's newest-first bar array.
type historyPayload struct {
	Historical []domain.PriceBar `json:"historical"`
}

// GetHistory fetches the daily price series for a symbol. Bars are returned
// newest-first exactly as delivered; the indicator calculator reverses them.
func (c *Client) GetHistory(ctx context.Context, symbol, rng string) ([]domain.PriceBar, error) {
	endpoint := fmt.Sprintf("%s/historical-price/%s?range=%s", c.historyBaseURL, url.PathEscape(symbol), url.QueryEscape(rng))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build history request for %s: %w", symbol, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("history request for %s returned status %d", symbol, resp.StatusCode)
	}

	var payload historyPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode history for %s: %w", symbol, err)
	}

	c.log.Debug().
		Str("symbol", symbol).
		Str("range", rng).
		Int("bars", len(payload.Historical)).
		Msg("Fetched price history")

	return payload.Historical, nil
}
