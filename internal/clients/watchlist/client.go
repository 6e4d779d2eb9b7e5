// Package watchlist provides client functionality for the position source API.
package watchlist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hsnsmii/finport/internal/domain"
)

// Client consumes the position source API. It owns no mutations; the store
// itself creates and deletes position records.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a new position source client
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "watchlist").Logger(),
	}
}

// flexFloat decodes a JSON value that may arrive as a number, a quoted
// number, null, or an empty string. The upstream store is not strict about
// numeric typing, so lookups must coerce before arithmetic.
type flexFloat struct {
	value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparsable stays nil; the enrichment engine drops the record.
		return nil
	}
	f.value = &v
	return nil
}

// stockRecord mirrors the position source's wire format:
// {symbol, quantity, price, note, date}.
type stockRecord struct {
	Symbol   string    `json:"symbol"`
	Quantity flexFloat `json:"quantity"`
	Price    flexFloat `json:"price"`
	Note     string    `json:"note"`
	Date     string    `json:"date"`
}

// GetPositions fetches all position records in a watchlist.
func (c *Client) GetPositions(ctx context.Context, watchlistID string) ([]domain.RawPosition, error) {
	url := fmt.Sprintf("%s/watchlists/%s/stocks", c.baseURL, watchlistID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", domain.ErrPositionSource, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPositionSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrPositionSource, resp.StatusCode, string(body))
	}

	var records []stockRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrPositionSource, err)
	}

	positions := make([]domain.RawPosition, 0, len(records))
	for _, r := range records {
		positions = append(positions, domain.RawPosition{
			Symbol:     r.Symbol,
			Quantity:   r.Quantity.value,
			UnitCost:   r.Price.value,
			AcquiredOn: r.Date,
			Note:       r.Note,
		})
	}

	c.log.Debug().
		Str("watchlist_id", watchlistID).
		Int("count", len(positions)).
		Msg("Fetched position records")

	return positions, nil
}
