// Package riskmodel provides client functionality for the external
// risk-scoring service.
package riskmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/hsnsmii/finport/internal/domain"
)

// Client posts indicator sets to the risk-scoring service. Calls run
// through a circuit breaker so a flapping service short-circuits to the
// unknown band instead of being hammered on every pipeline run.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewClient creates a new risk-scoring client
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	clientLog := log.With().Str("client", "riskmodel").Logger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "risk-model",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			clientLog.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		log:     clientLog,
	}
}

// predictRequest is the scoring service's wire format. The service was
// trained against the fixed-window RSI in the indicators package, so the
// fields map one-to-one from the IndicatorSet.
type predictRequest struct {
	RSI        float64 `json:"rsi"`
	SMA20      float64 `json:"sma_20"`
	Volatility float64 `json:"volatility"`
	Beta       float64 `json:"beta"`
	Symbol     string  `json:"symbol"`
}

type predictResponse struct {
	RiskPercentage float64 `json:"risk_percentage"`
}

// PredictRisk sends the indicator set to the scoring service and returns
// the raw risk percentage. All failures wrap domain.ErrRiskService.
func (c *Client) PredictRisk(ctx context.Context, indicators domain.IndicatorSet, symbol string) (float64, error) {
	if !indicators.Complete() {
		return 0, fmt.Errorf("%w: incomplete indicator set for %s", domain.ErrRiskService, symbol)
	}

	body, err := json.Marshal(predictRequest{
		RSI:        *indicators.RSI,
		SMA20:      *indicators.SMA20,
		Volatility: *indicators.Volatility,
		Beta:       *indicators.Beta,
		Symbol:     symbol,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to encode request: %v", domain.ErrRiskService, err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrRiskService, symbol, err)
	}

	return result.(float64), nil
}

func (c *Client) post(ctx context.Context, body []byte) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict-risk", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var payload predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed response: %v", err)
	}

	return payload.RiskPercentage, nil
}
