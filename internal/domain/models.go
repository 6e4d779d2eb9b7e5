// Package domain provides the core data model shared by the enrichment,
// aggregation, indicator and risk modules.
package domain

import "time"

// RiskBand classifies a risk percentage into a display band.
type RiskBand string

const (
	RiskBandLow     RiskBand = "low"
	RiskBandMedium  RiskBand = "medium"
	RiskBandHigh    RiskBand = "high"
	RiskBandUnknown RiskBand = "unknown"
)

// RawPosition is a position record as delivered by the position source.
// Quantity and UnitCost are pointers because the upstream store is known to
// contain records with missing or string-typed numerics; the enrichment
// engine drops records where either is absent.
type RawPosition struct {
	Symbol     string   `json:"symbol"`
	Quantity   *float64 `json:"quantity"`
	UnitCost   *float64 `json:"unit_cost"`
	AcquiredOn string   `json:"acquired_on"`
	Note       string   `json:"note,omitempty"`
}

// Quote is a live market snapshot for a single symbol. Quotes are fetched
// per pipeline run and never persisted beyond the short-TTL cache.
type Quote struct {
	Symbol      string   `json:"symbol" msgpack:"symbol"`
	CompanyName string   `json:"company_name" msgpack:"company_name"`
	Price       float64  `json:"price" msgpack:"price"`
	Sector      string   `json:"sector,omitempty" msgpack:"sector"`
	Description string   `json:"description,omitempty" msgpack:"description"`
	Beta        *float64 `json:"beta,omitempty" msgpack:"beta"`
	PE          *float64 `json:"pe,omitempty" msgpack:"pe"`
	MarketCap   *float64 `json:"market_cap,omitempty" msgpack:"market_cap"`
	ChangeAbs   *float64 `json:"change_abs,omitempty" msgpack:"change_abs"`
	ChangePct   *float64 `json:"change_pct,omitempty" msgpack:"change_pct"`
}

// PriceBar is a single daily close. History sources deliver bars
// newest-first; callers must reverse to chronological order before any
// difference-based computation.
type PriceBar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// EnrichedPosition joins a raw position with its live quote. The market
// fields are nil exactly when the quote lookup failed or returned no usable
// price; Cost is always computable from the recorded unit cost.
type EnrichedPosition struct {
	Symbol            string   `json:"symbol"`
	CompanyName       string   `json:"company_name"`
	Quantity          float64  `json:"quantity"`
	UnitCost          float64  `json:"unit_cost"`
	AcquiredOn        string   `json:"acquired_on"`
	Note              string   `json:"note,omitempty"`
	Cost              float64  `json:"cost"`
	MarketPrice       *float64 `json:"market_price"`
	MarketValue       *float64 `json:"market_value"`
	ProfitLoss        *float64 `json:"profit_loss"`
	ProfitLossPercent *float64 `json:"profit_loss_percent"`
}

// HasMarketData reports whether the position's quote lookup succeeded.
func (p EnrichedPosition) HasMarketData() bool {
	return p.MarketPrice != nil
}

// AllocationSlice is one symbol's share of total portfolio market value.
// ColorIndex is the slice's rank modulo the configured palette size;
// Color carries the resolved palette entry so clients need not know the
// palette.
type AllocationSlice struct {
	Symbol     string  `json:"symbol"`
	Value      float64 `json:"value"`
	ColorIndex int     `json:"color_index"`
	Color      string  `json:"color"`
}

// PortfolioSnapshot is the aggregate view over one enrichment run. It is
// derived each time enrichment completes and replaced wholesale, never
// mutated.
type PortfolioSnapshot struct {
	TotalMarketValue float64           `json:"total_market_value"`
	TotalProfitLoss  float64           `json:"total_profit_loss"`
	Allocation       []AllocationSlice `json:"allocation"`
}

// IndicatorSet holds the technical indicators derived from a stock's and a
// benchmark's price history. Nil members indicate insufficient history.
type IndicatorSet struct {
	RSI        *float64 `json:"rsi"`
	SMA20      *float64 `json:"sma_20"`
	Volatility *float64 `json:"volatility"`
	Beta       *float64 `json:"beta"`
}

// Complete reports whether every indicator required by the risk model is
// present.
func (s IndicatorSet) Complete() bool {
	return s.RSI != nil && s.SMA20 != nil && s.Volatility != nil && s.Beta != nil
}

// RiskAssessment is the classified output of the risk-scoring service.
// RiskPercentage is nil and Band is RiskBandUnknown whenever the indicator
// set or the remote call was unusable.
type RiskAssessment struct {
	RiskPercentage *float64 `json:"risk_percentage"`
	Band           RiskBand `json:"band"`
}

// ClassifyRisk maps a risk percentage to its display band.
func ClassifyRisk(pct float64) RiskBand {
	switch {
	case pct < 40:
		return RiskBandLow
	case pct < 70:
		return RiskBandMedium
	default:
		return RiskBandHigh
	}
}

// SnapshotPoint is one persisted observation of portfolio totals, used for
// the value-over-time history chart.
type SnapshotPoint struct {
	WatchlistID      string    `json:"watchlist_id"`
	TotalMarketValue float64   `json:"total_market_value"`
	TotalProfitLoss  float64   `json:"total_profit_loss"`
	PositionCount    int       `json:"position_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// Float returns a pointer to v. Convenience for building optional fields.
func Float(v float64) *float64 {
	return &v
}
