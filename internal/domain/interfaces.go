package domain

import "context"

// PositionSource supplies raw position records for a watchlist.
type PositionSource interface {
	// GetPositions returns all position records in the watchlist. A failure
	// here is the only blocking error in the pipeline.
	GetPositions(ctx context.Context, watchlistID string) ([]RawPosition, error)
}

// QuoteSource supplies a current market snapshot per symbol.
type QuoteSource interface {
	// GetQuote returns the quote for a symbol, or an error wrapping
	// ErrQuoteUnavailable when the symbol cannot be priced.
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// HistorySource supplies an ordered daily price series per symbol.
type HistorySource interface {
	// GetHistory returns daily bars for the symbol over the given range,
	// newest-first as delivered by the upstream source.
	GetHistory(ctx context.Context, symbol, rng string) ([]PriceBar, error)
}

// RiskScorer invokes the external risk-scoring model.
type RiskScorer interface {
	// PredictRisk returns the model's risk percentage for the symbol's
	// indicator set. Errors wrap ErrRiskService.
	PredictRisk(ctx context.Context, indicators IndicatorSet, symbol string) (float64, error)
}
