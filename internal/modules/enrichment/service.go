// Package enrichment joins raw position records with live quotes and
// derives per-position valuation and P&L.
package enrichment

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hsnsmii/finport/internal/domain"
	"github.com/hsnsmii/finport/internal/metrics"
)

// Stats summarizes the non-fatal degradations of one enrichment batch.
type Stats struct {
	// Skipped counts corrupt records dropped from the result (missing or
	// non-positive quantity, missing or negative unit cost).
	Skipped int
	// QuoteFailures counts positions kept with nil market fields because
	// their lookup failed.
	QuoteFailures int
}

// Service enriches positions with market data. Lookups fan out over a
// bounded worker pool; one symbol's failure never aborts the batch.
type Service struct {
	quotes      domain.QuoteSource
	concurrency int
	log         zerolog.Logger
}

// NewService creates a new enrichment service. concurrency bounds the
// number of in-flight quote lookups; values below 1 default to 8.
func NewService(quotes domain.QuoteSource, concurrency int, log zerolog.Logger) *Service {
	if concurrency < 1 {
		concurrency = 8
	}
	return &Service{
		quotes:      quotes,
		concurrency: concurrency,
		log:         log.With().Str("service", "enrichment").Logger(),
	}
}

// Enrich looks up each position's quote concurrently and derives valuation
// and P&L. Result ordering matches input ordering, not completion order.
//
// Records with a missing or non-positive quantity, or a missing or
// negative unit cost, are treated as corrupt input: dropped from the
// result and counted in Stats.Skipped. A position whose
// lookup fails keeps its raw fields with nil market fields and the symbol
// string standing in for the company name.
func (s *Service) Enrich(ctx context.Context, positions []domain.RawPosition) ([]domain.EnrichedPosition, Stats) {
	type slot struct {
		position domain.EnrichedPosition
		ok       bool
	}

	var stats Stats
	usable := make([]domain.RawPosition, 0, len(positions))
	for _, raw := range positions {
		if raw.Quantity == nil || raw.UnitCost == nil || *raw.Quantity <= 0 || *raw.UnitCost < 0 {
			stats.Skipped++
			metrics.SkippedRecords.Inc()
			s.log.Warn().
				Str("symbol", raw.Symbol).
				Msg("Skipping position record with invalid quantity or unit cost")
			continue
		}
		usable = append(usable, raw)
	}

	slots := make([]slot, len(usable))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, raw := range usable {
		wg.Add(1)
		go func(i int, raw domain.RawPosition) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			enriched, quoteErr := s.enrichOne(ctx, raw)
			if quoteErr != nil {
				mu.Lock()
				stats.QuoteFailures++
				mu.Unlock()
				metrics.QuoteLookups.WithLabelValues("failed").Inc()
				s.log.Warn().
					Err(quoteErr).
					Str("symbol", raw.Symbol).
					Msg("Quote lookup failed, keeping position without market data")
			} else {
				metrics.QuoteLookups.WithLabelValues("ok").Inc()
			}
			slots[i] = slot{position: enriched, ok: true}
		}(i, raw)
	}
	wg.Wait()

	result := make([]domain.EnrichedPosition, 0, len(slots))
	for _, sl := range slots {
		if sl.ok {
			result = append(result, sl.position)
		}
	}

	s.log.Debug().
		Int("input", len(positions)).
		Int("enriched", len(result)).
		Int("skipped", stats.Skipped).
		Int("quote_failures", stats.QuoteFailures).
		Msg("Enrichment batch complete")

	return result, stats
}

// enrichOne builds the enriched position for one record. The returned error
// is the quote failure, if any; the position itself is always valid.
func (s *Service) enrichOne(ctx context.Context, raw domain.RawPosition) (domain.EnrichedPosition, error) {
	quantity := *raw.Quantity
	unitCost := *raw.UnitCost

	pos := domain.EnrichedPosition{
		Symbol:      raw.Symbol,
		CompanyName: raw.Symbol, // fallback until the quote provides a name
		Quantity:    quantity,
		UnitCost:    unitCost,
		AcquiredOn:  raw.AcquiredOn,
		Note:        raw.Note,
		Cost:        quantity * unitCost,
	}

	quote, err := s.quotes.GetQuote(ctx, raw.Symbol)
	if err != nil {
		return pos, err
	}

	if quote.CompanyName != "" {
		pos.CompanyName = quote.CompanyName
	}

	marketValue := quantity * quote.Price
	profitLoss := marketValue - pos.Cost
	profitLossPct := 0.0
	if pos.Cost != 0 {
		profitLossPct = profitLoss / pos.Cost * 100
	}

	pos.MarketPrice = domain.Float(quote.Price)
	pos.MarketValue = domain.Float(marketValue)
	pos.ProfitLoss = domain.Float(profitLoss)
	pos.ProfitLossPercent = domain.Float(profitLossPct)

	return pos, nil
}
