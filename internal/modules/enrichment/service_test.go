package enrichment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsnsmii/finport/internal/domain"
)

// fakeQuoteSource serves canned quotes and records concurrency.
type fakeQuoteSource struct {
	quotes   map[string]*domain.Quote
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	mu       sync.Mutex
	calls    []string
}

func (f *fakeQuoteSource) GetQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxSeen.Load()
		if cur <= max || f.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	f.mu.Unlock()

	q, ok := f.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, symbol)
	}
	return q, nil
}

func raw(symbol string, qty, cost float64) domain.RawPosition {
	return domain.RawPosition{
		Symbol:     symbol,
		Quantity:   &qty,
		UnitCost:   &cost,
		AcquiredOn: "2024-01-02",
	}
}

func TestEnrich_ValuationAndPL(t *testing.T) {
	source := &fakeQuoteSource{quotes: map[string]*domain.Quote{
		"A": {Symbol: "A", CompanyName: "Alpha Corp", Price: 120},
		"B": {Symbol: "B", CompanyName: "Beta Inc", Price: 40},
	}}
	svc := NewService(source, 4, zerolog.Nop())

	enriched, stats := svc.Enrich(context.Background(), []domain.RawPosition{
		raw("A", 10, 100),
		raw("B", 5, 50),
	})

	require.Len(t, enriched, 2)
	assert.Zero(t, stats.Skipped)
	assert.Zero(t, stats.QuoteFailures)

	a := enriched[0]
	assert.Equal(t, "Alpha Corp", a.CompanyName)
	assert.InDelta(t, 1000.0, a.Cost, 1e-9)
	require.NotNil(t, a.MarketValue)
	assert.InDelta(t, 1200.0, *a.MarketValue, 1e-9)
	require.NotNil(t, a.ProfitLoss)
	assert.InDelta(t, 200.0, *a.ProfitLoss, 1e-9)
	require.NotNil(t, a.ProfitLossPercent)
	assert.InDelta(t, 20.0, *a.ProfitLossPercent, 1e-9)

	b := enriched[1]
	assert.InDelta(t, 250.0, b.Cost, 1e-9)
	require.NotNil(t, b.MarketValue)
	assert.InDelta(t, 200.0, *b.MarketValue, 1e-9)
	require.NotNil(t, b.ProfitLoss)
	assert.InDelta(t, -50.0, *b.ProfitLoss, 1e-9)
}

func TestEnrich_MarketValueMatchesQuantityTimesPrice(t *testing.T) {
	source := &fakeQuoteSource{quotes: map[string]*domain.Quote{
		"X": {Symbol: "X", Price: 3.333333},
	}}
	svc := NewService(source, 2, zerolog.Nop())

	enriched, _ := svc.Enrich(context.Background(), []domain.RawPosition{raw("X", 7, 2)})

	require.Len(t, enriched, 1)
	require.NotNil(t, enriched[0].MarketValue)
	assert.InDelta(t, 7*3.333333, *enriched[0].MarketValue, 1e-9)
}

func TestEnrich_FailedLookupDegrades(t *testing.T) {
	source := &fakeQuoteSource{quotes: map[string]*domain.Quote{
		"OK": {Symbol: "OK", CompanyName: "Okay Co", Price: 10},
	}}
	svc := NewService(source, 4, zerolog.Nop())

	enriched, stats := svc.Enrich(context.Background(), []domain.RawPosition{
		raw("OK", 1, 5),
		raw("GONE", 2, 8),
	})

	require.Len(t, enriched, 2)
	assert.Equal(t, 1, stats.QuoteFailures)

	gone := enriched[1]
	assert.Equal(t, "GONE", gone.Symbol)
	// Company name falls back to the symbol string
	assert.Equal(t, "GONE", gone.CompanyName)
	// Raw fields survive, cost stays computable
	assert.Equal(t, 2.0, gone.Quantity)
	assert.Equal(t, 8.0, gone.UnitCost)
	assert.InDelta(t, 16.0, gone.Cost, 1e-9)
	assert.Equal(t, "2024-01-02", gone.AcquiredOn)
	// Market fields stay nil
	assert.Nil(t, gone.MarketPrice)
	assert.Nil(t, gone.MarketValue)
	assert.Nil(t, gone.ProfitLoss)
	assert.Nil(t, gone.ProfitLossPercent)
}

func TestEnrich_CorruptRecordsDropped(t *testing.T) {
	source := &fakeQuoteSource{quotes: map[string]*domain.Quote{
		"A": {Symbol: "A", Price: 10},
	}}
	svc := NewService(source, 4, zerolog.Nop())

	qty := 5.0
	enriched, stats := svc.Enrich(context.Background(), []domain.RawPosition{
		raw("A", 1, 2),
		{Symbol: "NOQTY", UnitCost: &qty},
		{Symbol: "NOCOST", Quantity: &qty},
		{Symbol: "EMPTY"},
	})

	require.Len(t, enriched, 1)
	assert.Equal(t, "A", enriched[0].Symbol)
	assert.Equal(t, 3, stats.Skipped)
}

func TestEnrich_InvalidNumbersDropped(t *testing.T) {
	source := &fakeQuoteSource{quotes: map[string]*domain.Quote{
		"A":    {Symbol: "A", Price: 10},
		"NEG":  {Symbol: "NEG", Price: 10},
		"ZERO": {Symbol: "ZERO", Price: 10},
		"BADC": {Symbol: "BADC", Price: 10},
	}}
	svc := NewService(source, 4, zerolog.Nop())

	enriched, stats := svc.Enrich(context.Background(), []domain.RawPosition{
		raw("A", 1, 2),
		raw("NEG", -3, 5),
		raw("ZERO", 0, 5),
		raw("BADC", 2, -1),
		raw("FREE", 2, 0), // zero unit cost is a valid free acquisition
	})

	require.Len(t, enriched, 2)
	assert.Equal(t, "A", enriched[0].Symbol)
	assert.Equal(t, "FREE", enriched[1].Symbol)
	assert.Equal(t, 3, stats.Skipped)

	// A negative quantity must never subtract from the totals downstream.
	for _, pos := range enriched {
		assert.GreaterOrEqual(t, pos.Quantity, 0.0)
	}
}

func TestEnrich_OrderingIsStable(t *testing.T) {
	quotes := make(map[string]*domain.Quote)
	var positions []domain.RawPosition
	for i := 0; i < 50; i++ {
		sym := fmt.Sprintf("S%02d", i)
		quotes[sym] = &domain.Quote{Symbol: sym, Price: float64(i + 1)}
		positions = append(positions, raw(sym, 1, 1))
	}
	svc := NewService(&fakeQuoteSource{quotes: quotes}, 8, zerolog.Nop())

	enriched, _ := svc.Enrich(context.Background(), positions)

	require.Len(t, enriched, 50)
	for i, pos := range enriched {
		assert.Equal(t, fmt.Sprintf("S%02d", i), pos.Symbol)
	}
}

func TestEnrich_ConcurrencyIsBounded(t *testing.T) {
	quotes := make(map[string]*domain.Quote)
	var positions []domain.RawPosition
	for i := 0; i < 40; i++ {
		sym := fmt.Sprintf("S%02d", i)
		quotes[sym] = &domain.Quote{Symbol: sym, Price: 1}
		positions = append(positions, raw(sym, 1, 1))
	}
	source := &fakeQuoteSource{quotes: quotes}
	svc := NewService(source, 3, zerolog.Nop())

	_, _ = svc.Enrich(context.Background(), positions)

	assert.LessOrEqual(t, source.maxSeen.Load(), int64(3))
}

func TestEnrich_ZeroCostYieldsZeroPercent(t *testing.T) {
	source := &fakeQuoteSource{quotes: map[string]*domain.Quote{
		"FREE": {Symbol: "FREE", Price: 10},
	}}
	svc := NewService(source, 1, zerolog.Nop())

	enriched, _ := svc.Enrich(context.Background(), []domain.RawPosition{raw("FREE", 3, 0)})

	require.Len(t, enriched, 1)
	require.NotNil(t, enriched[0].ProfitLossPercent)
	assert.Equal(t, 0.0, *enriched[0].ProfitLossPercent)
	require.NotNil(t, enriched[0].ProfitLoss)
	assert.InDelta(t, 30.0, *enriched[0].ProfitLoss, 1e-9)
}

func TestEnrich_EmptyInput(t *testing.T) {
	svc := NewService(&fakeQuoteSource{}, 4, zerolog.Nop())
	enriched, stats := svc.Enrich(context.Background(), nil)
	assert.Empty(t, enriched)
	assert.Zero(t, stats.Skipped)
}
