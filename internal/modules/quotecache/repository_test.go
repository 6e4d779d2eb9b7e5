package quotecache

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hsnsmii/finport/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE quote_cache (
			symbol    TEXT PRIMARY KEY,
			payload   BLOB NOT NULL,
			cached_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func testQuote(symbol string, price float64) *domain.Quote {
	return &domain.Quote{
		Symbol:      symbol,
		CompanyName: symbol + " Corp",
		Price:       price,
		Sector:      "Technology",
		Beta:        domain.Float(1.1),
	}
}

func TestRepository_PutGetRoundTrip(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	require.NoError(t, repo.Put(testQuote("AAPL", 180.5)))

	got, ok := repo.Get("AAPL", time.Minute)
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, "AAPL Corp", got.CompanyName)
	assert.Equal(t, 180.5, got.Price)
	require.NotNil(t, got.Beta)
	assert.Equal(t, 1.1, *got.Beta)
}

func TestRepository_GetMiss(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	_, ok := repo.Get("NOPE", time.Minute)
	assert.False(t, ok)
}

func TestRepository_ExpiredEntryIsMiss(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.Put(testQuote("OLD", 10)))

	// Backdate the entry past any reasonable TTL
	_, err := db.Exec(`UPDATE quote_cache SET cached_at = ?`, time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)

	_, ok := repo.Get("OLD", time.Minute)
	assert.False(t, ok)
}

func TestRepository_PutReplaces(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	require.NoError(t, repo.Put(testQuote("AAPL", 100)))
	require.NoError(t, repo.Put(testQuote("AAPL", 105)))

	got, ok := repo.Get("AAPL", time.Minute)
	require.True(t, ok)
	assert.Equal(t, 105.0, got.Price)
}

func TestRepository_Prune(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.Put(testQuote("OLD", 1)))
	_, err := db.Exec(`UPDATE quote_cache SET cached_at = ? WHERE symbol = 'OLD'`,
		time.Now().Add(-2*time.Hour).Unix())
	require.NoError(t, err)
	require.NoError(t, repo.Put(testQuote("NEW", 2)))

	pruned, err := repo.Prune(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	_, ok := repo.Get("NEW", time.Minute)
	assert.True(t, ok)
}

type countingSource struct {
	quotes map[string]*domain.Quote
	calls  int
}

func (c *countingSource) GetQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	c.calls++
	q, ok := c.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, symbol)
	}
	return q, nil
}

func TestCachingSource_ServesFromCache(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	upstream := &countingSource{quotes: map[string]*domain.Quote{
		"AAPL": testQuote("AAPL", 180),
	}}
	source := NewCachingSource(upstream, repo, time.Minute, zerolog.Nop())

	first, err := source.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	second, err := source.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, first.Price, second.Price)
	assert.Equal(t, 1, upstream.calls, "second lookup must be served from cache")
}

func TestCachingSource_BypassSkipsFreshEntry(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	upstream := &countingSource{quotes: map[string]*domain.Quote{
		"AAPL": testQuote("AAPL", 180),
	}}
	source := NewCachingSource(upstream, repo, time.Minute, zerolog.Nop())

	_, err := source.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	// Bypass hits the upstream even though the cached row is still fresh,
	// and the fetched quote lands back in the cache.
	upstream.quotes["AAPL"] = testQuote("AAPL", 185)
	fresh, err := source.GetQuote(WithBypass(context.Background()), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 185.0, fresh.Price)
	assert.Equal(t, 2, upstream.calls)

	cached, err := source.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 185.0, cached.Price)
	assert.Equal(t, 2, upstream.calls, "plain lookup after bypass must be served from cache")
}

func TestCachingSource_FailurePassesThrough(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	upstream := &countingSource{quotes: map[string]*domain.Quote{}}
	source := NewCachingSource(upstream, repo, time.Minute, zerolog.Nop())

	_, err := source.GetQuote(context.Background(), "GONE")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}
