// Package quotecache provides a short-TTL cache of market quotes backed by
// the cache database.
package quotecache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hsnsmii/finport/internal/domain"
	"github.com/hsnsmii/finport/internal/metrics"
)

// Repository stores msgpack-encoded quotes keyed by symbol.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new quote cache repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "quote_cache").Logger(),
	}
}

// Get returns the cached quote for a symbol if it is younger than ttl.
func (r *Repository) Get(symbol string, ttl time.Duration) (*domain.Quote, bool) {
	var payload []byte
	var cachedAt int64

	err := r.db.QueryRow(
		`SELECT payload, cached_at FROM quote_cache WHERE symbol = ?`,
		symbol,
	).Scan(&payload, &cachedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			r.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache read failed")
		}
		return nil, false
	}

	if time.Since(time.Unix(cachedAt, 0)) > ttl {
		return nil, false
	}

	var quote domain.Quote
	if err := msgpack.Unmarshal(payload, &quote); err != nil {
		r.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to decode cached quote, evicting")
		_ = r.Delete(symbol)
		return nil, false
	}

	return &quote, true
}

// Put stores a quote, replacing any previous entry for the symbol.
func (r *Repository) Put(quote *domain.Quote) error {
	payload, err := msgpack.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to encode quote for %s: %w", quote.Symbol, err)
	}

	_, err = r.db.Exec(
		`INSERT INTO quote_cache (symbol, payload, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		quote.Symbol, payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to cache quote for %s: %w", quote.Symbol, err)
	}

	return nil
}

// Delete removes a symbol's cache entry.
func (r *Repository) Delete(symbol string) error {
	if _, err := r.db.Exec(`DELETE FROM quote_cache WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("failed to delete cached quote for %s: %w", symbol, err)
	}
	return nil
}

// Prune removes entries older than maxAge. Run from the maintenance
// schedule to keep the cache database small.
func (r *Repository) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := r.db.Exec(`DELETE FROM quote_cache WHERE cached_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune quote cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CachingSource wraps a QuoteSource with the repository. A fresh cache row
// serves the lookup; anything else falls through to the underlying source
// and successful fetches refresh the cache. Failures are never served from
// stale rows -- a miss degrades exactly like an upstream failure.
type CachingSource struct {
	source domain.QuoteSource
	repo   *Repository
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachingSource creates a caching decorator around a quote source.
func NewCachingSource(source domain.QuoteSource, repo *Repository, ttl time.Duration, log zerolog.Logger) *CachingSource {
	return &CachingSource{
		source: source,
		repo:   repo,
		ttl:    ttl,
		log:    log.With().Str("component", "caching_quote_source").Logger(),
	}
}

type bypassKey struct{}

// WithBypass marks the context so lookups skip the cache read and always
// hit the underlying source. Explicit user-triggered refreshes use this;
// successful fetches still land in the cache.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func bypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// GetQuote implements domain.QuoteSource.
func (c *CachingSource) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if !bypassed(ctx) {
		if quote, ok := c.repo.Get(symbol, c.ttl); ok {
			metrics.QuoteLookups.WithLabelValues("cached").Inc()
			return quote, nil
		}
	}

	quote, err := c.source.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if err := c.repo.Put(quote); err != nil {
		// Cache write failure must not fail the lookup.
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to refresh quote cache")
	}

	return quote, nil
}
