// Package snapshots persists portfolio totals over time for the
// value-over-time history chart.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hsnsmii/finport/internal/domain"
)

// Repository is an append-only store of snapshot points. The core pipeline
// stays recompute-and-discard; this history exists purely for display.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "snapshot_history").Logger(),
	}
}

// Record appends one observation of a watchlist's totals.
func (r *Repository) Record(point domain.SnapshotPoint) error {
	createdAt := point.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO portfolio_snapshots
			(watchlist_id, total_market_value, total_profit_loss, position_count, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		point.WatchlistID,
		point.TotalMarketValue,
		point.TotalProfitLoss,
		point.PositionCount,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record snapshot for %s: %w", point.WatchlistID, err)
	}

	return nil
}

// ListRecent returns up to limit points for a watchlist, newest first.
func (r *Repository) ListRecent(watchlistID string, limit int) ([]domain.SnapshotPoint, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(
		`SELECT watchlist_id, total_market_value, total_profit_loss, position_count, created_at
		 FROM portfolio_snapshots
		 WHERE watchlist_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		watchlistID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for %s: %w", watchlistID, err)
	}
	defer rows.Close()

	var points []domain.SnapshotPoint
	for rows.Next() {
		var p domain.SnapshotPoint
		var createdAt int64
		if err := rows.Scan(&p.WatchlistID, &p.TotalMarketValue, &p.TotalProfitLoss, &p.PositionCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}

	return points, nil
}

// PruneOlderThan removes points older than the cutoff. Run from the
// maintenance schedule.
func (r *Repository) PruneOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM portfolio_snapshots WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
