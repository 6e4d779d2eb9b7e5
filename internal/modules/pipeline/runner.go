// Package pipeline orchestrates the position enrichment and aggregation
// run: fetch positions, join with quotes, aggregate, publish.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hsnsmii/finport/internal/domain"
	"github.com/hsnsmii/finport/internal/metrics"
	"github.com/hsnsmii/finport/internal/modules/aggregation"
	"github.com/hsnsmii/finport/internal/modules/enrichment"
)

// Result is the output of one completed pipeline run. Results are
// immutable; a new run replaces the previous result wholesale.
type Result struct {
	RunID          string                    `json:"run_id"`
	Token          uint64                    `json:"-"`
	WatchlistID    string                    `json:"watchlist_id"`
	GeneratedAt    time.Time                 `json:"generated_at"`
	Snapshot       domain.PortfolioSnapshot  `json:"snapshot"`
	Positions      []domain.EnrichedPosition `json:"positions"`
	SkippedRecords int                       `json:"skipped_records"`
	QuoteFailures  int                       `json:"quote_failures"`
}

// SnapshotRecorder persists portfolio totals after a published run.
type SnapshotRecorder interface {
	Record(point domain.SnapshotPoint) error
}

// Runner executes pipeline runs. Overlapping runs are not cancelled; each
// carries a monotonically increasing token and the state manager discards
// any result whose token is no longer the latest.
type Runner struct {
	positions domain.PositionSource
	enricher  *enrichment.Service
	palette   aggregation.Palette
	state     *StateManager
	recorder  SnapshotRecorder // optional
	token     atomic.Uint64
	log       zerolog.Logger
}

// NewRunner creates a new pipeline runner. recorder may be nil when no
// snapshot history is kept.
func NewRunner(
	positions domain.PositionSource,
	enricher *enrichment.Service,
	palette aggregation.Palette,
	state *StateManager,
	recorder SnapshotRecorder,
	log zerolog.Logger,
) *Runner {
	return &Runner{
		positions: positions,
		enricher:  enricher,
		palette:   palette,
		state:     state,
		recorder:  recorder,
		log:       log.With().Str("service", "pipeline").Logger(),
	}
}

// State returns the runner's state manager.
func (r *Runner) State() *StateManager {
	return r.state
}

// Run executes one full pipeline pass for a watchlist and publishes the
// result. Only a total failure of the position source returns an error;
// every per-symbol failure degrades within the result.
func (r *Runner) Run(ctx context.Context, watchlistID string) (*Result, error) {
	token := r.token.Add(1)
	runID := uuid.NewString()
	started := time.Now()

	runLog := r.log.With().
		Str("run_id", runID).
		Str("watchlist_id", watchlistID).
		Uint64("token", token).
		Logger()
	runLog.Debug().Msg("Starting pipeline run")

	raw, err := r.positions.GetPositions(ctx, watchlistID)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("pipeline run %s: %w", runID, err)
	}

	enriched, stats := r.enricher.Enrich(ctx, raw)
	snapshot := aggregation.Aggregate(enriched, r.palette)

	result := &Result{
		RunID:          runID,
		Token:          token,
		WatchlistID:    watchlistID,
		GeneratedAt:    time.Now().UTC(),
		Snapshot:       snapshot,
		Positions:      enriched,
		SkippedRecords: stats.Skipped,
		QuoteFailures:  stats.QuoteFailures,
	}

	metrics.PipelineDuration.Observe(time.Since(started).Seconds())

	if !r.state.Publish(result) {
		metrics.PipelineRuns.WithLabelValues("stale").Inc()
		runLog.Debug().Msg("Pipeline result superseded by newer run")
		return result, nil
	}
	metrics.PipelineRuns.WithLabelValues("published").Inc()

	if r.recorder != nil {
		point := domain.SnapshotPoint{
			WatchlistID:      watchlistID,
			TotalMarketValue: snapshot.TotalMarketValue,
			TotalProfitLoss:  snapshot.TotalProfitLoss,
			PositionCount:    len(enriched),
			CreatedAt:        result.GeneratedAt,
		}
		if err := r.recorder.Record(point); err != nil {
			// History is display data; a write failure never fails the run.
			runLog.Warn().Err(err).Msg("Failed to record snapshot history")
		}
	}

	runLog.Info().
		Int("positions", len(enriched)).
		Int("skipped", stats.Skipped).
		Int("quote_failures", stats.QuoteFailures).
		Float64("total_market_value", snapshot.TotalMarketValue).
		Dur("elapsed", time.Since(started)).
		Msg("Pipeline run published")

	return result, nil
}
