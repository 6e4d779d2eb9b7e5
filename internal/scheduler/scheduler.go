// Package scheduler runs background refresh and maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hsnsmii/finport/internal/modules/pipeline"
	"github.com/hsnsmii/finport/internal/modules/quotecache"
	"github.com/hsnsmii/finport/internal/modules/snapshots"
)

// jobTimeout bounds a single scheduled pipeline run.
const jobTimeout = 2 * time.Minute

// snapshotRetention is how long history points are kept.
const snapshotRetention = 90 * 24 * time.Hour

// Scheduler triggers periodic pipeline refreshes and cache maintenance.
type Scheduler struct {
	cron        *cron.Cron
	runner      *pipeline.Runner
	quoteCache  *quotecache.Repository
	history     *snapshots.Repository
	watchlistID string
	log         zerolog.Logger
}

// New creates a new scheduler. watchlistID selects the watchlist refreshed
// in the background; empty disables the refresh job.
func New(
	runner *pipeline.Runner,
	quoteCache *quotecache.Repository,
	history *snapshots.Repository,
	watchlistID string,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		runner:      runner,
		quoteCache:  quoteCache,
		history:     history,
		watchlistID: watchlistID,
		log:         log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the jobs and starts the cron loop. refreshSpec is a cron
// expression (robfig syntax, "@every 5m" style accepted).
func (s *Scheduler) Start(refreshSpec string) error {
	if refreshSpec != "" && s.watchlistID != "" {
		if _, err := s.cron.AddFunc(refreshSpec, s.refreshJob); err != nil {
			return err
		}
		s.log.Info().
			Str("spec", refreshSpec).
			Str("watchlist_id", s.watchlistID).
			Msg("Registered background refresh job")
	}

	// Nightly maintenance: prune stale cache rows and old history points.
	if _, err := s.cron.AddFunc("@daily", s.maintenanceJob); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) refreshJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.runner.Run(ctx, s.watchlistID); err != nil {
		s.log.Warn().Err(err).Msg("Scheduled refresh failed")
	}
}

func (s *Scheduler) maintenanceJob() {
	if s.quoteCache != nil {
		if n, err := s.quoteCache.Prune(24 * time.Hour); err != nil {
			s.log.Warn().Err(err).Msg("Quote cache prune failed")
		} else if n > 0 {
			s.log.Info().Int64("pruned", n).Msg("Pruned stale quote cache entries")
		}
	}

	if s.history != nil {
		cutoff := time.Now().Add(-snapshotRetention)
		if n, err := s.history.PruneOlderThan(cutoff); err != nil {
			s.log.Warn().Err(err).Msg("Snapshot history prune failed")
		} else if n > 0 {
			s.log.Info().Int64("pruned", n).Msg("Pruned old snapshot history")
		}
	}
}
