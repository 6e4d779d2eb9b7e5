package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hsnsmii/finport/internal/config"
	"github.com/hsnsmii/finport/internal/domain"
	"github.com/hsnsmii/finport/internal/modules/indicators"
	"github.com/hsnsmii/finport/internal/modules/pipeline"
	"github.com/hsnsmii/finport/internal/modules/quotecache"
	"github.com/hsnsmii/finport/internal/modules/risk"
	"github.com/hsnsmii/finport/internal/modules/snapshots"
)

// Handlers serves the portfolio, indicator and risk endpoints.
type Handlers struct {
	runner      *pipeline.Runner
	history     domain.HistorySource
	riskService *risk.Service
	snapshots   *snapshots.Repository
	cfg         *config.Config
	log         zerolog.Logger
}

// NewHandlers creates the API handler set
func NewHandlers(
	runner *pipeline.Runner,
	history domain.HistorySource,
	riskService *risk.Service,
	snapshotRepo *snapshots.Repository,
	cfg *config.Config,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		runner:      runner,
		history:     history,
		riskService: riskService,
		snapshots:   snapshotRepo,
		cfg:         cfg,
		log:         log.With().Str("handler", "api").Logger(),
	}
}

// HandleHealth is the liveness endpoint.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleGetPortfolio returns the latest published pipeline result for a
// watchlist, running the pipeline if nothing has been published yet.
func (h *Handlers) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	watchlistID := chi.URLParam(r, "watchlistID")

	if result := h.runner.State().Latest(watchlistID); result != nil {
		h.writeJSON(w, http.StatusOK, result)
		return
	}

	result, err := h.runner.Run(r.Context(), watchlistID)
	if err != nil {
		h.handlePipelineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleRefresh forces a fresh pipeline run for a watchlist. The run
// bypasses the quote cache so an explicit refresh never serves aged prices.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	watchlistID := chi.URLParam(r, "watchlistID")

	result, err := h.runner.Run(quotecache.WithBypass(r.Context()), watchlistID)
	if err != nil {
		h.handlePipelineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetHistory returns the persisted totals history for a watchlist.
func (h *Handlers) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	watchlistID := chi.URLParam(r, "watchlistID")

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	points, err := h.snapshots.ListRecent(watchlistID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("watchlist_id", watchlistID).Msg("Failed to list snapshot history")
		h.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if points == nil {
		points = []domain.SnapshotPoint{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"watchlist_id": watchlistID,
		"points":       points,
	})
}

// indicatorsResponse carries the core and extended indicator sets.
type indicatorsResponse struct {
	Symbol    string                 `json:"symbol"`
	Benchmark string                 `json:"benchmark"`
	Core      domain.IndicatorSet    `json:"indicators"`
	Extended  indicators.ExtendedSet `json:"extended"`
}

// computeIndicators fetches both histories and derives the indicator sets.
func (h *Handlers) computeIndicators(r *http.Request, symbol string) (*indicatorsResponse, error) {
	stockHistory, err := h.history.GetHistory(r.Context(), symbol, h.cfg.HistoryRange)
	if err != nil {
		return nil, err
	}

	// A missing benchmark only blanks beta; the rest still computes.
	benchmarkHistory, err := h.history.GetHistory(r.Context(), h.cfg.BenchmarkSymbol, h.cfg.HistoryRange)
	if err != nil {
		h.log.Warn().
			Err(err).
			Str("benchmark", h.cfg.BenchmarkSymbol).
			Msg("Benchmark history unavailable, beta will be null")
		benchmarkHistory = nil
	}

	return &indicatorsResponse{
		Symbol:    symbol,
		Benchmark: h.cfg.BenchmarkSymbol,
		Core:      indicators.Compute(stockHistory, benchmarkHistory),
		Extended:  indicators.ComputeExtended(stockHistory),
	}, nil
}

// HandleGetIndicators returns the indicator sets for a symbol.
func (h *Handlers) HandleGetIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	resp, err := h.computeIndicators(r, symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to fetch price history")
		h.writeError(w, http.StatusBadGateway, "price history unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGetRisk returns the indicators plus the risk assessment for a
// symbol. A failing scoring service degrades to the unknown band, never to
// an error status.
func (h *Handlers) HandleGetRisk(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	resp, err := h.computeIndicators(r, symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to fetch price history")
		h.writeError(w, http.StatusBadGateway, "price history unavailable")
		return
	}

	assessment := h.riskService.Score(r.Context(), resp.Core, symbol)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":     symbol,
		"indicators": resp.Core,
		"extended":   resp.Extended,
		"assessment": assessment,
	})
}

// handlePipelineError maps pipeline failures to HTTP statuses. Only a
// position source failure reaches here; per-symbol failures degrade inside
// the result.
func (h *Handlers) handlePipelineError(w http.ResponseWriter, err error) {
	h.log.Error().Err(err).Msg("Pipeline run failed")
	if errors.Is(err, domain.ErrPositionSource) {
		h.writeError(w, http.StatusBadGateway, "position source unavailable")
		return
	}
	h.writeError(w, http.StatusInternalServerError, "pipeline run failed")
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
