// Package risk turns indicator sets into a risk classification via the
// external scoring service.
package risk

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hsnsmii/finport/internal/domain"
	"github.com/hsnsmii/finport/internal/metrics"
)

// Service classifies symbols by risk. It never returns an error: every
// failure path resolves to the unknown band so the caller's screen renders
// a defined state.
type Service struct {
	scorer domain.RiskScorer
	log    zerolog.Logger
}

// NewService creates a new risk-scoring service
func NewService(scorer domain.RiskScorer, log zerolog.Logger) *Service {
	return &Service{
		scorer: scorer,
		log:    log.With().Str("service", "risk").Logger(),
	}
}

// Score sends the indicator set to the scoring service and maps the result
// to a band. When any required indicator is nil the remote call is skipped
// entirely and the assessment is unknown.
func (s *Service) Score(ctx context.Context, indicators domain.IndicatorSet, symbol string) domain.RiskAssessment {
	if !indicators.Complete() {
		metrics.RiskRequests.WithLabelValues("skipped").Inc()
		s.log.Debug().
			Str("symbol", symbol).
			Msg("Skipping risk call, indicator set incomplete")
		return domain.RiskAssessment{Band: domain.RiskBandUnknown}
	}

	pct, err := s.scorer.PredictRisk(ctx, indicators, symbol)
	if err != nil {
		metrics.RiskRequests.WithLabelValues("failed").Inc()
		s.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Msg("Risk service call failed, classifying as unknown")
		return domain.RiskAssessment{Band: domain.RiskBandUnknown}
	}

	metrics.RiskRequests.WithLabelValues("scored").Inc()
	return domain.RiskAssessment{
		RiskPercentage: domain.Float(pct),
		Band:           domain.ClassifyRisk(pct),
	}
}
