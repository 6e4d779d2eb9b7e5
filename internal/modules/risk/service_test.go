package risk

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsnsmii/finport/internal/domain"
)

type fakeScorer struct {
	pct   float64
	err   error
	calls int
}

func (f *fakeScorer) PredictRisk(_ context.Context, _ domain.IndicatorSet, _ string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.pct, nil
}

func complete() domain.IndicatorSet {
	return domain.IndicatorSet{
		RSI:        domain.Float(60),
		SMA20:      domain.Float(100),
		Volatility: domain.Float(3),
		Beta:       domain.Float(1.2),
	}
}

func TestScore_Bands(t *testing.T) {
	tests := []struct {
		pct  float64
		want domain.RiskBand
	}{
		{0, domain.RiskBandLow},
		{39.99, domain.RiskBandLow},
		{40, domain.RiskBandMedium},
		{69.99, domain.RiskBandMedium},
		{70, domain.RiskBandHigh},
		{100, domain.RiskBandHigh},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.pct), func(t *testing.T) {
			svc := NewService(&fakeScorer{pct: tt.pct}, zerolog.Nop())
			assessment := svc.Score(context.Background(), complete(), "AAPL")

			require.NotNil(t, assessment.RiskPercentage)
			assert.Equal(t, tt.pct, *assessment.RiskPercentage)
			assert.Equal(t, tt.want, assessment.Band)
		})
	}
}

func TestScore_IncompleteIndicatorsSkipsRemoteCall(t *testing.T) {
	indicatorSets := []domain.IndicatorSet{
		{},
		{RSI: domain.Float(50)},
		func() domain.IndicatorSet { s := complete(); s.Beta = nil; return s }(),
		func() domain.IndicatorSet { s := complete(); s.Volatility = nil; return s }(),
	}

	for i, set := range indicatorSets {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			scorer := &fakeScorer{pct: 50}
			svc := NewService(scorer, zerolog.Nop())

			assessment := svc.Score(context.Background(), set, "AAPL")

			assert.Nil(t, assessment.RiskPercentage)
			assert.Equal(t, domain.RiskBandUnknown, assessment.Band)
			assert.Zero(t, scorer.calls, "remote call must be skipped")
		})
	}
}

func TestScore_ServiceFailureIsUnknown(t *testing.T) {
	scorer := &fakeScorer{err: fmt.Errorf("%w: boom", domain.ErrRiskService)}
	svc := NewService(scorer, zerolog.Nop())

	assessment := svc.Score(context.Background(), complete(), "AAPL")

	assert.Nil(t, assessment.RiskPercentage)
	assert.Equal(t, domain.RiskBandUnknown, assessment.Band)
	assert.Equal(t, 1, scorer.calls)
}
