// Package indicators derives technical indicators from daily price history.
package indicators

import (
	"gonum.org/v1/gonum/stat"

	"github.com/hsnsmii/finport/internal/domain"
)

// Window sizes. RSI uses a fixed 15-close window (14 differences) but is
// only reported once a full 20-bar history exists, matching the SMA and
// volatility window; beta needs 21 closes of both series for 20 returns.
const (
	rsiCloses     = 15
	rsiMinHistory = 20
	smaWindow     = 20
	betaCloses    = 21
)

// Compute derives RSI, SMA20, volatility and beta from a stock's and a
// benchmark's price history. Histories arrive newest-first and are reversed
// to chronological order before any difference-based computation. Fields
// with insufficient history are nil; Compute never fails.
func Compute(stockHistory, benchmarkHistory []domain.PriceBar) domain.IndicatorSet {
	var set domain.IndicatorSet

	closes := chronologicalCloses(stockHistory)

	if len(closes) >= smaWindow {
		window := closes[len(closes)-smaWindow:]
		set.SMA20 = domain.Float(stat.Mean(window, nil))
		set.Volatility = domain.Float(stat.PopStdDev(window, nil))
	}

	if len(closes) >= rsiMinHistory {
		set.RSI = domain.Float(rsi(closes[len(closes)-rsiCloses:]))
	}

	benchCloses := chronologicalCloses(benchmarkHistory)
	if len(closes) >= betaCloses && len(benchCloses) >= betaCloses {
		set.Beta = domain.Float(beta(
			closes[len(closes)-betaCloses:],
			benchCloses[len(benchCloses)-betaCloses:],
		))
	}

	return set
}

// chronologicalCloses extracts closes in oldest-first order so that index i
// is chronologically before index i+1.
func chronologicalCloses(bars []domain.PriceBar) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[len(bars)-1-i] = bar.Close
	}
	return closes
}

// rsi computes the fixed-window simple-average RSI over 15 closes.
//
// This is deliberately NOT Wilder's smoothed RSI: the risk-scoring model
// was trained on this exact formula, so it must be preserved as-is.
func rsi(closes []float64) float64 {
	var gains, losses float64
	for i := 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses += -diff
		}
	}

	periods := float64(len(closes) - 1)
	avgGain := gains / periods
	avgLoss := losses / periods

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// beta computes cov(stock, benchmark)/var(benchmark) over the simple
// returns of the two close series. Returns 0 when the benchmark shows no
// variance.
func beta(stockCloses, benchCloses []float64) float64 {
	stockReturns := simpleReturns(stockCloses)
	benchReturns := simpleReturns(benchCloses)

	variance := stat.Variance(benchReturns, nil)
	if variance == 0 {
		return 0
	}

	return stat.Covariance(stockReturns, benchReturns, nil) / variance
}

// simpleReturns computes (close[i]-close[i-1])/close[i-1] for each step.
func simpleReturns(closes []float64) []float64 {
	returns := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns[i-1] = (closes[i] - closes[i-1]) / closes[i-1]
	}
	return returns
}
