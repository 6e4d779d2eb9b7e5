package indicators

import (
	"github.com/markcheno/go-talib"

	"github.com/hsnsmii/finport/internal/domain"
)

// extendedMinCloses covers the longest lookback in the extended set
// (SMA50; MACD needs 26+9 bars).
const extendedMinCloses = 50

// ExtendedSet holds the supplementary indicators shown on the market-detail
// screen. These are display data only and are not sent to the risk model.
type ExtendedSet struct {
	SMA50 *float64 `json:"sma_50"`
	EMA20 *float64 `json:"ema_20"`
	MACD  *float64 `json:"macd"`
}

// ComputeExtended derives the supplementary indicator set from a stock's
// price history (newest-first, as delivered). Below the required lookback
// the whole set is nil-valued.
func ComputeExtended(stockHistory []domain.PriceBar) ExtendedSet {
	var set ExtendedSet

	closes := chronologicalCloses(stockHistory)
	if len(closes) < extendedMinCloses {
		return set
	}

	if sma := talib.Sma(closes, 50); len(sma) > 0 {
		set.SMA50 = domain.Float(sma[len(sma)-1])
	}
	if ema := talib.Ema(closes, 20); len(ema) > 0 {
		set.EMA20 = domain.Float(ema[len(ema)-1])
	}
	if macd, _, _ := talib.Macd(closes, 12, 26, 9); len(macd) > 0 {
		set.MACD = domain.Float(macd[len(macd)-1])
	}

	return set
}
