package analysis

import (
	"math"

	"github.com/rewired-gh/tickwatch/internal/models"
)

// ClassifyRegime refreshes state.ATR and labels the market. High volatility
// overrides everything; otherwise the swing drift decides between trend and
// range. Without two highs and two lows the previous regime stands.
func ClassifyRegime(state *models.AnalysisState, ticks []models.Tick, cfg Config) {
	if len(ticks) < cfg.StructureLookback {
		return
	}

	state.ATR = ATR(ticks, cfg.ATRPeriod)

	prices := lastPrices(ticks, cfg.StructureLookback)
	lo, hi := minOf(prices), maxOf(prices)
	var sum float64
	for _, p := range prices {
		sum += p
	}
	avgPrice := sum / float64(len(prices))

	var volatilityRatio float64
	if avgPrice > 0 {
		volatilityRatio = (hi - lo) / avgPrice
	}

	switch {
	case volatilityRatio > cfg.HighVolRatio:
		state.Regime = models.RegimeHighVolatility
	case len(state.RecentHighs) >= 2 && len(state.RecentLows) >= 2:
		highs, lows := state.RecentHighs, state.RecentLows
		trendStrength := math.Abs((highs[len(highs)-1] - highs[0]) + (lows[len(lows)-1] - lows[0]))
		if trendStrength > avgPrice*cfg.TrendRatio {
			state.Regime = models.RegimeTrend
		} else {
			state.Regime = models.RegimeRange
		}
	}
}
