package analysis

import (
	"github.com/rewired-gh/tickwatch/internal/models"
)

// FindSwings returns the strict local extrema of prices in chronological order.
// A point is a swing high when it is strictly above every neighbor within
// radius on both sides, and a swing low when strictly below all of them.
func FindSwings(prices []float64, radius int) (highs, lows []float64) {
	if radius < 1 {
		radius = 1
	}
	for i := radius; i < len(prices)-radius; i++ {
		isHigh, isLow := true, true
		for j := i - radius; j <= i+radius; j++ {
			if j == i {
				continue
			}
			if prices[j] >= prices[i] {
				isHigh = false
			}
			if prices[j] <= prices[i] {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			highs = append(highs, prices[i])
		} else if isLow {
			lows = append(lows, prices[i])
		}
	}
	return highs, lows
}

// DetectStructure re-derives the recent swings from the structure lookback and
// classifies the latest transition. It is a no-op until the window holds
// enough ticks.
func DetectStructure(state *models.AnalysisState, ticks []models.Tick, cfg Config) {
	if len(ticks) < cfg.StructureLookback {
		return
	}

	highs, lows := FindSwings(lastPrices(ticks, cfg.StructureLookback), cfg.SwingRadius)
	state.RecentHighs = lastN(highs, cfg.MaxSwings)
	state.RecentLows = lastN(lows, cfg.MaxSwings)

	if structure, bias, ok := classifyStructure(state.RecentHighs, state.RecentLows); ok {
		state.LastStructure = structure
		state.Bias = bias
	}

	updateKeyLevels(state)
}

// classifyStructure applies the transitions in priority order; the first match wins.
func classifyStructure(highs, lows []float64) (models.Structure, models.Bias, bool) {
	nh, nl := len(highs), len(lows)
	switch {
	case nh >= 2 && highs[nh-1] > highs[nh-2]:
		return models.StructureHH, models.BiasBull, true
	case nl >= 2 && lows[nl-1] < lows[nl-2]:
		return models.StructureLL, models.BiasBear, true
	case nh >= 2 && highs[nh-1] < highs[nh-2]:
		return models.StructureLH, models.BiasBear, true
	case nl >= 2 && lows[nl-1] > lows[nl-2]:
		return models.StructureHL, models.BiasBull, true
	}
	return "", "", false
}

// updateKeyLevels sets support to the lowest recent low and resistance to the
// highest recent high. A side with no swings keeps its previous level. When
// the new pair would leave support above resistance, neither side is updated:
// both levels keep their previous values for this cycle, including a side
// whose own new value was valid.
func updateKeyLevels(state *models.AnalysisState) {
	levels := state.KeyLevels
	if len(state.RecentLows) > 0 {
		levels.Support = models.LevelAt(minOf(state.RecentLows))
	}
	if len(state.RecentHighs) > 0 {
		levels.Resistance = models.LevelAt(maxOf(state.RecentHighs))
	}
	if levels.Support.Set && levels.Resistance.Set && levels.Support.Price > levels.Resistance.Price {
		return
	}
	state.KeyLevels = levels
}

func lastN(values []float64, n int) []float64 {
	if len(values) > n {
		values = values[len(values)-n:]
	}
	return append(make([]float64, 0, len(values)), values...)
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
