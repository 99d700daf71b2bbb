package analysis

import (
	"math"

	"github.com/rewired-gh/tickwatch/internal/models"
)

// ATR is the arithmetic mean of the true range over the last period ticks.
// The first tick of the slice contributes high-low; later ticks also consider
// the gap from the preceding tick's price. Fewer than period ticks yields 0.
func ATR(ticks []models.Tick, period int) float64 {
	if period <= 0 || len(ticks) < period {
		return 0
	}

	start := len(ticks) - period
	var sum float64
	for i := start; i < len(ticks); i++ {
		t := ticks[i]
		tr := math.Max(t.High-t.Low, 0)
		if i > start {
			prevClose := ticks[i-1].Price
			tr = math.Max(tr, math.Max(math.Abs(t.High-prevClose), math.Abs(t.Low-prevClose)))
		}
		sum += tr
	}
	return sum / float64(period)
}

func lastPrices(ticks []models.Tick, n int) []float64 {
	if n > len(ticks) {
		n = len(ticks)
	}
	out := make([]float64, n)
	for i, t := range ticks[len(ticks)-n:] {
		out[i] = t.Price
	}
	return out
}

func averageVolume(ticks []models.Tick, n int) float64 {
	if n > len(ticks) {
		n = len(ticks)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for _, t := range ticks[len(ticks)-n:] {
		sum += t.Volume
	}
	return sum / float64(n)
}
