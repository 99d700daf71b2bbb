package analysis

import (
	"time"

	"github.com/rewired-gh/tickwatch/internal/models"
)

var t0 = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

const tickSpacing = 5 * time.Second

// mkTick builds a valid tick n cycles after t0 with a 0.4 wide bar around price.
func mkTick(n int, price, volume float64) models.Tick {
	return models.Tick{
		Timestamp: t0.Add(time.Duration(n) * tickSpacing),
		Price:     price,
		Bid:       price - 0.01,
		Ask:       price + 0.01,
		Volume:    volume,
		High:      price + 0.2,
		Low:       price - 0.2,
	}
}

// zigzag returns a four-step wave (0, amp/2, amp, amp/2) drifting by slope per tick.
// Peaks sit at n%4 == 2 and troughs at n%4 == 0.
func zigzag(n int, start, slope, amp float64) float64 {
	wave := [4]float64{0, amp / 2, amp, amp / 2}
	return start + slope*float64(n) + wave[n%4]
}

func zigzagTicks(count int, start, slope, amp, volume float64) []models.Tick {
	ticks := make([]models.Tick, count)
	for n := range ticks {
		ticks[n] = mkTick(n, zigzag(n, start, slope, amp), volume)
	}
	return ticks
}

func prices(ticks []models.Tick) []float64 {
	out := make([]float64, len(ticks))
	for i, t := range ticks {
		out[i] = t.Price
	}
	return out
}
