// Package analysis implements the per-cycle market analysis pipeline: a bounded
// tick window, ATR volatility, swing structure, regime classification and the
// cooldown-gated alert rules.
//
// Stage functions take the window snapshot read-only and mutate the state they
// are handed. Nothing in this package performs I/O or keeps goroutines.
package analysis

import (
	"time"
)

type Config struct {
	WindowCapacity    int
	StructureLookback int
	SwingRadius       int
	MaxSwings         int
	ATRPeriod         int
	FastATRPeriod     int
	HighVolRatio      float64
	TrendRatio        float64
	AlertMinTicks     int
	VolumeLookback    int
	VolumeSpike       float64
	ExpansionMultiple float64
	Cooldown          time.Duration
}

func DefaultConfig() Config {
	return Config{
		WindowCapacity:    100,
		StructureLookback: 20,
		SwingRadius:       2,
		MaxSwings:         3,
		ATRPeriod:         14,
		FastATRPeriod:     5,
		HighVolRatio:      0.015,
		TrendRatio:        0.01,
		AlertMinTicks:     30,
		VolumeLookback:    20,
		VolumeSpike:       1.5,
		ExpansionMultiple: 1.8,
		Cooldown:          30 * time.Second,
	}
}
