package models

import (
	"time"
)

type Bias string

const (
	BiasBull    Bias = "bull"
	BiasBear    Bias = "bear"
	BiasNeutral Bias = "neutral"
)

type Regime string

const (
	RegimeTrend          Regime = "trend"
	RegimeRange          Regime = "range"
	RegimeHighVolatility Regime = "high-volatility"
)

type Structure string

const (
	StructureHH   Structure = "HH"
	StructureHL   Structure = "HL"
	StructureLH   Structure = "LH"
	StructureLL   Structure = "LL"
	StructureNone Structure = "none"
)

// Level is a price level that may not have been established yet.
// Set distinguishes "no level" from a level at price 0.
type Level struct {
	Price float64 `json:"price"`
	Set   bool    `json:"set"`
}

func LevelAt(price float64) Level {
	return Level{Price: price, Set: true}
}

type KeyLevels struct {
	Support    Level `json:"support"`
	Resistance Level `json:"resistance"`
}

// AnalysisState is the single record carried from one cycle to the next.
type AnalysisState struct {
	Bias          Bias      `json:"bias"`
	Regime        Regime    `json:"regime"`
	KeyLevels     KeyLevels `json:"key_levels"`
	LastStructure Structure `json:"last_structure"`
	RecentHighs   []float64 `json:"recent_highs"`
	RecentLows    []float64 `json:"recent_lows"`
	ATR           float64   `json:"atr"`
	LastAlertTime time.Time `json:"last_alert_time"`
}

// NewAnalysisState returns the state a fresh monitoring session starts from.
func NewAnalysisState() AnalysisState {
	return AnalysisState{
		Bias:          BiasNeutral,
		Regime:        RegimeRange,
		LastStructure: StructureNone,
		RecentHighs:   []float64{},
		RecentLows:    []float64{},
	}
}

// Clone returns a deep copy so the swing slices are never shared.
func (s AnalysisState) Clone() AnalysisState {
	c := s
	c.RecentHighs = append(make([]float64, 0, len(s.RecentHighs)), s.RecentHighs...)
	c.RecentLows = append(make([]float64, 0, len(s.RecentLows)), s.RecentLows...)
	return c
}
