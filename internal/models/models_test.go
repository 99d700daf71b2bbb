package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickValidate(t *testing.T) {
	now := time.Now()
	valid := Tick{
		Timestamp: now,
		Price:     100,
		Bid:       99.9,
		Ask:       100.1,
		Volume:    500,
		High:      100.5,
		Low:       99.5,
	}

	tests := []struct {
		name    string
		mutate  func(t *Tick)
		wantErr bool
	}{
		{name: "valid tick", mutate: func(t *Tick) {}, wantErr: false},
		{name: "zero timestamp", mutate: func(t *Tick) { t.Timestamp = time.Time{} }, wantErr: true},
		{name: "zero price", mutate: func(t *Tick) { t.Price = 0 }, wantErr: true},
		{name: "crossed book", mutate: func(t *Tick) { t.Bid = 100.2 }, wantErr: true},
		{name: "locked book", mutate: func(t *Tick) { t.Bid = t.Ask }, wantErr: true},
		{name: "negative volume", mutate: func(t *Tick) { t.Volume = -1 }, wantErr: true},
		{name: "zero volume allowed", mutate: func(t *Tick) { t.Volume = 0 }, wantErr: false},
		{name: "low above high", mutate: func(t *Tick) { t.Low = 101; t.High = 100.5 }, wantErr: true},
		{name: "price above high", mutate: func(t *Tick) { t.Price = 101 }, wantErr: true},
		{name: "price below low", mutate: func(t *Tick) { t.Price = 99 }, wantErr: true},
		{name: "price equals extremes", mutate: func(t *Tick) { t.High = 100; t.Low = 100 }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tick := valid
			tt.mutate(&tick)
			err := tick.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTick)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnalysisStateClone(t *testing.T) {
	s := NewAnalysisState()
	s.RecentHighs = []float64{1, 2, 3}
	s.RecentLows = []float64{0.5}

	c := s.Clone()
	c.RecentHighs[0] = 42
	c.RecentLows = append(c.RecentLows, 0.7)

	assert.Equal(t, []float64{1, 2, 3}, s.RecentHighs, "clone shares highs backing array")
	assert.Equal(t, []float64{0.5}, s.RecentLows, "clone shares lows")
}

func TestNewAnalysisState(t *testing.T) {
	s := NewAnalysisState()
	assert.Equal(t, BiasNeutral, s.Bias)
	assert.Equal(t, RegimeRange, s.Regime)
	assert.Equal(t, StructureNone, s.LastStructure)
	assert.False(t, s.KeyLevels.Support.Set, "levels must start unset")
	assert.False(t, s.KeyLevels.Resistance.Set, "levels must start unset")
	assert.True(t, s.LastAlertTime.IsZero())
}
