package analysis

import (
	"testing"

	"github.com/rewired-gh/tickwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSwings(t *testing.T) {
	p := []float64{1, 2, 5, 2, 1, 2, 3, 0.5, 3, 4}
	highs, lows := FindSwings(p, 2)

	assert.Equal(t, []float64{5}, highs)
	assert.Equal(t, []float64{1, 0.5}, lows)
}

func TestFindSwings_RequiresStrictExtremum(t *testing.T) {
	// Plateau tops and bottoms are not swings.
	p := []float64{1, 2, 5, 5, 2, 1, 1, 3, 4}
	highs, lows := FindSwings(p, 2)

	assert.Empty(t, highs)
	assert.Empty(t, lows)
}

func TestFindSwings_IgnoresEdges(t *testing.T) {
	// The maximum at index 1 has only one point on its left and is never confirmed.
	p := []float64{0, 9, 1, 0.5, 0.2, 8, 0.1}
	highs, lows := FindSwings(p, 2)
	assert.Empty(t, highs)
	assert.Empty(t, lows)
}

func TestClassifyStructure(t *testing.T) {
	tests := []struct {
		name      string
		highs     []float64
		lows      []float64
		want      models.Structure
		wantBias  models.Bias
		wantMatch bool
	}{
		{"higher high wins over lower low", []float64{1, 2}, []float64{2, 1}, models.StructureHH, models.BiasBull, true},
		{"lower low", []float64{2, 2}, []float64{2, 1}, models.StructureLL, models.BiasBear, true},
		{"lower high", []float64{3, 2}, []float64{1, 2}, models.StructureLH, models.BiasBear, true},
		{"higher low", []float64{3}, []float64{1, 2}, models.StructureHL, models.BiasBull, true},
		{"only latest pair counts", []float64{5, 1, 2}, nil, models.StructureHH, models.BiasBull, true},
		{"single swings", []float64{1}, []float64{1}, "", "", false},
		{"equal swings", []float64{1, 1}, []float64{1, 1}, "", "", false},
		{"no swings", nil, nil, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, bias, ok := classifyStructure(tt.highs, tt.lows)
			assert.Equal(t, tt.wantMatch, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantBias, bias)
		})
	}
}

func TestDetectStructure_InsufficientDataIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	state := models.NewAnalysisState()
	want := state.Clone()

	DetectStructure(&state, zigzagTicks(19, 100, 0.05, 0.2, 600), cfg)

	assert.Equal(t, want, state)
}

func TestDetectStructure_Uptrend(t *testing.T) {
	cfg := DefaultConfig()
	ticks := zigzagTicks(20, 100, 0.05, 0.2, 600)
	state := models.NewAnalysisState()

	DetectStructure(&state, ticks, cfg)

	// Peaks at n = 2, 6, 10, 14 and troughs at n = 4, 8, 12, 16; the last three of each remain.
	require.Len(t, state.RecentHighs, 3)
	require.Len(t, state.RecentLows, 3)
	assert.InDeltaSlice(t, []float64{zigzag(6, 100, 0.05, 0.2), zigzag(10, 100, 0.05, 0.2), zigzag(14, 100, 0.05, 0.2)}, state.RecentHighs, 1e-9)
	assert.InDeltaSlice(t, []float64{zigzag(8, 100, 0.05, 0.2), zigzag(12, 100, 0.05, 0.2), zigzag(16, 100, 0.05, 0.2)}, state.RecentLows, 1e-9)
	assert.Equal(t, models.StructureHH, state.LastStructure)
	assert.Equal(t, models.BiasBull, state.Bias)

	require.True(t, state.KeyLevels.Support.Set)
	require.True(t, state.KeyLevels.Resistance.Set)
	assert.InDelta(t, state.RecentLows[0], state.KeyLevels.Support.Price, 1e-9)
	assert.InDelta(t, state.RecentHighs[2], state.KeyLevels.Resistance.Price, 1e-9)
	assert.LessOrEqual(t, state.KeyLevels.Support.Price, state.KeyLevels.Resistance.Price)
}

func TestDetectStructure_Downtrend(t *testing.T) {
	cfg := DefaultConfig()
	state := models.NewAnalysisState()

	DetectStructure(&state, zigzagTicks(20, 100, -0.05, 0.2, 600), cfg)

	assert.Equal(t, models.StructureLL, state.LastStructure)
	assert.Equal(t, models.BiasBear, state.Bias)
}

func TestDetectStructure_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	ticks := zigzagTicks(40, 100, 0.05, 0.4, 600)

	a := models.NewAnalysisState()
	b := models.NewAnalysisState()
	DetectStructure(&a, ticks, cfg)
	DetectStructure(&b, ticks, cfg)
	assert.Equal(t, a, b)

	DetectStructure(&a, ticks, cfg)
	assert.Equal(t, b, a)
}

func TestDetectStructure_NoSwingsKeepsLevelsAndBias(t *testing.T) {
	cfg := DefaultConfig()
	state := models.NewAnalysisState()
	state.Bias = models.BiasBear
	state.LastStructure = models.StructureLH
	state.RecentHighs = []float64{101, 100}
	state.KeyLevels = models.KeyLevels{Support: models.LevelAt(95), Resistance: models.LevelAt(101)}

	// Strictly rising prices have no interior extrema.
	ticks := make([]models.Tick, 20)
	for n := range ticks {
		ticks[n] = mkTick(n, 100+0.01*float64(n), 1)
	}
	DetectStructure(&state, ticks, cfg)

	assert.Empty(t, state.RecentHighs)
	assert.Empty(t, state.RecentLows)
	assert.Equal(t, models.BiasBear, state.Bias)
	assert.Equal(t, models.StructureLH, state.LastStructure)
	assert.Equal(t, models.LevelAt(95), state.KeyLevels.Support)
	assert.Equal(t, models.LevelAt(101), state.KeyLevels.Resistance)
}

func TestUpdateKeyLevels_RejectsCrossedPair(t *testing.T) {
	state := models.NewAnalysisState()
	state.RecentHighs = []float64{100}
	state.RecentLows = []float64{190}

	updateKeyLevels(&state)

	assert.False(t, state.KeyLevels.Support.Set)
	assert.False(t, state.KeyLevels.Resistance.Set)
}

func TestUpdateKeyLevels_CrossedPairKeepsBothPreviousLevels(t *testing.T) {
	state := models.NewAnalysisState()
	state.KeyLevels = models.KeyLevels{Support: models.LevelAt(90), Resistance: models.LevelAt(110)}
	// 130 alone would be a valid resistance; the lows push support above it.
	state.RecentHighs = []float64{125, 130}
	state.RecentLows = []float64{140}

	updateKeyLevels(&state)

	assert.Equal(t, models.LevelAt(90), state.KeyLevels.Support)
	assert.Equal(t, models.LevelAt(110), state.KeyLevels.Resistance)
}

func TestUpdateKeyLevels_ZeroIsAValidLevel(t *testing.T) {
	state := models.NewAnalysisState()
	state.RecentLows = []float64{0}
	state.RecentHighs = []float64{0.5}

	updateKeyLevels(&state)

	assert.Equal(t, models.LevelAt(0), state.KeyLevels.Support)
	assert.True(t, state.KeyLevels.Support.Set)
}
