package analysis

import (
	"fmt"

	"github.com/rewired-gh/tickwatch/internal/models"
)

// Analyzer owns the window and the analysis state of one instrument.
// It is not safe for concurrent use; the monitoring loop is its only caller.
type Analyzer struct {
	config    Config
	window    *Window
	state     models.AnalysisState
	evaluator *Evaluator
}

func NewAnalyzer(asset string, config Config) *Analyzer {
	return &Analyzer{
		config:    config,
		window:    NewWindow(config.WindowCapacity),
		state:     models.NewAnalysisState(),
		evaluator: NewEvaluator(asset, config),
	}
}

// Process runs one full cycle for tick. The stages work on copies of the
// window and state, which replace the current ones only after every stage has
// run, so a rejected tick leaves the previous cycle's result intact.
func (a *Analyzer) Process(tick models.Tick) (*models.Alert, error) {
	if err := tick.Validate(); err != nil {
		return nil, err
	}
	if last, ok := a.window.Last(); ok && tick.Timestamp.Before(last.Timestamp) {
		return nil, fmt.Errorf("%w: timestamp %s precedes %s", models.ErrInvalidTick,
			tick.Timestamp.Format("15:04:05.000"), last.Timestamp.Format("15:04:05.000"))
	}

	window := a.window.clone()
	window.Append(tick)
	ticks := window.Snapshot()

	state := a.state.Clone()
	DetectStructure(&state, ticks, a.config)
	ClassifyRegime(&state, ticks, a.config)
	alert := a.evaluator.Evaluate(&state, ticks)

	a.window = window
	a.state = state
	return alert, nil
}

// State returns a copy of the current analysis state.
func (a *Analyzer) State() models.AnalysisState {
	return a.state.Clone()
}

// Window returns the retained ticks, oldest first.
func (a *Analyzer) Window() []models.Tick {
	return a.window.Snapshot()
}

// Restore replaces state and window with a checkpoint. Only the newest ticks
// that fit the configured capacity are kept.
func (a *Analyzer) Restore(state models.AnalysisState, ticks []models.Tick) error {
	for i := range ticks {
		if err := ticks[i].Validate(); err != nil {
			return fmt.Errorf("checkpoint tick %d: %w", i, err)
		}
	}
	w := NewWindow(a.config.WindowCapacity)
	for _, t := range ticks {
		w.Append(t)
	}
	if state.RecentHighs == nil {
		state.RecentHighs = []float64{}
	}
	if state.RecentLows == nil {
		state.RecentLows = []float64{}
	}
	a.window = w
	a.state = state.Clone()
	return nil
}
