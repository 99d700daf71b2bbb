package analysis

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/tickwatch/internal/models"
)

const (
	levelInvalidationATR     = 1.5
	expansionInvalidationATR = 2.0
)

// features holds what every rule may look at during one evaluation.
type features struct {
	tick      models.Tick
	state     *models.AnalysisState
	avgVolume float64
	fastATR   float64
	spike     float64
	expansion float64
}

type signal struct {
	event        string
	bias         models.Bias
	trigger      float64
	invalidation float64
	riskNote     string
}

type rule struct {
	name        models.Rule
	probability int
	match       func(f *features) (signal, bool)
}

// rules are tried in order; the first match wins.
var rules = []rule{
	{name: models.RuleBreakout, probability: 68, match: matchBreakout},
	{name: models.RuleBreakdown, probability: 65, match: matchBreakdown},
	{name: models.RuleVolatilityExpansion, probability: 58, match: matchVolatilityExpansion},
	{name: models.RuleLiquiditySweep, probability: 62, match: matchLiquiditySweep},
}

func matchBreakout(f *features) (signal, bool) {
	r := f.state.KeyLevels.Resistance
	if !r.Set || f.tick.Price <= r.Price || f.tick.Volume <= f.spike*f.avgVolume {
		return signal{}, false
	}
	inv := r.Price - levelInvalidationATR*f.state.ATR
	return signal{
		event:        "Breakout above resistance on volume",
		bias:         models.BiasBull,
		trigger:      r.Price,
		invalidation: inv,
		riskNote:     fmt.Sprintf("Invalid if price falls back below %.4f", inv),
	}, true
}

func matchBreakdown(f *features) (signal, bool) {
	s := f.state.KeyLevels.Support
	if !s.Set || f.tick.Price >= s.Price || f.tick.Volume <= f.spike*f.avgVolume {
		return signal{}, false
	}
	inv := s.Price + levelInvalidationATR*f.state.ATR
	return signal{
		event:        "Breakdown below support on volume",
		bias:         models.BiasBear,
		trigger:      s.Price,
		invalidation: inv,
		riskNote:     fmt.Sprintf("Invalid if price recovers above %.4f", inv),
	}, true
}

func matchVolatilityExpansion(f *features) (signal, bool) {
	if f.state.ATR <= 0 || f.fastATR <= f.expansion*f.state.ATR {
		return signal{}, false
	}
	bias := f.state.Bias
	if bias == models.BiasBull {
		inv := f.tick.Price - expansionInvalidationATR*f.fastATR
		return signal{
			event:        "Volatility expansion",
			bias:         bias,
			trigger:      f.tick.Price,
			invalidation: inv,
			riskNote:     fmt.Sprintf("Invalid if price drops below %.4f", inv),
		}, true
	}
	inv := f.tick.Price + expansionInvalidationATR*f.fastATR
	return signal{
		event:        "Volatility expansion",
		bias:         bias,
		trigger:      f.tick.Price,
		invalidation: inv,
		riskNote:     fmt.Sprintf("Invalid if price rises above %.4f", inv),
	}, true
}

// matchLiquiditySweep fires when the tick wicks under the prior swing low but
// trades back above it.
func matchLiquiditySweep(f *features) (signal, bool) {
	lows := f.state.RecentLows
	if len(lows) < 2 {
		return signal{}, false
	}
	prevLow := lows[len(lows)-2]
	if f.tick.Low >= prevLow || f.tick.Price <= prevLow {
		return signal{}, false
	}
	return signal{
		event:        "Liquidity sweep below prior low",
		bias:         models.BiasBull,
		trigger:      prevLow,
		invalidation: f.tick.Low,
		riskNote:     fmt.Sprintf("Invalid on a trade below the sweep low %.4f", f.tick.Low),
	}, true
}

// Evaluator runs the alert rules behind the cooldown gate.
type Evaluator struct {
	asset  string
	config Config
}

func NewEvaluator(asset string, config Config) *Evaluator {
	return &Evaluator{asset: asset, config: config}
}

// Evaluate returns at most one alert for the newest tick in ticks and records
// its time in state. The newest tick's timestamp is the evaluation clock.
func (e *Evaluator) Evaluate(state *models.AnalysisState, ticks []models.Tick) *models.Alert {
	if len(ticks) < e.config.AlertMinTicks || len(ticks) == 0 {
		return nil
	}

	tick := ticks[len(ticks)-1]
	now := tick.Timestamp
	if !state.LastAlertTime.IsZero() && now.Sub(state.LastAlertTime) < e.config.Cooldown {
		return nil
	}

	f := &features{
		tick:      tick,
		state:     state,
		avgVolume: averageVolume(ticks, e.config.VolumeLookback),
		fastATR:   ATR(ticks, e.config.FastATRPeriod),
		spike:     e.config.VolumeSpike,
		expansion: e.config.ExpansionMultiple,
	}

	for _, r := range rules {
		sig, ok := r.match(f)
		if !ok {
			continue
		}
		state.LastAlertTime = now
		return &models.Alert{
			ID:                alertID(e.asset, r.name, now),
			Timestamp:         now,
			Asset:             e.asset,
			Rule:              r.name,
			Event:             sig.event,
			Bias:              sig.bias,
			Price:             tick.Price,
			TriggerLevel:      sig.trigger,
			InvalidationLevel: sig.invalidation,
			Probability:       r.probability,
			RiskNote:          sig.riskNote,
		}
	}
	return nil
}

// alertID is name-based so a replayed tick sequence reproduces the same ids.
// The cooldown guarantees one emission per asset and instant.
func alertID(asset string, name models.Rule, at time.Time) string {
	key := fmt.Sprintf("%s/%s/%d", asset, name, at.UnixNano())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}
