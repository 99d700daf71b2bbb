package models

import (
	"time"
)

// Rule identifies the setup that produced an alert.
type Rule string

const (
	RuleBreakout            Rule = "breakout"
	RuleBreakdown           Rule = "breakdown"
	RuleVolatilityExpansion Rule = "volatility_expansion"
	RuleLiquiditySweep      Rule = "liquidity_sweep"
)

// Alert is emitted at most once per cycle when a setup fires.
// Probability is a fixed heuristic score per rule in [0, 100].
type Alert struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Asset             string    `json:"asset"`
	Rule              Rule      `json:"rule"`
	Event             string    `json:"event"`
	Bias              Bias      `json:"bias"`
	Price             float64   `json:"price"`
	TriggerLevel      float64   `json:"trigger_level"`
	InvalidationLevel float64   `json:"invalidation_level"`
	Probability       int       `json:"probability"`
	RiskNote          string    `json:"risk_note"`
}
