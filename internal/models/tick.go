// Package models defines the core domain entities: ticks, analysis state, and alerts.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTick marks a tick that violates the field constraints and must not
// enter the analysis window.
var ErrInvalidTick = errors.New("invalid tick")

// Tick is a single market observation for the monitored instrument.
type Tick struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Volume    float64   `json:"volume"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
}

// Validate checks tick field constraints. Every failure wraps ErrInvalidTick.
func (t *Tick) Validate() error {
	switch {
	case t.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp must be set", ErrInvalidTick)
	case t.Price <= 0:
		return fmt.Errorf("%w: price must be positive, got %v", ErrInvalidTick, t.Price)
	case t.Bid >= t.Ask:
		return fmt.Errorf("%w: bid %v must be below ask %v", ErrInvalidTick, t.Bid, t.Ask)
	case t.Volume < 0:
		return fmt.Errorf("%w: volume must not be negative, got %v", ErrInvalidTick, t.Volume)
	case t.Low > t.High:
		return fmt.Errorf("%w: low %v above high %v", ErrInvalidTick, t.Low, t.High)
	case t.Price < t.Low || t.Price > t.High:
		return fmt.Errorf("%w: price %v outside range [%v, %v]", ErrInvalidTick, t.Price, t.Low, t.High)
	}
	return nil
}

// PricePoint is a (timestamp, price) pair used for charting.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}
