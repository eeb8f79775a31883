package model

import (
	"github.com/shopspring/decimal"
)

// RoundMode selects the direction used when snapping a price to a tick.
type RoundMode uint8

const (
	RoundNearest RoundMode = iota
	RoundDown
	RoundUp
)

// RoundToTick snaps price onto a multiple of tick. A non-positive tick
// returns the price unchanged.
func RoundToTick(price, tick decimal.Decimal, mode RoundMode) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	steps := price.Div(tick)
	switch mode {
	case RoundDown:
		steps = steps.Floor()
	case RoundUp:
		steps = steps.Ceil()
	default:
		steps = steps.Round(0)
	}
	return steps.Mul(tick)
}
