package strategy

import (
	"math"

	"vietnam-stock-trader/models"
)

// ATR multiples for the volatility-aware target and stop.
const (
	targetATRMultiple = 3.0
	stopATRMultiple   = 1.5
)

// Fallback percentages when no ATR is available.
const (
	fallbackTargetPct = 1.10
	fallbackStopPct   = 0.95
)

// Targets computes the exit prices set when a position is opened on a
// non-HOLD signal. Buy signals place the target above and the stop below;
// sell signals reverse the signs. Results are rounded to whole VND.
func Targets(kind models.SignalKind, price int64, atr *float64) (target, stop int64) {
	p := float64(price)

	var up, down float64
	if atr != nil {
		up = p + targetATRMultiple**atr
		down = p - stopATRMultiple**atr
	} else {
		up = p * fallbackTargetPct
		down = p * fallbackStopPct
	}

	if kind.IsSell() {
		// Mirror the distances below and above the entry price.
		up, down = p-(up-p), p+(p-down)
		return round(up), round(down)
	}
	return round(up), round(down)
}

func round(v float64) int64 {
	return int64(math.Round(v))
}
