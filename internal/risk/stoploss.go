package risk

import (
	"math"

	"backtest-core/internal/strategy"
)

// tolerance absorbs float noise when comparing normalised prices.
const tolerance = 1e-9

// StopLevel describes the broker-enforced distance between entry and protective levels.
type StopLevel struct {
	Points int     // stop level in points
	Point  float64 // price of one point, 10^-digits
	Spread float64
}

// MinDistance is stop_level_points*point + spread.
func (s StopLevel) MinDistance() float64 {
	return float64(s.Points)*s.Point + s.Spread
}

// ValidStopLoss reports whether sl keeps the minimum distance from entry on the
// losing side. Zero means "no stop" and is always valid.
func (s StopLevel) ValidStopLoss(d strategy.Direction, entry, sl float64) bool {
	if sl == 0 {
		return true
	}
	min := s.MinDistance()
	if d == strategy.Buy {
		return entry-sl >= min-tolerance
	}
	return sl-entry >= min-tolerance
}

// ValidTakeProfit is the mirror of ValidStopLoss for targets.
func (s StopLevel) ValidTakeProfit(d strategy.Direction, entry, tp float64) bool {
	if tp == 0 {
		return true
	}
	min := s.MinDistance()
	if d == strategy.Buy {
		return tp-entry >= min-tolerance
	}
	return entry-tp >= min-tolerance
}

// Clamp pulls a signal's levels away from the quote so they satisfy the minimum
// distance. For BUY the stop moves down and the target up; SELL is mirrored.
// Zero levels stay disabled.
func (s StopLevel) Clamp(d strategy.Direction, bid, ask, sl, tp float64) (float64, float64) {
	lvl := s.MinDistance()
	switch d {
	case strategy.Buy:
		if sl > 0 {
			sl = math.Min(sl, bid-lvl)
		}
		if tp > 0 {
			tp = math.Max(tp, ask+lvl)
		}
	case strategy.Sell:
		if sl > 0 {
			sl = math.Max(sl, ask+lvl)
		}
		if tp > 0 {
			tp = math.Min(tp, bid-lvl)
		}
	}
	return sl, tp
}

// Trigger names the protective level that fired.
type Trigger string

const (
	TriggerNone       Trigger = ""
	TriggerStopLoss   Trigger = "sl"
	TriggerTakeProfit Trigger = "tp"
)

// Protected is the part of a position a trigger check needs.
type Protected struct {
	Direction  strategy.Direction
	StopLoss   float64
	TakeProfit float64
}

// CheckTick evaluates one quote against a position's levels. BUY positions are
// valued on the bid, SELL on the ask. The stop is checked before the target.
// The exit never exceeds the more favourable of the quote and the level, so a
// gap through a stop fills at the quote and a gap through a target fills at the target.
func CheckTick(p Protected, bid, ask float64) (Trigger, float64) {
	switch p.Direction {
	case strategy.Buy:
		if p.StopLoss > 0 && bid <= p.StopLoss {
			return TriggerStopLoss, math.Min(bid, p.StopLoss)
		}
		if p.TakeProfit > 0 && bid >= p.TakeProfit {
			return TriggerTakeProfit, math.Min(bid, p.TakeProfit)
		}
	case strategy.Sell:
		if p.StopLoss > 0 && ask >= p.StopLoss {
			return TriggerStopLoss, math.Max(ask, p.StopLoss)
		}
		if p.TakeProfit > 0 && ask <= p.TakeProfit {
			return TriggerTakeProfit, math.Max(ask, p.TakeProfit)
		}
	}
	return TriggerNone, 0
}

// TickPath expands a candle into representative prices: open, then low/high for a
// bullish bar or high/low otherwise, then close.
func TickPath(open, high, low, close float64) [4]float64 {
	if close > open {
		return [4]float64{open, low, high, close}
	}
	return [4]float64{open, high, low, close}
}
