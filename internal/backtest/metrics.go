package backtest

import (
	"math"
	"time"

	"backtest-core/internal/order"
)

// Summarize rolls up PnL, win-rate, profit factor, drawdown and exposure.
func Summarize(state order.State, equity []EquitySample) Summary {
	s := Summary{
		MaxDrawdown:        state.MaxDrawdown,
		MaxDrawdownPercent: state.MaxDrawdownPercent,
	}
	if len(equity) > 0 {
		s.Start = equity[0].Timestamp
		s.End = equity[len(equity)-1].Timestamp
	}

	best, worst := math.Inf(-1), math.Inf(1)
	for _, t := range state.Closed {
		s.NetProfit += t.NetProfit
		s.Commission += t.Commission
		switch {
		case t.NetProfit > 0:
			s.Wins++
			s.GrossProfit += t.NetProfit
		case t.NetProfit < 0:
			s.Losses++
			s.GrossLoss += -t.NetProfit
		}
		best = math.Max(best, t.NetProfit)
		worst = math.Min(worst, t.NetProfit)
	}
	s.Trades = len(state.Closed)
	if s.Trades > 0 {
		s.WinRate = 100 * float64(s.Wins) / float64(s.Trades)
		s.AvgTrade = s.NetProfit / float64(s.Trades)
		s.BestTrade, s.WorstTrade = best, worst
	}

	// Profit factor; 999 stands for "no losing trades".
	if s.GrossLoss == 0 {
		if s.GrossProfit > 0 {
			s.ProfitFactor = 999
		}
	} else {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}

	if state.InitialBalance > 0 {
		s.ReturnPercent = (state.Balance.Balance - state.InitialBalance) / state.InitialBalance * 100
	}

	if window := s.End.Sub(s.Start); window > 0 {
		var held time.Duration
		for _, t := range state.Closed {
			open, close := t.OpenTime, t.CloseTime
			if open.Before(s.Start) {
				open = s.Start
			}
			if close.After(s.End) {
				close = s.End
			}
			if close.After(open) {
				held += close.Sub(open)
			}
		}
		s.Exposure = float64(held) / float64(window)
	}
	return s
}
