package backtest

import (
	"testing"
	"time"

	"backtest-core/internal/balance"
	"backtest-core/internal/order"
)

func closedTrade(net float64, open, close time.Time) order.ClosedTrade {
	return order.ClosedTrade{
		Position:  order.Position{Commission: 0.3, OpenTime: open},
		NetProfit: net,
		CloseTime: close,
		Duration:  close.Sub(open),
	}
}

func TestSummarize(t *testing.T) {
	start := t0
	end := t0.Add(10 * time.Hour)
	state := order.State{
		Balance:        balance.Balance{Balance: 10025, MaxDrawdown: 12, MaxDrawdownPercent: 0.12},
		InitialBalance: 10000,
		Closed: []order.ClosedTrade{
			closedTrade(10, start, start.Add(time.Hour)),
			closedTrade(-5, start.Add(2*time.Hour), start.Add(3*time.Hour)),
			closedTrade(0, start.Add(4*time.Hour), start.Add(5*time.Hour)),
			closedTrade(20, start.Add(6*time.Hour), start.Add(8*time.Hour)),
		},
	}
	equity := []EquitySample{{Timestamp: start}, {Timestamp: end}}

	s := Summarize(state, equity)
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"trades", float64(s.Trades), 4},
		{"wins", float64(s.Wins), 2},
		{"losses", float64(s.Losses), 1},
		{"win rate", s.WinRate, 50},
		{"gross profit", s.GrossProfit, 30},
		{"gross loss", s.GrossLoss, 5},
		{"profit factor", s.ProfitFactor, 6},
		{"avg", s.AvgTrade, 6.25},
		{"best", s.BestTrade, 20},
		{"worst", s.WorstTrade, -5},
		{"commission", s.Commission, 1.2},
		{"return", s.ReturnPercent, 0.25},
		{"exposure", s.Exposure, 0.5},
		{"max dd", s.MaxDrawdownPercent, 0.12},
	}
	for _, tt := range tests {
		if !near(tt.got, tt.want) {
			t.Fatalf("%s=%v, expected %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestSummarizeEdgeCases(t *testing.T) {
	empty := Summarize(order.State{InitialBalance: 10000, Balance: balance.Balance{Balance: 10000}}, nil)
	if empty.Trades != 0 || empty.ProfitFactor != 0 || empty.WinRate != 0 || empty.BestTrade != 0 {
		t.Fatalf("empty summary=%+v", empty)
	}

	onlyWins := Summarize(order.State{Closed: []order.ClosedTrade{closedTrade(4, t0, t0)}}, nil)
	if onlyWins.ProfitFactor != 999 {
		t.Fatalf("profit factor=%v, expected 999 without losses", onlyWins.ProfitFactor)
	}
}
