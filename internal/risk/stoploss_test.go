package risk

import (
	"math"
	"testing"

	"backtest-core/internal/strategy"
)

func TestMinDistance(t *testing.T) {
	lvl := StopLevel{Points: 20, Point: 0.01, Spread: 0.15}
	if got := lvl.MinDistance(); math.Abs(got-0.35) > 1e-12 {
		t.Fatalf("MinDistance=%v, expected 0.35", got)
	}
}

func TestClamp(t *testing.T) {
	lvl := StopLevel{Points: 10, Point: 0.01, Spread: 0.15} // 0.25
	tests := []struct {
		name           string
		dir            strategy.Direction
		sl, tp         float64
		wantSL, wantTP float64
	}{
		{"buy too tight", strategy.Buy, 1999.9, 2000.2, 1999.75, 2000.40},
		{"buy already wide", strategy.Buy, 1990, 2010, 1990, 2010},
		{"sell too tight", strategy.Sell, 2000.2, 1999.9, 2000.40, 1999.75},
		{"disabled levels stay zero", strategy.Sell, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sl, tp := lvl.Clamp(tt.dir, 2000, 2000.15, tt.sl, tt.tp)
			if math.Abs(sl-tt.wantSL) > 1e-9 || math.Abs(tp-tt.wantTP) > 1e-9 {
				t.Fatalf("Clamp=%v/%v, expected %v/%v", sl, tp, tt.wantSL, tt.wantTP)
			}
		})
	}
}

func TestValidity(t *testing.T) {
	lvl := StopLevel{Points: 0, Point: 0.01, Spread: 0.15}
	if !lvl.ValidStopLoss(strategy.Buy, 2000.15, 2000.0) {
		t.Fatalf("stop exactly at min distance should be valid")
	}
	if lvl.ValidStopLoss(strategy.Buy, 2000.15, 2000.1) {
		t.Fatalf("stop inside min distance should be invalid")
	}
	if lvl.ValidTakeProfit(strategy.Sell, 2000, 2000.5) {
		t.Fatalf("SELL target above entry should be invalid")
	}
	if !lvl.ValidTakeProfit(strategy.Sell, 2000, 0) {
		t.Fatalf("zero target is disabled, not invalid")
	}
}

func TestCheckTick(t *testing.T) {
	tests := []struct {
		name      string
		pos       Protected
		bid, ask  float64
		want      Trigger
		wantPrice float64
	}{
		{"buy stop gap fills at bid", Protected{strategy.Buy, 1990, 2010}, 1985, 1985.15, TriggerStopLoss, 1985},
		{"buy target capped at level", Protected{strategy.Buy, 1990, 2010}, 2012, 2012.15, TriggerTakeProfit, 2010},
		{"sell stop uses ask", Protected{strategy.Sell, 2010, 1990}, 2009.9, 2010.05, TriggerStopLoss, 2010.05},
		{"sell target capped at level", Protected{strategy.Sell, 2010, 1990}, 1988, 1988.15, TriggerTakeProfit, 1990},
		{"inside range", Protected{strategy.Buy, 1990, 2010}, 2000, 2000.15, TriggerNone, 0},
		{"disabled levels", Protected{strategy.Buy, 0, 0}, 1, 1.15, TriggerNone, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, price := CheckTick(tt.pos, tt.bid, tt.ask)
			if got != tt.want || math.Abs(price-tt.wantPrice) > 1e-9 {
				t.Fatalf("CheckTick=%s@%v, expected %s@%v", got, price, tt.want, tt.wantPrice)
			}
		})
	}
}

func TestTickPath(t *testing.T) {
	if got := TickPath(10, 12, 9, 11); got != [4]float64{10, 9, 12, 11} {
		t.Fatalf("bullish path=%v", got)
	}
	if got := TickPath(10, 12, 9, 9.5); got != [4]float64{10, 12, 9, 9.5} {
		t.Fatalf("bearish path=%v", got)
	}
}
