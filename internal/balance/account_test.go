package balance

import (
	"math"
	"testing"
)

func TestReserveAndSettle(t *testing.T) {
	a := NewAccount(100)
	if err := a.Reserve(90, 5); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	a.Mark(0)
	b := a.Snapshot()
	if b.Balance != 95 || b.UsedMargin != 90 || b.FreeMargin != 5 {
		t.Fatalf("after reserve %+v", b)
	}

	if err := a.Reserve(5, 1); err == nil {
		t.Fatalf("expected rejection when margin+commission exceeds free margin")
	}
	if got := a.Snapshot(); got != b {
		t.Fatalf("rejected reserve changed state: %+v", got)
	}

	a.Settle(10, 90)
	a.Mark(0)
	b = a.Snapshot()
	if b.Balance != 105 || b.UsedMargin != 0 || b.Equity != 105 {
		t.Fatalf("after settle %+v", b)
	}
}

func TestMarkHighWaterMark(t *testing.T) {
	a := NewAccount(1000)
	steps := []struct {
		floating         float64
		wantPeak, wantDD float64
		wantDDPct        float64
	}{
		{100, 1100, 0, 0},
		{-100, 1100, 200, 200.0 / 1100 * 100},
		{50, 1100, 200, 200.0 / 1100 * 100},
		{400, 1400, 200, 200.0 / 1100 * 100},
		{100, 1400, 300, 300.0 / 1400 * 100},
	}
	prevDD, prevPct := 0.0, 0.0
	for i, s := range steps {
		a.Mark(s.floating)
		b := a.Snapshot()
		if b.PeakEquity != s.wantPeak || math.Abs(b.MaxDrawdown-s.wantDD) > 1e-9 || math.Abs(b.MaxDrawdownPercent-s.wantDDPct) > 1e-9 {
			t.Fatalf("step %d: %+v", i, b)
		}
		if b.MaxDrawdown < prevDD || b.MaxDrawdownPercent < prevPct {
			t.Fatalf("step %d: drawdown decreased", i)
		}
		prevDD, prevPct = b.MaxDrawdown, b.MaxDrawdownPercent
	}
}
