package backtest

import (
	"context"
	"errors"
	"testing"

	"backtest-core/internal/market"
	"backtest-core/internal/strategy"
)

func TestSweepKeepsOrderAndIsolatesRuns(t *testing.T) {
	ltf := market.Synthetic{Seed: 3, StartPrice: 2000, Step: 1, Drift: 0.1}.Generate(300)

	var configs []RunConfig
	for _, ema := range []int{20, 50, 20} {
		cfg := DefaultRunConfig()
		cfg.Run.Strategy = string(strategy.KindTrendFollower)
		cfg.Run.CloseAtEnd = true
		cfg.Trend.EMAPeriod = ema
		cfg.Trend.MinBars = ema + 5
		configs = append(configs, cfg)
	}

	out, err := Sweep(context.Background(), configs, nil, ltf, nil, 2)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(out) != len(configs) {
		t.Fatalf("results=%d, expected %d", len(out), len(configs))
	}
	ids := map[string]bool{}
	for i, r := range out {
		if r.Result == nil {
			t.Fatalf("run %d has no result", i)
		}
		if r.Config.Trend.EMAPeriod != configs[i].Trend.EMAPeriod {
			t.Fatalf("run %d out of order", i)
		}
		if ids[r.ID] {
			t.Fatalf("duplicate run id %s", r.ID)
		}
		ids[r.ID] = true
		checkInvariants(t, r.Result)
	}
	// identical configurations replay identically
	a, b := out[0].Result, out[2].Result
	if a.State.Balance != b.State.Balance || len(a.State.Closed) != len(b.State.Closed) {
		t.Fatalf("identical runs diverged: %+v vs %+v", a.State.Balance, b.State.Balance)
	}
}

func TestSweepPropagatesFactoryError(t *testing.T) {
	boom := errors.New("boom")
	factory := func(RunConfig) (Components, error) { return Components{}, boom }
	_, err := Sweep(context.Background(), []RunConfig{DefaultRunConfig(), DefaultRunConfig()}, factory, nil, nil, 1)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, expected boom", err)
	}
}

func TestSweepHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sweep(ctx, []RunConfig{DefaultRunConfig()}, nil, nil, nil, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, expected context.Canceled", err)
	}
}
