package backtest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"backtest-core/internal/market"
)

// Factory builds fresh components for one run.
type Factory func(RunConfig) (Components, error)

// SweepResult pairs a configuration with its outcome.
type SweepResult struct {
	ID     string
	Config RunConfig
	Result *Result
}

// Sweep runs one backtest per configuration concurrently, at most workers at a
// time (unbounded when workers <= 0). Every run gets its own agent and broker;
// the candle slices are shared read-only. Results keep the input order. The
// first failing run cancels the rest.
func Sweep(ctx context.Context, configs []RunConfig, factory Factory, ltf, htf []market.Candle, workers int) ([]SweepResult, error) {
	if factory == nil {
		factory = RunConfig.Build
	}
	out := make([]SweepResult, len(configs))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, cfg := range configs {
		i, cfg := i, cfg
		out[i] = SweepResult{ID: uuid.NewString(), Config: cfg}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			comp, err := factory(cfg)
			if err != nil {
				return fmt.Errorf("sweep run %d: %w", i, err)
			}
			res, err := NewEngine(comp.Agent, comp.Broker, nil, cfg.Options()...).Run(ltf, htf)
			if err != nil {
				return fmt.Errorf("sweep run %d: %w", i, err)
			}
			out[i].Result = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
