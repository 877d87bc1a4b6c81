package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"backtest-core/internal/backtest"
	"backtest-core/internal/events"
	"backtest-core/internal/market"
	"backtest-core/internal/monitor"
	"backtest-core/pkg/config"
	"backtest-core/pkg/db"
	"backtest-core/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	fs := flag.NewFlagSet("backtest-core", flag.ContinueOnError)
	var (
		strategyFlag = fs.String("strategy", "", "strategy kind: lorentzian, sfp, trend_follower, panic_seller")
		ltfPath      = fs.String("ltf", "", "lower-timeframe candle CSV")
		htfPath      = fs.String("htf", "", "higher-timeframe candle CSV (resampled from -ltf when empty)")
		configPath   = fs.String("config", cfg.BacktestConfig, "run configuration YAML")
		symbol       = fs.String("symbol", "", "instrument symbol")
		persist      = fs.Bool("persist", cfg.PersistResults, "store the run in the results database")
		synthetic    = fs.Int("synthetic", 5000, "bars of synthetic data when -ltf is empty")
		sweep        = fs.String("sweep", "", "comma-separated run configurations to backtest in parallel")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCfg, err := backtest.LoadConfig(*configPath)
	if err != nil {
		log.Error().Err(err).Str("path", *configPath).Msg("load run config")
		return 1
	}
	if *strategyFlag != "" {
		runCfg.Run.Strategy = *strategyFlag
	}
	if *symbol != "" {
		runCfg.Run.Symbol = *symbol
	}
	if err := runCfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid run config")
		return 1
	}

	ltf, htf, err := loadCandles(log, runCfg, cfg.DataDir, *ltfPath, *htfPath, *synthetic)
	if err != nil {
		log.Error().Err(err).Msg("load candles")
		return 1
	}

	if *sweep != "" {
		return runSweep(ctx, log, cfg, strings.Split(*sweep, ","), ltf, htf)
	}

	comp, err := runCfg.Build()
	if err != nil {
		log.Error().Err(err).Msg("build components")
		return 1
	}

	bus := events.NewBus()
	mon := &monitor.Monitor{
		Bus:       bus,
		Collector: monitor.NewCollector(),
		Sink:      monitor.LogSink{Logger: log},
		Rules:     []monitor.Rule{monitor.MarginRule{}, &monitor.LossStreakRule{Limit: 5}},
	}
	mon.Start(ctx)
	stopTradeLog := logTrades(bus, log)

	started := time.Now()
	res, err := backtest.NewEngine(comp.Agent, comp.Broker, bus, runCfg.Options()...).Run(ltf, htf)
	stopTradeLog()
	mon.Stop()
	if err != nil {
		log.Error().Err(err).Msg("backtest failed")
		return 1
	}
	logSummary(log, res, time.Since(started))

	if *persist {
		if err := persistResult(ctx, log, cfg.DBPath, res, runCfg); err != nil {
			log.Error().Err(err).Str("db", cfg.DBPath).Msg("persist results")
			return 1
		}
	}
	if cfg.MetricsTextfile != "" {
		if err := mon.Collector.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Error().Err(err).Msg("export metrics")
			return 1
		}
		log.Info().Str("path", cfg.MetricsTextfile).Msg("metrics written")
	}
	return 0
}

// loadCandles reads the candle files, or generates a synthetic series when none is
// given. Relative paths that do not exist are looked up in dataDir. A missing
// higher timeframe is resampled from the lower one.
func loadCandles(log zerolog.Logger, cfg backtest.RunConfig, dataDir, ltfPath, htfPath string, bars int) ([]market.Candle, []market.Candle, error) {
	ltfTF, _ := market.ParseTimeframe(cfg.Run.LowerTimeframe)
	htfTF, _ := market.ParseTimeframe(cfg.Run.HigherTimeframe)

	var ltf []market.Candle
	if ltfPath == "" {
		log.Warn().Int("bars", bars).Msg("no -ltf file, using synthetic candles")
		ltf = market.Synthetic{
			Symbol:     cfg.Run.Symbol,
			StartPrice: 2000,
			Step:       1.5,
			Interval:   ltfTF.Duration(),
			Seed:       1,
		}.Generate(bars)
	} else {
		var err error
		if ltf, err = market.LoadCSV(resolvePath(dataDir, ltfPath), cfg.Run.Symbol); err != nil {
			return nil, nil, fmt.Errorf("ltf: %w", err)
		}
	}

	if htfPath != "" {
		htf, err := market.LoadCSV(resolvePath(dataDir, htfPath), cfg.Run.Symbol)
		if err != nil {
			return nil, nil, fmt.Errorf("htf: %w", err)
		}
		return ltf, htf, nil
	}
	htf := market.StampAtLastBar(market.Resample(ltf, htfTF.Duration()), htfTF.Duration(), ltfTF.Duration())
	log.Debug().Int("bars", len(htf)).Str("timeframe", string(htfTF)).Msg("resampled higher timeframe")
	return ltf, htf, nil
}

func resolvePath(dataDir, path string) string {
	if filepath.IsAbs(path) || dataDir == "" {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(dataDir, path)
}

// logTrades logs position events at debug level until the returned func is called.
func logTrades(bus *events.Bus, log zerolog.Logger) func() {
	opened, unsubOpened := bus.Subscribe(events.EventPositionOpened, 1024)
	closed, unsubClosed := bus.Subscribe(events.EventPositionClosed, 1024)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for msg := range opened {
			p := msg.(events.PositionOpened)
			log.Debug().Int64("ticket", p.Ticket).Str("side", p.Side).Float64("price", p.EntryPrice).
				Float64("sl", p.StopLoss).Float64("tp", p.TakeProfit).Str("reason", p.Reason).Msg("position opened")
		}
	}()
	go func() {
		defer wg.Done()
		for msg := range closed {
			p := msg.(events.PositionClosed)
			log.Debug().Int64("ticket", p.Ticket).Str("side", p.Side).Float64("exit", p.ExitPrice).
				Float64("net", p.NetProfit).Str("reason", p.ExitReason).Msg("position closed")
		}
	}()
	return func() {
		unsubOpened()
		unsubClosed()
		wg.Wait()
	}
}

func logSummary(log zerolog.Logger, res *backtest.Result, elapsed time.Duration) {
	s := res.Summary
	log.Info().
		Str("agent", res.Agent).
		Str("symbol", res.Symbol).
		Int("bars", res.Bars).
		Int("trades", s.Trades).
		Float64("win_rate", s.WinRate).
		Float64("net_profit", s.NetProfit).
		Float64("profit_factor", s.ProfitFactor).
		Float64("final_balance", res.State.Balance.Balance).
		Float64("max_drawdown_pct", s.MaxDrawdownPercent).
		Int("rejected", res.Rejected).
		Int("open_positions", len(res.State.Open)).
		Dur("elapsed", elapsed).
		Msg("backtest finished")
}

func persistResult(ctx context.Context, log zerolog.Logger, path string, res *backtest.Result, cfg backtest.RunConfig) error {
	database, err := db.Open(path)
	if err != nil {
		return err
	}
	defer database.Close()
	id, err := backtest.Save(ctx, database, res, cfg)
	if err != nil {
		return err
	}
	log.Info().Str("session", id).Str("db", path).Msg("results saved")
	return nil
}

func runSweep(ctx context.Context, log zerolog.Logger, cfg *config.Config, paths []string, ltf, htf []market.Candle) int {
	configs := make([]backtest.RunConfig, 0, len(paths))
	for _, p := range paths {
		c, err := backtest.LoadConfig(strings.TrimSpace(p))
		if err != nil {
			log.Error().Err(err).Str("path", p).Msg("load sweep config")
			return 1
		}
		configs = append(configs, c)
	}

	out, err := backtest.Sweep(ctx, configs, nil, ltf, htf, cfg.SweepWorkers)
	if err != nil {
		log.Error().Err(err).Msg("sweep failed")
		return 1
	}
	for i, r := range out {
		s := r.Result.Summary
		log.Info().
			Str("run", r.ID).
			Str("config", strings.TrimSpace(paths[i])).
			Str("strategy", r.Config.Run.Strategy).
			Int("trades", s.Trades).
			Float64("net_profit", s.NetProfit).
			Float64("max_drawdown_pct", s.MaxDrawdownPercent).
			Msg("sweep result")
	}
	return 0
}
