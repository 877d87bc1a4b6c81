package backtest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"backtest-core/internal/market"
	"backtest-core/internal/order"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/config"
)

// RunSettings selects what to run.
type RunSettings struct {
	Strategy        string `yaml:"strategy" default:"lorentzian" validate:"required"`
	Name            string `yaml:"name"`
	Symbol          string `yaml:"symbol" default:"XAUUSD" validate:"required"`
	Magic           int    `yaml:"magic" validate:"gte=0"`
	LowerTimeframe  string `yaml:"lower_timeframe" default:"1m"`
	HigherTimeframe string `yaml:"higher_timeframe" default:"15m"`
	Warmup          int    `yaml:"warmup" validate:"gte=0"`
	CloseAtEnd      bool   `yaml:"close_open_at_end"`
}

// RunConfig is the YAML run file: a run section, a broker section and one
// section per strategy kind.
type RunConfig struct {
	Run               RunSettings        `yaml:"run"`
	Broker            order.BrokerConfig `yaml:"broker"`
	strategy.Settings `yaml:",inline"`
}

// DefaultRunConfig runs the Lorentzian classifier on gold with the default account.
func DefaultRunConfig() RunConfig {
	cfg := RunConfig{Broker: order.DefaultBrokerConfig()}
	_ = config.Normalize(&cfg)
	return cfg
}

// LoadConfig reads a run file. An empty path returns the defaults.
func LoadConfig(path string) (RunConfig, error) {
	if path == "" {
		return DefaultRunConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (RunConfig, error) {
	cfg := DefaultRunConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("parse run config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// Validate applies defaults and checks every section, including the timeframes.
func (c *RunConfig) Validate() error {
	if err := config.Normalize(c); err != nil {
		return err
	}
	if _, err := market.ParseTimeframe(c.Run.LowerTimeframe); err != nil {
		return fmt.Errorf("run.lower_timeframe: %w", err)
	}
	if _, err := market.ParseTimeframe(c.Run.HigherTimeframe); err != nil {
		return fmt.Errorf("run.higher_timeframe: %w", err)
	}
	return nil
}

// Components are the fresh per-run instances built from a RunConfig.
type Components struct {
	Agent  strategy.Agent
	Broker *order.VirtualBroker
}

// Build constructs a new agent and broker. Every call returns independent instances.
func (c RunConfig) Build() (Components, error) {
	agent, err := strategy.Build(strategy.Kind(c.Run.Strategy), c.Run.Name, c.Run.Symbol, c.Run.Magic, c.Settings)
	if err != nil {
		return Components{}, err
	}
	broker, err := order.NewVirtualBroker(c.Broker)
	if err != nil {
		return Components{}, err
	}
	return Components{Agent: agent, Broker: broker}, nil
}

// Options turns the run section into engine options.
func (c RunConfig) Options() []Option {
	return []Option{WithWarmup(c.Run.Warmup), WithCloseAtEnd(c.Run.CloseAtEnd)}
}
