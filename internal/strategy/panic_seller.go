package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
	"backtest-core/pkg/config"
)

// PanicSellerConfig tunes the overbought seller.
type PanicSellerConfig struct {
	RSIPeriod     int     `yaml:"rsi_period" default:"14" validate:"gt=0"`
	Overbought    float64 `yaml:"overbought" default:"80" validate:"gt=0,lte=100"`
	History       int     `yaml:"history" default:"100" validate:"gt=0"`
	MinBars       int     `yaml:"min_bars" default:"20" validate:"gt=0"`
	StopLossPct   float64 `yaml:"stop_loss_pct" default:"0.005" validate:"gt=0,lt=1"`
	TakeProfitPct float64 `yaml:"take_profit_pct" default:"0.015" validate:"gt=0,lt=1"`
	Volume        float64 `yaml:"volume" default:"0.02" validate:"gt=0"`
}

// PanicSeller sells when RSI crosses into overbought territory.
type PanicSeller struct {
	name    string
	symbol  string
	magic   int
	cfg     PanicSellerConfig
	history *market.History

	rsi        float64
	prevSignal bool
	last       Decision
}

// NewPanicSeller creates a panic seller.
func NewPanicSeller(name, symbol string, magic int, cfg PanicSellerConfig) (*PanicSeller, error) {
	if err := config.Normalize(&cfg); err != nil {
		return nil, fmt.Errorf("panic seller config: %w", err)
	}
	if name == "" {
		name = fmt.Sprintf("PanicSeller_RSI%d", cfg.RSIPeriod)
	}
	return &PanicSeller{
		name:    name,
		symbol:  symbol,
		magic:   magic,
		cfg:     cfg,
		history: market.NewHistory(cfg.History),
	}, nil
}

func (s *PanicSeller) Name() string { return s.name }

func (s *PanicSeller) LastDecision() Decision { return s.last }

func (s *PanicSeller) OnBar(c market.Candle) *Signal {
	s.history.Push(c)
	s.last = Decision{Agent: s.name, Timestamp: c.Timestamp, Outcome: OutcomeWarmup}
	if s.history.Len() < s.cfg.MinBars {
		return nil
	}

	s.rsi = indicators.Last(indicators.RSI(market.Closes(s.history.Candles()), s.cfg.RSIPeriod))
	if math.IsNaN(s.rsi) {
		return nil
	}
	s.last.Score = s.rsi

	if s.rsi <= s.cfg.Overbought {
		s.prevSignal = false
		s.last.Outcome = OutcomeNoVote
		return nil
	}
	// Only sell on the bar RSI enters the zone
	if s.prevSignal {
		s.last.Outcome = OutcomeHold
		return nil
	}
	s.prevSignal = true
	s.last.Outcome = OutcomeEntry

	price := c.Close
	return &Signal{
		Agent:      s.name,
		Symbol:     c.Symbol,
		Direction:  Sell,
		Price:      price,
		StopLoss:   price * (1 + s.cfg.StopLossPct),
		TakeProfit: price * (1 - s.cfg.TakeProfitPct),
		Volume:     s.cfg.Volume,
		Reason:     fmt.Sprintf("panic sell: RSI %.1f", s.rsi),
		Magic:      s.magic,
	}
}

func (s *PanicSeller) GetState() (json.RawMessage, error) {
	return json.Marshal(struct {
		PrevSignal bool    `json:"prev_signal"`
		RSI        float64 `json:"rsi"`
	}{s.prevSignal, s.rsi})
}
