package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
	"backtest-core/pkg/config"
)

// TrendFollowerConfig tunes the EMA/RSI trend follower.
type TrendFollowerConfig struct {
	EMAPeriod      int     `yaml:"ema_period" default:"50" validate:"gt=0"`
	RSIPeriod      int     `yaml:"rsi_period" default:"14" validate:"gt=0"`
	RSILower       float64 `yaml:"rsi_lower" default:"50" validate:"gte=0,lte=100"`
	RSIUpper       float64 `yaml:"rsi_upper" default:"70" validate:"gte=0,lte=100,gtfield=RSILower"`
	History        int     `yaml:"history" default:"200" validate:"gt=0"`
	MinBars        int     `yaml:"min_bars" default:"55" validate:"gt=0"`
	StopDistance   float64 `yaml:"stop_distance" default:"10" validate:"gt=0"`
	TargetDistance float64 `yaml:"target_distance" default:"10" validate:"gt=0"`
	Volume         float64 `yaml:"volume" default:"0.01" validate:"gt=0"`
}

// TrendFollower buys when price is above its EMA and RSI sits in the upper-middle band.
// It emits once per run of qualifying bars.
type TrendFollower struct {
	name    string
	symbol  string
	magic   int
	cfg     TrendFollowerConfig
	history *market.History

	ema        float64
	rsi        float64
	prevSignal bool // condition held on the previous bar
	last       Decision
}

// NewTrendFollower creates a trend follower.
func NewTrendFollower(name, symbol string, magic int, cfg TrendFollowerConfig) (*TrendFollower, error) {
	if err := config.Normalize(&cfg); err != nil {
		return nil, fmt.Errorf("trend follower config: %w", err)
	}
	if name == "" {
		name = fmt.Sprintf("Trend_EMA%d_RSI%d", cfg.EMAPeriod, cfg.RSIPeriod)
	}
	return &TrendFollower{
		name:    name,
		symbol:  symbol,
		magic:   magic,
		cfg:     cfg,
		history: market.NewHistory(cfg.History),
	}, nil
}

func (s *TrendFollower) Name() string { return s.name }

func (s *TrendFollower) LastDecision() Decision { return s.last }

func (s *TrendFollower) OnBar(c market.Candle) *Signal {
	s.history.Push(c)
	s.last = Decision{Agent: s.name, Timestamp: c.Timestamp, Outcome: OutcomeWarmup}

	// Need enough data for the EMA
	if s.history.Len() < s.cfg.MinBars {
		return nil
	}

	closes := market.Closes(s.history.Candles())
	s.ema = indicators.Last(indicators.EMA(closes, s.cfg.EMAPeriod))
	s.rsi = indicators.Last(indicators.RSI(closes, s.cfg.RSIPeriod))
	if math.IsNaN(s.ema) || math.IsNaN(s.rsi) {
		return nil
	}
	s.last.Score = s.rsi

	price := c.Close
	qualifies := price > s.ema && s.rsi > s.cfg.RSILower && s.rsi < s.cfg.RSIUpper
	if !qualifies {
		s.prevSignal = false
		s.last.Outcome = OutcomeNoVote
		return nil
	}
	if s.prevSignal {
		s.last.Outcome = OutcomeHold
		return nil
	}
	s.prevSignal = true
	s.last.Outcome = OutcomeEntry

	return &Signal{
		Agent:      s.name,
		Symbol:     c.Symbol,
		Direction:  Buy,
		Price:      price,
		StopLoss:   price - s.cfg.StopDistance,
		TakeProfit: price + s.cfg.TargetDistance,
		Volume:     s.cfg.Volume,
		Reason:     fmt.Sprintf("trend follower: close %.2f > EMA%d %.2f, RSI %.1f", price, s.cfg.EMAPeriod, s.ema, s.rsi),
		Magic:      s.magic,
	}
}

// TrendFollowerState is the serializable state of TrendFollower.
type TrendFollowerState struct {
	PrevSignal bool    `json:"prev_signal"`
	EMA        float64 `json:"ema"`
	RSI        float64 `json:"rsi"`
}

func (s *TrendFollower) GetState() (json.RawMessage, error) {
	return json.Marshal(TrendFollowerState{PrevSignal: s.prevSignal, EMA: s.ema, RSI: s.rsi})
}
