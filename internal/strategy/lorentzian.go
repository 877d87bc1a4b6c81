package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
	"backtest-core/pkg/config"
)

// LorentzianConfig tunes the nearest-neighbour classifier.
type LorentzianConfig struct {
	Neighbors     int     `yaml:"neighbors" default:"8" validate:"gt=0"`
	MaxBarsBack   int     `yaml:"max_bars_back" default:"2000" validate:"gt=0"`
	Buffer        int     `yaml:"buffer" default:"100" validate:"gte=0"`
	Lookahead     int     `yaml:"lookahead" default:"4" validate:"gt=0"`
	MinHistory    int     `yaml:"min_history" default:"250" validate:"gt=0"`
	KernelH       float64 `yaml:"kernel_h" default:"8" validate:"gt=0"`
	KernelR       float64 `yaml:"kernel_r" default:"8" validate:"gt=0"`
	KernelWindow  int     `yaml:"kernel_window" default:"100" validate:"gt=0"`
	ADXThreshold  float64 `yaml:"adx_threshold" default:"20" validate:"gte=0"`
	StopLossPct   float64 `yaml:"stop_loss_pct" default:"0.005" validate:"gt=0,lt=1"`
	TakeProfitPct float64 `yaml:"take_profit_pct" default:"0.015" validate:"gt=0,lt=1"`
	Volume        float64 `yaml:"volume" default:"0.01" validate:"gt=0"`

	Indicators indicators.BankConfig `yaml:"indicators"`
}

// labeledRow is a historical feature vector with its forward label.
type labeledRow struct {
	features indicators.Vector
	label    int
}

// Lorentzian classifies the latest bar by voting over its k nearest historical
// bars under a log distance, then gates the vote through trend, volatility and
// kernel-momentum filters.
type Lorentzian struct {
	name   string
	symbol string
	magic  int
	cfg    LorentzianConfig
	bank   indicators.Bank

	history  *market.History
	position Direction // last emitted entry side, "" when flat
	last     Decision
}

// NewLorentzian creates a classifier. Zero config fields take defaults.
func NewLorentzian(name, symbol string, magic int, cfg LorentzianConfig) (*Lorentzian, error) {
	if err := config.Normalize(&cfg); err != nil {
		return nil, fmt.Errorf("lorentzian config: %w", err)
	}
	if name == "" {
		name = "Lorentzian"
	}
	return &Lorentzian{
		name:    name,
		symbol:  symbol,
		magic:   magic,
		cfg:     cfg,
		bank:    indicators.NewBank(cfg.Indicators),
		history: market.NewHistory(cfg.MaxBarsBack + cfg.Buffer),
	}, nil
}

func (l *Lorentzian) Name() string { return l.name }

// LastDecision returns the evaluation of the latest bar.
func (l *Lorentzian) LastDecision() Decision { return l.last }

// Warmup seeds history without evaluating.
func (l *Lorentzian) Warmup(candles []market.Candle) {
	for _, c := range candles {
		l.history.Push(c)
	}
}

// Evaluation is the classifier's read of the newest bar.
type Evaluation struct {
	Score          int
	Neighbors      int
	Rows           int // labeled training rows
	KernelWindow   int
	Uptrend        bool
	Downtrend      bool
	Volatile       bool
	KernelBullish  bool
	KernelBearish  bool
	KernelCurrent  float64
	KernelPrevious float64
}

// OnBar appends the candle and returns an entry or exit signal, or nil.
func (l *Lorentzian) OnBar(c market.Candle) *Signal {
	l.history.Push(c)
	l.last = Decision{Agent: l.name, Timestamp: c.Timestamp, Outcome: OutcomeWarmup}

	ev, ok := l.evaluate()
	if !ok {
		return nil
	}
	l.last.Score = float64(ev.Score)
	return l.decide(c, ev)
}

// evaluate recomputes every indicator over the retained history.
func (l *Lorentzian) evaluate() (Evaluation, bool) {
	if l.history.Len() < l.cfg.MinHistory {
		return Evaluation{}, false
	}
	candles := l.history.Candles()
	feats := l.bank.Compute(candles)
	first := feats.FirstComplete()
	if first < 0 {
		return Evaluation{}, false
	}
	n := len(candles)
	if n-first < l.cfg.Neighbors+l.cfg.Lookahead {
		return Evaluation{}, false
	}

	rows := make([]labeledRow, 0, n-first-l.cfg.Lookahead)
	for i := first; i+l.cfg.Lookahead < n; i++ {
		rows = append(rows, labeledRow{
			features: feats.Vector(i),
			label:    sign(feats.Close[i+l.cfg.Lookahead] - feats.Close[i]),
		})
	}

	neighbors := nearestNeighbors(rows, feats.Vector(n-1), l.cfg.Neighbors)
	ev := Evaluation{Neighbors: len(neighbors), Rows: len(rows)}
	for _, r := range neighbors {
		ev.Score += r.label
	}

	price := feats.Close[n-1]
	ema := feats.TrendEMA[n-1]
	ev.Uptrend = !math.IsNaN(ema) && price > ema
	ev.Downtrend = !math.IsNaN(ema) && price < ema
	ev.Volatile = feats.ADX[n-1] > l.cfg.ADXThreshold

	closes := feats.Close[first:]
	lastIdx := len(closes) - 1
	window := len(closes)
	if window > l.cfg.KernelWindow {
		window = l.cfg.KernelWindow
	}
	ev.KernelWindow = window
	ev.KernelCurrent = indicators.RationalQuadratic(closes, lastIdx, window, l.cfg.KernelH, l.cfg.KernelR)
	ev.KernelPrevious = indicators.RationalQuadratic(closes, lastIdx-1, window, l.cfg.KernelH, l.cfg.KernelR)
	ev.KernelBullish = ev.KernelCurrent > ev.KernelPrevious
	ev.KernelBearish = ev.KernelCurrent < ev.KernelPrevious
	return ev, true
}

func (l *Lorentzian) decide(c market.Candle, ev Evaluation) *Signal {
	var vote Direction
	switch {
	case ev.Score > 0:
		vote = Buy
	case ev.Score < 0:
		vote = Sell
	}

	var entry Direction
	switch vote {
	case Buy:
		if ev.Uptrend && ev.KernelBullish && ev.Volatile {
			entry = Buy
		}
	case Sell:
		if ev.Downtrend && ev.KernelBearish && ev.Volatile {
			entry = Sell
		}
	}

	switch l.position {
	case Buy:
		if ev.Score <= 0 || ev.KernelBearish {
			l.position = ""
			l.last.Outcome = OutcomeExit
			return l.signal(c, Sell, "exit/flip")
		}
	case Sell:
		if ev.Score >= 0 || ev.KernelBullish {
			l.position = ""
			l.last.Outcome = OutcomeExit
			return l.signal(c, Buy, "exit/flip")
		}
	}

	switch {
	case vote == "":
		l.last.Outcome = OutcomeNoVote
		return nil
	case entry == "":
		l.last.Outcome = OutcomeFiltered
		l.last.Note = filterNote(vote, ev)
		return nil
	case entry == l.position:
		l.last.Outcome = OutcomeHold
		return nil
	}
	l.position = entry
	l.last.Outcome = OutcomeEntry
	return l.signal(c, entry, "lorentzian entry")
}

func (l *Lorentzian) signal(c market.Candle, d Direction, reason string) *Signal {
	price := c.Close
	sl := price * (1 - l.cfg.StopLossPct)
	tp := price * (1 + l.cfg.TakeProfitPct)
	if d == Sell {
		sl = price * (1 + l.cfg.StopLossPct)
		tp = price * (1 - l.cfg.TakeProfitPct)
	}
	return &Signal{
		Agent:      l.name,
		Symbol:     c.Symbol,
		Direction:  d,
		Price:      price,
		StopLoss:   sl,
		TakeProfit: tp,
		Volume:     l.cfg.Volume,
		Reason:     reason,
		Magic:      l.magic,
	}
}

func filterNote(vote Direction, ev Evaluation) string {
	if vote == Buy {
		switch {
		case !ev.Uptrend:
			return "price below trend average"
		case !ev.KernelBullish:
			return "kernel not bullish"
		}
	} else {
		switch {
		case !ev.Downtrend:
			return "price above trend average"
		case !ev.KernelBearish:
			return "kernel not bearish"
		}
	}
	return "low volatility"
}

// LorentzianState is the serializable state of the classifier.
type LorentzianState struct {
	Position Direction `json:"position"`
	Bars     int       `json:"bars"`
}

func (l *Lorentzian) GetState() (json.RawMessage, error) {
	return json.Marshal(LorentzianState{Position: l.position, Bars: l.history.Len()})
}

// nearestNeighbors returns the k rows closest to current, ties kept in row order.
func nearestNeighbors(rows []labeledRow, current indicators.Vector, k int) []labeledRow {
	type scored struct {
		row  labeledRow
		dist float64
	}
	all := make([]scored, len(rows))
	for i, r := range rows {
		all[i] = scored{row: r, dist: logDistance(r.features, current)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].dist < all[j].dist })
	if k > len(all) {
		k = len(all)
	}
	out := make([]labeledRow, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].row
	}
	return out
}

// logDistance is the sum over features of log(1+|a-b|).
func logDistance(a, b indicators.Vector) float64 {
	d := 0.0
	for i := range a {
		d += math.Log1p(math.Abs(a[i] - b[i]))
	}
	return d
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
