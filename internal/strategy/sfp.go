package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"backtest-core/internal/market"
	"backtest-core/pkg/config"
)

// SFPConfig tunes the swing-failure-pattern detector.
type SFPConfig struct {
	HTFPivotLength int     `yaml:"htf_pivot_length" default:"5" validate:"gt=0"`
	LTFPivotLength int     `yaml:"ltf_pivot_length" default:"3" validate:"gt=0"`
	MaxWaitBars    int     `yaml:"max_wait_bars" default:"45" validate:"gt=0"`
	HTFHistory     int     `yaml:"htf_history" default:"200" validate:"gt=0"`
	LTFHistory     int     `yaml:"ltf_history" default:"100" validate:"gt=0"`
	PivotMemory    int     `yaml:"pivot_memory" default:"50" validate:"gt=0"`
	SweepLookback  int     `yaml:"sweep_lookback" default:"3" validate:"gt=0"`
	StopBuffer     float64 `yaml:"stop_buffer" default:"0.0005" validate:"gte=0,lt=1"`
	RewardRisk     float64 `yaml:"reward_risk" default:"2" validate:"gt=0"`
	Volume         float64 `yaml:"volume" default:"0.01" validate:"gt=0"`
}

// SetupKind is the direction a sweep points to.
type SetupKind string

const (
	Bearish SetupKind = "BEARISH"
	Bullish SetupKind = "BULLISH"
)

// SFPState is the detector's wait-state.
type SFPState string

const (
	StateIdle    SFPState = "IDLE"
	StateWaiting SFPState = "WAITING"
)

// Setup is an armed sweep awaiting lower-timeframe confirmation.
type Setup struct {
	Kind        SetupKind     `json:"kind"`
	Level       float64       `json:"level"`
	SweepCandle market.Candle `json:"sweep_candle"`
	Waited      int           `json:"waited"`
}

// SFP arms a setup when a higher-timeframe bar sweeps a confirmed pivot and
// closes back inside it, then waits a bounded number of lower-timeframe bars for
// a change of character before signalling.
type SFP struct {
	name   string
	symbol string
	magic  int
	cfg    SFPConfig

	htf       *market.History
	ltf       *market.History
	htfHighs  pivotList
	htfLows   pivotList
	ltfHighs  pivotList
	ltfLows   pivotList
	setup     *Setup
	last      Decision
	armed     int
	timeouts  int
	confirmed int
}

// NewSFP creates a detector in the IDLE state.
func NewSFP(name, symbol string, magic int, cfg SFPConfig) (*SFP, error) {
	if err := config.Normalize(&cfg); err != nil {
		return nil, fmt.Errorf("sfp config: %w", err)
	}
	if name == "" {
		name = "SFP"
	}
	return &SFP{
		name:     name,
		symbol:   symbol,
		magic:    magic,
		cfg:      cfg,
		htf:      market.NewHistory(cfg.HTFHistory),
		ltf:      market.NewHistory(cfg.LTFHistory),
		htfHighs: newPivotList(cfg.PivotMemory),
		htfLows:  newPivotList(cfg.PivotMemory),
		ltfHighs: newPivotList(cfg.PivotMemory),
		ltfLows:  newPivotList(cfg.PivotMemory),
	}, nil
}

func (s *SFP) Name() string { return s.name }

// State reports IDLE or WAITING.
func (s *SFP) State() SFPState {
	if s.setup != nil {
		return StateWaiting
	}
	return StateIdle
}

// ActiveSetup returns a copy of the armed setup, if any.
func (s *SFP) ActiveSetup() (Setup, bool) {
	if s.setup == nil {
		return Setup{}, false
	}
	return *s.setup, true
}

// LastDecision returns the outcome of the latest bar on either timeframe.
func (s *SFP) LastDecision() Decision { return s.last }

// OnHigherTimeframeBar updates higher-timeframe pivots and, while idle, looks
// for a sweep of one of the newest pivots.
func (s *SFP) OnHigherTimeframeBar(c market.Candle) {
	s.htf.Push(c)
	s.updateHigherStructure()

	s.last = Decision{Agent: s.name, Timestamp: c.Timestamp, Outcome: OutcomeIdle}
	if s.setup != nil {
		s.last.Outcome = OutcomeWaiting
		return
	}
	if setup := s.detectSweep(c); setup != nil {
		s.setup = setup
		s.armed++
		s.last.Outcome = OutcomeArmed
		s.last.Score = setup.Level
		s.last.Note = fmt.Sprintf("%s sweep of %.5f", setup.Kind, setup.Level)
	}
}

// OnBar is the lower-timeframe entry point.
func (s *SFP) OnBar(c market.Candle) *Signal {
	return s.OnLowerTimeframeBar(c)
}

// OnLowerTimeframeBar tracks lower-timeframe structure and, while waiting,
// checks for confirmation or timeout.
func (s *SFP) OnLowerTimeframeBar(c market.Candle) *Signal {
	s.ltf.Push(c)
	s.updateLowerStructure()

	s.last = Decision{Agent: s.name, Timestamp: c.Timestamp, Outcome: OutcomeIdle}
	if s.setup == nil {
		return nil
	}

	s.setup.Waited++
	if s.setup.Waited > s.cfg.MaxWaitBars {
		s.last.Outcome = OutcomeTimeout
		s.last.Note = fmt.Sprintf("%s setup at %.5f expired", s.setup.Kind, s.setup.Level)
		s.setup = nil
		s.timeouts++
		return nil
	}

	s.last.Outcome = OutcomeWaiting
	switch s.setup.Kind {
	case Bearish:
		if low, ok := s.ltfLows.last(); ok && c.Close < low.Price {
			return s.confirm(c, Sell)
		}
	case Bullish:
		if high, ok := s.ltfHighs.last(); ok && c.Close > high.Price {
			return s.confirm(c, Buy)
		}
	}
	return nil
}

func (s *SFP) updateHigherStructure() {
	high, low := confirmPivot(s.htf.Tail(2*s.cfg.HTFPivotLength+1), s.cfg.HTFPivotLength)
	if high != nil {
		if prev, ok := s.htfHighs.last(); !ok || prev.Price != high.Price {
			s.htfHighs.add(*high)
		}
	}
	if low != nil {
		if prev, ok := s.htfLows.last(); !ok || prev.Price != low.Price {
			s.htfLows.add(*low)
		}
	}
}

// updateLowerStructure records lower-timeframe pivots. Flat repeats are kept so
// the latest level always reflects the newest confirmed bar.
func (s *SFP) updateLowerStructure() {
	high, low := confirmPivot(s.ltf.Tail(2*s.cfg.LTFPivotLength+1), s.cfg.LTFPivotLength)
	if high != nil {
		s.ltfHighs.add(*high)
	}
	if low != nil {
		s.ltfLows.add(*low)
	}
}

// detectSweep scans the newest pivots, most recent first, highs before lows.
func (s *SFP) detectSweep(c market.Candle) *Setup {
	for _, p := range s.htfHighs.recent(s.cfg.SweepLookback) {
		if c.High > p.Price && c.Close < p.Price {
			return &Setup{Kind: Bearish, Level: p.Price, SweepCandle: c}
		}
	}
	for _, p := range s.htfLows.recent(s.cfg.SweepLookback) {
		if c.Low < p.Price && c.Close > p.Price {
			return &Setup{Kind: Bullish, Level: p.Price, SweepCandle: c}
		}
	}
	return nil
}

func (s *SFP) confirm(c market.Candle, d Direction) *Signal {
	entry := c.Close
	var sl float64
	if d == Sell {
		ref := s.setup.SweepCandle.High
		if high, ok := s.ltfHighs.last(); ok {
			ref = high.Price
		}
		sl = ref * (1 + s.cfg.StopBuffer)
	} else {
		ref := s.setup.SweepCandle.Low
		if low, ok := s.ltfLows.last(); ok {
			ref = low.Price
		}
		sl = ref * (1 - s.cfg.StopBuffer)
	}
	risk := math.Abs(entry - sl)
	tp := entry + d.Sign()*risk*s.cfg.RewardRisk

	s.last.Outcome = OutcomeConfirmed
	s.last.Note = fmt.Sprintf("%s setup at %.5f confirmed after %d bars", s.setup.Kind, s.setup.Level, s.setup.Waited)
	s.setup = nil
	s.confirmed++

	return &Signal{
		Agent:      s.name,
		Symbol:     c.Symbol,
		Direction:  d,
		Price:      entry,
		StopLoss:   sl,
		TakeProfit: tp,
		Volume:     s.cfg.Volume,
		Reason:     "sfp + ltf pivot stop",
		Magic:      s.magic,
	}
}

// SFPSnapshot is the serializable state of the detector.
type SFPSnapshot struct {
	State     SFPState     `json:"state"`
	Setup     *Setup       `json:"setup,omitempty"`
	HTFHighs  []PivotLevel `json:"htf_highs"`
	HTFLows   []PivotLevel `json:"htf_lows"`
	Armed     int          `json:"armed"`
	Timeouts  int          `json:"timeouts"`
	Confirmed int          `json:"confirmed"`
}

func (s *SFP) GetState() (json.RawMessage, error) {
	return json.Marshal(SFPSnapshot{
		State:     s.State(),
		Setup:     s.setup,
		HTFHighs:  s.htfHighs.snapshot(),
		HTFLows:   s.htfLows.snapshot(),
		Armed:     s.armed,
		Timeouts:  s.timeouts,
		Confirmed: s.confirmed,
	})
}
