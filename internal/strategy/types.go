package strategy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"backtest-core/internal/market"
)

// Direction is the side of a signal or position.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// ParseDirection normalises a side label. Anything other than BUY or SELL is an error;
// there is no default side.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("invalid direction %q", s)
	}
	return d, nil
}

// Valid reports whether d is BUY or SELL.
func (d Direction) Valid() bool {
	return d == Buy || d == Sell
}

// Opposite returns the other side. Invalid directions stay invalid.
func (d Direction) Opposite() Direction {
	switch d {
	case Buy:
		return Sell
	case Sell:
		return Buy
	}
	return d
}

// Sign is +1 for BUY, -1 for SELL and 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case Buy:
		return 1
	case Sell:
		return -1
	}
	return 0
}

// Signal is a decision emitted by an agent. It is never mutated after creation.
type Signal struct {
	Agent      string
	Symbol     string
	Direction  Direction
	Price      float64 // reference price, <= 0 means "use the bar close"
	StopLoss   float64
	TakeProfit float64
	Volume     float64
	Reason     string
	Magic      int
}

// Agent consumes bars of its primary timeframe and may return a signal.
// A nil signal means no decision, including "not enough history yet".
type Agent interface {
	Name() string
	OnBar(c market.Candle) *Signal
}

// MultiTimeframe agents also follow a higher timeframe. The engine delivers every
// higher-timeframe bar before the lower-timeframe bar that shares or follows its timestamp.
type MultiTimeframe interface {
	Agent
	OnHigherTimeframeBar(c market.Candle)
}

// Warmer agents can be seeded with history without producing decisions.
type Warmer interface {
	Warmup(candles []market.Candle)
}

// Stateful agents expose a serializable snapshot of their internal state.
type Stateful interface {
	GetState() (json.RawMessage, error)
}

// Outcome labels what an agent concluded on a bar.
type Outcome string

const (
	OutcomeWarmup    Outcome = "warmup"
	OutcomeNoVote    Outcome = "no_vote"
	OutcomeFiltered  Outcome = "filtered"
	OutcomeHold      Outcome = "hold"
	OutcomeEntry     Outcome = "entry"
	OutcomeExit      Outcome = "exit"
	OutcomeArmed     Outcome = "armed"
	OutcomeWaiting   Outcome = "waiting"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeIdle      Outcome = "idle"
)

// Decision describes an agent's latest evaluation. It is read-only data for the
// observability channel; agents never log.
type Decision struct {
	Agent     string
	Timestamp time.Time
	Outcome   Outcome
	Score     float64
	Note      string
}

// Reporter agents expose their latest Decision.
type Reporter interface {
	LastDecision() Decision
}
