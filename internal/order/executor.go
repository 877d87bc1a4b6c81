package order

import (
	"errors"
	"fmt"
	"time"

	"backtest-core/internal/strategy"
)

// Execution reports what the executor did with a signal.
type Execution struct {
	Signal     strategy.Signal
	RawPrice   float64
	StopLoss   float64 // after clamping
	TakeProfit float64 // after clamping
	Flipped    []ClosedTrade
	Ticket     int64
}

// Executor turns signals into broker calls: it closes opposing positions under
// the same strategy identifier, clamps the levels to the broker's stop distance
// and opens the new position.
type Executor struct {
	broker *VirtualBroker
}

// NewExecutor wraps a broker.
func NewExecutor(b *VirtualBroker) *Executor {
	return &Executor{broker: b}
}

// Execute routes sig to the broker. fallbackPrice is used when the signal carries
// no reference price. Signals without a valid direction or volume never reach the
// broker. Margin rejections return ErrInsufficientMargin with any flips already done.
func (e *Executor) Execute(sig *strategy.Signal, ts time.Time, fallbackPrice float64) (Execution, error) {
	if sig == nil {
		return Execution{}, errors.New("execute: nil signal")
	}
	exec := Execution{Signal: *sig}
	if !sig.Direction.Valid() {
		return exec, fmt.Errorf("%w: %q from %s", ErrInvalidDirection, sig.Direction, sig.Agent)
	}
	if sig.Volume <= 0 {
		return exec, fmt.Errorf("%w: %v from %s", ErrInvalidVolume, sig.Volume, sig.Agent)
	}

	raw := sig.Price
	if raw <= 0 {
		raw = fallbackPrice
	}
	exec.RawPrice = raw

	for _, pos := range e.broker.Positions(sig.Symbol) {
		if pos.Magic != sig.Magic || pos.Direction == sig.Direction {
			continue
		}
		trade, err := e.broker.ClosePosition(pos.Ticket, raw, ts, ReasonFlip)
		if err != nil {
			return exec, fmt.Errorf("flip ticket %d: %w", pos.Ticket, err)
		}
		exec.Flipped = append(exec.Flipped, trade)
	}

	bid, ask := e.broker.Quote(raw)
	exec.StopLoss, exec.TakeProfit = e.broker.StopLevel().Clamp(sig.Direction, bid, ask, sig.StopLoss, sig.TakeProfit)

	ticket, err := e.broker.OpenPosition(OpenRequest{
		Direction:  sig.Direction,
		Volume:     sig.Volume,
		Price:      raw,
		StopLoss:   exec.StopLoss,
		TakeProfit: exec.TakeProfit,
		Symbol:     sig.Symbol,
		Magic:      sig.Magic,
		Reason:     sig.Reason,
		Time:       ts,
	})
	if err != nil {
		return exec, err
	}
	exec.Ticket = ticket
	return exec, nil
}
