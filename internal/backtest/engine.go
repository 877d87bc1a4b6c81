package backtest

import (
	"errors"
	"fmt"

	"backtest-core/internal/events"
	"backtest-core/internal/market"
	"backtest-core/internal/order"
	"backtest-core/internal/strategy"
)

// Option tunes an Engine.
type Option func(*Engine)

// WithWarmup feeds the first n lower-timeframe bars to the agent without trading
// and without equity samples.
func WithWarmup(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.warmup = n
		}
	}
}

// WithCloseAtEnd closes every position still open after the last bar.
func WithCloseAtEnd(enabled bool) Option {
	return func(e *Engine) { e.closeAtEnd = enabled }
}

// Engine replays a lower-timeframe stream, interleaving higher-timeframe bars,
// through one agent and one broker. An Engine runs once; build a new one per run.
type Engine struct {
	agent  strategy.Agent
	broker *order.VirtualBroker
	exec   *order.Executor
	bus    *events.Bus

	warmup     int
	closeAtEnd bool

	htf    []market.Candle
	htfIdx int
}

// NewEngine wires an agent to a broker. bus may be nil.
func NewEngine(agent strategy.Agent, broker *order.VirtualBroker, bus *events.Bus, opts ...Option) *Engine {
	e := &Engine{
		agent:  agent,
		broker: broker,
		exec:   order.NewExecutor(broker),
		bus:    bus,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run processes every lower-timeframe candle in order. Before each one, all
// higher-timeframe candles stamped at or before it reach a MultiTimeframe agent.
// Then the broker marks to market, the agent decides and any signal is executed.
// Margin and malformed-signal rejections are counted and published; broker
// contract violations abort the run.
func (e *Engine) Run(ltf, htf []market.Candle) (*Result, error) {
	if e.agent == nil || e.broker == nil {
		return nil, errors.New("backtest: engine needs an agent and a broker")
	}
	if err := market.EnsureSorted(ltf); err != nil {
		return nil, fmt.Errorf("lower timeframe: %w", err)
	}
	if err := market.EnsureSorted(htf); err != nil {
		return nil, fmt.Errorf("higher timeframe: %w", err)
	}
	e.htf, e.htfIdx = htf, 0

	res := &Result{Agent: e.agent.Name()}
	if len(ltf) > 0 {
		res.Symbol = ltf[0].Symbol
	}

	n := min(e.warmup, len(ltf))
	e.warm(ltf[:n])

	res.Equity = make([]EquitySample, 0, len(ltf)-n)
	for _, c := range ltf[n:] {
		e.advanceHigher(c)

		for _, t := range e.broker.MarkToMarket(c) {
			order.EmitPositionClosed(e.bus, t)
		}

		sig := e.agent.OnBar(c)
		e.report(false)
		if sig != nil {
			rejected, err := e.execute(sig, c)
			if err != nil {
				return nil, fmt.Errorf("bar %s: %w", c.Timestamp.Format("2006-01-02 15:04"), err)
			}
			if rejected {
				res.Rejected++
			}
		}

		bal := e.broker.Balance()
		res.Equity = append(res.Equity, EquitySample{
			Timestamp:       c.Timestamp,
			Balance:         bal.Balance,
			Equity:          bal.Equity,
			DrawdownPercent: bal.MaxDrawdownPercent,
		})
		res.Bars++
	}

	if e.closeAtEnd && len(ltf) > n {
		last := ltf[len(ltf)-1]
		trades, err := e.broker.CloseAll(last.Symbol, last.Close, last.Timestamp, order.ReasonEndOfTest)
		if err != nil {
			return nil, fmt.Errorf("close at end: %w", err)
		}
		for _, t := range trades {
			order.EmitPositionClosed(e.bus, t)
		}
	}

	res.State = e.broker.State()
	res.Summary = Summarize(res.State, res.Equity)
	e.publish(events.EventRunCompleted, events.RunCompleted{
		Agent:        res.Agent,
		Bars:         res.Bars,
		Trades:       res.Summary.Trades,
		FinalBalance: res.State.Balance.Balance,
		MaxDrawdown:  res.State.MaxDrawdownPercent,
	})
	return res, nil
}

// warm seeds the agent. Warmer agents get the whole slice at once; others see
// each bar through OnBar with the signals discarded.
func (e *Engine) warm(candles []market.Candle) {
	if len(candles) == 0 {
		return
	}
	if w, ok := e.agent.(strategy.Warmer); ok {
		e.advanceHigher(candles[len(candles)-1])
		w.Warmup(candles)
		return
	}
	for _, c := range candles {
		e.advanceHigher(c)
		_ = e.agent.OnBar(c)
	}
}

func (e *Engine) advanceHigher(c market.Candle) {
	mtf, ok := e.agent.(strategy.MultiTimeframe)
	if !ok {
		return
	}
	for e.htfIdx < len(e.htf) && !e.htf[e.htfIdx].Timestamp.After(c.Timestamp) {
		mtf.OnHigherTimeframeBar(e.htf[e.htfIdx])
		e.htfIdx++
		e.report(true)
	}
}

// execute routes one signal. It reports whether the signal was rejected as a
// normal outcome; any other failure is returned.
func (e *Engine) execute(sig *strategy.Signal, c market.Candle) (bool, error) {
	if sig.Symbol == "" {
		cp := *sig
		cp.Symbol = c.Symbol
		sig = &cp
	}
	exec, err := e.exec.Execute(sig, c.Timestamp, c.Close)
	for _, t := range exec.Flipped {
		order.EmitPositionClosed(e.bus, t)
	}
	if err != nil {
		reason := ""
		switch {
		case errors.Is(err, order.ErrInsufficientMargin):
			reason = events.RejectInsufficientMargin
		case errors.Is(err, order.ErrInvalidDirection):
			reason = events.RejectInvalidDirection
		case errors.Is(err, order.ErrInvalidVolume):
			reason = events.RejectInvalidVolume
		default:
			return false, err
		}
		e.publish(events.EventSignalRejected, events.SignalRejected{
			Agent:  sig.Agent,
			Symbol: sig.Symbol,
			Side:   string(sig.Direction),
			Reason: reason,
			Time:   c.Timestamp,
		})
		return true, nil
	}

	if pos, ok := e.broker.Lookup(exec.Ticket); ok {
		order.EmitPositionOpened(e.bus, pos)
	}
	e.publish(events.EventSignalExecuted, events.SignalExecuted{
		Agent:   sig.Agent,
		Symbol:  sig.Symbol,
		Side:    string(sig.Direction),
		Price:   exec.RawPrice,
		Reason:  sig.Reason,
		Ticket:  exec.Ticket,
		Flipped: len(exec.Flipped),
		Time:    c.Timestamp,
	})
	return false, nil
}

// report publishes the agent's latest decision. Higher-timeframe bars only
// publish setup transitions.
func (e *Engine) report(higher bool) {
	if e.bus == nil {
		return
	}
	r, ok := e.agent.(strategy.Reporter)
	if !ok {
		return
	}
	d := r.LastDecision()
	if !higher {
		e.publish(events.EventSignalEvaluated, events.SignalEvaluated{
			Agent:   d.Agent,
			Time:    d.Timestamp,
			Outcome: string(d.Outcome),
			Score:   d.Score,
			Note:    d.Note,
		})
	}
	switch d.Outcome {
	case strategy.OutcomeArmed:
		e.publish(events.EventSetupArmed, events.SetupChanged{Agent: d.Agent, Outcome: string(d.Outcome), Note: d.Note, Time: d.Timestamp})
	case strategy.OutcomeTimeout, strategy.OutcomeConfirmed:
		e.publish(events.EventSetupCleared, events.SetupChanged{Agent: d.Agent, Outcome: string(d.Outcome), Note: d.Note, Time: d.Timestamp})
	}
}

func (e *Engine) publish(topic events.Event, payload any) {
	if e.bus != nil {
		e.bus.Publish(topic, payload)
	}
}
