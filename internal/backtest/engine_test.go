package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"backtest-core/internal/events"
	"backtest-core/internal/market"
	"backtest-core/internal/order"
	"backtest-core/internal/strategy"
)

var t0 = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

// scripted returns preset signals by bar index and records the call order.
type scripted struct {
	signals map[int]*strategy.Signal
	bar     int
	calls   []string
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) OnBar(c market.Candle) *strategy.Signal {
	s.calls = append(s.calls, "L"+c.Timestamp.Format("15:04"))
	sig := s.signals[s.bar]
	s.bar++
	return sig
}

func (s *scripted) OnHigherTimeframeBar(c market.Candle) {
	s.calls = append(s.calls, "H"+c.Timestamp.Format("15:04"))
}

// warmer records what Warmup received.
type warmer struct {
	scripted
	warmed int
}

func (w *warmer) Warmup(candles []market.Candle) { w.warmed += len(candles) }

func flatBars(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, px := range closes {
		out[i] = market.Candle{Symbol: "XAUUSD", Timestamp: t0.Add(time.Duration(i) * time.Minute), Open: px, High: px, Low: px, Close: px}
	}
	return out
}

func newBroker(t *testing.T) *order.VirtualBroker {
	t.Helper()
	b, err := order.NewVirtualBroker(order.DefaultBrokerConfig())
	if err != nil {
		t.Fatalf("broker: %v", err)
	}
	return b
}

func TestRunMergesHigherTimeframeFirst(t *testing.T) {
	agent := &scripted{}
	ltf := flatBars(2000, 2000, 2000, 2000, 2000)
	htf := []market.Candle{
		{Symbol: "XAUUSD", Timestamp: t0, Open: 2000, High: 2000, Low: 2000, Close: 2000},
		{Symbol: "XAUUSD", Timestamp: t0.Add(2 * time.Minute), Open: 2000, High: 2000, Low: 2000, Close: 2000},
		{Symbol: "XAUUSD", Timestamp: t0.Add(10 * time.Minute), Open: 2000, High: 2000, Low: 2000, Close: 2000},
	}
	if _, err := NewEngine(agent, newBroker(t), nil).Run(ltf, htf); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"H09:00", "L09:00", "L09:01", "H09:02", "L09:02", "L09:03", "L09:04"}
	if len(agent.calls) != len(want) {
		t.Fatalf("calls=%v, expected %v", agent.calls, want)
	}
	for i := range want {
		if agent.calls[i] != want[i] {
			t.Fatalf("calls=%v, expected %v", agent.calls, want)
		}
	}
}

func TestRunScriptedSignals(t *testing.T) {
	agent := &scripted{signals: map[int]*strategy.Signal{
		1: {Agent: "scripted", Symbol: "XAUUSD", Direction: strategy.Buy, Volume: 0.1, Magic: 1, Reason: "entry"},
		3: {Agent: "scripted", Symbol: "XAUUSD", Volume: 0.1, Magic: 1}, // no side
		5: {Agent: "scripted", Symbol: "XAUUSD", Direction: strategy.Sell, Volume: 0.1, Magic: 1, Reason: "reverse"},
		7: {Agent: "scripted", Symbol: "XAUUSD", Direction: strategy.Buy, Volume: 1000, Magic: 2},
	}}
	ltf := flatBars(2000, 2001, 2002, 2003, 2004, 2003, 2002, 2001, 2000, 1999, 1998, 1997)

	bus := events.NewBus()
	opened, unsubOpen := bus.Subscribe(events.EventPositionOpened, 16)
	defer unsubOpen()
	closed, unsubClose := bus.Subscribe(events.EventPositionClosed, 16)
	defer unsubClose()
	rejected, unsubRej := bus.Subscribe(events.EventSignalRejected, 16)
	defer unsubRej()

	res, err := NewEngine(agent, newBroker(t), bus, WithCloseAtEnd(true)).Run(ltf, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Bars != len(ltf) || len(res.Equity) != len(ltf) {
		t.Fatalf("bars=%d samples=%d, expected %d", res.Bars, len(res.Equity), len(ltf))
	}
	if res.Rejected != 2 {
		t.Fatalf("rejected=%d, expected 2", res.Rejected)
	}
	if len(res.State.Closed) != 2 || len(res.State.Open) != 0 {
		t.Fatalf("closed=%d open=%d, expected 2/0", len(res.State.Closed), len(res.State.Open))
	}
	if r := res.State.Closed[0].ExitReason; r != order.ReasonFlip {
		t.Fatalf("first exit=%q, expected flip", r)
	}
	if r := res.State.Closed[1].ExitReason; r != order.ReasonEndOfTest {
		t.Fatalf("second exit=%q, expected end of test", r)
	}
	// BUY 2001.15 -> 2003 and SELL 2003 -> 1997.15, 0.1 lot, 0.3 commission each
	if !near(res.State.Balance.Balance, 10076.4) {
		t.Fatalf("balance=%v, expected 10076.4", res.State.Balance.Balance)
	}

	sum := 0.0
	for _, c := range res.State.Closed {
		sum += c.NetProfit
		if !near(c.NetProfit, c.GrossProfit-c.Commission) || c.Duration < 0 {
			t.Fatalf("trade %d breaks identities: %+v", c.Ticket, c)
		}
	}
	if !near(res.State.Balance.Balance, res.State.InitialBalance+sum) {
		t.Fatalf("balance=%v, expected initial+net %v", res.State.Balance.Balance, res.State.InitialBalance+sum)
	}
	for i := 1; i < len(res.Equity); i++ {
		if res.Equity[i].DrawdownPercent < res.Equity[i-1].DrawdownPercent {
			t.Fatalf("drawdown decreased at sample %d", i)
		}
	}

	if n := len(opened); n != 2 {
		t.Fatalf("opened events=%d, expected 2", n)
	}
	if n := len(closed); n != 2 {
		t.Fatalf("closed events=%d, expected 2", n)
	}
	reasons := map[string]bool{}
	for len(rejected) > 0 {
		reasons[(<-rejected).(events.SignalRejected).Reason] = true
	}
	if !reasons[events.RejectInvalidDirection] || !reasons[events.RejectInsufficientMargin] {
		t.Fatalf("rejection reasons=%v", reasons)
	}
}

func TestRunWarmup(t *testing.T) {
	ltf := flatBars(2000, 2001, 2002, 2003, 2004)

	w := &warmer{}
	res, err := NewEngine(w, newBroker(t), nil, WithWarmup(3)).Run(ltf, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if w.warmed != 3 || w.bar != 2 || len(res.Equity) != 2 {
		t.Fatalf("warmed=%d bars=%d samples=%d, expected 3/2/2", w.warmed, w.bar, len(res.Equity))
	}

	// agents without Warmup see the bars but their signals are dropped
	s := &scripted{signals: map[int]*strategy.Signal{
		0: {Symbol: "XAUUSD", Direction: strategy.Buy, Volume: 0.01},
	}}
	res, err = NewEngine(s, newBroker(t), nil, WithWarmup(3)).Run(ltf, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.bar != 5 || len(res.State.Open) != 0 {
		t.Fatalf("bars=%d open=%d, expected 5/0", s.bar, len(res.State.Open))
	}

	// warm-up longer than the stream leaves nothing to trade
	res, err = NewEngine(&warmer{}, newBroker(t), nil, WithWarmup(10)).Run(ltf, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Bars != 0 {
		t.Fatalf("bars=%d, expected 0", res.Bars)
	}
}

func TestRunFillsMissingSymbol(t *testing.T) {
	s := &scripted{signals: map[int]*strategy.Signal{
		0: {Direction: strategy.Buy, Volume: 0.01, StopLoss: 1990},
	}}
	ltf := flatBars(2000, 1985)
	res, err := NewEngine(s, newBroker(t), nil).Run(ltf, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.State.Closed) != 1 || res.State.Closed[0].ExitReason != "sl" {
		t.Fatalf("closed=%+v, expected one stop-out", res.State.Closed)
	}
}

func TestRunRejectsUnsortedInput(t *testing.T) {
	ltf := flatBars(2000, 2001)
	ltf[0], ltf[1] = ltf[1], ltf[0]
	_, err := NewEngine(&scripted{}, newBroker(t), nil).Run(ltf, nil)
	if !errors.Is(err, market.ErrUnsorted) {
		t.Fatalf("err=%v, expected ErrUnsorted", err)
	}
	if _, err := NewEngine(nil, newBroker(t), nil).Run(nil, nil); err == nil {
		t.Fatalf("expected error without an agent")
	}
}

func TestRunLorentzianOnSyntheticData(t *testing.T) {
	ltf := market.Synthetic{Seed: 7, StartPrice: 2000, Step: 2, Drift: 0.05}.Generate(400)
	cfg := DefaultRunConfig()
	comp, err := cfg.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	bus := events.NewBus()
	evaluated, unsub := bus.Subscribe(events.EventSignalEvaluated, 512)
	defer unsub()

	res, err := NewEngine(comp.Agent, comp.Broker, bus, cfg.Options()...).Run(ltf, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	checkInvariants(t, res)
	if len(evaluated) != len(ltf) {
		t.Fatalf("evaluations=%d, expected %d", len(evaluated), len(ltf))
	}
}

func TestRunSFPOnSyntheticData(t *testing.T) {
	ltf := market.Synthetic{Seed: 11, StartPrice: 2000, Step: 1.5}.Generate(3000)
	htf := market.StampAtLastBar(market.Resample(ltf, 15*time.Minute), 15*time.Minute, time.Minute)

	cfg := DefaultRunConfig()
	cfg.Run.Strategy = string(strategy.KindSFP)
	cfg.Run.CloseAtEnd = true
	comp, err := cfg.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res, err := NewEngine(comp.Agent, comp.Broker, nil, cfg.Options()...).Run(ltf, htf)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	checkInvariants(t, res)
	if len(res.State.Open) != 0 {
		t.Fatalf("open=%d after close-at-end", len(res.State.Open))
	}
}

func checkInvariants(t *testing.T, res *Result) {
	t.Helper()
	if len(res.Equity) != res.Bars {
		t.Fatalf("samples=%d, bars=%d", len(res.Equity), res.Bars)
	}
	sum := 0.0
	seen := map[int64]bool{}
	for _, c := range res.State.Closed {
		sum += c.NetProfit
		if !near(c.NetProfit, c.GrossProfit-c.Commission) {
			t.Fatalf("ticket %d: net %v != gross %v - commission %v", c.Ticket, c.NetProfit, c.GrossProfit, c.Commission)
		}
		if c.Duration < 0 {
			t.Fatalf("ticket %d: negative duration", c.Ticket)
		}
		if c.Ticket <= 0 || seen[c.Ticket] {
			t.Fatalf("ticket %d not unique", c.Ticket)
		}
		seen[c.Ticket] = true
	}
	if !near(res.State.Balance.Balance, res.State.InitialBalance+sum) {
		t.Fatalf("balance=%v, expected %v", res.State.Balance.Balance, res.State.InitialBalance+sum)
	}
	for i := 1; i < len(res.Equity); i++ {
		if res.Equity[i].DrawdownPercent < res.Equity[i-1].DrawdownPercent {
			t.Fatalf("drawdown decreased at sample %d", i)
		}
	}
}
