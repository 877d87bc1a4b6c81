package monitor

import (
	"fmt"

	"backtest-core/internal/events"
)

// Rule inspects bus payloads and reports an alert message when it fires.
type Rule interface {
	Check(payload any) (bool, string)
}

// LossStreakRule fires once a run of consecutive losing trades reaches Limit,
// and again every Limit losses after that.
type LossStreakRule struct {
	Limit  int
	streak int
}

func (r *LossStreakRule) Check(payload any) (bool, string) {
	ev, ok := payload.(events.PositionClosed)
	if !ok || r.Limit <= 0 {
		return false, ""
	}
	if ev.NetProfit >= 0 {
		r.streak = 0
		return false, ""
	}
	r.streak++
	if r.streak%r.Limit != 0 {
		return false, ""
	}
	return true, fmt.Sprintf("%d consecutive losing trades on %s (last ticket %d, net %.2f)",
		r.streak, ev.Symbol, ev.Ticket, ev.NetProfit)
}

// MarginRule fires on every signal the broker refused for lack of margin.
type MarginRule struct{}

func (MarginRule) Check(payload any) (bool, string) {
	ev, ok := payload.(events.SignalRejected)
	if !ok || ev.Reason != events.RejectInsufficientMargin {
		return false, ""
	}
	return true, fmt.Sprintf("%s %s signal from %s rejected: insufficient margin at %s",
		ev.Symbol, ev.Side, ev.Agent, ev.Time.Format("2006-01-02 15:04"))
}
