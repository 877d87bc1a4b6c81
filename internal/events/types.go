package events

import "time"

// Event enumerates topics published during a backtest.
type Event string

const (
	EventSignalEvaluated Event = "signal.evaluated"
	EventSignalExecuted  Event = "signal.executed"
	EventSignalRejected  Event = "signal.rejected"
	EventPositionOpened  Event = "position.opened"
	EventPositionClosed  Event = "position.closed"
	EventSetupArmed      Event = "setup.armed"
	EventSetupCleared    Event = "setup.cleared"
	EventRunCompleted    Event = "run.completed"
)

// SignalEvaluated carries an agent's decision for one bar.
type SignalEvaluated struct {
	Agent   string
	Time    time.Time
	Outcome string
	Score   float64
	Note    string
}

// SignalExecuted is published when a signal reached the broker and opened a position.
type SignalExecuted struct {
	Agent   string
	Symbol  string
	Side    string
	Price   float64
	Reason  string
	Ticket  int64
	Flipped int
	Time    time.Time
}

// Rejection reasons carried by SignalRejected.
const (
	RejectInsufficientMargin = "insufficient_margin"
	RejectInvalidDirection   = "invalid_direction"
	RejectInvalidVolume      = "invalid_volume"
)

// SignalRejected is published when a signal was refused before or at the broker.
type SignalRejected struct {
	Agent  string
	Symbol string
	Side   string
	Reason string // why it was refused
	Time   time.Time
}

// PositionOpened mirrors a new broker position.
type PositionOpened struct {
	Ticket     int64
	Magic      int
	Symbol     string
	Side       string
	Volume     float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Commission float64
	Margin     float64
	Reason     string
	Time       time.Time
}

// PositionClosed mirrors a closed trade.
type PositionClosed struct {
	Ticket      int64
	Magic       int
	Symbol      string
	Side        string
	Volume      float64
	EntryPrice  float64
	ExitPrice   float64
	GrossProfit float64
	NetProfit   float64
	ExitReason  string
	Duration    time.Duration
	Time        time.Time
}

// SetupChanged reports a wait-state transition of a structure agent.
// Outcome is "armed" when a setup starts, "timeout" or "confirmed" when it ends.
type SetupChanged struct {
	Agent   string
	Outcome string
	Note    string
	Time    time.Time
}

// RunCompleted summarises a finished run.
type RunCompleted struct {
	Agent        string
	Bars         int
	Trades       int
	FinalBalance float64
	MaxDrawdown  float64
}
