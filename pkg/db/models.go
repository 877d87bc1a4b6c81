package db

import "time"

// Session is one stored backtest run.
type Session struct {
	ID                 string
	AgentName          string
	Symbol             string
	Timeframe          string
	InitialBalance     float64
	Spread             float64
	StartDate          time.Time
	EndDate            time.Time
	FinalBalance       float64
	NetProfit          float64
	WinRate            float64
	ProfitFactor       float64
	MaxDrawdownPercent float64
	MaxDrawdownAmount  float64
	TotalTrades        int
	RejectedSignals    int
	Config             string // run configuration as YAML
	CreatedAt          time.Time
}

// Trade is a closed trade of a session.
type Trade struct {
	SessionID       string
	Ticket          int64
	Magic           int
	Direction       string
	EntryPrice      float64
	ExitPrice       float64
	StopLoss        float64
	TakeProfit      float64
	Volume          float64
	GrossProfit     float64
	NetProfit       float64
	Commission      float64
	OpenTime        time.Time
	CloseTime       time.Time
	DurationMinutes float64
	EntryReason     string
	ExitReason      string
}

// EquityPoint is one stored sample of the equity curve.
type EquityPoint struct {
	SessionID       string
	Timestamp       time.Time
	Balance         float64
	Equity          float64
	DrawdownPercent float64
}
