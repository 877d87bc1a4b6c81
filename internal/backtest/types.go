package backtest

import (
	"time"

	"backtest-core/internal/order"
)

// EquitySample is the account after one lower-timeframe bar.
// DrawdownPercent is the running high-water-mark maximum, so it never decreases.
type EquitySample struct {
	Timestamp       time.Time `json:"timestamp"`
	Balance         float64   `json:"balance"`
	Equity          float64   `json:"equity"`
	DrawdownPercent float64   `json:"drawdown_percent"`
}

// Summary rolls up closed trades and the equity trace.
type Summary struct {
	Trades             int       `json:"trades"`
	Wins               int       `json:"wins"`
	Losses             int       `json:"losses"`
	WinRate            float64   `json:"win_rate"` // percent
	GrossProfit        float64   `json:"gross_profit"`
	GrossLoss          float64   `json:"gross_loss"`
	Commission         float64   `json:"commission"`
	NetProfit          float64   `json:"net_profit"`
	ProfitFactor       float64   `json:"profit_factor"`
	AvgTrade           float64   `json:"avg_trade"`
	BestTrade          float64   `json:"best_trade"`
	WorstTrade         float64   `json:"worst_trade"`
	MaxDrawdown        float64   `json:"max_drawdown"`
	MaxDrawdownPercent float64   `json:"max_drawdown_percent"`
	ReturnPercent      float64   `json:"return_percent"`
	Exposure           float64   `json:"exposure"` // position time over the test window, above 1 when positions overlap
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
}

// Result is the output of one run.
type Result struct {
	Agent    string         `json:"agent"`
	Symbol   string         `json:"symbol"`
	Bars     int            `json:"bars"`
	Rejected int            `json:"rejected"` // signals refused for margin or malformed fields
	State    order.State    `json:"state"`
	Equity   []EquitySample `json:"equity"`
	Summary  Summary        `json:"summary"`
}
