package backtest

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"backtest-core/pkg/db"
)

// Records converts a result into rows for the results store.
func Records(res *Result, cfg RunConfig) (db.Session, []db.Trade, []db.EquityPoint, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return db.Session{}, nil, nil, fmt.Errorf("marshal run config: %w", err)
	}
	st := res.State
	session := db.Session{
		AgentName:          res.Agent,
		Symbol:             res.Symbol,
		Timeframe:          cfg.Run.LowerTimeframe,
		InitialBalance:     st.InitialBalance,
		Spread:             cfg.Broker.Spread,
		StartDate:          res.Summary.Start,
		EndDate:            res.Summary.End,
		FinalBalance:       st.Balance.Balance,
		NetProfit:          st.Balance.Balance - st.InitialBalance,
		WinRate:            res.Summary.WinRate,
		ProfitFactor:       res.Summary.ProfitFactor,
		MaxDrawdownPercent: st.MaxDrawdownPercent,
		MaxDrawdownAmount:  st.MaxDrawdown,
		TotalTrades:        res.Summary.Trades,
		RejectedSignals:    res.Rejected,
		Config:             string(raw),
	}

	trades := make([]db.Trade, 0, len(st.Closed))
	for _, t := range st.Closed {
		trades = append(trades, db.Trade{
			Ticket:          t.Ticket,
			Magic:           t.Magic,
			Direction:       string(t.Direction),
			EntryPrice:      t.EntryPrice,
			ExitPrice:       t.ExitPrice,
			StopLoss:        t.StopLoss,
			TakeProfit:      t.TakeProfit,
			Volume:          t.Volume,
			GrossProfit:     t.GrossProfit,
			NetProfit:       t.NetProfit,
			Commission:      t.Commission,
			OpenTime:        t.OpenTime,
			CloseTime:       t.CloseTime,
			DurationMinutes: t.Duration.Minutes(),
			EntryReason:     t.Reason,
			ExitReason:      t.ExitReason,
		})
	}

	points := make([]db.EquityPoint, len(res.Equity))
	for i, e := range res.Equity {
		points[i] = db.EquityPoint{
			Timestamp:       e.Timestamp,
			Balance:         e.Balance,
			Equity:          e.Equity,
			DrawdownPercent: e.DrawdownPercent,
		}
	}
	return session, trades, points, nil
}

// Save stores a result and returns the new session ID.
func Save(ctx context.Context, database *db.Database, res *Result, cfg RunConfig) (string, error) {
	session, trades, points, err := Records(res, cfg)
	if err != nil {
		return "", err
	}
	return database.SaveSession(ctx, session, trades, points)
}
