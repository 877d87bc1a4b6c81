package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// MaxEquityPoints bounds the stored equity curve of a session.
const MaxEquityPoints = 500

var ErrNotFound = errors.New("record not found")

// SaveSession stores a run, its trades and its downsampled equity curve in one
// transaction. An empty s.ID is replaced by a new UUID. It returns the session ID.
func (d *Database) SaveSession(ctx context.Context, s Session, trades []Trade, equity []EquityPoint) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_sessions (
			id, agent_name, symbol, timeframe, initial_balance, spread, start_date, end_date,
			final_balance, net_profit, win_rate, profit_factor, max_drawdown_percent,
			max_drawdown_amount, total_trades, rejected_signals, config
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.AgentName, s.Symbol, s.Timeframe, s.InitialBalance, s.Spread, s.StartDate, s.EndDate,
		s.FinalBalance, s.NetProfit, s.WinRate, s.ProfitFactor, s.MaxDrawdownPercent,
		s.MaxDrawdownAmount, s.TotalTrades, s.RejectedSignals, s.Config,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades (
			session_id, ticket, magic, direction, entry_price, exit_price, sl, tp, volume,
			gross_profit, net_profit, commission, open_time, close_time, duration_minutes,
			entry_reason, exit_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare trades: %w", err)
	}
	defer tradeStmt.Close()

	for _, t := range trades {
		if _, err := tradeStmt.ExecContext(ctx,
			s.ID, t.Ticket, t.Magic, t.Direction, t.EntryPrice, t.ExitPrice, t.StopLoss, t.TakeProfit, t.Volume,
			t.GrossProfit, t.NetProfit, t.Commission, t.OpenTime, t.CloseTime, t.DurationMinutes,
			t.EntryReason, t.ExitReason,
		); err != nil {
			return "", fmt.Errorf("insert trade %d: %w", t.Ticket, err)
		}
	}

	pointStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO equity_points (session_id, timestamp, balance, equity, drawdown_percent)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare equity: %w", err)
	}
	defer pointStmt.Close()

	for _, p := range Downsample(equity, MaxEquityPoints) {
		if _, err := pointStmt.ExecContext(ctx, s.ID, p.Timestamp, p.Balance, p.Equity, p.DrawdownPercent); err != nil {
			return "", fmt.Errorf("insert equity point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return s.ID, nil
}

// Downsample keeps every step-th point so that at most max points remain.
func Downsample(points []EquityPoint, max int) []EquityPoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	step := (len(points) + max - 1) / max
	out := make([]EquityPoint, 0, max)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	return out
}

const sessionColumns = `
	id, agent_name, symbol, timeframe, initial_balance, spread, start_date, end_date,
	final_balance, net_profit, win_rate, COALESCE(profit_factor, 0), max_drawdown_percent,
	max_drawdown_amount, total_trades, COALESCE(rejected_signals, 0), COALESCE(config, ''), created_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.AgentName, &s.Symbol, &s.Timeframe, &s.InitialBalance, &s.Spread, &s.StartDate, &s.EndDate,
		&s.FinalBalance, &s.NetProfit, &s.WinRate, &s.ProfitFactor, &s.MaxDrawdownPercent,
		&s.MaxDrawdownAmount, &s.TotalTrades, &s.RejectedSignals, &s.Config, &s.CreatedAt,
	)
	return s, err
}

// GetSession loads one session.
func (d *Database) GetSession(ctx context.Context, id string) (*Session, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM backtest_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// ListSessions returns the newest sessions first.
func (d *Database) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM backtest_sessions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// GetTrades returns a session's trades ordered by ticket.
func (d *Database) GetTrades(ctx context.Context, sessionID string) ([]Trade, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT session_id, ticket, magic, direction, entry_price, exit_price, COALESCE(sl, 0), COALESCE(tp, 0),
		       volume, gross_profit, net_profit, COALESCE(commission, 0), open_time, close_time,
		       duration_minutes, COALESCE(entry_reason, ''), COALESCE(exit_reason, '')
		FROM backtest_trades
		WHERE session_id = ?
		ORDER BY ticket
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var res []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.SessionID, &t.Ticket, &t.Magic, &t.Direction, &t.EntryPrice, &t.ExitPrice, &t.StopLoss, &t.TakeProfit,
			&t.Volume, &t.GrossProfit, &t.NetProfit, &t.Commission, &t.OpenTime, &t.CloseTime,
			&t.DurationMinutes, &t.EntryReason, &t.ExitReason); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// GetEquity returns a session's stored equity curve in time order.
func (d *Database) GetEquity(ctx context.Context, sessionID string) ([]EquityPoint, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT session_id, timestamp, balance, equity, drawdown_percent
		FROM equity_points
		WHERE session_id = ?
		ORDER BY timestamp, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query equity: %w", err)
	}
	defer rows.Close()

	var res []EquityPoint
	for rows.Next() {
		var p EquityPoint
		if err := rows.Scan(&p.SessionID, &p.Timestamp, &p.Balance, &p.Equity, &p.DrawdownPercent); err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// DeleteSession removes a session with its trades and equity points.
func (d *Database) DeleteSession(ctx context.Context, id string) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM backtest_trades WHERE session_id = ?`,
		`DELETE FROM equity_points WHERE session_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete session rows: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM backtest_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
