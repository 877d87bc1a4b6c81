package db

import (
	"database/sql"
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS backtest_sessions (
    id TEXT PRIMARY KEY,
    agent_name TEXT NOT NULL,
    symbol TEXT NOT NULL,
    timeframe TEXT NOT NULL,
    initial_balance REAL NOT NULL,
    spread REAL NOT NULL DEFAULT 0,
    start_date DATETIME,
    end_date DATETIME,
    final_balance REAL NOT NULL,
    net_profit REAL NOT NULL,
    win_rate REAL NOT NULL DEFAULT 0,
    max_drawdown_percent REAL NOT NULL DEFAULT 0,
    max_drawdown_amount REAL NOT NULL DEFAULT 0,
    total_trades INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS backtest_trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    ticket INTEGER NOT NULL,
    magic INTEGER NOT NULL DEFAULT 0,
    direction TEXT NOT NULL,
    entry_price REAL NOT NULL,
    exit_price REAL NOT NULL,
    sl REAL DEFAULT 0,
    tp REAL DEFAULT 0,
    volume REAL NOT NULL,
    gross_profit REAL NOT NULL,
    net_profit REAL NOT NULL,
    open_time DATETIME NOT NULL,
    close_time DATETIME NOT NULL,
    duration_minutes REAL NOT NULL,
    entry_reason TEXT,
    exit_reason TEXT,
    FOREIGN KEY(session_id) REFERENCES backtest_sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_backtest_trades_session ON backtest_trades(session_id, ticket);

CREATE TABLE IF NOT EXISTS equity_points (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    balance REAL NOT NULL,
    equity REAL NOT NULL,
    drawdown_percent REAL NOT NULL,
    FOREIGN KEY(session_id) REFERENCES backtest_sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_equity_points_session ON equity_points(session_id, timestamp);
`

// Tables lists every table the schema creates, with the columns callers rely on.
var Tables = map[string][]string{
	"backtest_sessions": {"id", "agent_name", "symbol", "timeframe", "initial_balance", "spread", "start_date", "end_date",
		"final_balance", "net_profit", "win_rate", "max_drawdown_percent", "max_drawdown_amount", "total_trades",
		"profit_factor", "rejected_signals", "config", "created_at"},
	"backtest_trades": {"session_id", "ticket", "magic", "direction", "entry_price", "exit_price", "sl", "tp", "volume",
		"gross_profit", "net_profit", "commission", "open_time", "close_time", "duration_minutes", "entry_reason", "exit_reason"},
	"equity_points": {"session_id", "timestamp", "balance", "equity", "drawdown_percent"},
}

// ApplyMigrations creates the results schema and adds columns introduced after
// the first release.
func ApplyMigrations(d *Database) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	// Lightweight, idempotent migrations for older DB files.
	if err := ensureColumn(d.DB, "backtest_sessions", "profit_factor", "REAL DEFAULT 0"); err != nil {
		return err
	}
	if err := ensureColumn(d.DB, "backtest_sessions", "rejected_signals", "INTEGER DEFAULT 0"); err != nil {
		return err
	}
	if err := ensureColumn(d.DB, "backtest_sessions", "config", "TEXT"); err != nil {
		return err
	}
	if err := ensureColumn(d.DB, "backtest_trades", "commission", "REAL DEFAULT 0"); err != nil {
		return err
	}
	return nil
}

// MissingColumns reports, per table, the expected columns that do not exist.
// A table that is absent altogether reports all of its columns.
func MissingColumns(d *Database) (map[string][]string, error) {
	out := make(map[string][]string)
	for table, cols := range Tables {
		for _, col := range cols {
			ok, err := columnExists(d.DB, table, col)
			if err != nil {
				return nil, err
			}
			if !ok {
				out[table] = append(out[table], col)
			}
		}
	}
	return out, nil
}

// ensureColumn adds a column if it does not already exist.
func ensureColumn(db *sql.DB, table, column, definition string) error {
	exists, err := columnExists(db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := db.Exec(alter); err != nil {
		return fmt.Errorf("alter table %s add column %s: %w", table, column, err)
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, fmt.Errorf("pragma table_info(%s): %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
