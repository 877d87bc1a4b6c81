package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	database := openTestDB(t)
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
	missing, err := MissingColumns(database)
	if err != nil {
		t.Fatalf("MissingColumns: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("missing columns after migration: %v", missing)
	}
}

func TestNewLeavesSchemaAlone(t *testing.T) {
	database, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer database.Close()

	missing, err := MissingColumns(database)
	if err != nil {
		t.Fatalf("MissingColumns: %v", err)
	}
	for table, cols := range Tables {
		if len(missing[table]) != len(cols) {
			t.Fatalf("%s missing=%d, expected all %d columns", table, len(missing[table]), len(cols))
		}
	}

	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	trades := []Trade{
		{Ticket: 2, Direction: "SELL", EntryPrice: 2010, ExitPrice: 2000.15, Volume: 0.01, GrossProfit: 9.85, NetProfit: 9.82,
			Commission: 0.03, OpenTime: start.Add(time.Hour), CloseTime: start.Add(2 * time.Hour), DurationMinutes: 60,
			EntryReason: "sfp + ltf pivot stop", ExitReason: "tp"},
		{Ticket: 1, Direction: "BUY", EntryPrice: 2000.15, ExitPrice: 2000, Volume: 0.01, GrossProfit: -0.15, NetProfit: -0.18,
			Commission: 0.03, OpenTime: start, CloseTime: start.Add(time.Minute), DurationMinutes: 1, ExitReason: "flip"},
	}
	var equity []EquityPoint
	for i := 0; i < 1234; i++ {
		equity = append(equity, EquityPoint{Timestamp: start.Add(time.Duration(i) * time.Minute), Balance: 10000, Equity: 10000 + float64(i)})
	}

	id, err := database.SaveSession(ctx, Session{
		AgentName: "SFP", Symbol: "XAUUSD", Timeframe: "1m", InitialBalance: 10000, Spread: 0.15,
		StartDate: start, EndDate: start.Add(1233 * time.Minute), FinalBalance: 10009.64, NetProfit: 9.64,
		WinRate: 50, ProfitFactor: 54.6, TotalTrades: 2, RejectedSignals: 1, Config: "run:\n  strategy: sfp\n",
	}, trades, equity)
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("id=%q, expected a UUID", id)
	}

	s, err := database.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.AgentName != "SFP" || s.TotalTrades != 2 || s.RejectedSignals != 1 || s.NetProfit != 9.64 {
		t.Fatalf("session=%+v", s)
	}
	if !s.StartDate.Equal(start) {
		t.Fatalf("start=%v, expected %v", s.StartDate, start)
	}

	got, err := database.GetTrades(ctx, id)
	if err != nil {
		t.Fatalf("GetTrades: %v", err)
	}
	if len(got) != 2 || got[0].Ticket != 1 || got[1].EntryReason != "sfp + ltf pivot stop" {
		t.Fatalf("trades=%+v", got)
	}
	if !got[1].CloseTime.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("close time=%v", got[1].CloseTime)
	}

	points, err := database.GetEquity(ctx, id)
	if err != nil {
		t.Fatalf("GetEquity: %v", err)
	}
	if len(points) > MaxEquityPoints || len(points) < MaxEquityPoints/2 {
		t.Fatalf("stored %d points, expected at most %d", len(points), MaxEquityPoints)
	}
	if points[0].Equity != 10000 || !points[0].Timestamp.Equal(start) {
		t.Fatalf("first point=%+v", points[0])
	}

	list, err := database.ListSessions(ctx, 10)
	if err != nil || len(list) != 1 || list[0].ID != id {
		t.Fatalf("list=%v err=%v", list, err)
	}
}

func TestMissingSession(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	if _, err := database.GetSession(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, expected ErrNotFound", err)
	}
	if err := database.DeleteSession(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, expected ErrNotFound", err)
	}
}

func TestDeleteSessionRemovesChildren(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	id, err := database.SaveSession(ctx, Session{AgentName: "a", Symbol: "XAUUSD", Timeframe: "1m"},
		[]Trade{{Ticket: 1, Direction: "BUY", OpenTime: now, CloseTime: now}},
		[]EquityPoint{{Timestamp: now}})
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := database.DeleteSession(ctx, id); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	trades, _ := database.GetTrades(ctx, id)
	points, _ := database.GetEquity(ctx, id)
	if len(trades) != 0 || len(points) != 0 {
		t.Fatalf("children left: trades=%d points=%d", len(trades), len(points))
	}
}

func TestDownsample(t *testing.T) {
	tests := []struct {
		n, max, want int
	}{
		{10, 500, 10},
		{500, 500, 500},
		{501, 500, 251},
		{1234, 500, 412},
		{5, 0, 5},
	}
	for _, tt := range tests {
		pts := make([]EquityPoint, tt.n)
		if got := len(Downsample(pts, tt.max)); got != tt.want {
			t.Fatalf("Downsample(%d, %d)=%d, expected %d", tt.n, tt.max, got, tt.want)
		}
	}
}
