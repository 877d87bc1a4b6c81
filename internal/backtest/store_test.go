package backtest

import (
	"context"
	"strings"
	"testing"

	"backtest-core/internal/strategy"
	"backtest-core/pkg/db"
)

func TestSaveResult(t *testing.T) {
	database, err := db.Open(db.MemoryPath)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	defer database.Close()

	agent := &scripted{signals: map[int]*strategy.Signal{
		0: {Agent: "scripted", Symbol: "XAUUSD", Direction: strategy.Buy, Volume: 0.1, Magic: 1, Reason: "entry"},
	}}
	res, err := NewEngine(agent, newBroker(t), nil, WithCloseAtEnd(true)).Run(flatBars(2000, 2002, 2004), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	ctx := context.Background()
	id, err := Save(ctx, database, res, DefaultRunConfig())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	s, err := database.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.TotalTrades != 1 || !near(s.FinalBalance, res.State.Balance.Balance) || s.AgentName != "scripted" {
		t.Fatalf("session=%+v", s)
	}
	if !strings.Contains(s.Config, "strategy: lorentzian") {
		t.Fatalf("config not stored:\n%s", s.Config)
	}
	trades, err := database.GetTrades(ctx, id)
	if err != nil || len(trades) != 1 || trades[0].EntryReason != "entry" || trades[0].ExitReason != "end of test" {
		t.Fatalf("trades=%+v err=%v", trades, err)
	}
	points, err := database.GetEquity(ctx, id)
	if err != nil || len(points) != 3 {
		t.Fatalf("points=%d err=%v", len(points), err)
	}
}
