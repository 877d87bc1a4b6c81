package main

import (
	"errors"
	"log"
	"time"

	"backtest-core/internal/market"
	"backtest-core/internal/order"
	"backtest-core/internal/strategy"
)

// dry_run_demo walks the virtual broker through a few order flows.
// It does not read candle files or touch the database.
//
// Usage:
//   go run ./scripts/dry_run_demo
//
// It will:
//   1) BUY 0.01 lot of gold at 2000 and close it at the same price (spread + commission cost).
//   2) BUY with a stop and target, then replay a bar that runs through the target.
//   3) Flip the position through the executor with an opposite signal.
//   4) Try an oversized BUY to trigger the margin rejection.

func main() {
	log.Println("=== DRY-RUN demo starting ===")

	broker, err := order.NewVirtualBroker(order.DefaultBrokerConfig())
	if err != nil {
		log.Fatalf("broker: %v", err)
	}
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	symbol := "XAUUSD"

	log.Printf("[SCENARIO 1] BUY then immediate close on %s", symbol)
	ticket, err := broker.OpenPosition(order.OpenRequest{
		Direction: strategy.Buy, Volume: 0.01, Price: 2000, Symbol: symbol, Time: now,
	})
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	trade, err := broker.ClosePosition(ticket, 2000, now, "manual")
	if err != nil {
		log.Fatalf("close: %v", err)
	}
	log.Printf("ticket %d: entry %.2f exit %.2f net %.2f", trade.Ticket, trade.EntryPrice, trade.ExitPrice, trade.NetProfit)

	log.Printf("[SCENARIO 2] BUY with SL/TP, bar runs through the target")
	if _, err := broker.OpenPosition(order.OpenRequest{
		Direction: strategy.Buy, Volume: 0.1, Price: 2000, StopLoss: 1990, TakeProfit: 2010, Symbol: symbol, Time: now,
	}); err != nil {
		log.Fatalf("open: %v", err)
	}
	for _, t := range broker.MarkToMarket(market.Candle{
		Symbol: symbol, Timestamp: now.Add(time.Minute), Open: 2000, High: 2012, Low: 1995, Close: 2008,
	}) {
		log.Printf("ticket %d closed by %s at %.2f, net %.2f", t.Ticket, t.ExitReason, t.ExitPrice, t.NetProfit)
	}

	log.Printf("[SCENARIO 3] Executor flip")
	exec := order.NewExecutor(broker)
	for _, sig := range []*strategy.Signal{
		{Agent: "demo", Symbol: symbol, Direction: strategy.Buy, Volume: 0.01, Magic: 7, Price: 2008},
		{Agent: "demo", Symbol: symbol, Direction: strategy.Sell, Volume: 0.01, Magic: 7, Price: 2011},
	} {
		res, err := exec.Execute(sig, now.Add(2*time.Minute), 0)
		if err != nil {
			log.Fatalf("execute: %v", err)
		}
		log.Printf("%s opened ticket %d, flipped %d", sig.Direction, res.Ticket, len(res.Flipped))
	}

	log.Printf("[SCENARIO 4] Oversized BUY to trigger insufficient margin")
	_, err = broker.OpenPosition(order.OpenRequest{
		Direction: strategy.Buy, Volume: 100, Price: 2000, Symbol: symbol, Time: now,
	})
	if errors.Is(err, order.ErrInsufficientMargin) {
		log.Printf("rejected as expected: %v", err)
	} else {
		log.Printf("unexpected result: %v", err)
	}

	st := broker.State()
	log.Println("[SCENARIO DONE] Final DRY-RUN state:")
	log.Printf("balance %.2f equity %.2f used margin %.4f free margin %.2f max dd %.2f (%.4f%%)",
		st.Balance.Balance, st.Equity, st.UsedMargin, st.FreeMargin, st.MaxDrawdown, st.MaxDrawdownPercent)
	for _, p := range st.Open {
		log.Printf("open #%d %s %.2f @ %.2f", p.Ticket, p.Direction, p.Volume, p.EntryPrice)
	}

	log.Println("=== DRY-RUN demo finished ===")
}
