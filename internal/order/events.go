package order

import (
	"backtest-core/internal/events"
)

// EmitPositionOpened publishes an open on the bus (hook point for metrics/log listeners).
func EmitPositionOpened(bus *events.Bus, p Position) {
	if bus == nil {
		return
	}
	bus.Publish(events.EventPositionOpened, events.PositionOpened{
		Ticket:     p.Ticket,
		Magic:      p.Magic,
		Symbol:     p.Symbol,
		Side:       string(p.Direction),
		Volume:     p.Volume,
		EntryPrice: p.EntryPrice,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		Commission: p.Commission,
		Margin:     p.Margin,
		Reason:     p.Reason,
		Time:       p.OpenTime,
	})
}

// EmitPositionClosed publishes a close on the bus.
func EmitPositionClosed(bus *events.Bus, t ClosedTrade) {
	if bus == nil {
		return
	}
	bus.Publish(events.EventPositionClosed, events.PositionClosed{
		Ticket:      t.Ticket,
		Magic:       t.Magic,
		Symbol:      t.Symbol,
		Side:        string(t.Direction),
		Volume:      t.Volume,
		EntryPrice:  t.EntryPrice,
		ExitPrice:   t.ExitPrice,
		GrossProfit: t.GrossProfit,
		NetProfit:   t.NetProfit,
		ExitReason:  t.ExitReason,
		Duration:    t.Duration,
		Time:        t.CloseTime,
	})
}
