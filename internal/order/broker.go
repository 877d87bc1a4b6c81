package order

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"backtest-core/internal/balance"
	"backtest-core/internal/market"
	"backtest-core/internal/risk"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/config"
)

// Exit reasons set by the broker.
const (
	ReasonFlip      = "flip"
	ReasonEndOfTest = "end of test"
)

// VirtualBroker simulates a margin account with bid/ask quotes, commission and
// broker stop levels. It owns the position table; nothing else mutates it.
type VirtualBroker struct {
	cfg     BrokerConfig
	point   float64
	stops   risk.StopLevel
	account *balance.Account

	positions  map[int64]*Position
	closed     []ClosedTrade
	nextTicket int64
	lastPrice  map[string]float64 // latest reference price per symbol
}

// NewVirtualBroker builds a broker. Zero fields with a default tag are filled in.
func NewVirtualBroker(cfg BrokerConfig) (*VirtualBroker, error) {
	if err := config.Normalize(&cfg); err != nil {
		return nil, fmt.Errorf("broker config: %w", err)
	}
	point := math.Pow10(-cfg.Digits)
	return &VirtualBroker{
		cfg:        cfg,
		point:      point,
		stops:      risk.StopLevel{Points: cfg.StopLevelPoints, Point: point, Spread: cfg.Spread},
		account:    balance.NewAccount(cfg.InitialBalance),
		positions:  make(map[int64]*Position),
		nextTicket: 1,
		lastPrice:  make(map[string]float64),
	}, nil
}

// Config returns the normalised configuration.
func (b *VirtualBroker) Config() BrokerConfig { return b.cfg }

// StopLevel returns the broker's minimum stop distance rule.
func (b *VirtualBroker) StopLevel() risk.StopLevel { return b.stops }

// Quote turns a reference price into bid (the price) and ask (price + spread).
func (b *VirtualBroker) Quote(price float64) (bid, ask float64) {
	return b.normalize(price), b.normalize(price + b.cfg.Spread)
}

// normalize rounds to the instrument's digits.
func (b *VirtualBroker) normalize(price float64) float64 {
	return decimal.NewFromFloat(price).Round(int32(b.cfg.Digits)).InexactFloat64()
}

// OpenPosition opens a position at the ask (BUY) or bid (SELL). Stops that do not
// keep the minimum distance from entry are disabled. When margin plus commission
// exceeds free margin the open is rejected with ErrInsufficientMargin, ticket 0
// and no state change.
func (b *VirtualBroker) OpenPosition(req OpenRequest) (int64, error) {
	if !req.Direction.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, req.Direction)
	}
	if req.Volume <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidVolume, req.Volume)
	}
	if req.Price <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, req.Price)
	}

	bid, ask := b.Quote(req.Price)
	entry := bid
	if req.Direction == strategy.Buy {
		entry = ask
	}

	sl, tp := 0.0, 0.0
	if req.StopLoss > 0 {
		sl = b.normalize(req.StopLoss)
	}
	if req.TakeProfit > 0 {
		tp = b.normalize(req.TakeProfit)
	}
	if !b.stops.ValidStopLoss(req.Direction, entry, sl) {
		sl = 0
	}
	if !b.stops.ValidTakeProfit(req.Direction, entry, tp) {
		tp = 0
	}

	margin := req.Volume * b.cfg.ContractSize * entry / b.cfg.Leverage
	commission := req.Volume * b.cfg.CommissionPerLot
	if err := b.account.Reserve(margin, commission); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInsufficientMargin, err)
	}

	ticket := b.nextTicket
	b.nextTicket++
	b.positions[ticket] = &Position{
		Ticket:     ticket,
		Magic:      req.Magic,
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		EntryPrice: entry,
		Volume:     req.Volume,
		StopLoss:   sl,
		TakeProfit: tp,
		OpenTime:   req.Time,
		Commission: commission,
		Margin:     margin,
		Reason:     req.Reason,
	}
	b.lastPrice[req.Symbol] = req.Price
	b.refresh()
	return ticket, nil
}

// ClosePosition closes a ticket at the bid (BUY) or ask (SELL) of price.
func (b *VirtualBroker) ClosePosition(ticket int64, price float64, ts time.Time, reason string) (ClosedTrade, error) {
	pos, ok := b.positions[ticket]
	if !ok {
		return ClosedTrade{}, fmt.Errorf("%w: %d", ErrUnknownTicket, ticket)
	}
	bid, ask := b.Quote(price)
	exit := bid
	if pos.Direction == strategy.Sell {
		exit = ask
	}
	b.lastPrice[pos.Symbol] = price
	trade := b.closeAt(pos, exit, ts, reason)
	b.refresh()
	return trade, nil
}

// CloseAll closes every open position on symbol at price.
func (b *VirtualBroker) CloseAll(symbol string, price float64, ts time.Time, reason string) ([]ClosedTrade, error) {
	var out []ClosedTrade
	for _, ticket := range b.tickets() {
		if b.positions[ticket].Symbol != symbol {
			continue
		}
		trade, err := b.ClosePosition(ticket, price, ts, reason)
		if err != nil {
			return out, err
		}
		out = append(out, trade)
	}
	return out, nil
}

// MarkToMarket walks the candle's tick path, closes positions whose stop or
// target is hit and revalues the account after every tick.
func (b *VirtualBroker) MarkToMarket(c market.Candle) []ClosedTrade {
	var closed []ClosedTrade
	for _, tick := range risk.TickPath(c.Open, c.High, c.Low, c.Close) {
		bid, ask := b.Quote(tick)
		b.lastPrice[c.Symbol] = tick
		// Snapshot tickets so closing during the scan cannot skip positions.
		for _, ticket := range b.tickets() {
			pos, ok := b.positions[ticket]
			if !ok || pos.Symbol != c.Symbol {
				continue
			}
			trig, price := risk.CheckTick(risk.Protected{
				Direction:  pos.Direction,
				StopLoss:   pos.StopLoss,
				TakeProfit: pos.TakeProfit,
			}, bid, ask)
			if trig == risk.TriggerNone {
				continue
			}
			closed = append(closed, b.closeAt(pos, price, c.Timestamp, string(trig)))
		}
		b.refresh()
	}
	return closed
}

func (b *VirtualBroker) closeAt(pos *Position, exit float64, ts time.Time, reason string) ClosedTrade {
	exit = b.normalize(exit)
	gross := (exit - pos.EntryPrice) * pos.Volume * b.cfg.ContractSize * pos.Direction.Sign()
	trade := ClosedTrade{
		Position:    *pos,
		ExitPrice:   exit,
		CloseTime:   ts,
		GrossProfit: gross,
		NetProfit:   gross - pos.Commission,
		ExitReason:  reason,
		Duration:    ts.Sub(pos.OpenTime),
	}
	b.account.Settle(gross, pos.Margin)
	delete(b.positions, pos.Ticket)
	b.closed = append(b.closed, trade)
	return trade
}

// refresh recomputes equity from the latest prices. BUY positions are valued on
// the bid, SELL positions on the ask. Floating P&L is summed in ticket order so
// replays are bit-identical.
func (b *VirtualBroker) refresh() {
	floating := 0.0
	for _, ticket := range b.tickets() {
		pos := b.positions[ticket]
		bid, ask := b.Quote(b.lastPrice[pos.Symbol])
		mark := bid
		if pos.Direction == strategy.Sell {
			mark = ask
		}
		floating += (mark - pos.EntryPrice) * pos.Volume * b.cfg.ContractSize * pos.Direction.Sign()
	}
	b.account.Mark(floating)
}

func (b *VirtualBroker) tickets() []int64 {
	out := make([]int64, 0, len(b.positions))
	for t := range b.positions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Positions returns open positions on symbol ordered by ticket. An empty symbol
// matches every position.
func (b *VirtualBroker) Positions(symbol string) []Position {
	var out []Position
	for _, t := range b.tickets() {
		if p := b.positions[t]; symbol == "" || p.Symbol == symbol {
			out = append(out, *p)
		}
	}
	return out
}

// Lookup returns a copy of an open position.
func (b *VirtualBroker) Lookup(ticket int64) (Position, bool) {
	p, ok := b.positions[ticket]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Balance returns the account figures.
func (b *VirtualBroker) Balance() balance.Balance {
	return b.account.Snapshot()
}

// State copies the full broker state.
func (b *VirtualBroker) State() State {
	return State{
		Balance:        b.account.Snapshot(),
		InitialBalance: b.account.Initial(),
		Open:           b.Positions(""),
		Closed:         append([]ClosedTrade(nil), b.closed...),
	}
}
