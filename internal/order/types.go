package order

import (
	"errors"
	"time"

	"backtest-core/internal/balance"
	"backtest-core/internal/strategy"
)

var (
	// ErrInsufficientMargin rejects an open whose margin plus commission exceeds free margin.
	ErrInsufficientMargin = errors.New("insufficient margin")
	// ErrUnknownTicket is returned when closing a ticket that is not open.
	ErrUnknownTicket = errors.New("unknown ticket")
	// ErrInvalidDirection rejects signals and orders without a BUY/SELL side.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrInvalidVolume rejects non-positive volumes.
	ErrInvalidVolume = errors.New("invalid volume")
	// ErrInvalidPrice rejects non-positive reference prices.
	ErrInvalidPrice = errors.New("invalid price")
)

// BrokerConfig describes the simulated account and instrument.
// Spread, commission and stop level default to zero when omitted.
type BrokerConfig struct {
	InitialBalance   float64 `yaml:"initial_balance" default:"10000" validate:"gt=0"`
	Spread           float64 `yaml:"spread" validate:"gte=0"`
	Digits           int     `yaml:"digits" default:"2" validate:"gte=0,lte=8"`
	Leverage         float64 `yaml:"leverage" default:"100" validate:"gt=0"`
	ContractSize     float64 `yaml:"contract_size" default:"100" validate:"gt=0"`
	CommissionPerLot float64 `yaml:"commission_per_lot" validate:"gte=0"`
	StopLevelPoints  int     `yaml:"stop_level_points" validate:"gte=0"`
}

// DefaultBrokerConfig is a gold CFD account: 10000 balance, 0.15 spread, 2 digits,
// 1:100 leverage, 100 oz contracts and 3 per lot commission.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		InitialBalance:   10000,
		Spread:           0.15,
		Digits:           2,
		Leverage:         100,
		ContractSize:     100,
		CommissionPerLot: 3,
	}
}

// OpenRequest is what the broker needs to open a position.
type OpenRequest struct {
	Direction  strategy.Direction
	Volume     float64
	Price      float64 // reference (bid) price
	StopLoss   float64
	TakeProfit float64
	Symbol     string
	Magic      int
	Reason     string
	Time       time.Time
}

// Position is an open trade owned by the broker.
type Position struct {
	Ticket     int64
	Magic      int
	Symbol     string
	Direction  strategy.Direction
	EntryPrice float64
	Volume     float64
	StopLoss   float64
	TakeProfit float64
	OpenTime   time.Time
	Commission float64
	Margin     float64
	Reason     string
}

// ClosedTrade is a closed position. Records are append-only.
type ClosedTrade struct {
	Position
	ExitPrice   float64
	CloseTime   time.Time
	GrossProfit float64
	NetProfit   float64
	ExitReason  string
	Duration    time.Duration
}

// State is the broker's observable state at a point in time.
type State struct {
	balance.Balance
	InitialBalance float64
	Open           []Position
	Closed         []ClosedTrade
}
