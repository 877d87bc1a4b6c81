package market

import (
	"math"
	"math/rand"
	"time"
)

// Synthetic generates deterministic random-walk candles for local runs and tests.
type Synthetic struct {
	Symbol     string
	Start      time.Time
	StartPrice float64
	Step       float64 // max absolute move per bar
	Drift      float64 // added to every bar's move
	Interval   time.Duration
	Seed       int64
}

// Generate returns n candles. The same settings always produce the same bars.
func (s Synthetic) Generate(n int) []Candle {
	symbol := s.Symbol
	if symbol == "" {
		symbol = "XAUUSD"
	}
	price := s.StartPrice
	if price == 0 {
		price = 100.0
	}
	step := s.Step
	if step == 0 {
		step = 0.5
	}
	interval := s.Interval
	if interval == 0 {
		interval = time.Minute
	}
	start := s.Start
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	rng := rand.New(rand.NewSource(s.Seed))
	out := make([]Candle, n)
	for i := 0; i < n; i++ {
		open := price
		move := (rng.Float64()*2-1)*step + s.Drift
		closePrice := math.Max(open+move, step)
		wick := rng.Float64() * step / 2
		out[i] = Candle{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * interval),
			Open:      open,
			High:      math.Max(open, closePrice) + wick,
			Low:       math.Max(math.Min(open, closePrice)-wick, 0),
			Close:     closePrice,
			Volume:    1 + rng.Float64()*100,
		}
		price = closePrice
	}
	return out
}

// Resample aggregates consecutive candles into bars of the given interval,
// aligned to the interval boundary. Bars are stamped with their bucket start.
func Resample(candles []Candle, interval time.Duration) []Candle {
	if interval <= 0 || len(candles) == 0 {
		return nil
	}
	var out []Candle
	for _, c := range candles {
		bucket := c.Timestamp.Truncate(interval)
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(bucket) {
			last := &out[n-1]
			last.High = math.Max(last.High, c.High)
			last.Low = math.Min(last.Low, c.Low)
			last.Close = c.Close
			last.Volume += c.Volume
			continue
		}
		c.Timestamp = bucket
		out = append(out, c)
	}
	return out
}

// StampAtLastBar moves resampled bars from their bucket start to the start of
// their last base bar, so a stream merge that delivers higher bars stamped at or
// before the current base bar only reveals a higher bar once it is complete.
func StampAtLastBar(candles []Candle, interval, base time.Duration) []Candle {
	shift := interval - base
	out := make([]Candle, len(candles))
	for i, c := range candles {
		c.Timestamp = c.Timestamp.Add(shift)
		out[i] = c
	}
	return out
}
