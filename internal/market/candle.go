package market

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsorted is returned when a candle stream goes backwards in time.
var ErrUnsorted = errors.New("candles not sorted by timestamp")

// Candle is one OHLCV bar. Values are copied, never shared.
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Bullish reports whether the bar closed above its open.
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Timeframe is a bar interval label such as "15m".
type Timeframe string

const (
	M1  Timeframe = "1m"
	M5  Timeframe = "5m"
	M15 Timeframe = "15m"
	M30 Timeframe = "30m"
	H1  Timeframe = "1h"
	H4  Timeframe = "4h"
	D1  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	M1:  time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	M30: 30 * time.Minute,
	H1:  time.Hour,
	H4:  4 * time.Hour,
	D1:  24 * time.Hour,
}

var timeframeAliases = map[string]Timeframe{
	"M1": M1, "M5": M5, "M15": M15, "M30": M30,
	"H1": H1, "H4": H4, "D1": D1,
}

// ParseTimeframe accepts both "15m" and the terminal style "M15".
func ParseTimeframe(s string) (Timeframe, error) {
	v := strings.TrimSpace(s)
	if tf, ok := timeframeAliases[strings.ToUpper(v)]; ok {
		return tf, nil
	}
	tf := Timeframe(strings.ToLower(v))
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the bar length, zero for unknown values.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// EnsureSorted checks that timestamps never decrease. Equal timestamps are allowed.
func EnsureSorted(candles []Candle) error {
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp.Before(candles[i-1].Timestamp) {
			return fmt.Errorf("%w: index %d (%s) before %s", ErrUnsorted, i,
				candles[i].Timestamp.Format(time.RFC3339), candles[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes extracts close prices.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
