package indicators

import (
	"math"

	"backtest-core/internal/market"
)

// HLC3 is the typical price (high+low+close)/3.
func HLC3(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = (c.High + c.Low + c.Close) / 3
	}
	return out
}

// CCI is the Commodity Channel Index over the typical price. A window with zero
// mean deviation reads 0.
func CCI(candles []market.Candle, period int) []float64 {
	tp := HLC3(candles)
	mean := SMA(tp, period)
	out := nanSeries(len(candles))
	for i := range tp {
		if math.IsNaN(mean[i]) {
			continue
		}
		dev := 0.0
		for j := i - period + 1; j <= i; j++ {
			dev += math.Abs(tp[j] - mean[i])
		}
		dev /= float64(period)
		if dev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - mean[i]) / (0.015 * dev)
	}
	return out
}

// WaveTrend returns the WT1 line: an EMA(average) of the channel index built
// from EMA(channel) of the typical price and of its absolute deviation.
func WaveTrend(candles []market.Candle, channel, average int) []float64 {
	ap := HLC3(candles)
	esa := EMA(ap, channel)
	absDev := nanSeries(len(ap))
	for i := range ap {
		if !math.IsNaN(esa[i]) {
			absDev[i] = math.Abs(ap[i] - esa[i])
		}
	}
	d := EMA(absDev, channel)
	ci := nanSeries(len(ap))
	for i := range ap {
		if math.IsNaN(esa[i]) || math.IsNaN(d[i]) {
			continue
		}
		if d[i] == 0 {
			ci[i] = 0
			continue
		}
		ci[i] = (ap[i] - esa[i]) / (0.015 * d[i])
	}
	return EMA(ci, average)
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|); index 0 is NaN.
func TrueRange(candles []market.Candle) []float64 {
	out := nanSeries(len(candles))
	for i := 1; i < len(candles); i++ {
		c, prev := candles[i], candles[i-1].Close
		out[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
	}
	return out
}

// ATR is the Wilder-smoothed true range.
func ATR(candles []market.Candle, period int) []float64 {
	return RMA(TrueRange(candles), period)
}

// ADX is Wilder's Average Directional Index. Bars where both directional
// indicators are zero contribute a DX of 0.
func ADX(candles []market.Candle, period int) []float64 {
	n := len(candles)
	plusDM := nanSeries(n)
	minusDM := nanSeries(n)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		plusDM[i], minusDM[i] = 0, 0
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	atr := ATR(candles, period)
	smPlus := RMA(plusDM, period)
	smMinus := RMA(minusDM, period)

	dx := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) || math.IsNaN(smPlus[i]) || math.IsNaN(smMinus[i]) {
			continue
		}
		var pdi, mdi float64
		if atr[i] != 0 {
			pdi = 100 * smPlus[i] / atr[i]
			mdi = 100 * smMinus[i] / atr[i]
		}
		if sum := pdi + mdi; sum != 0 {
			dx[i] = 100 * math.Abs(pdi-mdi) / sum
		} else {
			dx[i] = 0
		}
	}
	return RMA(dx, period)
}
