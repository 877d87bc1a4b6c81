package indicators

import "math"

// SMA returns the simple moving average series. The first period-1 values are NaN,
// as is any window that contains a NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	sum := 0.0
	bad := 0
	for i, v := range values {
		if math.IsNaN(v) {
			bad++
		} else {
			sum += v
		}
		if i >= period {
			old := values[i-period]
			if math.IsNaN(old) {
				bad--
			} else {
				sum -= old
			}
		}
		if i >= period-1 && bad == 0 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average seeded with the SMA of the first
// period defined values. Leading NaNs are skipped.
func EMA(values []float64, period int) []float64 {
	return smooth(values, period, 2/float64(period+1))
}

// RMA is Wilder's moving average (alpha = 1/period), used by RSI, ATR and ADX.
func RMA(values []float64, period int) []float64 {
	return smooth(values, period, 1/float64(period))
}

func smooth(values []float64, period int, alpha float64) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	start := firstDefined(values)
	if start < 0 || len(values)-start < period {
		return out
	}
	seed := 0.0
	for i := start; i < start+period; i++ {
		seed += values[i]
	}
	prev := seed / float64(period)
	out[start+period-1] = prev
	for i := start + period; i < len(values); i++ {
		v := values[i]
		if !math.IsNaN(v) {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// Last returns the newest value of a series, NaN when empty.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// FirstValid returns the first index at which every series is defined, or -1.
// Series are expected to share one length.
func FirstValid(series ...[]float64) int {
	if len(series) == 0 {
		return -1
	}
	n := len(series[0])
	for i := 0; i < n; i++ {
		ok := true
		for _, s := range series {
			if i >= len(s) || math.IsNaN(s[i]) {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

func firstDefined(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
