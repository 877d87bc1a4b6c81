package indicators

import "math"

// RSI computes Wilder's Relative Strength Index. Values before index period are NaN.
// A window without losses reads 100, a flat window reads 50.
func RSI(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period+1 {
		return out
	}

	gains := nanSeries(len(values))
	losses := nanSeries(len(values))
	for i := 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gains[i] = math.Max(change, 0)
		losses[i] = math.Max(-change, 0)
	}

	avgGain := RMA(gains, period)
	avgLoss := RMA(losses, period)
	for i := range values {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		switch {
		case l == 0 && g == 0:
			out[i] = 50
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}
