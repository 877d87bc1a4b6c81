package indicators

import "math"

// RationalQuadratic evaluates a rational-quadratic kernel regression of y at
// index i over the samples j in [max(0, i-window), i]:
//
//	w(j) = (1 + (i-j)^2 / (2*r*h^2))^(-r)
//
// NaN samples are ignored. A zero total weight yields 0.
func RationalQuadratic(y []float64, i, window int, h, r float64) float64 {
	if i < 0 || i >= len(y) || h <= 0 || r <= 0 {
		return 0
	}
	start := i - window
	if start < 0 {
		start = 0
	}
	num, den := 0.0, 0.0
	for j := start; j <= i; j++ {
		if math.IsNaN(y[j]) {
			continue
		}
		d := float64(i - j)
		w := math.Pow(1+d*d/(2*r*h*h), -r)
		num += w * y[j]
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}
