package indicators

import "backtest-core/internal/market"

// FeatureCount is the width of a feature vector.
const FeatureCount = 5

// Vector is one bar's feature tuple.
type Vector [FeatureCount]float64

// BankConfig sets indicator lengths for the classifier's feature set.
type BankConfig struct {
	RSIFast   int `yaml:"rsi_fast" default:"14" validate:"gt=0"`
	RSISlow   int `yaml:"rsi_slow" default:"9" validate:"gt=0"`
	WTChannel int `yaml:"wt_channel" default:"10" validate:"gt=0"`
	WTAverage int `yaml:"wt_average" default:"21" validate:"gt=0"`
	CCI       int `yaml:"cci" default:"20" validate:"gt=0"`
	ADX       int `yaml:"adx" default:"20" validate:"gt=0"`
	TrendEMA  int `yaml:"trend_ema" default:"200" validate:"gt=0"`
}

// Features holds aligned indicator series for a candle window.
type Features struct {
	Close    []float64
	RSIFast  []float64
	Wave     []float64
	CCI      []float64
	ADX      []float64
	RSISlow  []float64
	TrendEMA []float64
}

// Bank computes the classifier's indicator set from scratch over a window.
// It holds no state between calls.
type Bank struct {
	cfg BankConfig
}

// NewBank returns a bank for cfg. Zero lengths fall back to the usual defaults.
func NewBank(cfg BankConfig) Bank {
	def := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	def(&cfg.RSIFast, 14)
	def(&cfg.RSISlow, 9)
	def(&cfg.WTChannel, 10)
	def(&cfg.WTAverage, 21)
	def(&cfg.CCI, 20)
	def(&cfg.ADX, 20)
	def(&cfg.TrendEMA, 200)
	return Bank{cfg: cfg}
}

// Compute derives every series over candles.
func (b Bank) Compute(candles []market.Candle) Features {
	closes := market.Closes(candles)
	return Features{
		Close:    closes,
		RSIFast:  RSI(closes, b.cfg.RSIFast),
		Wave:     WaveTrend(candles, b.cfg.WTChannel, b.cfg.WTAverage),
		CCI:      CCI(candles, b.cfg.CCI),
		ADX:      ADX(candles, b.cfg.ADX),
		RSISlow:  RSI(closes, b.cfg.RSISlow),
		TrendEMA: EMA(closes, b.cfg.TrendEMA),
	}
}

// Vector returns the feature tuple at bar i.
func (f Features) Vector(i int) Vector {
	return Vector{f.RSIFast[i], f.Wave[i], f.CCI[i], f.ADX[i], f.RSISlow[i]}
}

// FirstComplete is the first bar at which every series of the bank, the trend
// average included, is defined, or -1. Earlier bars are neither training rows
// nor kernel input.
func (f Features) FirstComplete() int {
	return FirstValid(f.RSIFast, f.Wave, f.CCI, f.ADX, f.RSISlow, f.TrendEMA)
}
