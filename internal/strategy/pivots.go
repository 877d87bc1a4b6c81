package strategy

import (
	"time"

	"backtest-core/internal/market"
)

// PivotLevel is a confirmed swing extreme dated by its pivot bar.
type PivotLevel struct {
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
}

// confirmPivot checks the bar pivotLen positions before the newest against the
// centered window of 2*pivotLen+1 bars around it. A bar is a pivot high when its
// high is >= every high in the window, a pivot low when its low is <= every low.
func confirmPivot(bars []market.Candle, pivotLen int) (high, low *PivotLevel) {
	if pivotLen < 1 || len(bars) < 2*pivotLen+1 {
		return nil, nil
	}
	idx := len(bars) - 1 - pivotLen
	return pivotAt(bars, idx, pivotLen)
}

func pivotAt(bars []market.Candle, idx, pivotLen int) (high, low *PivotLevel) {
	if idx-pivotLen < 0 || idx+pivotLen >= len(bars) {
		return nil, nil
	}
	c := bars[idx]
	isHigh, isLow := true, true
	for j := idx - pivotLen; j <= idx+pivotLen; j++ {
		if bars[j].High > c.High {
			isHigh = false
		}
		if bars[j].Low < c.Low {
			isLow = false
		}
	}
	if isHigh {
		high = &PivotLevel{Price: c.High, Time: c.Timestamp}
	}
	if isLow {
		low = &PivotLevel{Price: c.Low, Time: c.Timestamp}
	}
	return high, low
}

// PivotHighs returns the indexes of every confirmed pivot high in bars.
func PivotHighs(bars []market.Candle, pivotLen int) []int {
	var out []int
	for i := range bars {
		if h, _ := pivotAt(bars, i, pivotLen); h != nil {
			out = append(out, i)
		}
	}
	return out
}

// PivotLows returns the indexes of every confirmed pivot low in bars.
func PivotLows(bars []market.Candle, pivotLen int) []int {
	var out []int
	for i := range bars {
		if _, l := pivotAt(bars, i, pivotLen); l != nil {
			out = append(out, i)
		}
	}
	return out
}

// pivotList keeps the newest max levels.
type pivotList struct {
	levels []PivotLevel
	max    int
}

func newPivotList(max int) pivotList {
	if max < 1 {
		max = 1
	}
	return pivotList{levels: make([]PivotLevel, 0, max), max: max}
}

func (p *pivotList) add(l PivotLevel) {
	if len(p.levels) == p.max {
		copy(p.levels, p.levels[1:])
		p.levels = p.levels[:len(p.levels)-1]
	}
	p.levels = append(p.levels, l)
}

func (p *pivotList) last() (PivotLevel, bool) {
	if len(p.levels) == 0 {
		return PivotLevel{}, false
	}
	return p.levels[len(p.levels)-1], true
}

// recent returns up to n levels, newest first.
func (p *pivotList) recent(n int) []PivotLevel {
	if n > len(p.levels) {
		n = len(p.levels)
	}
	out := make([]PivotLevel, 0, n)
	for i := len(p.levels) - 1; i >= len(p.levels)-n; i-- {
		out = append(out, p.levels[i])
	}
	return out
}

func (p *pivotList) len() int { return len(p.levels) }

func (p *pivotList) snapshot() []PivotLevel {
	return append([]PivotLevel(nil), p.levels...)
}
