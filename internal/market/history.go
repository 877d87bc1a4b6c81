package market

// History is a fixed-capacity ring of candles. Pushing past capacity evicts
// the oldest bar.
type History struct {
	buf   []Candle
	start int
	size  int
}

// NewHistory allocates a ring holding at most capacity candles.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]Candle, capacity)}
}

// Push appends a candle, overwriting the oldest one when full.
func (h *History) Push(c Candle) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = c
		h.size++
		return
	}
	h.buf[h.start] = c
	h.start = (h.start + 1) % len(h.buf)
}

// Len is the number of retained candles.
func (h *History) Len() int { return h.size }

// Cap is the fixed capacity.
func (h *History) Cap() int { return len(h.buf) }

// At returns the i-th retained candle, 0 being the oldest. Negative indexes
// count from the newest (-1 is the newest).
func (h *History) At(i int) (Candle, bool) {
	if i < 0 {
		i += h.size
	}
	if i < 0 || i >= h.size {
		return Candle{}, false
	}
	return h.buf[(h.start+i)%len(h.buf)], true
}

// Last returns the newest candle.
func (h *History) Last() (Candle, bool) {
	return h.At(-1)
}

// Candles copies the retained bars oldest first.
func (h *History) Candles() []Candle {
	out := make([]Candle, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Tail copies the newest n bars oldest first.
func (h *History) Tail(n int) []Candle {
	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]Candle, n)
	offset := h.size - n
	for i := 0; i < n; i++ {
		out[i] = h.buf[(h.start+offset+i)%len(h.buf)]
	}
	return out
}
