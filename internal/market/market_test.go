package market

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func seq(closes ...float64) []Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{Symbol: "T", Timestamp: base.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for _, c := range seq(1, 2, 3, 4, 5) {
		h.Push(c)
	}
	if h.Len() != 3 || h.Cap() != 3 {
		t.Fatalf("len=%d cap=%d, expected 3/3", h.Len(), h.Cap())
	}
	got := Closes(h.Candles())
	want := []float64{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candles=%v, expected %v", got, want)
		}
	}
	if last, ok := h.Last(); !ok || last.Close != 5 {
		t.Fatalf("last=%v ok=%v, expected 5", last.Close, ok)
	}
	if first, _ := h.At(0); first.Close != 3 {
		t.Fatalf("At(0)=%v, expected 3", first.Close)
	}
	if _, ok := h.At(3); ok {
		t.Fatalf("At(3) should be out of range")
	}
	tail := Closes(h.Tail(2))
	if len(tail) != 2 || tail[0] != 4 || tail[1] != 5 {
		t.Fatalf("tail=%v, expected [4 5]", tail)
	}
}

func TestEnsureSorted(t *testing.T) {
	c := seq(1, 2, 3)
	c = append(c, c[2]) // duplicate timestamp is fine
	if err := EnsureSorted(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c[1], c[2] = c[2], c[1]
	if err := EnsureSorted(c); !errors.Is(err, ErrUnsorted) {
		t.Fatalf("err=%v, expected ErrUnsorted", err)
	}
}

func TestReadCSV(t *testing.T) {
	input := "time,open,high,low,close,volume\n" +
		"2024-01-01T00:00:00Z,1,2,0.5,1.5,10\n" +
		"1704067260,1.5,2.5,1,2,11\n"
	candles, err := ReadCSV(strings.NewReader(input), "XAUUSD")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len=%d, expected 2", len(candles))
	}
	if candles[1].Timestamp.Sub(candles[0].Timestamp) != time.Minute {
		t.Fatalf("gap=%v, expected 1m", candles[1].Timestamp.Sub(candles[0].Timestamp))
	}
	if candles[0].Symbol != "XAUUSD" || candles[1].Volume != 11 {
		t.Fatalf("unexpected candle %+v", candles[1])
	}

	_, err = ReadCSV(strings.NewReader("1704067260,1,1,1,1\n1704067200,1,1,1,1\n"), "X")
	if !errors.Is(err, ErrUnsorted) {
		t.Fatalf("err=%v, expected ErrUnsorted", err)
	}
}

func TestParseTimeframe(t *testing.T) {
	cases := map[string]Timeframe{"M15": M15, "15m": M15, "h4": H4, "1D": D1}
	for in, want := range cases {
		got, err := ParseTimeframe(in)
		if err != nil || got != want {
			t.Fatalf("ParseTimeframe(%q)=%v,%v expected %v", in, got, err, want)
		}
	}
	if _, err := ParseTimeframe("7m"); err == nil {
		t.Fatalf("expected error for 7m")
	}
	if M15.Duration() != 15*time.Minute {
		t.Fatalf("M15 duration=%v", M15.Duration())
	}
}

func TestSyntheticDeterministicAndResample(t *testing.T) {
	gen := Synthetic{Seed: 7, StartPrice: 2000, Step: 1}
	a, b := gen.Generate(60), gen.Generate(60)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs between runs", i)
		}
		if a[i].High < a[i].Open || a[i].High < a[i].Close || a[i].Low > a[i].Open || a[i].Low > a[i].Close {
			t.Fatalf("bar %d has inconsistent range %+v", i, a[i])
		}
	}
	htf := Resample(a, 15*time.Minute)
	if len(htf) != 4 {
		t.Fatalf("resampled len=%d, expected 4", len(htf))
	}
	if htf[0].Open != a[0].Open || htf[0].Close != a[14].Close {
		t.Fatalf("resampled bar does not span its bucket")
	}
	stamped := StampAtLastBar(htf, 15*time.Minute, time.Minute)
	if !stamped[0].Timestamp.Equal(a[14].Timestamp) || !htf[0].Timestamp.Equal(a[0].Timestamp) {
		t.Fatalf("stamped=%v, expected %v with the input untouched", stamped[0].Timestamp, a[14].Timestamp)
	}
}
