package strategy

import (
	"math"
	"time"
)

// OHLC is one price window. A zero field means the price was never seen.
type OHLC struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Complete reports whether every price of the window is known.
func (w OHLC) Complete() bool {
	return w.Open > 0 && w.High > 0 && w.Low > 0 && w.Close > 0
}

// GarmanKlass returns ln(1 + sqrt(max(0, 0.5·ln(H/L)² − (2ln2−1)·ln(C/O)²))).
// ok is false when any price of w is missing.
func GarmanKlass(w OHLC) (vol float64, ok bool) {
	if !w.Complete() {
		return 0, false
	}
	hl := math.Log(w.High / w.Low)
	co := math.Log(w.Close / w.Open)
	v := 0.5*hl*hl - (2*math.Ln2-1)*co*co
	if v < 0 {
		v = 0
	}
	return math.Log1p(math.Sqrt(v)), true
}

// volWindow accumulates OHLC over fixed windows aligned to the window size.
type volWindow struct {
	size  time.Duration
	start time.Time
	ohlc  OHLC
}

func newVolWindow(size time.Duration) *volWindow {
	return &volWindow{size: size}
}

// observe folds a trade at price into the window containing t. When t falls
// past the current window, the closed window is returned with rolled true.
func (w *volWindow) observe(t time.Time, price, high, low float64) (closed OHLC, rolled bool) {
	if price <= 0 {
		return OHLC{}, false
	}
	if high <= 0 {
		high = price
	}
	if low <= 0 {
		low = price
	}

	start := t.Truncate(w.size)
	if w.start.IsZero() {
		w.start = start
	}
	if start.After(w.start) {
		closed, rolled = w.ohlc, true
		w.start = start
		w.ohlc = OHLC{}
	}

	if w.ohlc.Open == 0 {
		w.ohlc.Open = price
	}
	if high > w.ohlc.High {
		w.ohlc.High = high
	}
	if w.ohlc.Low == 0 || low < w.ohlc.Low {
		w.ohlc.Low = low
	}
	w.ohlc.Close = price
	return closed, rolled
}

func (w *volWindow) current() OHLC {
	return w.ohlc
}
