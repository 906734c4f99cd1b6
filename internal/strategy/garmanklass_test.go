package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGarmanKlass(t *testing.T) {
	vol, ok := GarmanKlass(OHLC{Open: 100, High: 102, Low: 99, Close: 101})
	require.True(t, ok)
	assert.InDelta(t, 0.01998201239379451, vol, 1e-12)
	assert.GreaterOrEqual(t, vol, 0.0)

	again, _ := GarmanKlass(OHLC{Open: 100, High: 102, Low: 99, Close: 101})
	assert.Equal(t, vol, again)
}

func TestGarmanKlassUndefined(t *testing.T) {
	testCases := []struct {
		desc string
		ohlc OHLC
	}{
		{desc: "no open", ohlc: OHLC{High: 102, Low: 99, Close: 101}},
		{desc: "no high", ohlc: OHLC{Open: 100, Low: 99, Close: 101}},
		{desc: "no low", ohlc: OHLC{Open: 100, High: 102, Close: 101}},
		{desc: "no close", ohlc: OHLC{Open: 100, High: 102, Low: 99}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, ok := GarmanKlass(tc.ohlc)
			assert.False(t, ok)
		})
	}
}

func TestGarmanKlassClampsNegativeVariance(t *testing.T) {
	// an open outside the high-low span
	vol, ok := GarmanKlass(OHLC{Open: 100, High: 100.1, Low: 100.05, Close: 100.1})
	require.True(t, ok)
	assert.Zero(t, vol)
}

func TestVolWindowRolls(t *testing.T) {
	w := newVolWindow(10 * time.Minute)
	base := time.Date(2025, 7, 15, 9, 0, 0, 0, cdt)

	_, rolled := w.observe(base.Add(time.Minute), 100, 0, 0)
	assert.False(t, rolled)
	w.observe(base.Add(3*time.Minute), 102, 102, 101)
	w.observe(base.Add(5*time.Minute), 99, 99.5, 99)
	w.observe(base.Add(9*time.Minute), 101, 0, 0)

	closed, rolled := w.observe(base.Add(10*time.Minute), 103, 0, 0)
	require.True(t, rolled)
	assert.Equal(t, OHLC{Open: 100, High: 102, Low: 99, Close: 101}, closed)
	assert.Equal(t, OHLC{Open: 103, High: 103, Low: 103, Close: 103}, w.current())

	_, rolled = w.observe(base.Add(10*time.Minute), 0, 0, 0)
	assert.False(t, rolled)
}
