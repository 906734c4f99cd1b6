package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	ts := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	trades := []Trade{
		{Time: ts, Price: 21000.25, Qty: 1, Account: "FW079", Tag: "START_BUY"},
		{Time: ts, Price: 21000.5, Qty: 1, Account: "FW079", Tag: "LADDER_BUY"},
		{Time: ts, Price: 21003, Qty: -2, Account: "FW079", Tag: "GAIN_FLATTEN"},
		{Time: ts, Price: 20990, Qty: -1, Account: "FW077", Tag: "STOP"},
	}

	got := Summarize(trades)
	require.Len(t, got, 2)

	open := got[0]
	assert.Equal(t, "FW077", open.Account)
	assert.False(t, open.Flat())
	assert.Equal(t, int64(-1), open.Net)
	assert.Equal(t, int64(1), open.Sold)
	assert.Equal(t, "-10", open.MarkToMarket(21000).String())

	closed := got[1]
	assert.Equal(t, "FW079", closed.Account)
	assert.True(t, closed.Flat())
	assert.Equal(t, 3, closed.Fills)
	assert.Equal(t, int64(2), closed.Bought)
	assert.Equal(t, int64(2), closed.Sold)
	assert.Equal(t, "5.25", closed.Cash.String())
	assert.Equal(t, map[string]int{"START_BUY": 1, "LADDER_BUY": 1, "GAIN_FLATTEN": 1}, closed.Tags)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}
