package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuetrader/internal/history"
	"venuetrader/internal/schema"
	"venuetrader/internal/signal"
	"venuetrader/internal/state"
)

func trendingHistory(day time.Time, from, step float64, minutes int) history.Static {
	var ticks []history.Tick
	for i := 0; i < minutes; i++ {
		ts := time.Date(day.Year(), day.Month(), day.Day(), 8, 30+i, 5, 0, cdt)
		ticks = append(ticks, history.Tick{Time: ts, Price: schema.Price((from + step*float64(i)) * 100), Qty: 1})
	}
	return history.Static{testContract.Name: ticks}
}

func newTestMomentum(t *testing.T, src history.Source) (*Momentum, *fakeBook, *fakeOrders) {
	t.Helper()
	cfg := DefaultMomentumConfig()
	cfg.Contract = testContract
	cfg.Signal = signal.Config{Divisor: 2, VoteCount: 4, FinalCount: 2}

	book := newFakeBook()
	orders := newFakeOrders()
	m, err := NewMomentum(cfg, cdt, book, orders, src)
	require.NoError(t, err)
	return m, book, orders
}

func at(hour, minute, sec int) time.Time {
	return time.Date(2025, 7, 15, hour, minute, sec, 0, cdt)
}

func quote(last, bid, ask float64) state.Market {
	return state.Market{Last: last, Bid: bid, Ask: ask, High: last, Low: last, SessionHigh: last, SessionLow: last}
}

// enteredLong warms up a rising market and enters long at 08:32:30.
func enteredLong(t *testing.T) (*Momentum, *fakeBook, *fakeOrders) {
	t.Helper()
	m, book, orders := newTestMomentum(t, trendingHistory(at(0, 0, 0).AddDate(0, 0, -1), 20000, 4, 15))
	require.NoError(t, m.Warmup(context.Background()))
	require.Equal(t, signal.Long, m.Signal())

	book.setMarket(quote(20100, 20099.75, 20100.25))
	require.NoError(t, m.Step(context.Background(), at(8, 31, 0)))
	assert.Empty(t, orders.calls)

	require.NoError(t, m.Step(context.Background(), at(8, 32, 30)))
	require.Len(t, orders.calls, 1)
	assert.Equal(t, orderCall{kind: "order", price: 20100.25, qty: 1, tag: TagStartBuy}, orders.calls[0])
	assert.EqualValues(t, 1, m.Position())
	assert.Equal(t, 20401.5, m.gain)
	assert.Equal(t, 20029.75, m.loss)
	return m, book, orders
}

func TestMomentumWarmupSkipsGapsAndRepeats(t *testing.T) {
	day := time.Date(2025, 7, 14, 0, 0, 0, 0, cdt)
	src := history.Static{testContract.Name: {
		{Time: day.Add(7 * time.Hour), Price: 1_000_000},
		{Time: day.Add(8*time.Hour + 30*time.Minute), Price: 2_000_000},
		{Time: day.Add(8*time.Hour + 31*time.Minute), Price: 2_000_400},
		{Time: day.Add(8*time.Hour + 31*time.Minute + 30*time.Second), Price: 2_100_000},
		{Time: day.Add(8*time.Hour + 36*time.Minute), Price: 2_001_200},
		{Time: day.Add(16 * time.Hour), Price: 3_000_000},
	}}

	cfg := DefaultMomentumConfig()
	cfg.Contract = testContract
	cfg.Signal = signal.Config{Divisor: 2, VoteCount: 100, FinalCount: 1}
	m, err := NewMomentum(cfg, cdt, newFakeBook(), newFakeOrders(), src)
	require.NoError(t, err)

	require.NoError(t, m.Warmup(context.Background()))
	assert.Equal(t, 2, m.engine.Total())
	assert.Equal(t, signal.Flat, m.Signal())
}

func TestMomentumWaitsForMarketHours(t *testing.T) {
	m, book, orders := newTestMomentum(t, trendingHistory(at(0, 0, 0).AddDate(0, 0, -1), 20000, 4, 15))
	require.NoError(t, m.Warmup(context.Background()))
	book.setMarket(quote(20100, 20099.75, 20100.25))

	require.NoError(t, m.Step(context.Background(), at(7, 0, 0)))
	require.NoError(t, m.Step(context.Background(), at(8, 10, 0)))
	assert.Empty(t, orders.calls)
	assert.False(t, m.inMarket)
}

func TestMomentumGainClearsLock(t *testing.T) {
	m, book, orders := enteredLong(t)

	book.setMarket(quote(20402, 20402, 20402.25))
	require.NoError(t, m.Step(context.Background(), at(8, 33, 0)))

	assert.Equal(t, orderCall{kind: "flatten", price: 20401.5, qty: -1, tag: TagGainFlatten}, orders.last())
	assert.Zero(t, m.Position())
	assert.Equal(t, signal.Flat, m.engine.Locked())
}

func TestMomentumSingleLotLossKeepsLock(t *testing.T) {
	m, book, orders := enteredLong(t)

	book.setMarket(quote(20029, 20029, 20029.5))
	require.NoError(t, m.Step(context.Background(), at(8, 33, 0)))

	assert.Equal(t, orderCall{kind: "flatten", price: 20029.75, qty: -1, tag: TagLossFlatten}, orders.last())
	assert.Zero(t, m.Position())
	assert.Equal(t, signal.Long, m.engine.Locked())

	// locked: the same signal does not enter again
	book.setMarket(quote(20100, 20099.75, 20100.25))
	require.NoError(t, m.Step(context.Background(), at(8, 35, 0)))
	assert.Len(t, orders.calls, 2)
}

func TestMomentumLadderAddsAboveWater(t *testing.T) {
	m, book, orders := enteredLong(t)

	book.setMarket(quote(20101, 20100.75, 20101.25))
	require.NoError(t, m.Step(context.Background(), at(8, 48, 0)))

	assert.Equal(t, orderCall{kind: "order", price: 20101.25, qty: 1, tag: "ADD2_BUY"}, orders.last())
	assert.EqualValues(t, 2, m.Position())
	assert.Equal(t, []float64{20100.25, 20101}, m.entries)

	// same checkpoint: no second add
	require.NoError(t, m.Step(context.Background(), at(8, 49, 30)))
	assert.Len(t, orders.calls, 2)
}

func TestMomentumLadderFlattensUnderwater(t *testing.T) {
	m, book, orders := enteredLong(t)

	book.setMarket(quote(20099, 20098.75, 20099.25))
	require.NoError(t, m.Step(context.Background(), at(8, 48, 0)))

	assert.Equal(t, orderCall{kind: "flatten", price: 20098.75, qty: -1, tag: "PNL2_FLATTEN"}, orders.last())
	assert.Zero(t, m.Position())
	assert.Nil(t, m.entries)
	assert.Equal(t, signal.Long, m.engine.Locked())
}

func TestMomentumMarketCloseFinishes(t *testing.T) {
	m, book, orders := enteredLong(t)

	book.setMarket(quote(20110, 20109.75, 20110.25))
	err := m.Step(context.Background(), at(15, 0, 0))
	assert.ErrorIs(t, err, ErrFinished)
	assert.Equal(t, orderCall{kind: "flatten", price: 20110, qty: -1, tag: TagMarketFlatten}, orders.last())
	assert.Zero(t, m.Position())
	assert.Equal(t, signal.Flat, m.engine.Locked())
}

func TestMomentumWithoutQuoteDoesNothing(t *testing.T) {
	m, _, orders := newTestMomentum(t, nil)
	require.NoError(t, m.Warmup(context.Background()))
	require.NoError(t, m.Step(context.Background(), at(9, 0, 0)))
	assert.Empty(t, orders.calls)
}
