package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuetrader/internal/history"
	"venuetrader/internal/schema"
	"venuetrader/internal/state"
	"venuetrader/pkg/exception"
)

func newTestTrail(t *testing.T, src history.Source) (*Trail, *fakeBook, *fakeOrders) {
	t.Helper()
	cfg := DefaultTrailConfig()
	cfg.Contract = testContract
	cfg.BufferTicks = 4

	book := newFakeBook()
	orders := newFakeOrders()
	tr, err := NewTrail(cfg, book, orders, src)
	require.NoError(t, err)
	tr.now = func() time.Time { return at(10, 0, 0) }
	return tr, book, orders
}

func TestTrailWarmupDirection(t *testing.T) {
	testCases := []struct {
		desc  string
		first schema.Price
		last  schema.Price
		dir   int64
	}{
		{desc: "falling", first: 2_000_000, last: 1_999_000, dir: -1},
		{desc: "rising", first: 2_000_000, last: 2_001_000, dir: 1},
		{desc: "unchanged defaults long", first: 2_000_000, last: 2_000_000, dir: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			src := history.Static{testContract.Name: {
				{Time: at(9, 30, 0), Price: 3_000_000},
				{Time: at(9, 46, 0), Price: tc.first},
				{Time: at(9, 50, 0), Price: 2_000_500},
				{Time: at(9, 59, 0), Price: tc.last},
			}}
			tr, _, _ := newTestTrail(t, src)
			tr.dir = 0
			require.NoError(t, tr.Warmup(context.Background()))
			assert.Equal(t, tc.dir, tr.Direction())
		})
	}
}

func TestTrailWarmupNeedsTwoTicks(t *testing.T) {
	src := history.Static{testContract.Name: {
		{Time: at(9, 0, 0), Price: 2_000_000},
		{Time: at(9, 55, 0), Price: 2_000_000},
	}}
	tr, _, _ := newTestTrail(t, src)
	assert.ErrorIs(t, tr.Warmup(context.Background()), exception.ErrHistoryEmpty)
}

func TestTrailLifecycle(t *testing.T) {
	tr, book, orders := newTestTrail(t, nil)
	key := tr.cfg.Key()
	ctx := context.Background()

	book.setMarket(state.Market{Last: 20000, Bid: 20000, Ask: 20000.25, High: 20001, Low: 19999})

	// no positions snapshot yet
	require.NoError(t, tr.Step(ctx, at(10, 0, 0)))
	assert.Empty(t, orders.calls)

	book.setPosition(key, 0)
	require.NoError(t, tr.Step(ctx, at(10, 0, 1)))
	require.Len(t, orders.calls, 2)
	assert.Equal(t, orderCall{kind: "order", price: 20000.25, qty: 1, tag: TagStartBuy}, orders.calls[0])
	assert.Equal(t, orderCall{kind: "order", worker: "D", price: 19952, qty: -2, tag: TagTrailStop}, orders.calls[1])
	assert.Equal(t, 19951.0, tr.Level())

	// same snapshot version: nothing to do
	require.NoError(t, tr.Step(ctx, at(10, 0, 2)))
	assert.Len(t, orders.calls, 2)

	// protective order acknowledged, market makes a new high
	book.orders = []state.Order{{OrderNo: "O1", Account: "FW079", Product: "NQU5", Qty: 2, Price: 19952, Worker: "D"}}
	book.market.High = 20101
	book.setPosition(key, 1)
	require.NoError(t, tr.Step(ctx, at(10, 0, 3)))
	require.Len(t, orders.calls, 3)
	assert.Equal(t, orderCall{kind: "change", orderNo: "O1", worker: "D", price: 20051.75, qty: 2}, orders.calls[2])

	// lower high: the amended order is not loosened
	book.market.High = 20050
	book.setPosition(key, 1)
	require.NoError(t, tr.Step(ctx, at(10, 0, 4)))
	assert.Len(t, orders.calls, 3)

	// protective order filled and reversed the position
	book.setPosition(key, -1)
	book.market.Low = 19999
	require.NoError(t, tr.Step(ctx, at(10, 0, 5)))
	assert.EqualValues(t, -1, tr.Position())
	assert.EqualValues(t, -1, tr.Direction())
	require.Len(t, orders.calls, 4)
	assert.Equal(t, orderCall{kind: "order", worker: "D", price: 20048, qty: 2, tag: TagTrailStop}, orders.calls[3])

	// spread blows out: flatten at last
	book.market.Bid, book.market.Ask = 19990, 20010
	book.setPosition(key, -1)
	require.NoError(t, tr.Step(ctx, at(10, 0, 6)))
	require.Len(t, orders.calls, 5)
	assert.Equal(t, orderCall{kind: "flatten", price: 20000, qty: 1, tag: TagMarketFlatten}, orders.calls[4])
	assert.Zero(t, tr.Position())

	// still too wide: stay flat
	book.setPosition(key, 0)
	require.NoError(t, tr.Step(ctx, at(10, 0, 7)))
	assert.Len(t, orders.calls, 5)
}

func TestTrailPendingProtectiveIsNotResent(t *testing.T) {
	tr, book, orders := newTestTrail(t, nil)
	key := tr.cfg.Key()
	ctx := context.Background()
	tr.dir = -1

	book.setMarket(state.Market{Last: 20000, Bid: 20000, Ask: 20000.25, High: 20001, Low: 19999})
	book.setPosition(key, 0)
	require.NoError(t, tr.Step(ctx, at(10, 0, 0)))
	require.Len(t, orders.calls, 2)
	assert.Equal(t, orderCall{kind: "order", price: 20000, qty: -1, tag: TagStartSell}, orders.calls[0])
	assert.EqualValues(t, 2, orders.calls[1].qty)

	// not yet in the order snapshot, within grace
	book.market.Low = 19900
	book.setPosition(key, -1)
	require.NoError(t, tr.Step(ctx, at(10, 0, 1)))
	assert.Len(t, orders.calls, 2)

	// acknowledged by number before the snapshot lists it
	orders.orderNos["client-2"] = "O7"
	book.setPosition(key, -1)
	require.NoError(t, tr.Step(ctx, at(10, 0, 1)))
	require.Len(t, orders.calls, 3)
	assert.Equal(t, "change", orders.calls[2].kind)
	assert.Equal(t, "O7", orders.calls[2].orderNo)

	// grace expired without the order: submit again
	delete(orders.orderNos, "client-2")
	book.setPosition(key, -1)
	require.NoError(t, tr.Step(ctx, at(10, 0, 5)))
	require.Len(t, orders.calls, 4)
	assert.Equal(t, TagTrailStop, orders.calls[3].tag)
}
