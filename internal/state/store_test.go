package state

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuetrader/internal/schema"
)

var nq = schema.Contract{Exchange: schema.ExchangeCME, SecDesc: "NQU5", WhName: "NQU5"}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	reg := schema.NewRegistry()
	_, err := reg.AddProduct("NQU5", schema.ExchangeCME, 0.25, 100)
	require.NoError(t, err)
	return NewStore(reg)
}

func orderEvent(no string, side schema.Side, qty int64, price schema.Price) schema.OrderEvent {
	return schema.OrderEvent{OrderNo: no, Account: "FW077", Contract: nq, Side: side, Qty: qty, Price: price, Prefix: "w"}
}

func TestReplaceOrdersFullRefresh(t *testing.T) {
	s := newTestStore(t)

	s.ReplaceOrders(schema.ActiveOrders{Orders: []schema.OrderEvent{
		orderEvent("A", schema.SideBuy, 1, 2345000),
		orderEvent("B", schema.SideSell, 2, 2346000),
	}})
	require.Equal(t, 2, s.OrderCount())

	s.ReplaceOrders(schema.ActiveOrders{Orders: []schema.OrderEvent{
		orderEvent("A", schema.SideBuy, 1, 2345000),
	}})
	_, ok := s.Order("B")
	assert.False(t, ok)

	a, ok := s.Order("A")
	require.True(t, ok)
	assert.InDelta(t, 23450.0, a.Price, 1e-9)
	assert.Equal(t, int64(1), a.Signed())
	assert.Equal(t, uint64(2), s.OrderVersion())
}

func TestReplaceOrdersDropsZeroQty(t *testing.T) {
	s := newTestStore(t)
	s.ReplaceOrders(schema.ActiveOrders{Orders: []schema.OrderEvent{
		orderEvent("A", schema.SideBuy, 0, 2345000),
		orderEvent("B", schema.SideSell, 3, 2346000),
	}})

	orders := s.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "B", orders[0].OrderNo)
	assert.Equal(t, int64(-3), orders[0].Signed())
}

func TestOrderEventsAndFills(t *testing.T) {
	s := newTestStore(t)

	s.ApplyOrderEvent(orderEvent("A", schema.SideBuy, 3, 2345000))
	s.ApplyOrderEvent(orderEvent("B", schema.SideSell, 1, 2346000))
	require.Equal(t, 2, s.OrderCount())

	s.ApplyFill(schema.FillNotice{OrderNo: "A", Qty: 2})
	a, ok := s.Order("A")
	require.True(t, ok)
	assert.Equal(t, int64(1), a.Qty)

	s.ApplyFill(schema.FillNotice{OrderNo: "A", Qty: 1})
	_, ok = s.Order("A")
	assert.False(t, ok)

	s.RemoveOrders("B", "missing")
	assert.Zero(t, s.OrderCount())
}

func TestUpsertPositionsKeepsMissingKeys(t *testing.T) {
	s := newTestStore(t)
	es := schema.Contract{Exchange: schema.ExchangeCME, SecDesc: "ESU5"}

	assert.False(t, s.PositionsSeen())
	s.UpsertPositions(schema.Positions{Positions: []schema.Position{
		{Account: "FW077", Contract: nq, TotalPos: 2},
		{Account: "FW077", Contract: es, TotalPos: -1},
	}})
	assert.True(t, s.PositionsSeen())

	s.UpsertPositions(schema.Positions{Positions: []schema.Position{
		{Account: "FW077", Contract: nq, TotalPos: 0},
	}})

	assert.Equal(t, int64(0), s.Position(PositionKey{Account: "FW077", Exchange: schema.ExchangeCME, Product: "NQU5"}))
	assert.Equal(t, int64(-1), s.Position(PositionKey{Account: "FW077", Exchange: schema.ExchangeCME, Product: "ESU5"}))
	assert.Equal(t, int64(-1), s.NetPosition())

	open := s.OpenPositions()
	require.Len(t, open, 1)
	assert.Equal(t, "ESU5", open[0].Product)
	assert.False(t, s.Flat())
}

func TestApplyMarketUpdates(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

	s.ApplyMarketUpdates(schema.MarketUpdates{Updates: []schema.MarketUpdate{{
		Contract: nq,
		Trades: []schema.TradeUpdate{
			{Price: 2345000, Qty: 1},
			{Price: 2345500, Qty: 2},
			{Price: 2344750, Qty: 3},
			{Price: 2345250, Qty: 1},
		},
		Tob: schema.TobUpdate{BidPrice: 2345250, AskPrice: 2345500},
	}}}, now)

	m, ok := s.Market("NQU5")
	require.True(t, ok)
	assert.InDelta(t, 23452.50, m.Last, 1e-9)
	assert.InDelta(t, 23455.00, m.High, 1e-9)
	assert.InDelta(t, 23447.50, m.Low, 1e-9)
	assert.InDelta(t, 23452.50, m.Bid, 1e-9)
	assert.InDelta(t, 23455.00, m.Ask, 1e-9)
	assert.Equal(t, int64(7), m.Volume)
	assert.True(t, m.HasQuote())

	s.ApplyMarketUpdates(schema.MarketUpdates{Updates: []schema.MarketUpdate{{
		Contract: nq,
		Trades:   []schema.TradeUpdate{{Price: 2345100, Qty: 4}},
	}}}, now.Add(time.Second))

	m, _ = s.Market("NQU5")
	assert.InDelta(t, 23451.00, m.High, 1e-9)
	assert.InDelta(t, 23451.00, m.Low, 1e-9)
	assert.InDelta(t, 23455.00, m.SessionHigh, 1e-9)
	assert.InDelta(t, 23447.50, m.SessionLow, 1e-9)
	assert.InDelta(t, 23452.50, m.Bid, 1e-9, "quote without tob is kept")
	assert.Equal(t, int64(11), m.Volume)
}

func TestConcurrentReadsSeeWholeUpdates(t *testing.T) {
	s := newTestStore(t)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= 2000; i++ {
			px := schema.Price(i * 100)
			s.ApplyMarketUpdates(schema.MarketUpdates{Updates: []schema.MarketUpdate{{
				Contract: nq,
				Trades:   []schema.TradeUpdate{{Price: px, Qty: 1}},
				Tob:      schema.TobUpdate{BidPrice: px, AskPrice: px + 25},
			}}}, time.Now())
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
		m, ok := s.Market("NQU5")
		if !ok {
			continue
		}
		require.InDelta(t, m.Last, m.Bid, 1e-9)
		require.InDelta(t, m.Bid+0.25, m.Ask, 1e-9)
	}
}

func TestChangedClosesOnMutation(t *testing.T) {
	s := newTestStore(t)
	ch := s.Changed()

	select {
	case <-ch:
		t.Fatal("changed before mutation")
	default:
	}

	s.ReplaceOrders(schema.ActiveOrders{})
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("changed not closed")
	}
	assert.NotEqual(t, ch, s.Changed())
}

func TestSnapshotWriteRead(t *testing.T) {
	s := newTestStore(t)
	s.UpsertPositions(schema.Positions{Positions: []schema.Position{
		{Account: "FW078", Contract: nq, TotalPos: 1},
		{Account: "FW077", Contract: nq, TotalPos: -2},
	}})
	s.ApplyOrderEvent(orderEvent("A", schema.SideBuy, 1, 2345000))

	path := filepath.Join(t.TempDir(), "state", "snapshot.json")
	snap := s.Snapshot()
	require.NoError(t, WriteSnapshot(path, snap))

	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
	require.Len(t, loaded.Positions, 2)
	assert.Equal(t, "FW077", loaded.Positions[0].Account)
	assert.Equal(t, PositionKey{Account: "FW077", Exchange: schema.ExchangeCME, Product: "NQU5"}, loaded.Positions[0].Key())
}

func TestExitPrice(t *testing.T) {
	store := newTestStore(t)
	_, ok := store.ExitPrice("NQU5", 1)
	assert.False(t, ok)

	store.ApplyMarketUpdates(schema.MarketUpdates{Updates: []schema.MarketUpdate{{
		Contract: nq,
		Trades:   []schema.TradeUpdate{{Price: 2345050, Qty: 1}},
		Tob:      schema.TobUpdate{BidPrice: 2345000},
	}}}, time.Now())

	px, ok := store.ExitPrice("NQU5", 1)
	require.True(t, ok)
	assert.Equal(t, 23450.0, px)

	px, ok = store.ExitPrice("NQU5", -1)
	require.True(t, ok)
	assert.Equal(t, 23450.5, px, "no ask falls back to last")
}

func TestLastPrice(t *testing.T) {
	store := newTestStore(t)
	_, ok := store.LastPrice("NQU5")
	assert.False(t, ok)

	store.ApplyMarketUpdates(schema.MarketUpdates{Updates: []schema.MarketUpdate{{
		Contract: nq,
		Trades:   []schema.TradeUpdate{{Price: 2345050, Qty: 1}},
	}}}, time.Now())

	last, ok := store.LastPrice("NQU5")
	require.True(t, ok)
	assert.Equal(t, 23450.5, last)
}
