package strategy

import (
	"fmt"
	"time"

	"venuetrader/internal/schema"
	"venuetrader/internal/state"
)

var testContract = schema.Product{ID: 1, Name: "NQU5", Exchange: schema.ExchangeCME, TickSize: 0.25, PriceDivisor: 100}

var cdt = time.FixedZone("CDT", -5*3600)

type fakeBook struct {
	market    state.Market
	hasMarket bool
	positions map[state.PositionKey]int64
	version   uint64
	orders    []state.Order
}

func newFakeBook() *fakeBook {
	return &fakeBook{positions: make(map[state.PositionKey]int64)}
}

func (b *fakeBook) setMarket(m state.Market) {
	m.Product = testContract.Name
	b.market = m
	b.hasMarket = true
}

func (b *fakeBook) setPosition(key state.PositionKey, qty int64) {
	b.positions[key] = qty
	b.version++
}

func (b *fakeBook) Market(product string) (state.Market, bool) {
	if !b.hasMarket || product != b.market.Product {
		return state.Market{}, false
	}
	return b.market, true
}

func (b *fakeBook) Position(key state.PositionKey) int64 {
	return b.positions[key]
}

func (b *fakeBook) PositionVersion() uint64 {
	return b.version
}

func (b *fakeBook) OrdersBy(account, product, worker string) []state.Order {
	var out []state.Order
	for _, o := range b.orders {
		if o.Account == account && o.Product == product && (worker == "" || o.Worker == worker) {
			out = append(out, o)
		}
	}
	return out
}

type orderCall struct {
	kind    string
	orderNo string
	worker  string
	price   float64
	qty     int64
	tag     string
}

type fakeOrders struct {
	calls    []orderCall
	seq      int
	orderNos map[string]string
	err      error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orderNos: make(map[string]string)}
}

func (f *fakeOrders) record(c orderCall) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.seq++
	f.calls = append(f.calls, c)
	return fmt.Sprintf("client-%d", f.seq), nil
}

func (f *fakeOrders) Order(price float64, qty int64, tag string) (string, error) {
	return f.record(orderCall{kind: "order", price: price, qty: qty, tag: tag})
}

func (f *fakeOrders) OrderAs(worker string, price float64, qty int64, tag string) (string, error) {
	return f.record(orderCall{kind: "order", worker: worker, price: price, qty: qty, tag: tag})
}

func (f *fakeOrders) Flatten(price float64, qty int64, tag string) (string, error) {
	return f.record(orderCall{kind: "flatten", price: price, qty: qty, tag: tag})
}

func (f *fakeOrders) Change(orderNo string, price float64, qty int64, worker string) error {
	_, err := f.record(orderCall{kind: "change", orderNo: orderNo, worker: worker, price: price, qty: qty})
	return err
}

func (f *fakeOrders) OrderNo(clientID string) (string, bool) {
	no, ok := f.orderNos[clientID]
	return no, ok
}

func (f *fakeOrders) last() orderCall {
	if len(f.calls) == 0 {
		return orderCall{}
	}
	return f.calls[len(f.calls)-1]
}
