package state

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"venuetrader/internal/schema"
)

// Order is a resting order as last reported by the venue.
type Order struct {
	OrderNo  string          `json:"orderNo"`
	Account  string          `json:"account"`
	Product  string          `json:"product"`
	Exchange schema.Exchange `json:"exchange"`
	Side     schema.Side     `json:"side"`
	Qty      int64           `json:"qty"`
	Price    float64         `json:"price"`
	Worker   string          `json:"worker"`
	Tag      string          `json:"tag"`
}

// Signed returns the remaining quantity signed by side.
func (o Order) Signed() int64 {
	return o.Side.Signed(o.Qty)
}

// PositionKey identifies a position.
type PositionKey struct {
	Account  string
	Exchange schema.Exchange
	Product  string
}

// Market is the latest market view of one product.
type Market struct {
	Product string
	Last    float64
	Bid     float64
	Ask     float64
	// High and Low span the trades of the latest update.
	High float64
	Low  float64
	// SessionHigh and SessionLow only ever widen.
	SessionHigh float64
	SessionLow  float64
	Volume      int64
	Updated     time.Time
}

// HasTrade reports whether a trade has been seen.
func (m Market) HasTrade() bool {
	return m.Last != 0
}

// HasQuote reports whether both sides of the book are known.
func (m Market) HasQuote() bool {
	return m.Bid != 0 && m.Ask != 0
}

// Spread returns ask minus bid.
func (m Market) Spread() float64 {
	return m.Ask - m.Bid
}

type (
	orderMap    = map[string]Order
	positionMap = map[PositionKey]int64
	marketMap   = map[string]Market
)

// Store owns the order, position and market maps. Writers are serialized
// and publish a fresh copy of the touched map, so readers always see a
// complete version without locking.
type Store struct {
	registry *schema.Registry

	mu        sync.Mutex
	orders    atomic.Pointer[orderMap]
	positions atomic.Pointer[positionMap]
	markets   atomic.Pointer[marketMap]
	changed   atomic.Pointer[chan struct{}]

	orderVersion    atomic.Uint64
	positionVersion atomic.Uint64
	positionSeen    atomic.Bool
}

// NewStore creates an empty store. registry scales wire prices; products
// missing from it keep unscaled prices.
func NewStore(registry *schema.Registry) *Store {
	if registry == nil {
		registry = schema.NewRegistry()
	}
	s := &Store{registry: registry}
	s.orders.Store(&orderMap{})
	s.positions.Store(&positionMap{})
	s.markets.Store(&marketMap{})
	ch := make(chan struct{})
	s.changed.Store(&ch)
	return s
}

func (s *Store) product(name string) schema.Product {
	if p, ok := s.registry.ProductByName(name); ok {
		return p
	}
	return schema.Product{Name: name, PriceDivisor: 1}
}

// notify wakes every waiter of Changed. Caller holds s.mu.
func (s *Store) notify() {
	next := make(chan struct{})
	prev := s.changed.Swap(&next)
	close(*prev)
}

// Changed returns a channel closed on the next order or position mutation.
func (s *Store) Changed() <-chan struct{} {
	return *s.changed.Load()
}

func (s *Store) toOrder(ev schema.OrderEvent) Order {
	p := s.product(ev.Contract.SecDesc)
	return Order{
		OrderNo:  ev.OrderNo,
		Account:  ev.Account,
		Product:  ev.Contract.SecDesc,
		Exchange: ev.Contract.Exchange,
		Side:     ev.Side,
		Qty:      ev.Qty,
		Price:    p.FromWire(ev.Price),
		Worker:   ev.Prefix,
		Tag:      ev.Tag,
	}
}

// ReplaceOrders swaps the order map for the snapshot contents. Orders with
// zero remaining quantity are dropped.
func (s *Store) ReplaceOrders(snapshot schema.ActiveOrders) {
	next := make(orderMap, len(snapshot.Orders))
	for _, ev := range snapshot.Orders {
		if ev.Qty == 0 {
			continue
		}
		next[ev.OrderNo] = s.toOrder(ev)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders.Store(&next)
	s.orderVersion.Add(1)
	s.notify()
}

// ApplyOrderEvent upserts an order from an add or change event.
func (s *Store) ApplyOrderEvent(ev schema.OrderEvent) {
	if ev.OrderNo == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneMap(*s.orders.Load())
	if ev.Qty == 0 {
		delete(next, ev.OrderNo)
	} else {
		next[ev.OrderNo] = s.toOrder(ev)
	}
	s.orders.Store(&next)
	s.orderVersion.Add(1)
	s.notify()
}

// RemoveOrders drops orders reported canceled.
func (s *Store) RemoveOrders(orderNos ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := *s.orders.Load()
	next := cloneMap(current)
	for _, no := range orderNos {
		delete(next, no)
	}
	if len(next) == len(current) {
		return
	}
	s.orders.Store(&next)
	s.orderVersion.Add(1)
	s.notify()
}

// ApplyFill reduces the remaining quantity of the filled order, dropping it
// when fully filled. Positions are left to the next positions snapshot.
func (s *Store) ApplyFill(fill schema.FillNotice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := *s.orders.Load()
	o, ok := current[fill.OrderNo]
	if !ok {
		return
	}
	next := cloneMap(current)
	o.Qty -= fill.Qty
	if o.Qty <= 0 {
		delete(next, fill.OrderNo)
	} else {
		next[fill.OrderNo] = o
	}
	s.orders.Store(&next)
	s.orderVersion.Add(1)
	s.notify()
}

// UpsertPositions sets the total position of every reported key. Keys
// missing from the snapshot keep their previous value.
func (s *Store) UpsertPositions(snapshot schema.Positions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneMap(*s.positions.Load())
	for _, p := range snapshot.Positions {
		key := PositionKey{Account: p.Account, Exchange: p.Contract.Exchange, Product: p.Contract.SecDesc}
		if prev, ok := next[key]; !ok || prev != p.TotalPos {
			logs.Infof("store: position %s, %s, %s: %d", key.Account, key.Exchange, key.Product, p.TotalPos)
		}
		next[key] = p.TotalPos
	}
	s.positions.Store(&next)
	s.positionVersion.Add(1)
	s.positionSeen.Store(true)
	s.notify()
}

// ApplyMarketUpdates folds one market update notification into the market
// map. Each product's fields change together in one published version.
func (s *Store) ApplyMarketUpdates(msg schema.MarketUpdates, now time.Time) {
	if len(msg.Updates) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneMap(*s.markets.Load())
	for _, u := range msg.Updates {
		name := u.Contract.SecDesc
		p := s.product(name)
		m := next[name]
		m.Product = name

		if len(u.Trades) > 0 {
			high, low := p.FromWire(u.Trades[0].Price), p.FromWire(u.Trades[0].Price)
			var volume int64
			for _, tr := range u.Trades {
				px := p.FromWire(tr.Price)
				high = max(high, px)
				low = min(low, px)
				volume += tr.Qty
			}
			m.Last = p.FromWire(u.Trades[len(u.Trades)-1].Price)
			m.High, m.Low = high, low
			m.Volume += volume
			if m.SessionHigh == 0 || high > m.SessionHigh {
				m.SessionHigh = high
			}
			if m.SessionLow == 0 || low < m.SessionLow {
				m.SessionLow = low
			}
		}
		if u.Tob.BidPrice != 0 {
			m.Bid = p.FromWire(u.Tob.BidPrice)
		}
		if u.Tob.AskPrice != 0 {
			m.Ask = p.FromWire(u.Tob.AskPrice)
		}
		m.Updated = now
		next[name] = m
	}
	s.markets.Store(&next)
}

// Orders returns the tracked orders sorted by order number.
func (s *Store) Orders() []Order {
	current := *s.orders.Load()
	out := make([]Order, 0, len(current))
	for _, o := range current {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNo < out[j].OrderNo })
	return out
}

// Order returns one tracked order.
func (s *Store) Order(orderNo string) (Order, bool) {
	o, ok := (*s.orders.Load())[orderNo]
	return o, ok
}

// OrderCount returns the number of tracked orders.
func (s *Store) OrderCount() int {
	return len(*s.orders.Load())
}

// OrdersBy returns tracked orders of account and product carrying worker.
// An empty worker matches every order.
func (s *Store) OrdersBy(account, product, worker string) []Order {
	var out []Order
	for _, o := range s.Orders() {
		if o.Account != account || o.Product != product {
			continue
		}
		if worker != "" && o.Worker != worker {
			continue
		}
		out = append(out, o)
	}
	return out
}

// OrderVersion increments on every order map change.
func (s *Store) OrderVersion() uint64 {
	return s.orderVersion.Load()
}

// Position returns the total position for key.
func (s *Store) Position(key PositionKey) int64 {
	return (*s.positions.Load())[key]
}

// PositionKnown reports whether key has been reported at least once.
func (s *Store) PositionKnown(key PositionKey) bool {
	_, ok := (*s.positions.Load())[key]
	return ok
}

// PositionVersion increments on every positions snapshot.
func (s *Store) PositionVersion() uint64 {
	return s.positionVersion.Load()
}

// PositionsSeen reports whether any positions snapshot has arrived.
func (s *Store) PositionsSeen() bool {
	return s.positionSeen.Load()
}

// OpenPositions returns every non-zero position, sorted by key.
func (s *Store) OpenPositions() []PositionEntry {
	var out []PositionEntry
	for key, qty := range *s.positions.Load() {
		if qty != 0 {
			out = append(out, PositionEntry{Account: key.Account, Exchange: key.Exchange, Product: key.Product, Qty: qty})
		}
	}
	sortEntries(out)
	return out
}

// NetPosition returns the sum of all tracked positions.
func (s *Store) NetPosition() int64 {
	var net int64
	for _, qty := range *s.positions.Load() {
		net += qty
	}
	return net
}

// LastPrice returns the last trade price of product.
func (s *Store) LastPrice(product string) (float64, bool) {
	m, ok := s.Market(product)
	if !ok || !m.HasTrade() {
		return 0, false
	}
	return m.Last, true
}

// Flat reports whether no orders rest and every position is zero.
func (s *Store) Flat() bool {
	return s.OrderCount() == 0 && len(s.OpenPositions()) == 0
}

// Market returns the market view of product.
func (s *Store) Market(product string) (Market, bool) {
	m, ok := (*s.markets.Load())[product]
	return m, ok
}

// ExitPrice returns the opposing best price for closing qty: the bid for a
// long, the ask for a short, falling back to the last trade.
func (s *Store) ExitPrice(product string, qty int64) (float64, bool) {
	m, ok := s.Market(product)
	if !ok {
		return 0, false
	}
	price := m.Ask
	if qty > 0 {
		price = m.Bid
	}
	if price == 0 {
		price = m.Last
	}
	return price, price != 0
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
