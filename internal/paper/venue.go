package paper

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"venuetrader/internal/history"
	"venuetrader/internal/schema"
	"venuetrader/internal/state"
	"venuetrader/pkg/exception"
)

// Config controls order matching.
type Config struct {
	// StopWorkers rest as stop orders and trigger when the last trade
	// reaches their price. Other workers rest as limit orders.
	StopWorkers []string `yaml:"stop_workers"`
	// SpreadTicks is the simulated ask above the last trade.
	SpreadTicks int `yaml:"spread_ticks"`
}

// DefaultConfig treats the protective-order worker as a stop.
func DefaultConfig() Config {
	return Config{StopWorkers: []string{"D"}, SpreadTicks: 1}
}

// Fill is one simulated execution.
type Fill struct {
	Time    time.Time
	OrderNo string
	Account string
	Product string
	Price   float64
	Qty     int64
	Tag     string
}

// Venue simulates the venue against historical trades. Market data,
// resting orders and positions are kept in a state.Store, so strategies read
// the same book they read live. A Venue is driven by one goroutine.
type Venue struct {
	cfg      Config
	registry *schema.Registry
	store    *state.Store

	seq       int
	clientIDs map[string]string
	positions map[state.PositionKey]int64
	cash      map[string]float64
	fills     []Fill
	now       time.Time
}

// NewVenue creates a venue over registry.
func NewVenue(cfg Config, registry *schema.Registry) (*Venue, error) {
	if registry == nil {
		return nil, exception.ErrNilInstance
	}
	if cfg.SpreadTicks < 0 {
		return nil, errors.Wrapf(exception.ErrConfigInvalid, "paper spread ticks %d", cfg.SpreadTicks)
	}
	return &Venue{
		cfg:       cfg,
		registry:  registry,
		store:     state.NewStore(registry),
		clientIDs: make(map[string]string),
		positions: make(map[state.PositionKey]int64),
		cash:      make(map[string]float64),
	}, nil
}

// Store returns the book strategies read.
func (v *Venue) Store() *state.Store {
	return v.store
}

// Open publishes a flat positions snapshot for accounts in product.
func (v *Venue) Open(product string, accounts ...string) error {
	p, ok := v.registry.ProductByName(product)
	if !ok {
		return errors.Wrap(exception.ErrOrderUnknownProduct, product)
	}
	snap := schema.Positions{}
	for _, account := range accounts {
		key := state.PositionKey{Account: account, Exchange: p.Exchange, Product: product}
		v.positions[key] = 0
		snap.Positions = append(snap.Positions, schema.Position{Account: account, Contract: p.Contract()})
	}
	v.store.UpsertPositions(snap)
	return nil
}

// Now returns the time of the latest trade.
func (v *Venue) Now() time.Time {
	return v.now
}

// Feed applies one historical trade and matches resting orders against it.
func (v *Venue) Feed(product string, t history.Tick) error {
	p, ok := v.registry.ProductByName(product)
	if !ok {
		return errors.Wrap(exception.ErrOrderUnknownProduct, product)
	}
	v.now = t.Time
	ask := t.Price + p.ToWire(float64(v.cfg.SpreadTicks)*p.TickSize)
	v.store.ApplyMarketUpdates(schema.MarketUpdates{Updates: []schema.MarketUpdate{{
		Contract: p.Contract(),
		Trades:   []schema.TradeUpdate{{Price: t.Price, Qty: t.Qty}},
		Tob:      schema.TobUpdate{BidPrice: t.Price, AskPrice: ask},
	}}}, t.Time)
	v.match(v.store.Orders())
	return nil
}

// Fills returns the executions so far.
func (v *Venue) Fills() []Fill {
	return slices.Clone(v.fills)
}

// Route binds order entry to one account, product and worker.
func (v *Venue) Route(account, product, worker string) *Route {
	return &Route{v: v, account: account, product: product, worker: worker}
}

func (v *Venue) add(account, product, worker string, price float64, qty int64, tag string) (string, error) {
	if qty == 0 {
		return "", exception.ErrOrderZeroQty
	}
	p, ok := v.registry.ProductByName(product)
	if !ok {
		return "", errors.Wrap(exception.ErrOrderUnknownProduct, product)
	}
	v.seq++
	orderNo := fmt.Sprintf("P%06d", v.seq)
	clientID := fmt.Sprintf("paper-%d", v.seq)
	v.clientIDs[clientID] = orderNo

	v.store.ApplyOrderEvent(schema.OrderEvent{
		OrderNo:  orderNo,
		Account:  account,
		Contract: p.Contract(),
		Side:     schema.SideOf(qty),
		Qty:      abs(qty),
		Price:    p.ToWire(price),
		Prefix:   worker,
		Tag:      tag,
		ClientID: clientID,
	})
	if o, ok := v.store.Order(orderNo); ok {
		v.match([]state.Order{o})
	}
	return clientID, nil
}

func (v *Venue) change(orderNo string, price float64, qty int64, worker string) error {
	o, ok := v.store.Order(orderNo)
	if !ok {
		return errors.Wrap(exception.ErrOrderNotTracked, orderNo)
	}
	p, ok := v.registry.ProductByName(o.Product)
	if !ok {
		return errors.Wrap(exception.ErrOrderUnknownProduct, o.Product)
	}
	v.store.ApplyOrderEvent(schema.OrderEvent{
		OrderNo:  orderNo,
		Account:  o.Account,
		Contract: p.Contract(),
		Side:     o.Side,
		Qty:      abs(qty),
		Price:    p.ToWire(price),
		Prefix:   worker,
		Tag:      o.Tag,
	})
	if o, ok := v.store.Order(orderNo); ok {
		v.match([]state.Order{o})
	}
	return nil
}

func (v *Venue) massCancel() {
	orders := v.store.Orders()
	nos := make([]string, 0, len(orders))
	for _, o := range orders {
		nos = append(nos, o.OrderNo)
	}
	v.store.RemoveOrders(nos...)
}

func (v *Venue) isStop(worker string) bool {
	return slices.Contains(v.cfg.StopWorkers, worker)
}

// match fills every order the last trade reaches. Limits fill when the
// trade is at or through their price, stops when it has reached theirs.
func (v *Venue) match(orders []state.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderNo < orders[j].OrderNo })
	for _, o := range orders {
		m, ok := v.store.Market(o.Product)
		if !ok || !m.HasTrade() {
			continue
		}
		buy := o.Side == schema.SideBuy
		var hit bool
		switch {
		case v.isStop(o.Worker) && buy:
			hit = m.Last >= o.Price
		case v.isStop(o.Worker):
			hit = m.Last <= o.Price
		case buy:
			hit = m.Last <= o.Price
		default:
			hit = m.Last >= o.Price
		}
		if hit {
			v.fill(o)
		}
	}
}

func (v *Venue) fill(o state.Order) {
	qty := o.Signed()
	key := state.PositionKey{Account: o.Account, Exchange: o.Exchange, Product: o.Product}
	v.positions[key] += qty
	v.cash[o.Account] -= o.Price * float64(qty)
	v.fills = append(v.fills, Fill{
		Time:    v.now,
		OrderNo: o.OrderNo,
		Account: o.Account,
		Product: o.Product,
		Price:   o.Price,
		Qty:     qty,
		Tag:     o.Tag,
	})
	v.store.RemoveOrders(o.OrderNo)

	p, _ := v.registry.ProductByName(o.Product)
	v.store.UpsertPositions(schema.Positions{Positions: []schema.Position{
		{Account: o.Account, Contract: p.Contract(), TotalPos: v.positions[key]},
	}})
	logs.Infof("paper: fill %s %s %d @ %v %s", o.Account, o.Product, qty, o.Price, o.Tag)
}

// PnL returns the realized and open profit of account in price points.
func (v *Venue) PnL(account string) float64 {
	pnl := v.cash[account]
	for key, qty := range v.positions {
		if key.Account != account || qty == 0 {
			continue
		}
		if last, ok := v.store.LastPrice(key.Product); ok {
			pnl += last * float64(qty)
		}
	}
	return pnl
}

// Route is the paper counterpart of og.Route.
type Route struct {
	v       *Venue
	account string
	product string
	worker  string
}

func (r *Route) Order(price float64, qty int64, tag string) (string, error) {
	return r.v.add(r.account, r.product, r.worker, price, qty, tag)
}

func (r *Route) OrderAs(worker string, price float64, qty int64, tag string) (string, error) {
	return r.v.add(r.account, r.product, worker, price, qty, tag)
}

// Flatten cancels every resting order before sending qty, like the venue's
// cancel-all.
func (r *Route) Flatten(price float64, qty int64, tag string) (string, error) {
	r.v.massCancel()
	return r.v.add(r.account, r.product, r.worker, price, qty, tag)
}

func (r *Route) Change(orderNo string, price float64, qty int64, worker string) error {
	return r.v.change(orderNo, price, qty, worker)
}

func (r *Route) OrderNo(clientID string) (string, bool) {
	no, ok := r.v.clientIDs[clientID]
	return no, ok
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
