package og

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/time/rate"

	"venuetrader/internal/codec"
	"venuetrader/internal/obs"
	"venuetrader/internal/schema"
	"venuetrader/pkg/exception"
)

// DefaultWorker is the worker tag used when a request names none.
const DefaultWorker = "w"

// Sender delivers an envelope to the venue.
type Sender interface {
	Send(env schema.Envelope) error
}

// GatewayConfig controls order throttling.
type GatewayConfig struct {
	// OrdersPerSecond caps strategy adds and changes. Zero disables the cap.
	// Flatten, cancel and mass cancel are never throttled.
	OrdersPerSecond float64 `yaml:"orders_per_second"`
	Burst           int     `yaml:"burst"`
}

// OrderRequest is a signed-quantity order add.
type OrderRequest struct {
	Account string
	Product string
	Price   float64
	// Qty is signed: positive buys, negative sells.
	Qty    int64
	Worker string
	Tag    string
}

// Gateway builds order-management envelopes for every strategy and sends
// them through one trading session.
type Gateway struct {
	sender    Sender
	registry  *schema.Registry
	limiter   *rate.Limiter
	lifecycle *Lifecycle
	metrics   *obs.Metrics
	now       func() time.Time
}

// NewGateway creates a gateway. metrics may be nil.
func NewGateway(sender Sender, registry *schema.Registry, cfg GatewayConfig, metrics *obs.Metrics) *Gateway {
	limit := rate.Inf
	if cfg.OrdersPerSecond > 0 {
		limit = rate.Limit(cfg.OrdersPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, int(math.Ceil(cfg.OrdersPerSecond)))
	}
	return &Gateway{
		sender:    sender,
		registry:  registry,
		limiter:   rate.NewLimiter(limit, burst),
		lifecycle: NewLifecycle(),
		metrics:   metrics,
		now:       time.Now,
	}
}

// Lifecycle returns the tracker of orders this gateway submitted.
func (g *Gateway) Lifecycle() *Lifecycle {
	return g.lifecycle
}

// Add submits a throttled order add and returns its client id.
func (g *Gateway) Add(req OrderRequest) (string, error) {
	if !g.limiter.Allow() {
		return "", errors.Wrapf(exception.ErrOrderThrottled, "add %s %d@%v %s", req.Product, req.Qty, req.Price, req.Tag)
	}
	return g.add(req)
}

func (g *Gateway) add(req OrderRequest) (string, error) {
	if req.Account == "" || req.Product == "" {
		return "", errors.Wrapf(exception.ErrOrderInvalidRequest, "account: %q, product: %q", req.Account, req.Product)
	}
	if req.Qty == 0 {
		return "", exception.ErrOrderZeroQty
	}
	product, ok := g.registry.ProductByName(req.Product)
	if !ok {
		return "", errors.Wrap(exception.ErrOrderUnknownProduct, req.Product)
	}
	if req.Worker == "" {
		req.Worker = DefaultWorker
	}

	add := schema.OrderAdd{
		Account:  req.Account,
		Contract: product.Contract(),
		Side:     schema.SideOf(req.Qty),
		Qty:      abs(req.Qty),
		Price:    product.ToWire(req.Price),
		Prefix:   req.Worker,
		Tag:      req.Tag,
		ClientID: uuid.NewString(),
	}
	if _, err := g.lifecycle.ApplySubmit(add, g.now()); err != nil {
		return "", errors.Wrap(err, "track order")
	}
	if err := g.send(schema.MsgOrderAddRequest, codec.EncodeOrderAdd(nil, add)); err != nil {
		return "", err
	}

	g.metrics.IncOrder(req.Product, req.Tag)
	logs.Infof("og: order %s %s %d %s @ %v worker %s tag %s (%s)",
		add.Account, add.Side, add.Qty, req.Product, req.Price, add.Prefix, add.Tag, add.ClientID)
	return add.ClientID, nil
}

// Change amends a resting order in place. Quantity is taken as absolute.
func (g *Gateway) Change(orderNo, product string, price float64, qty int64, worker string) error {
	if orderNo == "" {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "empty order number")
	}
	p, ok := g.registry.ProductByName(product)
	if !ok {
		return errors.Wrap(exception.ErrOrderUnknownProduct, product)
	}
	if !g.limiter.Allow() {
		return errors.Wrapf(exception.ErrOrderThrottled, "change %s", orderNo)
	}
	if worker == "" {
		worker = DefaultWorker
	}

	change := schema.OrderChange{
		OrderNo: orderNo,
		Qty:     abs(qty),
		Price:   p.ToWire(price),
		Prefix:  worker,
	}
	if err := g.send(schema.MsgOrderChangeRequest, codec.EncodeOrderChange(nil, change)); err != nil {
		return err
	}
	logs.Infof("og: change %s to %d @ %v worker %s", orderNo, change.Qty, price, worker)
	return nil
}

// Cancel cancels one order by number.
func (g *Gateway) Cancel(orderNo string) error {
	if orderNo == "" {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "empty order number")
	}
	if err := g.send(schema.MsgOrderCancelRequest, codec.EncodeOrderCancel(nil, schema.OrderCancel{OrderNo: orderNo})); err != nil {
		return err
	}
	logs.Infof("og: cancel %s", orderNo)
	return nil
}

// MassCancel cancels every order, including GTC orders when cancelGTCs is set.
func (g *Gateway) MassCancel(cancelGTCs bool) error {
	if err := g.send(schema.MsgCancelAllOrdersRequest, codec.EncodeCancelAllOrders(nil, schema.CancelAllOrders{CancelGTCs: cancelGTCs})); err != nil {
		return err
	}
	logs.Infof("og: mass cancel sent (gtc: %t)", cancelGTCs)
	return nil
}

// Flatten cancels all orders, GTC included, then submits req to offset the
// position. It bypasses the throttle.
func (g *Gateway) Flatten(req OrderRequest) (string, error) {
	if err := g.MassCancel(true); err != nil {
		return "", errors.Wrap(err, "flatten")
	}
	return g.add(req)
}

// Submit sends an order add that bypasses the throttle. It is meant for
// risk-reducing orders such as shutdown and boot-time flattening.
func (g *Gateway) Submit(req OrderRequest) (string, error) {
	return g.add(req)
}

func (g *Gateway) send(t schema.MsgType, payload []byte) error {
	if err := g.sender.Send(schema.NewEnvelope(t, payload)); err != nil {
		return errors.Wrapf(err, "send %s", t)
	}
	return nil
}

// Route binds the gateway to one account, product and worker tag.
func (g *Gateway) Route(account, product, worker string) Route {
	return Route{gw: g, Account: account, Product: product, Worker: worker}
}

// Route is a gateway scoped to one strategy's account, product and worker.
type Route struct {
	gw      *Gateway
	Account string
	Product string
	Worker  string
}

// Order submits a signed-quantity order at price.
func (r Route) Order(price float64, qty int64, tag string) (string, error) {
	return r.gw.Add(OrderRequest{Account: r.Account, Product: r.Product, Price: price, Qty: qty, Worker: r.Worker, Tag: tag})
}

// OrderAs submits an order under a different worker tag.
func (r Route) OrderAs(worker string, price float64, qty int64, tag string) (string, error) {
	return r.gw.Add(OrderRequest{Account: r.Account, Product: r.Product, Price: price, Qty: qty, Worker: worker, Tag: tag})
}

// Flatten cancels all orders and submits qty at price.
func (r Route) Flatten(price float64, qty int64, tag string) (string, error) {
	return r.gw.Flatten(OrderRequest{Account: r.Account, Product: r.Product, Price: price, Qty: qty, Worker: r.Worker, Tag: tag})
}

// Change amends a resting order of this route's product.
func (r Route) Change(orderNo string, price float64, qty int64, worker string) error {
	return r.gw.Change(orderNo, r.Product, price, qty, worker)
}

// Cancel cancels one order.
func (r Route) Cancel(orderNo string) error {
	return r.gw.Cancel(orderNo)
}

// OrderNo resolves the venue order number of a submitted client id.
func (r Route) OrderNo(clientID string) (string, bool) {
	return r.gw.lifecycle.OrderNo(clientID)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
