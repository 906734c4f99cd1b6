package client

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"venuetrader/internal/bus"
	"venuetrader/internal/codec"
	"venuetrader/internal/obs"
	"venuetrader/internal/og"
	"venuetrader/internal/schema"
	"venuetrader/internal/session"
	"venuetrader/internal/state"
)

const (
	DefaultOrderPoll          = 50 * time.Millisecond
	DefaultPositionPollActive = 100 * time.Millisecond
	DefaultPositionPollIdle   = time.Minute
	DefaultSummaryInterval    = time.Minute

	BootFlattenTag = "FLATTEN_BOOT"
)

// Conn is the transport a client drives.
type Conn interface {
	Name() string
	Connect(ctx context.Context) error
	Connected() bool
	Send(env schema.Envelope) error
	Receive() (schema.Envelope, bool)
	Disconnect()
}

var _ Conn = (*session.Session)(nil)

// Credentials authenticate one session.
type Credentials struct {
	User        string
	Password    string
	AccessToken string
}

// Config controls both client roles. Trading-only and positions-only fields
// are ignored by the other role.
type Config struct {
	Credentials Credentials `yaml:"-"`
	Accounts    []string    `yaml:"accounts"`
	Products    []string    `yaml:"products"`

	OrderPoll         time.Duration `yaml:"order_poll"`
	SummaryInterval   time.Duration `yaml:"summary_interval"`
	MarketDataCadence time.Duration `yaml:"market_data_cadence"`

	PositionPollActive time.Duration `yaml:"position_poll_active"`
	PositionPollIdle   time.Duration `yaml:"position_poll_idle"`
	// BootFlatten flattens every position found in the first snapshot.
	BootFlatten bool `yaml:"boot_flatten"`
}

func (c Config) withDefaults() Config {
	if c.OrderPoll <= 0 {
		c.OrderPoll = DefaultOrderPoll
	}
	if c.SummaryInterval <= 0 {
		c.SummaryInterval = DefaultSummaryInterval
	}
	if c.PositionPollActive <= 0 {
		c.PositionPollActive = DefaultPositionPollActive
	}
	if c.PositionPollIdle <= 0 {
		c.PositionPollIdle = DefaultPositionPollIdle
	}
	return c
}

// Client runs the receive loop of one venue session: login, discovery,
// snapshot polling and forwarding every inbound envelope to the bus.
type Client struct {
	role     schema.ConnectionType
	cfg      Config
	conn     Conn
	queue    *bus.Queue
	registry *schema.Registry
	store    *state.Store
	metrics  *obs.Metrics

	// positions role
	gateway *og.Gateway
	active  func() bool
	boot    *bootFlatten

	now func() time.Time
}

// NewTrading creates the trading-connection client.
func NewTrading(cfg Config, conn Conn, queue *bus.Queue, registry *schema.Registry, store *state.Store, metrics *obs.Metrics) *Client {
	return &Client{
		role:     schema.ConnectionTrading,
		cfg:      cfg.withDefaults(),
		conn:     conn,
		queue:    queue,
		registry: registry,
		store:    store,
		metrics:  metrics,
		now:      time.Now,
	}
}

// NewPositions creates the positions-connection client. gateway sends the
// boot-time flatten orders and may be nil when BootFlatten is off.
func NewPositions(cfg Config, conn Conn, queue *bus.Queue, registry *schema.Registry, store *state.Store, gateway *og.Gateway, metrics *obs.Metrics) *Client {
	c := &Client{
		role:     schema.ConnectionPosition,
		cfg:      cfg.withDefaults(),
		conn:     conn,
		queue:    queue,
		registry: registry,
		store:    store,
		gateway:  gateway,
		metrics:  metrics,
		active:   func() bool { return false },
		now:      time.Now,
	}
	if c.cfg.BootFlatten && gateway != nil {
		c.boot = &bootFlatten{}
	}
	return c
}

// SetActive installs the predicate choosing the fast positions poll.
func (c *Client) SetActive(fn func() bool) {
	if fn != nil {
		c.active = fn
	}
}

// Name returns the session name.
func (c *Client) Name() string {
	return c.conn.Name()
}

// Start connects and sends the login and, for trading, the discovery and
// market data requests.
func (c *Client) Start(ctx context.Context) error {
	if err := c.conn.Connect(ctx); err != nil {
		return errors.Wrapf(err, "client[%s]: connect", c.conn.Name())
	}
	if err := c.login(); err != nil {
		c.conn.Disconnect()
		return err
	}
	if c.role != schema.ConnectionTrading {
		return nil
	}
	if err := c.discover(); err != nil {
		c.conn.Disconnect()
		return err
	}
	return nil
}

func (c *Client) login() error {
	login := schema.Login{
		User:           c.cfg.Credentials.User,
		Password:       c.cfg.Credentials.Password,
		AccessToken:    c.cfg.Credentials.AccessToken,
		ConnectionType: c.role,
	}
	return c.conn.Send(schema.NewEnvelope(schema.MsgLoginRequest, codec.EncodeLogin(nil, login)))
}

func (c *Client) discover() error {
	for _, t := range []schema.MsgType{
		schema.MsgNinjaRequest,
		schema.MsgAccountsRequest,
		schema.MsgWorkingRulesRequest,
		schema.MsgPriceFeedStatusRequest,
	} {
		if err := c.conn.Send(schema.NewEnvelope(t, nil)); err != nil {
			return err
		}
	}
	if err := c.conn.Send(schema.NewEnvelope(schema.MsgSheetsRequest, codec.EncodeSheets(nil, schema.Sheets{}))); err != nil {
		return err
	}

	start := schema.StartMarketData{
		CadenceMillis:       c.cfg.MarketDataCadence.Milliseconds(),
		IncludeImplieds:     true,
		IncludeTradeUpdates: true,
	}
	for _, name := range c.cfg.Products {
		p, ok := c.registry.ProductByName(name)
		if !ok {
			logs.Errorf("client[%s]: market data for unknown product %s", c.conn.Name(), name)
			continue
		}
		start.Contracts = append(start.Contracts, p.Contract())
	}
	return c.conn.Send(schema.NewEnvelope(schema.MsgStartMarketDataRequest, codec.EncodeStartMarketData(nil, start)))
}

// Run drives the receive loop until ctx is done or the session goes down.
// Snapshot polls are issued from the same loop.
func (c *Client) Run(ctx context.Context) error {
	var (
		lastOrderPoll    time.Time
		lastPositionPoll time.Time
		lastSummary      = c.now()
	)
	loggedIn := false

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if !c.conn.Connected() {
			return errors.Errorf("client[%s]: session down", c.conn.Name())
		}

		if env, ok := c.conn.Receive(); ok {
			if env.Type() == schema.MsgLoginResponse {
				loggedIn = c.onLogin(env)
				if loggedIn && c.role == schema.ConnectionPosition {
					c.RequestPositions()
					lastPositionPoll = c.now()
				}
			}
			c.publish(env)
		}

		now := c.now()
		switch c.role {
		case schema.ConnectionTrading:
			if now.Sub(lastOrderPoll) >= c.cfg.OrderPoll {
				c.RequestActiveOrders()
				lastOrderPoll = now
			}
			if now.Sub(lastSummary) >= c.cfg.SummaryInterval {
				c.summary()
				lastSummary = now
			}
		case schema.ConnectionPosition:
			interval := c.cfg.PositionPollIdle
			if c.active() {
				interval = c.cfg.PositionPollActive
			}
			if loggedIn && now.Sub(lastPositionPoll) >= interval {
				c.RequestPositions()
				lastPositionPoll = now
			}
			if c.boot != nil {
				c.boot.step(c)
			}
		}
	}
}

func (c *Client) onLogin(env schema.Envelope) bool {
	resp, err := codec.DecodeLoginResponse(env.Payload)
	if err != nil {
		logs.Errorf("client[%s]: login response, err: %+v", c.conn.Name(), err)
		return false
	}
	if !resp.Success {
		logs.Errorf("client[%s]: login rejected: %s", c.conn.Name(), resp.Msg)
		return false
	}
	logs.Infof("client[%s]: logged in %s", c.conn.Name(), resp.Msg)
	return true
}

func (c *Client) publish(env schema.Envelope) {
	ev := bus.Event{Session: c.conn.Name(), Envelope: env, Received: c.now()}
	if err := c.queue.TryPublish(ev); err != nil {
		c.metrics.IncQueueDrop()
		logs.Errorf("client[%s]: drop %s, err: %+v", c.conn.Name(), env.Type(), err)
	}
}

// RequestActiveOrders polls the active-orders snapshot.
func (c *Client) RequestActiveOrders() {
	req := schema.GetActiveOrders{ShowOnlyApiOrders: true}
	_ = c.conn.Send(schema.NewEnvelope(schema.MsgActiveOrdersRequest, codec.EncodeGetActiveOrders(nil, req)))
}

// RequestPositions polls positions for every configured account and product.
func (c *Client) RequestPositions() {
	for _, account := range c.cfg.Accounts {
		for _, name := range c.cfg.Products {
			p, ok := c.registry.ProductByName(name)
			if !ok {
				continue
			}
			req := schema.GetPositions{Accounts: []string{account}, Filters: []schema.Contract{p.Contract()}}
			if err := c.conn.Send(schema.NewEnvelope(schema.MsgPositionsRequest, codec.EncodeGetPositions(nil, req))); err != nil {
				return
			}
		}
	}
}

func (c *Client) summary() {
	orders := c.store.Orders()
	logs.Infof("client[%s]: %d active orders", c.conn.Name(), len(orders))
	for _, o := range orders {
		logs.Infof("client[%s]: order %s %s %s %d %s @ %v worker %s tag %s",
			c.conn.Name(), o.OrderNo, o.Account, o.Side, o.Qty, o.Product, o.Price, o.Worker, o.Tag)
	}
}
