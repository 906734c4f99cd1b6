package shutdown

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"venuetrader/internal/og"
	"venuetrader/internal/state"
	"venuetrader/pkg/exception"
)

// FlattenTag marks the orders sent while shutting down.
const FlattenTag = "FLATTEN_PROGRAMCLOSE"

// Strategies stops the strategy loops cooperatively.
type Strategies interface {
	Stop()
	Wait(ctx context.Context) error
}

// Orders sends the cancels and flatten orders of the shutdown.
type Orders interface {
	Cancel(orderNo string) error
	Submit(req og.OrderRequest) (string, error)
}

// Session is a venue connection torn down at the end.
type Session interface {
	Name() string
	Disconnect()
}

// Config bounds the blocking steps of the shutdown.
type Config struct {
	StrategyWait time.Duration `yaml:"strategy_wait"`
	FlatTimeout  time.Duration `yaml:"flat_timeout"`
	Poll         time.Duration `yaml:"poll"`
	// RefreshInterval paces snapshot requests while waiting to be flat.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// SnapshotPath receives the final store state when set.
	SnapshotPath string `yaml:"snapshot_path"`
}

// DefaultConfig returns the production bounds.
func DefaultConfig() Config {
	return Config{
		StrategyWait:    5 * time.Second,
		FlatTimeout:     time.Minute,
		Poll:            10 * time.Millisecond,
		RefreshInterval: 250 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StrategyWait <= 0 {
		c.StrategyWait = d.StrategyWait
	}
	if c.FlatTimeout <= 0 {
		c.FlatTimeout = d.FlatTimeout
	}
	if c.Poll <= 0 {
		c.Poll = d.Poll
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	return c
}

// Coordinator tears the process down: strategies stop, every order is
// canceled, every position is flattened, sessions disconnect and the process
// exits. The exit runs even when an earlier step fails.
type Coordinator struct {
	cfg        Config
	store      *state.Store
	orders     Orders
	strategies Strategies
	sessions   []Session
	refresh    func()
	exit       func(code int)

	once    sync.Once
	started atomic.Bool
	err     error
}

// New creates a coordinator. exit terminates the process.
func New(cfg Config, store *state.Store, orders Orders, strategies Strategies, exit func(code int), sessions ...Session) (*Coordinator, error) {
	if store == nil || orders == nil || exit == nil {
		return nil, exception.ErrNilInstance
	}
	return &Coordinator{
		cfg:        cfg.withDefaults(),
		store:      store,
		orders:     orders,
		strategies: strategies,
		sessions:   sessions,
		exit:       exit,
	}, nil
}

// SetRefresh installs the snapshot request issued while waiting to be flat.
func (c *Coordinator) SetRefresh(fn func()) {
	c.refresh = fn
}

// Started reports whether the shutdown has begun.
func (c *Coordinator) Started() bool {
	return c.started.Load()
}

// Run executes the shutdown once. Later calls return the first result
// without repeating it.
func (c *Coordinator) Run(ctx context.Context) error {
	c.once.Do(func() {
		c.started.Store(true)
		c.err = c.run(ctx)
	})
	return c.err
}

func (c *Coordinator) run(ctx context.Context) (err error) {
	logs.Infof("shutdown: start")
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("shutdown panic: %v", r)
		}
		code := 0
		if err != nil {
			logs.Errorf("shutdown: %+v", err)
			code = 1
		}
		c.disconnect()
		c.writeSnapshot()
		logs.Infof("shutdown: exit %d", code)
		c.exit(code)
	}()

	c.stopStrategies(ctx)
	c.cancelOrders()
	c.flattenPositions()
	return c.waitFlat(ctx)
}

func (c *Coordinator) stopStrategies(ctx context.Context) {
	if c.strategies == nil {
		return
	}
	c.strategies.Stop()
	wctx, cancel := context.WithTimeout(ctx, c.cfg.StrategyWait)
	defer cancel()
	if err := c.strategies.Wait(wctx); err != nil {
		logs.Warnf("shutdown: strategies still running, err: %+v", err)
		return
	}
	logs.Infof("shutdown: strategies stopped")
}

func (c *Coordinator) cancelOrders() {
	orders := c.store.Orders()
	for _, o := range orders {
		if err := c.orders.Cancel(o.OrderNo); err != nil {
			logs.Errorf("shutdown: cancel %s, err: %+v", o.OrderNo, err)
		}
	}
	logs.Infof("shutdown: canceled %d orders", len(orders))
}

func (c *Coordinator) flattenPositions() {
	for _, p := range c.store.OpenPositions() {
		price, ok := c.store.ExitPrice(p.Product, p.Qty)
		if !ok {
			logs.Errorf("shutdown: no price to flatten %s %s %d", p.Account, p.Product, p.Qty)
			continue
		}
		_, err := c.orders.Submit(og.OrderRequest{
			Account: p.Account,
			Product: p.Product,
			Price:   price,
			Qty:     -p.Qty,
			Worker:  og.DefaultWorker,
			Tag:     FlattenTag,
		})
		if err != nil {
			logs.Errorf("shutdown: flatten %s %s, err: %+v", p.Account, p.Product, err)
			continue
		}
		logs.Infof("shutdown: flatten %s %s %d @ %v", p.Account, p.Product, -p.Qty, price)
	}
}

// waitFlat polls until no order rests and every position is zero.
func (c *Coordinator) waitFlat(ctx context.Context) error {
	deadline := time.NewTimer(c.cfg.FlatTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(c.cfg.Poll)
	defer poll.Stop()
	var lastRefresh time.Time

	for {
		if c.store.Flat() {
			logs.Infof("shutdown: flat")
			return nil
		}
		if c.refresh != nil && time.Since(lastRefresh) >= c.cfg.RefreshInterval {
			c.refresh()
			lastRefresh = time.Now()
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait flat")
		case <-deadline.C:
			return errors.Errorf("not flat after %s: %d orders, %d positions", c.cfg.FlatTimeout, c.store.OrderCount(), len(c.store.OpenPositions()))
		case <-c.store.Changed():
		case <-poll.C:
		}
	}
}

func (c *Coordinator) disconnect() {
	for _, s := range c.sessions {
		s.Disconnect()
		logs.Infof("shutdown: %s disconnected", s.Name())
	}
}

func (c *Coordinator) writeSnapshot() {
	if c.cfg.SnapshotPath == "" {
		return
	}
	if err := state.WriteSnapshot(c.cfg.SnapshotPath, c.store.Snapshot()); err != nil {
		logs.Errorf("shutdown: write snapshot, err: %+v", err)
	}
}
