package strategy

import (
	"context"
	"time"

	"github.com/yanun0323/errors"

	"venuetrader/internal/schema"
	"venuetrader/internal/state"
	"venuetrader/pkg/exception"
)

// ErrFinished is returned by Step when a strategy is done for the session.
var ErrFinished = errors.New("strategy finished")

// Strategy is driven by the Scheduler: Warmup once, then Step every Interval.
type Strategy interface {
	Name() string
	Interval() time.Duration
	Warmup(ctx context.Context) error
	Step(ctx context.Context, now time.Time) error
}

// Book is the read side of the state store used by strategies.
type Book interface {
	Market(product string) (state.Market, bool)
	Position(key state.PositionKey) int64
	PositionVersion() uint64
	OrdersBy(account, product, worker string) []state.Order
}

// Orders submits orders for one account, product and worker tag.
type Orders interface {
	Order(price float64, qty int64, tag string) (string, error)
	OrderAs(worker string, price float64, qty int64, tag string) (string, error)
	Flatten(price float64, qty int64, tag string) (string, error)
	Change(orderNo string, price float64, qty int64, worker string) error
	OrderNo(clientID string) (string, bool)
}

// Instrument is the account and product a strategy trades.
type Instrument struct {
	Account string `yaml:"account"`
	Product string `yaml:"product"`
	// Contract is resolved from the product registry by Bind.
	Contract schema.Product `yaml:"-"`
}

// Key returns the position key of the instrument.
func (i Instrument) Key() state.PositionKey {
	return state.PositionKey{Account: i.Account, Exchange: i.Contract.Exchange, Product: i.Product}
}

// TickSize returns the minimum price increment.
func (i Instrument) TickSize() float64 {
	return i.Contract.TickSize
}

// Bind resolves the contract of the product from registry.
func (i Instrument) Bind(registry *schema.Registry) (Instrument, error) {
	if registry == nil {
		return i, exception.ErrNilInstance
	}
	p, ok := registry.ProductByName(i.Product)
	if !ok {
		return i, errors.Wrap(exception.ErrOrderUnknownProduct, i.Product)
	}
	i.Contract = p
	return i, nil
}

// Tags carried by strategy orders.
const (
	TagStartBuy      = "START_BUY"
	TagStartSell     = "START_SELL"
	TagStopBuy       = "STOP_BUY"
	TagStopSell      = "STOP_SELL"
	TagGainFlatten   = "GAIN_FLATTEN"
	TagLossFlatten   = "LOSS_FLATTEN"
	TagSignalFlatten = "SIGNAL_FLATTEN"
	TagMarketFlatten = "MARKET_FLATTEN"
	TagTrailStop     = "TRAIL_STOP"
)

func sign(v float64) int64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func sign64(v int64) int64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// sinceMidnight returns the wall-clock time of day of t.
func sinceMidnight(t time.Time) time.Duration {
	h, m, sec := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(t.Nanosecond())
}

// parseClock parses a "15:04" time of day.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, errors.Wrapf(exception.ErrConfigInvalid, "time of day %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// atClock returns the instant on t's date at time of day d.
func atClock(t time.Time, d time.Duration) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, int(d/time.Hour), int(d%time.Hour/time.Minute), 0, 0, t.Location())
}
