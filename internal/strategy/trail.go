package strategy

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"venuetrader/internal/history"
	"venuetrader/pkg/exception"
	"venuetrader/pkg/tick"
)

// TrailConfig configures the trailing-stop strategy.
type TrailConfig struct {
	Instrument `yaml:",inline"`
	// MaxWidth is the widest bid-ask spread the strategy trades through.
	MaxWidth float64 `yaml:"max_width"`
	// Trail is the fraction between the extremum and the trail level.
	Trail float64 `yaml:"trail"`
	// BufferTicks offsets the protective order from the trail level.
	BufferTicks int `yaml:"buffer_ticks"`
	// ProtectiveQty is the protective order size per lot held.
	ProtectiveQty int64  `yaml:"protective_qty"`
	Worker        string `yaml:"worker"`
	// Lookback is the history span that decides the first direction.
	Lookback    time.Duration `yaml:"lookback"`
	WarmupLimit int           `yaml:"warmup_limit"`
	// PendingGrace is how long a submitted protective order is awaited in
	// the order snapshot before it is considered lost.
	PendingGrace time.Duration `yaml:"pending_grace"`
	Interval     time.Duration `yaml:"interval"`
}

// DefaultTrailConfig returns the production parameters.
func DefaultTrailConfig() TrailConfig {
	return TrailConfig{
		Instrument:    Instrument{Account: "FW079", Product: "NQU5"},
		MaxWidth:      4,
		Trail:         0.0025,
		BufferTicks:   40,
		ProtectiveQty: 2,
		Worker:        "D",
		Lookback:      900 * time.Second,
		WarmupLimit:   50_000,
		PendingGrace:  2 * time.Second,
		Interval:      100 * time.Millisecond,
	}
}

// protective is the resting order guarding the position.
type protective struct {
	orderNo string
	price   float64
	qty     int64
}

// Trail holds one lot in the current direction and guards it with a
// protective order that follows the running extremum. The protective order
// is sized to reverse the position when hit.
type Trail struct {
	cfg     TrailConfig
	book    Book
	orders  Orders
	history history.Source
	now     func() time.Time

	dir         int64
	position    int64
	extremum    float64
	level       float64
	seenVersion uint64

	// lastSent is the last protective price sent. pendingID is a submit
	// not yet seen in the order snapshot.
	lastSent     float64
	pendingID    string
	pendingUntil time.Time
	orderNo      string
	// stale is a filled protective order still listed in the snapshot.
	stale string
}

// NewTrail creates the strategy. src may be nil to start long.
func NewTrail(cfg TrailConfig, book Book, orders Orders, src history.Source) (*Trail, error) {
	if book == nil || orders == nil {
		return nil, exception.ErrNilInstance
	}
	if cfg.Trail <= 0 || cfg.Trail >= 1 {
		return nil, errors.Wrapf(exception.ErrConfigInvalid, "trail fraction %v", cfg.Trail)
	}
	if cfg.MaxWidth <= 0 {
		return nil, errors.Wrapf(exception.ErrConfigInvalid, "trail max width %v", cfg.MaxWidth)
	}
	if cfg.ProtectiveQty <= 0 {
		cfg.ProtectiveQty = 2
	}
	if cfg.Worker == "" {
		cfg.Worker = "D"
	}
	return &Trail{cfg: cfg, book: book, orders: orders, history: src, now: time.Now, dir: 1}, nil
}

func (t *Trail) Name() string { return "trail" }

func (t *Trail) Interval() time.Duration { return t.cfg.Interval }

// SetClock replaces the wall clock read by Warmup.
func (t *Trail) SetClock(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Direction returns the side the next entry takes.
func (t *Trail) Direction() int64 { return t.dir }

// Position returns the position the strategy believes it holds.
func (t *Trail) Position() int64 { return t.position }

// Level returns the latest trail level.
func (t *Trail) Level() float64 { return t.level }

// Warmup sets the direction from the drift over the lookback span.
func (t *Trail) Warmup(ctx context.Context) error {
	if t.history == nil {
		logs.Warnf("trail: no history source, starting long")
		return nil
	}
	ticks, err := t.history.Ticks(ctx, t.cfg.Product, t.cfg.WarmupLimit)
	if err != nil {
		return errors.Wrap(err, "trail warmup")
	}
	if len(ticks) < t.cfg.WarmupLimit {
		logs.Warnf("trail: history returned %d of %d rows", len(ticks), t.cfg.WarmupLimit)
	}

	now := t.now()
	ticks = history.Between(ticks, now.Add(-t.cfg.Lookback), now)
	if len(ticks) < 2 {
		return errors.Wrapf(exception.ErrHistoryEmpty, "trail warmup has %d ticks in %s", len(ticks), t.cfg.Lookback)
	}

	first := t.cfg.Contract.FromWire(ticks[0].Price)
	last := t.cfg.Contract.FromWire(ticks[len(ticks)-1].Price)
	t.dir = sign(last - first)
	if t.dir == 0 {
		t.dir = 1
	}
	logs.Infof("trail: warmup direction %d, %v -> %v", t.dir, first, last)
	return nil
}

// Step runs once per new positions snapshot.
func (t *Trail) Step(_ context.Context, now time.Time) error {
	mkt, ok := t.book.Market(t.cfg.Product)
	if !ok || !mkt.HasTrade() || !mkt.HasQuote() {
		return nil
	}
	tooWide := mkt.Spread() > t.cfg.MaxWidth

	version := t.book.PositionVersion()
	if version == t.seenVersion {
		return nil
	}
	t.seenVersion = version

	held := t.book.Position(t.cfg.Key())
	if t.position != 0 && held == -t.position {
		logs.Infof("trail: protective order reversed position %d -> %d", t.position, held)
		t.position = held
		t.dir = sign64(held)
		t.dropProtective()
	}

	if t.position == 0 && !tooWide {
		switch {
		case t.dir > 0:
			if _, err := t.orders.Order(mkt.Ask, 1, TagStartBuy); err != nil {
				return errors.Wrap(err, "trail entry")
			}
			t.extremum = mkt.Ask
			t.position = 1
		case t.dir < 0:
			if _, err := t.orders.Order(mkt.Bid, -1, TagStartSell); err != nil {
				return errors.Wrap(err, "trail entry")
			}
			t.extremum = mkt.Bid
			t.position = -1
		}
		logs.Infof("trail: entered %d @ %v", t.position, t.extremum)
		return t.track(mkt.High, mkt.Low, mkt.Last, now)
	}

	if err := t.track(mkt.High, mkt.Low, mkt.Last, now); err != nil {
		return err
	}

	if t.position != 0 && tooWide {
		logs.Infof("trail: spread %v too wide, flattening %d", mkt.Spread(), t.position)
		_, err := t.orders.Flatten(mkt.Last, -t.position, TagMarketFlatten)
		t.position = 0
		t.extremum = 0
		t.dropProtective()
		if err != nil {
			return errors.Wrap(err, "trail flatten")
		}
	}
	return nil
}

// track extends the extremum and keeps the protective order at the trail
// level. The order is only ever amended toward the market.
func (t *Trail) track(high, low, last float64, now time.Time) error {
	if t.position == 0 {
		return nil
	}
	if high <= 0 {
		high = last
	}
	if low <= 0 {
		low = last
	}

	size := t.cfg.TickSize()
	buffer := float64(t.cfg.BufferTicks) * size
	var price float64
	if t.position > 0 {
		if high > t.extremum {
			t.extremum = high
		}
		t.level = tick.Round(t.extremum*(1-t.cfg.Trail), size)
		price = t.level + buffer
	} else {
		if t.extremum == 0 || low < t.extremum {
			t.extremum = low
		}
		t.level = tick.Round(t.extremum*(1+t.cfg.Trail), size)
		price = t.level - buffer
	}

	current, ok := t.protective(now)
	if !ok {
		qty := -sign64(t.position) * t.cfg.ProtectiveQty * abs64(t.position)
		clientID, err := t.orders.OrderAs(t.cfg.Worker, price, qty, TagTrailStop)
		if err != nil {
			return errors.Wrap(err, "trail protective")
		}
		t.pendingID = clientID
		t.pendingUntil = now.Add(t.cfg.PendingGrace)
		t.lastSent = price
		logs.Infof("trail: protective %d @ %v level %v", qty, price, t.level)
		return nil
	}

	tighter := (t.position > 0 && price > current.price) || (t.position < 0 && price < current.price)
	if !tighter || current.orderNo == "" {
		return nil
	}
	if err := t.orders.Change(current.orderNo, price, current.qty, t.cfg.Worker); err != nil {
		return errors.Wrap(err, "trail amend")
	}
	t.lastSent = price
	logs.Infof("trail: protective %s -> %v level %v", current.orderNo, price, t.level)
	return nil
}

// protective resolves the resting protective order from the order snapshot.
// While a fresh submit awaits the snapshot, exists is true and the order
// number is known once the venue acknowledged it.
func (t *Trail) protective(now time.Time) (p protective, exists bool) {
	for _, o := range t.book.OrdersBy(t.cfg.Account, t.cfg.Product, t.cfg.Worker) {
		if o.OrderNo == t.stale {
			continue
		}
		t.pendingID = ""
		t.orderNo = o.OrderNo
		p = protective{orderNo: o.OrderNo, price: o.Price, qty: o.Qty}
		if t.lastSent != 0 && t.tighter(t.lastSent, p.price) {
			p.price = t.lastSent
		}
		return p, true
	}

	if t.pendingID == "" {
		return protective{}, false
	}
	if now.After(t.pendingUntil) {
		logs.Warnf("trail: protective %s not seen in orders", t.pendingID)
		t.pendingID = ""
		return protective{}, false
	}
	if orderNo, ok := t.orders.OrderNo(t.pendingID); ok {
		return protective{orderNo: orderNo, price: t.lastSent, qty: t.cfg.ProtectiveQty * abs64(t.position)}, true
	}
	return protective{}, true
}

// tighter reports whether a is closer to the market than b.
func (t *Trail) tighter(a, b float64) bool {
	if t.position > 0 {
		return a > b
	}
	return a < b
}

// dropProtective forgets the protective order after it was filled or its
// position flattened.
func (t *Trail) dropProtective() {
	if t.orderNo != "" {
		t.stale = t.orderNo
	}
	t.orderNo = ""
	t.pendingID = ""
	t.lastSent = 0
}
