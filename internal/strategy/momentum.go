package strategy

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"venuetrader/internal/history"
	"venuetrader/internal/signal"
	"venuetrader/pkg/exception"
	"venuetrader/pkg/tick"
)

// MomentumConfig configures the vote-signal strategy.
type MomentumConfig struct {
	Instrument `yaml:",inline"`
	Signal     signal.Config `yaml:"signal"`
	// GainLimit and LossLimit are fractions of the entry trade price.
	GainLimit   float64       `yaml:"gain_limit"`
	LossLimit   float64       `yaml:"loss_limit"`
	Checkpoints []Checkpoint  `yaml:"checkpoints"`
	MarketOpen  string        `yaml:"market_open"`
	MarketClose string        `yaml:"market_close"`
	Sample      time.Duration `yaml:"sample"`
	Interval    time.Duration `yaml:"interval"`
	// WarmupLimit bounds the history rows replayed at warmup.
	WarmupLimit int `yaml:"warmup_limit"`
	// WarmupClose ends the replayed session window.
	WarmupClose string `yaml:"warmup_close"`
	// MaxGap zeroes replayed moves across gaps longer than it.
	MaxGap time.Duration `yaml:"max_gap"`
}

// DefaultMomentumConfig returns the production parameters.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		Instrument:  Instrument{Account: "FW077", Product: "NQU5"},
		Signal:      signal.DefaultConfig(),
		GainLimit:   0.015,
		LossLimit:   0.0035,
		Checkpoints: DefaultCheckpoints(),
		MarketOpen:  "08:30",
		MarketClose: "14:59",
		Sample:      time.Minute,
		Interval:    100 * time.Millisecond,
		WarmupLimit: 250_000,
		WarmupClose: "15:00",
		MaxGap:      2 * time.Minute,
	}
}

// Momentum trades the vote signal: one lot on a fresh direction, gain and
// loss targets checked every step, scaled by the checkpoint ladder.
type Momentum struct {
	cfg     MomentumConfig
	loc     *time.Location
	book    Book
	orders  Orders
	history history.Source
	engine  *signal.Engine
	ladder  *Ladder

	open, close, warmupClose time.Duration

	inMarket  bool
	lastTime  time.Time
	lastPrice float64

	position  int64
	entries   []float64
	entryTime time.Time
	gain      float64
	loss      float64
}

// NewMomentum creates the strategy. src may be nil to start without warmup.
func NewMomentum(cfg MomentumConfig, loc *time.Location, book Book, orders Orders, src history.Source) (*Momentum, error) {
	if book == nil || orders == nil {
		return nil, exception.ErrNilInstance
	}
	if loc == nil {
		loc = time.Local
	}
	if cfg.GainLimit <= 0 || cfg.LossLimit <= 0 {
		return nil, errors.Wrapf(exception.ErrConfigInvalid, "momentum limits gain %v loss %v", cfg.GainLimit, cfg.LossLimit)
	}
	if cfg.Sample <= 0 {
		cfg.Sample = time.Minute
	}
	if cfg.MaxGap <= 0 {
		cfg.MaxGap = 2 * time.Minute
	}

	engine, err := signal.NewEngine("momentum", cfg.Signal)
	if err != nil {
		return nil, err
	}
	ladder, err := NewLadder(cfg.Checkpoints)
	if err != nil {
		return nil, err
	}

	m := &Momentum{cfg: cfg, loc: loc, book: book, orders: orders, history: src, engine: engine, ladder: ladder}
	if m.open, err = parseClock(cfg.MarketOpen); err != nil {
		return nil, err
	}
	if m.close, err = parseClock(cfg.MarketClose); err != nil {
		return nil, err
	}
	m.warmupClose = m.close
	if cfg.WarmupClose != "" {
		if m.warmupClose, err = parseClock(cfg.WarmupClose); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) Interval() time.Duration { return m.cfg.Interval }

// Signal returns the current engine signal.
func (m *Momentum) Signal() signal.Signal { return m.engine.Signal() }

// Position returns the position the strategy believes it holds.
func (m *Momentum) Position() int64 { return m.position }

// Warmup replays the first trade of every minute of past sessions into the
// signal engine.
func (m *Momentum) Warmup(ctx context.Context) error {
	if m.history == nil {
		logs.Warnf("momentum: no history source, warmup skipped")
		return nil
	}
	ticks, err := m.history.Ticks(ctx, m.cfg.Product, m.cfg.WarmupLimit)
	if err != nil {
		return errors.Wrap(err, "momentum warmup")
	}

	var (
		prevPrice  float64
		prevMinute time.Time
		moves      int
	)
	for _, t := range ticks {
		local := t.Time.In(m.loc)
		tod := sinceMidnight(local)
		if tod < m.open || tod > m.warmupClose {
			continue
		}
		minute := local.Truncate(time.Minute)
		if !prevMinute.IsZero() && !minute.After(prevMinute) {
			continue
		}

		price := m.cfg.Contract.FromWire(t.Price)
		if !prevMinute.IsZero() {
			move := price - prevPrice
			if minute.Sub(prevMinute) > m.cfg.MaxGap {
				move = 0
			}
			m.engine.Observe(move)
			moves++
		}
		prevPrice, prevMinute = price, minute
	}
	logs.Infof("momentum: warmup replayed %d moves from %d ticks, signal %s", moves, len(ticks), m.engine.Signal())
	return nil
}

func (m *Momentum) inWindow(local time.Time) bool {
	tod := sinceMidnight(local)
	return tod >= m.open && tod <= m.close
}

// Step evaluates one poll of the market.
func (m *Momentum) Step(_ context.Context, now time.Time) error {
	mkt, ok := m.book.Market(m.cfg.Product)
	if !ok || !mkt.HasTrade() || !mkt.HasQuote() {
		return nil
	}
	local := now.In(m.loc)

	if !m.inMarket {
		if m.lastTime.IsZero() && sinceMidnight(local) >= m.open-m.cfg.Sample {
			m.lastTime = local.Truncate(time.Minute)
		}
		if !m.inWindow(local) {
			return nil
		}
		logs.Infof("momentum: in market hours")
		m.inMarket = true
	}

	if !m.inWindow(local) {
		logs.Infof("momentum: outside market hours, flattening")
		err := m.flatten(mkt.Last, TagMarketFlatten)
		m.engine.ClearLock()
		m.inMarket = false
		if err != nil {
			return err
		}
		return ErrFinished
	}

	if err := m.checkTargets(mkt.Bid, mkt.Ask); err != nil {
		return err
	}

	if m.lastTime.IsZero() {
		m.lastTime = local.Truncate(time.Minute)
	}
	if !local.After(m.lastTime.Add(m.cfg.Sample)) {
		return nil
	}
	defer func() { m.lastTime = local.Truncate(time.Minute) }()

	if m.lastPrice == 0 {
		m.lastPrice = mkt.Last
		logs.Infof("momentum: established latest price %v", mkt.Last)
	} else {
		m.engine.Observe(mkt.Last - m.lastPrice)
		m.lastPrice = mkt.Last
	}
	sig := m.engine.Signal()

	switch {
	case m.position != 0 && m.position*int64(sig) <= 0:
		price := mkt.Bid
		if m.position < 0 {
			price = mkt.Ask
		}
		return m.flatten(price, TagSignalFlatten)
	case m.position == 0:
		if !m.engine.CanEnter(sig) {
			return nil
		}
		return m.enter(sig, mkt.Bid, mkt.Ask, mkt.Last, local)
	default:
		return m.scale(local, mkt.Bid, mkt.Ask, mkt.Last)
	}
}

func (m *Momentum) checkTargets(bid, ask float64) error {
	switch {
	case m.position > 0:
		if bid >= m.gain {
			logs.Infof("momentum: gain hit %d @ %v", -m.position, m.gain)
			m.engine.ClearLock()
			return m.flatten(m.gain, TagGainFlatten)
		}
		if ask < m.loss {
			logs.Infof("momentum: loss hit %d @ %v", -m.position, m.loss)
			if abs64(m.position) != 1 {
				m.engine.ClearLock()
			}
			return m.flatten(m.loss, TagLossFlatten)
		}
	case m.position < 0:
		if ask <= m.gain {
			logs.Infof("momentum: gain hit %d @ %v", -m.position, m.gain)
			m.engine.ClearLock()
			return m.flatten(m.gain, TagGainFlatten)
		}
		if bid > m.loss {
			logs.Infof("momentum: loss hit %d @ %v", -m.position, m.loss)
			if abs64(m.position) != 1 {
				m.engine.ClearLock()
			}
			return m.flatten(m.loss, TagLossFlatten)
		}
	}
	return nil
}

func (m *Momentum) enter(sig signal.Signal, bid, ask, last float64, local time.Time) error {
	var (
		price float64
		tag   string
		qty   = int64(sig)
	)
	if sig == signal.Long {
		price, tag = ask, TagStartBuy
	} else {
		price, tag = bid, TagStartSell
	}

	if _, err := m.orders.Order(price, qty, tag); err != nil {
		return errors.Wrap(err, "momentum entry")
	}
	size := m.cfg.TickSize()
	m.position = qty
	m.engine.Lock(sig)
	m.entries = []float64{price}
	m.entryTime = local.Truncate(time.Minute)
	m.ladder.Reset()
	if sig == signal.Long {
		m.gain = tick.Round(last*(1+m.cfg.GainLimit), size)
		m.loss = tick.Round(last*(1-m.cfg.LossLimit), size)
	} else {
		m.gain = tick.Round(last*(1-m.cfg.GainLimit), size)
		m.loss = tick.Round(last*(1+m.cfg.LossLimit), size)
	}
	logs.Infof("momentum: %s %d @ %v gain %v loss %v", tag, qty, price, m.gain, m.loss)
	return nil
}

func (m *Momentum) scale(local time.Time, bid, ask, last float64) error {
	d := m.ladder.Evaluate(local.Sub(m.entryTime), m.position, mean(m.entries), last)
	switch d.Action {
	case LadderFlatten:
		logs.Infof("momentum: entries %v underwater at %v", m.entries, last)
		if d.ClearLock {
			m.engine.ClearLock()
		}
		price := bid
		if m.position < 0 {
			price = ask
		}
		return m.flatten(price, d.FlattenTag())
	case LadderAdd:
		dir := sign64(m.position)
		price := ask
		if dir < 0 {
			price = bid
		}
		tag := d.AddTag(dir)
		if _, err := m.orders.Order(price, dir, tag); err != nil {
			return errors.Wrap(err, "momentum add")
		}
		m.position += dir
		m.entries = append(m.entries, last)
		logs.Infof("momentum: %s %d @ %v position %d", tag, dir, price, m.position)
	}
	return nil
}

// flatten closes the strategy position and resets the trade state even when
// the order cannot be sent.
func (m *Momentum) flatten(price float64, tag string) error {
	var err error
	if m.position != 0 {
		if _, err = m.orders.Flatten(price, -m.position, tag); err != nil {
			err = errors.Wrap(err, "momentum flatten")
		} else {
			logs.Infof("momentum: %s %d @ %v", tag, -m.position, price)
		}
	} else {
		logs.Infof("momentum: %s with no position", tag)
	}
	m.position = 0
	m.entries = nil
	m.entryTime = time.Time{}
	m.gain, m.loss = 0, 0
	m.ladder.Reset()
	return err
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
