package strategy

import (
	"context"
	"math"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"venuetrader/internal/history"
	"venuetrader/pkg/exception"
	"venuetrader/pkg/tick"
)

// BreakoutConfig configures the range-breakout strategy.
type BreakoutConfig struct {
	Instrument `yaml:",inline"`
	// VolumeThreshold is the session volume that arms trading.
	VolumeThreshold int64 `yaml:"volume_threshold"`
	// RangeThreshold is the session high-low range that arms trading.
	RangeThreshold float64 `yaml:"range_threshold"`
	// VolCeiling arms trading once a window volatility falls below it.
	VolCeiling float64 `yaml:"vol_ceiling"`
	// VolCap bounds the volatility used to place levels.
	VolCap float64 `yaml:"vol_cap"`
	// MinOffset is the smallest distance of a level from the range edge.
	MinOffset       float64       `yaml:"min_offset"`
	VolWindow       time.Duration `yaml:"vol_window"`
	BuyStartFactor  float64       `yaml:"buy_start_factor"`
	BuyStopFactor   float64       `yaml:"buy_stop_factor"`
	SellStartFactor float64       `yaml:"sell_start_factor"`
	SellStopFactor  float64       `yaml:"sell_stop_factor"`
	SessionStart    string        `yaml:"session_start"`
	MarketClose     string        `yaml:"market_close"`
	WarmupLimit     int           `yaml:"warmup_limit"`
	SummaryInterval time.Duration `yaml:"summary_interval"`
	Interval        time.Duration `yaml:"interval"`
}

// DefaultBreakoutConfig returns the production parameters.
func DefaultBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		Instrument:      Instrument{Account: "FW078", Product: "NQU5"},
		VolumeThreshold: 100_000,
		RangeThreshold:  150,
		VolCeiling:      0.0025,
		VolCap:          0.002,
		MinOffset:       4,
		VolWindow:       600 * time.Second,
		BuyStartFactor:  25,
		BuyStopFactor:   200,
		SellStartFactor: 25,
		SellStopFactor:  100,
		SessionStart:    "17:00",
		MarketClose:     "15:59",
		WarmupLimit:     500_000,
		SummaryInterval: time.Minute,
		Interval:        100 * time.Millisecond,
	}
}

// Levels are the entry and exit prices of both sides.
type Levels struct {
	BuyStart  float64
	BuyStop   float64
	SellStart float64
	SellStop  float64
}

// Gates are the latched arming conditions.
type Gates struct {
	Volume bool
	Range  bool
	Vol    bool
}

// Armed reports whether every gate is open.
func (g Gates) Armed() bool {
	return g.Volume && g.Range && g.Vol
}

// Breakout enters near the edge of the session range once the session is
// liquid, wide and calm enough, and exits further back toward the middle.
type Breakout struct {
	cfg     BreakoutConfig
	loc     *time.Location
	book    Book
	orders  Orders
	history history.Source
	now     func() time.Time

	sessionStart, marketClose time.Duration

	closeAt      time.Time
	warmupVolume int64
	rangeHigh    float64
	rangeLow     float64
	vol          float64
	window       *volWindow
	lastUpdate   time.Time
	gates        Gates
	levels       Levels
	position     int64
	nextSummary  time.Time
}

// NewBreakout creates the strategy. src may be nil to start from live data.
func NewBreakout(cfg BreakoutConfig, loc *time.Location, book Book, orders Orders, src history.Source) (*Breakout, error) {
	if book == nil || orders == nil {
		return nil, exception.ErrNilInstance
	}
	if loc == nil {
		loc = time.Local
	}
	if cfg.VolWindow <= 0 {
		return nil, errors.Wrapf(exception.ErrConfigInvalid, "breakout vol window %s", cfg.VolWindow)
	}
	if cfg.BuyStopFactor <= cfg.BuyStartFactor || cfg.SellStopFactor <= cfg.SellStartFactor {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "breakout stop factor must exceed start factor")
	}
	if cfg.SummaryInterval <= 0 {
		cfg.SummaryInterval = time.Minute
	}

	b := &Breakout{cfg: cfg, loc: loc, book: book, orders: orders, history: src, now: time.Now, window: newVolWindow(cfg.VolWindow)}
	var err error
	if b.sessionStart, err = parseClock(cfg.SessionStart); err != nil {
		return nil, err
	}
	if b.marketClose, err = parseClock(cfg.MarketClose); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Breakout) Name() string { return "rb" }

// SetClock replaces the wall clock read by Warmup.
func (b *Breakout) SetClock(now func() time.Time) {
	if now != nil {
		b.now = now
	}
}

func (b *Breakout) Interval() time.Duration { return b.cfg.Interval }

// Levels returns the latest computed levels.
func (b *Breakout) Levels() Levels { return b.levels }

// Gates returns the latched arming conditions.
func (b *Breakout) Gates() Gates { return b.gates }

// Position returns the position the strategy believes it holds.
func (b *Breakout) Position() int64 { return b.position }

// SessionAnchor returns the session start for now: today once within an
// hour of it, yesterday otherwise.
func (b *Breakout) SessionAnchor(now time.Time) time.Time {
	local := now.In(b.loc)
	if sinceMidnight(local) >= b.sessionStart-time.Hour {
		return atClock(local, b.sessionStart)
	}
	return atClock(local.AddDate(0, 0, -1), b.sessionStart)
}

// Warmup rebuilds the session range, volume and the latest window
// volatility from history.
func (b *Breakout) Warmup(ctx context.Context) error {
	now := b.now().In(b.loc)
	anchor := b.SessionAnchor(now)
	b.closeAt = atClock(anchor.AddDate(0, 0, 1), b.marketClose)
	b.nextSummary = now.Truncate(time.Minute).Add(b.cfg.SummaryInterval)

	if b.history == nil {
		logs.Warnf("rb: no history source, range starts from live data")
		return nil
	}
	ticks, err := b.history.Ticks(ctx, b.cfg.Product, b.cfg.WarmupLimit)
	if err != nil {
		return errors.Wrap(err, "rb warmup")
	}
	ticks = history.Between(ticks, anchor, now)
	if len(ticks) == 0 {
		logs.Warnf("rb: no history since %s, range starts from live data", anchor)
		return nil
	}

	volKnown := false
	for _, t := range ticks {
		price := b.cfg.Contract.FromWire(t.Price)
		b.warmupVolume += t.Qty
		b.widen(price, price)
		if closed, rolled := b.window.observe(t.Time.In(b.loc), price, price, price); rolled {
			volKnown = b.updateVol(closed) || volKnown
		}
	}
	if volKnown {
		b.latchVol()
	}
	b.calcLevels()
	logs.Infof("rb: warmup volume %d range %v [%v, %v] vol %.5f", b.warmupVolume, b.rangeHigh-b.rangeLow, b.rangeLow, b.rangeHigh, b.vol)
	return nil
}

// Step evaluates one poll of the market.
func (b *Breakout) Step(_ context.Context, now time.Time) error {
	local := now.In(b.loc)
	if b.closeAt.IsZero() {
		b.closeAt = atClock(b.SessionAnchor(local).AddDate(0, 0, 1), b.marketClose)
	}

	mkt, ok := b.book.Market(b.cfg.Product)
	if !local.Before(b.closeAt) {
		logs.Infof("rb: market closed, flattening")
		if b.position != 0 {
			price := mkt.Last
			_, err := b.orders.Flatten(price, -b.position, TagMarketFlatten)
			b.position = 0
			if err != nil {
				return errors.Wrap(err, "rb flatten")
			}
		}
		return ErrFinished
	}
	if !ok || !mkt.HasTrade() || !mkt.HasQuote() {
		return nil
	}

	if mkt.Updated.After(b.lastUpdate) {
		b.lastUpdate = mkt.Updated
		b.widen(mkt.SessionHigh, mkt.SessionLow)
		if closed, rolled := b.window.observe(local, mkt.Last, mkt.High, mkt.Low); rolled && b.updateVol(closed) {
			logs.Infof("rb: vol %.5f window %+v", b.vol, closed)
			b.latchVol()
		}
	}

	volume := b.warmupVolume + mkt.Volume
	if !b.gates.Volume && volume >= b.cfg.VolumeThreshold {
		logs.Infof("rb: volume ok %d", volume)
		b.gates.Volume = true
	}
	if rng := b.rangeHigh - b.rangeLow; !b.gates.Range && rng >= b.cfg.RangeThreshold {
		logs.Infof("rb: range ok %v [%v, %v]", rng, b.rangeLow, b.rangeHigh)
		b.gates.Range = true
	}

	b.calcLevels()
	if !local.Before(b.nextSummary) {
		logs.Infof("rb: high %v low %v volume %d vol %.5f levels %+v", b.rangeHigh, b.rangeLow, volume, b.vol, b.levels)
		b.nextSummary = b.nextSummary.Add(b.cfg.SummaryInterval)
	}

	return b.trade(mkt.Bid, mkt.Ask, mkt.Last)
}

func (b *Breakout) trade(bid, ask, last float64) error {
	if !b.gates.Volume || !b.gates.Range {
		return nil
	}
	lv := b.levels

	if b.gates.Vol && b.position == 0 {
		switch {
		case bid >= lv.BuyStart || last >= lv.BuyStart:
			if _, err := b.orders.Order(lv.BuyStart, 1, TagStartBuy); err != nil {
				return errors.Wrap(err, "rb entry")
			}
			b.position++
			logs.Infof("rb: %s @ %v", TagStartBuy, lv.BuyStart)
		case ask <= lv.SellStart || last <= lv.SellStart:
			if _, err := b.orders.Order(lv.SellStart, -1, TagStartSell); err != nil {
				return errors.Wrap(err, "rb entry")
			}
			b.position--
			logs.Infof("rb: %s @ %v", TagStartSell, lv.SellStart)
		}
	}

	switch {
	case b.position > 0 && (ask <= lv.BuyStop || last <= lv.BuyStop):
		if _, err := b.orders.Order(lv.BuyStop, -1, TagStopBuy); err != nil {
			return errors.Wrap(err, "rb exit")
		}
		b.position--
		logs.Infof("rb: %s @ %v", TagStopBuy, lv.BuyStop)
	case b.position < 0 && (bid >= lv.SellStop || last >= lv.SellStop):
		if _, err := b.orders.Order(lv.SellStop, 1, TagStopSell); err != nil {
			return errors.Wrap(err, "rb exit")
		}
		b.position++
		logs.Infof("rb: %s @ %v", TagStopSell, lv.SellStop)
	}
	return nil
}

func (b *Breakout) widen(high, low float64) {
	if high > 0 && (b.rangeHigh == 0 || high > b.rangeHigh) {
		b.rangeHigh = high
	}
	if low > 0 && (b.rangeLow == 0 || low < b.rangeLow) {
		b.rangeLow = low
	}
}

func (b *Breakout) updateVol(w OHLC) bool {
	vol, ok := GarmanKlass(w)
	if ok {
		b.vol = vol
	}
	return ok
}

func (b *Breakout) latchVol() {
	if b.vol < b.cfg.VolCeiling {
		if !b.gates.Vol {
			logs.Infof("rb: vol ok %.5f < %v", b.vol, b.cfg.VolCeiling)
		}
		b.gates.Vol = true
		return
	}
	logs.Infof("rb: vol not ok %.5f >= %v", b.vol, b.cfg.VolCeiling)
}

func (b *Breakout) calcLevels() {
	b.levels = ComputeLevels(b.cfg, b.rangeHigh, b.rangeLow, b.vol)
}

// ComputeLevels places the entries MinOffset or more inside the range edges
// and the stops further inside. Stops are always at least one tick behind
// their entries.
func ComputeLevels(cfg BreakoutConfig, high, low, vol float64) Levels {
	size := cfg.TickSize()
	rng := high - low
	scale := rng * math.Min(cfg.VolCap, vol)
	offset := func(factor float64) float64 {
		return math.Max(cfg.MinOffset, scale*factor)
	}

	lv := Levels{
		BuyStart:  tick.Round(high-offset(cfg.BuyStartFactor), size),
		BuyStop:   tick.Round(high-offset(cfg.BuyStopFactor), size),
		SellStart: tick.Round(low+offset(cfg.SellStartFactor), size),
		SellStop:  tick.Round(low+offset(cfg.SellStopFactor), size),
	}
	if lv.BuyStop >= lv.BuyStart {
		lv.BuyStop = behind(lv.BuyStart, -size)
	}
	if lv.SellStop <= lv.SellStart {
		lv.SellStop = behind(lv.SellStart, size)
	}
	return lv
}

// behind moves price by step, or by the smallest float step when no tick
// size is known.
func behind(price, step float64) float64 {
	if step != 0 {
		return price + step
	}
	return math.Nextafter(price, math.Inf(-1))
}
