package paper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuetrader/internal/history"
	"venuetrader/internal/schema"
	"venuetrader/internal/state"
	"venuetrader/internal/strategy"
)

var t0 = time.Date(2025, 7, 15, 9, 0, 0, 0, time.UTC)

func newTestVenue(t *testing.T) *Venue {
	t.Helper()
	reg := schema.NewRegistry()
	_, err := reg.AddProduct("NQU5", schema.ExchangeCME, 0.25, 100)
	require.NoError(t, err)
	v, err := NewVenue(DefaultConfig(), reg)
	require.NoError(t, err)
	require.NoError(t, v.Open("NQU5", "FW079"))
	return v
}

func tick(offset time.Duration, price float64) history.Tick {
	return history.Tick{Time: t0.Add(offset), Price: schema.Price(price * 100), Qty: 1}
}

func TestVenueLimitAndStop(t *testing.T) {
	v := newTestVenue(t)
	key := state.PositionKey{Account: "FW079", Exchange: schema.ExchangeCME, Product: "NQU5"}
	route := v.Route("FW079", "NQU5", "w")

	require.NoError(t, v.Feed("NQU5", tick(0, 20000)))
	m, ok := v.Store().Market("NQU5")
	require.True(t, ok)
	assert.Equal(t, 20000.0, m.Bid)
	assert.Equal(t, 20000.25, m.Ask)

	version := v.Store().PositionVersion()
	_, err := route.Order(m.Ask, 1, strategy.TagStartBuy)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v.Store().Position(key))
	assert.Greater(t, v.Store().PositionVersion(), version)

	id, err := route.OrderAs("D", 19990, -2, strategy.TagTrailStop)
	require.NoError(t, err)
	orderNo, ok := route.OrderNo(id)
	require.True(t, ok)
	require.Len(t, v.Store().OrdersBy("FW079", "NQU5", "D"), 1)

	require.NoError(t, route.Change(orderNo, 19995, 2, "D"))
	o, ok := v.Store().Order(orderNo)
	require.True(t, ok)
	assert.Equal(t, 19995.0, o.Price)

	require.NoError(t, v.Feed("NQU5", tick(time.Second, 19996)))
	assert.EqualValues(t, 1, v.Store().Position(key))

	require.NoError(t, v.Feed("NQU5", tick(2*time.Second, 19995)))
	assert.EqualValues(t, -1, v.Store().Position(key))
	assert.Zero(t, v.Store().OrderCount())

	fills := v.Fills()
	require.Len(t, fills, 2)
	assert.Equal(t, Fill{Time: t0, OrderNo: "P000001", Account: "FW079", Product: "NQU5", Price: 20000.25, Qty: 1, Tag: strategy.TagStartBuy}, fills[0])
	assert.EqualValues(t, -2, fills[1].Qty)
	assert.InDelta(t, -5.25, v.PnL("FW079"), 1e-9)
}

func TestVenueFlattenCancelsResting(t *testing.T) {
	v := newTestVenue(t)
	key := state.PositionKey{Account: "FW079", Exchange: schema.ExchangeCME, Product: "NQU5"}
	route := v.Route("FW079", "NQU5", "w")
	require.NoError(t, v.Feed("NQU5", tick(0, 20000)))

	_, err := route.Order(20000, -1, strategy.TagStartSell)
	require.NoError(t, err)
	_, err = route.Order(19900, 1, "BID")
	require.NoError(t, err)
	require.Equal(t, 1, v.Store().OrderCount())

	_, err = route.Flatten(20000.25, 1, strategy.TagMarketFlatten)
	require.NoError(t, err)
	assert.Zero(t, v.Store().OrderCount())
	assert.Zero(t, v.Store().Position(key))
	assert.InDelta(t, -0.25, v.PnL("FW079"), 1e-9)
}

type scripted struct {
	route   *Route
	steps   []time.Time
	clocked time.Time
}

func (s *scripted) Name() string                  { return "scripted" }
func (s *scripted) Interval() time.Duration       { return time.Minute }
func (s *scripted) Warmup(context.Context) error  { return nil }
func (s *scripted) SetClock(now func() time.Time) { s.clocked = now() }

func (s *scripted) Step(_ context.Context, now time.Time) error {
	s.steps = append(s.steps, now)
	switch len(s.steps) {
	case 1:
		_, err := s.route.Order(20000.25, 1, strategy.TagStartBuy)
		return err
	case 4:
		return strategy.ErrFinished
	}
	return nil
}

func TestReplayStepsAtInterval(t *testing.T) {
	v := newTestVenue(t)
	s := &scripted{route: v.Route("FW079", "NQU5", "w")}

	var ticks []history.Tick
	for i := 0; i <= 12; i++ {
		ticks = append(ticks, tick(time.Duration(i)*20*time.Second, 20000+float64(i)))
	}

	report, err := Replay(context.Background(), v, "NQU5", ticks, s)
	require.NoError(t, err)
	assert.Equal(t, t0, s.clocked)
	assert.Equal(t, []time.Time{t0, t0.Add(time.Minute), t0.Add(2 * time.Minute), t0.Add(3 * time.Minute)}, s.steps)
	assert.Equal(t, 13, report.Ticks)
	assert.Equal(t, 4, report.Steps)
	assert.Equal(t, []string{"scripted"}, report.Finished)
	require.Len(t, report.Accounts, 1)
	assert.Equal(t, AccountReport{Account: "FW079", Fills: 1, Position: 1, PnL: 11.75}, report.Accounts[0])
}

func TestSplit(t *testing.T) {
	ticks := []history.Tick{tick(0, 1), tick(time.Minute, 2), tick(2*time.Minute, 3)}
	warm, replay := Split(ticks, t0.Add(time.Minute))
	assert.Len(t, warm, 1)
	assert.Len(t, replay, 2)

	_, err := Replay(context.Background(), newTestVenue(t), "NQU5", nil)
	assert.Error(t, err)
}
