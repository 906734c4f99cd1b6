package og

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuetrader/internal/schema"
	"venuetrader/pkg/exception"
)

func TestLifecycleFillPath(t *testing.T) {
	l := NewLifecycle()
	now := time.Now()

	_, err := l.ApplySubmit(schema.OrderAdd{ClientID: "c1", Qty: 3, Side: schema.SideBuy}, now)
	require.NoError(t, err)
	_, err = l.ApplySubmit(schema.OrderAdd{ClientID: "c1", Qty: 3}, now)
	require.ErrorIs(t, err, ErrDuplicateOrder)
	assert.Len(t, l.Pending(), 1)

	o, err := l.ApplyEvent(schema.MsgOrderAddEvent, schema.OrderEvent{ClientID: "c1", OrderNo: "9", Qty: 3})
	require.NoError(t, err)
	assert.Equal(t, OrderStateWorking, o.State)
	assert.Empty(t, l.Pending())

	// fills may only carry the order number
	o, err = l.ApplyFill(schema.FillNotice{OrderNo: "9", Qty: 1})
	require.NoError(t, err)
	assert.Equal(t, OrderStatePartFilled, o.State)
	assert.Equal(t, int64(2), o.LeavesQty)

	o, err = l.ApplyFill(schema.FillNotice{OrderNo: "9", Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, OrderStateFilled, o.State)

	_, err = l.ApplyFill(schema.FillNotice{OrderNo: "9", Qty: 1})
	require.ErrorIs(t, err, exception.ErrOrderInvalidTransfer)

	assert.Equal(t, 1, l.Prune(now.Add(-time.Hour)))
	assert.Zero(t, l.Len())
}

func TestLifecycleFailures(t *testing.T) {
	l := NewLifecycle()
	now := time.Now()
	_, _ = l.ApplySubmit(schema.OrderAdd{ClientID: "c1", Qty: 1}, now)
	_, _ = l.ApplySubmit(schema.OrderAdd{ClientID: "c2", Qty: 1}, now)

	o, err := l.ApplyFailure(schema.MsgOrderAddFailure, schema.OrderFailure{ClientID: "c1", Reason: "no"})
	require.NoError(t, err)
	assert.Equal(t, OrderStateRejected, o.State)

	_, _ = l.ApplyEvent(schema.MsgOrderAddEvent, schema.OrderEvent{ClientID: "c2", OrderNo: "2", Qty: 1})
	o, err = l.ApplyFailure(schema.MsgOrderChangeFailure, schema.OrderFailure{OrderNo: "2"})
	require.NoError(t, err)
	assert.Equal(t, OrderStateWorking, o.State)

	o, err = l.ApplyEvent(schema.MsgOrderCancelEvent, schema.OrderEvent{OrderNo: "2"})
	require.NoError(t, err)
	assert.Equal(t, OrderStateCanceled, o.State)

	_, err = l.ApplyFailure(schema.MsgOrderAddFailure, schema.OrderFailure{ClientID: "missing"})
	require.ErrorIs(t, err, ErrUnknownOrder)
}

func TestLifecyclePruneStale(t *testing.T) {
	l := NewLifecycle()
	old := time.Now().Add(-time.Hour)
	_, _ = l.ApplySubmit(schema.OrderAdd{ClientID: "old", Qty: 1}, old)
	_, _ = l.ApplySubmit(schema.OrderAdd{ClientID: "new", Qty: 1}, time.Now())

	assert.Equal(t, 1, l.Prune(time.Now().Add(-time.Minute)))
	_, ok := l.Order("new")
	assert.True(t, ok)
}
