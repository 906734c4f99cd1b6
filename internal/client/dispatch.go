package client

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/yanun0323/logs"

	"venuetrader/internal/bus"
	"venuetrader/internal/codec"
	"venuetrader/internal/obs"
	"venuetrader/internal/og"
	"venuetrader/internal/recorder"
	"venuetrader/internal/schema"
	"venuetrader/internal/state"
)

// Dispatcher applies inbound venue messages to the state store, the order
// lifecycle tracker and the trade log. All store mutations go through one
// dispatcher goroutine.
type Dispatcher struct {
	store     *state.Store
	registry  *schema.Registry
	lifecycle *og.Lifecycle
	trades    *recorder.TradeLog
	metrics   *obs.Metrics
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. lifecycle, trades and metrics may be nil.
func NewDispatcher(store *state.Store, registry *schema.Registry, lifecycle *og.Lifecycle, trades *recorder.TradeLog, metrics *obs.Metrics) *Dispatcher {
	return &Dispatcher{
		store:     store,
		registry:  registry,
		lifecycle: lifecycle,
		trades:    trades,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Run consumes the queue until ctx is done or the queue is closed.
func (d *Dispatcher) Run(ctx context.Context, queue *bus.Queue) {
	queue.Run(ctx, func(ev bus.Event) {
		d.Handle(ev)
		if !ev.Received.IsZero() {
			d.metrics.ObserveDispatch(time.Since(ev.Received))
		}
	})
}

// Handle applies one inbound envelope. Decode failures are logged and the
// message is dropped.
func (d *Dispatcher) Handle(ev bus.Event) {
	if err := d.handle(ev); err != nil {
		logs.Errorf("dispatch[%s]: %s, err: %+v", ev.Session, ev.Envelope.Type(), err)
	}
	d.metrics.SetBook(d.store.OrderCount(), d.store.NetPosition())
}

func (d *Dispatcher) handle(ev bus.Event) error {
	kind := ev.Envelope.Type()
	payload := ev.Envelope.Payload

	switch kind {
	case schema.MsgHeartbeat, schema.MsgLoginResponse:
		// session control, handled by the client loop
		return nil

	case schema.MsgMarketUpdates:
		msg, err := codec.DecodeMarketUpdates(payload)
		if err != nil {
			return err
		}
		d.store.ApplyMarketUpdates(msg, d.now())

	case schema.MsgActiveOrdersResponse:
		msg, err := codec.DecodeActiveOrders(payload)
		if err != nil {
			return err
		}
		d.store.ReplaceOrders(msg)

	case schema.MsgPositionsResponse:
		msg, err := codec.DecodePositions(payload)
		if err != nil {
			return err
		}
		d.store.UpsertPositions(msg)

	case schema.MsgOrderAddEvent, schema.MsgOrderChangeEvent:
		msg, err := codec.DecodeOrderEvent(payload)
		if err != nil {
			return err
		}
		d.store.ApplyOrderEvent(msg)
		d.track(kind, msg)
		logs.Infof("dispatch: %s %s %s %s %d @ %d worker %s tag %s",
			kind, msg.OrderNo, msg.Account, msg.Side, msg.Qty, msg.Price, msg.Prefix, msg.Tag)

	case schema.MsgOrderCancelEvent:
		msg, err := codec.DecodeOrderEvent(payload)
		if err != nil {
			return err
		}
		d.store.RemoveOrders(msg.OrderNo)
		d.track(kind, msg)
		logs.Infof("dispatch: %s %s", kind, msg.OrderNo)

	case schema.MsgMassCancelEvent:
		msg, err := codec.DecodeMassCancelEvent(payload)
		if err != nil {
			return err
		}
		nos := make([]string, 0, len(msg.Canceled))
		for _, o := range msg.Canceled {
			nos = append(nos, o.OrderNo)
			d.track(kind, o)
		}
		d.store.RemoveOrders(nos...)
		logs.Infof("dispatch: %s %d orders (%s)", kind, len(nos), strings.Join(nos, ", "))

	case schema.MsgOrderAddFailure, schema.MsgOrderChangeFailure, schema.MsgOrderCancelFailure:
		msg, err := codec.DecodeOrderFailure(payload)
		if err != nil {
			return err
		}
		d.metrics.IncVenueFault(kind)
		if d.lifecycle != nil {
			if _, err := d.lifecycle.ApplyFailure(kind, msg); err != nil && !stderrors.Is(err, og.ErrUnknownOrder) {
				logs.Errorf("dispatch: lifecycle %s %s, err: %+v", kind, msg.OrderNo, err)
			}
		}
		logs.Errorf("dispatch: %s for %s order (%s) code %d: %q",
			kind, msg.Contract.SecDesc, msg.OrderNo, msg.ErrorCode, msg.Reason)

	case schema.MsgFillNotice:
		msg, err := codec.DecodeFillNotice(payload)
		if err != nil {
			return err
		}
		d.fill(msg)

	case schema.MsgError:
		msg, err := codec.DecodeError(payload)
		if err != nil {
			return err
		}
		d.metrics.IncVenueFault(kind)
		logs.Errorf("dispatch[%s]: venue error %d: %s", ev.Session, msg.Code, msg.Msg)

	case schema.MsgNinjaResponse:
		msg, err := codec.DecodeNinjaInfo(payload)
		if err != nil {
			return err
		}
		logs.Infof("dispatch[%s]: connected to ninja %s", ev.Session, msg.Name)

	case schema.MsgAccountsResponse:
		msg, err := codec.DecodeAccounts(payload)
		if err != nil {
			return err
		}
		logs.Infof("dispatch[%s]: available accounts are %s", ev.Session, strings.Join(msg.Accounts, ", "))

	case schema.MsgWorkingRulesResponse:
		msg, err := codec.DecodeWorkingRules(payload)
		if err != nil {
			return err
		}
		for _, rule := range msg.Rules {
			logs.Infof("dispatch[%s]: found working rule '%s' with type %d", ev.Session, rule.Prefix, rule.WorkType)
		}

	case schema.MsgPriceFeedStatusResponse:
		msg, err := codec.DecodePriceFeedStatus(payload)
		if err != nil {
			return err
		}
		logs.Infof("dispatch[%s]: price feed status is %d", ev.Session, msg.Status)

	case schema.MsgSheetsResponse:
		msg, err := codec.DecodeSheets(payload)
		if err != nil {
			return err
		}
		for _, sheet := range msg.Sheets {
			names := make([]string, 0, len(sheet.Contracts))
			for _, c := range sheet.Contracts {
				names = append(names, c.SecDesc)
			}
			logs.Infof("dispatch[%s]: sheet %s has contracts %s", ev.Session, sheet.Name, strings.Join(names, ", "))
		}

	default:
		logs.Infof("dispatch[%s]: ignored %s", ev.Session, kind)
	}
	return nil
}

func (d *Dispatcher) track(kind schema.MsgType, ev schema.OrderEvent) {
	if d.lifecycle == nil {
		return
	}
	if _, err := d.lifecycle.ApplyEvent(kind, ev); err != nil && !stderrors.Is(err, og.ErrUnknownOrder) {
		logs.Errorf("dispatch: lifecycle %s %s, err: %+v", kind, ev.OrderNo, err)
	}
}

func (d *Dispatcher) fill(msg schema.FillNotice) {
	d.store.ApplyFill(msg)
	if d.lifecycle != nil {
		if _, err := d.lifecycle.ApplyFill(msg); err != nil && !stderrors.Is(err, og.ErrUnknownOrder) {
			logs.Errorf("dispatch: lifecycle fill %s, err: %+v", msg.OrderNo, err)
		}
	}

	price := float64(msg.Price)
	if p, ok := d.registry.ProductByName(msg.Contract.SecDesc); ok {
		price = p.FromWire(msg.Price)
	}
	ts := d.now()
	if msg.TransactTime > 0 {
		ts = time.Unix(0, msg.TransactTime)
	}
	qty := msg.Side.Signed(msg.Qty)
	logs.Infof("dispatch: fill %s %s %s %d @ %v tag %s", msg.OrderNo, msg.Account, msg.Contract.SecDesc, qty, price, msg.Tag)

	if d.trades == nil {
		return
	}
	trade := recorder.Trade{Time: ts, Price: price, Qty: qty, Account: msg.Account, Tag: msg.Tag}
	if err := d.trades.TryAppend(trade); err != nil {
		logs.Errorf("dispatch: trade log %s, err: %+v", msg.OrderNo, err)
	}
}
