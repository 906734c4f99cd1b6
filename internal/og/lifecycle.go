package og

import (
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"venuetrader/internal/schema"
	"venuetrader/pkg/exception"
)

var (
	ErrDuplicateOrder = errors.New("order already exists")
	ErrUnknownOrder   = errors.New("order not found")
)

// OrderState tracks the lifecycle of a locally submitted order.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateSent
	OrderStateWorking
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStateSent:
		return "SENT"
	case OrderStateWorking:
		return "WORKING"
	case OrderStatePartFilled:
		return "PART_FILLED"
	case OrderStateFilled:
		return "FILLED"
	case OrderStateCanceled:
		return "CANCELED"
	case OrderStateRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Order is the gateway's view of an order it submitted.
type Order struct {
	ClientID  string
	OrderNo   string
	Account   string
	Product   string
	Side      schema.Side
	Price     schema.Price
	Qty       int64
	LeavesQty int64
	Worker    string
	Tag       string
	State     OrderState
	SentAt    time.Time
}

// Lifecycle follows locally submitted orders from submission until the venue
// reports a terminal state. It never feeds the state store: venue snapshots
// stay the source of truth for resting orders.
type Lifecycle struct {
	mu       sync.Mutex
	orders   map[string]*Order // by client id
	byNumber map[string]string // order number -> client id
}

// NewLifecycle creates an empty tracker.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		orders:   make(map[string]*Order),
		byNumber: make(map[string]string),
	}
}

// ApplySubmit registers a new order in Sent state.
func (l *Lifecycle) ApplySubmit(add schema.OrderAdd, now time.Time) (Order, error) {
	if add.ClientID == "" {
		return Order{}, ErrUnknownOrder
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.orders[add.ClientID]; ok {
		return Order{}, ErrDuplicateOrder
	}
	o := &Order{
		ClientID:  add.ClientID,
		Account:   add.Account,
		Product:   add.Contract.SecDesc,
		Side:      add.Side,
		Price:     add.Price,
		Qty:       add.Qty,
		LeavesQty: add.Qty,
		Worker:    add.Prefix,
		Tag:       add.Tag,
		State:     OrderStateSent,
		SentAt:    now,
	}
	l.orders[o.ClientID] = o
	return *o, nil
}

func (l *Lifecycle) lookup(clientID, orderNo string) (*Order, bool) {
	if clientID != "" {
		if o, ok := l.orders[clientID]; ok {
			return o, true
		}
	}
	if id, ok := l.byNumber[orderNo]; ok {
		o, ok := l.orders[id]
		return o, ok
	}
	return nil, false
}

// ApplyEvent updates an order from an add, change or cancel event.
func (l *Lifecycle) ApplyEvent(kind schema.MsgType, ev schema.OrderEvent) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.lookup(ev.ClientID, ev.OrderNo)
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return *o, exception.ErrOrderInvalidTransfer
	}
	if ev.OrderNo != "" {
		o.OrderNo = ev.OrderNo
		l.byNumber[ev.OrderNo] = o.ClientID
	}

	switch kind {
	case schema.MsgOrderAddEvent, schema.MsgOrderChangeEvent:
		if ev.Qty != 0 {
			o.LeavesQty = ev.Qty
		}
		if ev.Price != 0 {
			o.Price = ev.Price
		}
		if ev.Prefix != "" {
			o.Worker = ev.Prefix
		}
		if o.State == OrderStateSent {
			o.State = OrderStateWorking
		}
	case schema.MsgOrderCancelEvent, schema.MsgMassCancelEvent:
		o.State = OrderStateCanceled
	default:
		return *o, exception.ErrOrderInvalidTransfer
	}
	return *o, nil
}

// ApplyFailure updates an order from a venue failure. Only add failures are
// terminal; a failed change or cancel leaves the order as it was.
func (l *Lifecycle) ApplyFailure(kind schema.MsgType, fail schema.OrderFailure) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.lookup(fail.ClientID, fail.OrderNo)
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if kind == schema.MsgOrderAddFailure && !isTerminal(o.State) {
		o.State = OrderStateRejected
	}
	return *o, nil
}

// ApplyFill updates an order from a fill notice.
func (l *Lifecycle) ApplyFill(fill schema.FillNotice) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.lookup(fill.ClientID, fill.OrderNo)
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return *o, exception.ErrOrderInvalidTransfer
	}
	if fill.Qty <= 0 {
		return *o, exception.ErrOrderZeroQty
	}
	if fill.OrderNo != "" && o.OrderNo == "" {
		o.OrderNo = fill.OrderNo
		l.byNumber[fill.OrderNo] = o.ClientID
	}
	o.LeavesQty -= fill.Qty
	if o.LeavesQty <= 0 {
		o.LeavesQty = 0
		o.State = OrderStateFilled
	} else {
		o.State = OrderStatePartFilled
	}
	return *o, nil
}

// Order returns the tracked order for a client id.
func (l *Lifecycle) Order(clientID string) (Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[clientID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// OrderNo returns the venue order number assigned to a client id.
func (l *Lifecycle) OrderNo(clientID string) (string, bool) {
	o, ok := l.Order(clientID)
	if !ok || o.OrderNo == "" {
		return "", false
	}
	return o.OrderNo, true
}

// Pending returns orders the venue has not yet acknowledged.
func (l *Lifecycle) Pending() []Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Order
	for _, o := range l.orders {
		if o.State == OrderStateSent {
			out = append(out, *o)
		}
	}
	return out
}

// Prune forgets terminal orders and orders sent before cutoff.
func (l *Lifecycle) Prune(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, o := range l.orders {
		if isTerminal(o.State) || o.SentAt.Before(cutoff) {
			delete(l.orders, id)
			if o.OrderNo != "" {
				delete(l.byNumber, o.OrderNo)
			}
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked orders.
func (l *Lifecycle) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.orders)
}

func isTerminal(state OrderState) bool {
	switch state {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return true
	default:
		return false
	}
}
