package codec

import (
	"venuetrader/internal/schema"

	"github.com/yanun0323/errors"
)

// EncodeOrderAdd serializes an order add request.
func EncodeOrderAdd(dst []byte, order schema.OrderAdd) []byte {
	dst = dst[:0]
	dst = appendString(dst, 1, order.Account)
	dst = appendContractField(dst, 2, order.Contract)
	dst = appendInt(dst, 3, int64(order.Side))
	dst = appendInt(dst, 4, order.Qty)
	dst = appendInt(dst, 5, int64(order.Price))
	dst = appendString(dst, 6, order.Prefix)
	dst = appendString(dst, 7, order.Tag)
	dst = appendString(dst, 8, order.ClientID)
	return dst
}

// DecodeOrderAdd parses an order add request.
func DecodeOrderAdd(src []byte) (schema.OrderAdd, error) {
	var order schema.OrderAdd
	err := walk(src, func(f field) error {
		var err error
		switch f.num {
		case 1:
			order.Account = f.str()
		case 2:
			order.Contract, err = decodeContract(f.bytes)
		case 3:
			order.Side = schema.Side(f.int32())
		case 4:
			order.Qty = f.int64()
		case 5:
			order.Price = schema.Price(f.int64())
		case 6:
			order.Prefix = f.str()
		case 7:
			order.Tag = f.str()
		case 8:
			order.ClientID = f.str()
		}
		return err
	})
	if err != nil {
		return schema.OrderAdd{}, errors.Wrap(err, "decode order add")
	}
	return order, nil
}

// EncodeOrderChange serializes an order change request.
func EncodeOrderChange(dst []byte, change schema.OrderChange) []byte {
	dst = dst[:0]
	dst = appendString(dst, 1, change.OrderNo)
	dst = appendInt(dst, 2, change.Qty)
	dst = appendInt(dst, 3, int64(change.Price))
	dst = appendString(dst, 4, change.Prefix)
	return dst
}

// DecodeOrderChange parses an order change request.
func DecodeOrderChange(src []byte) (schema.OrderChange, error) {
	var change schema.OrderChange
	err := walk(src, func(f field) error {
		switch f.num {
		case 1:
			change.OrderNo = f.str()
		case 2:
			change.Qty = f.int64()
		case 3:
			change.Price = schema.Price(f.int64())
		case 4:
			change.Prefix = f.str()
		}
		return nil
	})
	if err != nil {
		return schema.OrderChange{}, errors.Wrap(err, "decode order change")
	}
	return change, nil
}

// EncodeOrderCancel serializes an order cancel request.
func EncodeOrderCancel(dst []byte, cancel schema.OrderCancel) []byte {
	return appendString(dst[:0], 1, cancel.OrderNo)
}

// DecodeOrderCancel parses an order cancel request.
func DecodeOrderCancel(src []byte) (schema.OrderCancel, error) {
	var cancel schema.OrderCancel
	err := walk(src, func(f field) error {
		if f.num == 1 {
			cancel.OrderNo = f.str()
		}
		return nil
	})
	if err != nil {
		return schema.OrderCancel{}, errors.Wrap(err, "decode order cancel")
	}
	return cancel, nil
}

// EncodeCancelAllOrders serializes a mass cancel request.
func EncodeCancelAllOrders(dst []byte, req schema.CancelAllOrders) []byte {
	return appendBool(dst[:0], 1, req.CancelGTCs)
}

// DecodeCancelAllOrders parses a mass cancel request.
func DecodeCancelAllOrders(src []byte) (schema.CancelAllOrders, error) {
	var req schema.CancelAllOrders
	err := walk(src, func(f field) error {
		if f.num == 1 {
			req.CancelGTCs = f.boolean()
		}
		return nil
	})
	if err != nil {
		return schema.CancelAllOrders{}, errors.Wrap(err, "decode cancel all orders")
	}
	return req, nil
}

// EncodeGetActiveOrders serializes an active orders request.
func EncodeGetActiveOrders(dst []byte, req schema.GetActiveOrders) []byte {
	return appendBool(dst[:0], 1, req.ShowOnlyApiOrders)
}

// DecodeGetActiveOrders parses an active orders request.
func DecodeGetActiveOrders(src []byte) (schema.GetActiveOrders, error) {
	var req schema.GetActiveOrders
	err := walk(src, func(f field) error {
		if f.num == 1 {
			req.ShowOnlyApiOrders = f.boolean()
		}
		return nil
	})
	if err != nil {
		return schema.GetActiveOrders{}, errors.Wrap(err, "decode get active orders")
	}
	return req, nil
}

func appendOrderEvent(dst []byte, ev schema.OrderEvent) []byte {
	dst = appendString(dst, 1, ev.OrderNo)
	dst = appendString(dst, 2, ev.Account)
	dst = appendContractField(dst, 3, ev.Contract)
	dst = appendInt(dst, 4, int64(ev.Side))
	dst = appendInt(dst, 5, ev.Qty)
	dst = appendInt(dst, 6, int64(ev.Price))
	dst = appendString(dst, 7, ev.Prefix)
	dst = appendString(dst, 8, ev.Tag)
	dst = appendString(dst, 9, ev.ClientID)
	return dst
}

func decodeOrderEvent(src []byte) (schema.OrderEvent, error) {
	var ev schema.OrderEvent
	err := walk(src, func(f field) error {
		var err error
		switch f.num {
		case 1:
			ev.OrderNo = f.str()
		case 2:
			ev.Account = f.str()
		case 3:
			ev.Contract, err = decodeContract(f.bytes)
		case 4:
			ev.Side = schema.Side(f.int32())
		case 5:
			ev.Qty = f.int64()
		case 6:
			ev.Price = schema.Price(f.int64())
		case 7:
			ev.Prefix = f.str()
		case 8:
			ev.Tag = f.str()
		case 9:
			ev.ClientID = f.str()
		}
		return err
	})
	return ev, err
}

// EncodeOrderEvent serializes an order add/change/cancel event.
func EncodeOrderEvent(dst []byte, ev schema.OrderEvent) []byte {
	return appendOrderEvent(dst[:0], ev)
}

// DecodeOrderEvent parses an order add/change/cancel event.
func DecodeOrderEvent(src []byte) (schema.OrderEvent, error) {
	ev, err := decodeOrderEvent(src)
	if err != nil {
		return schema.OrderEvent{}, errors.Wrap(err, "decode order event")
	}
	return ev, nil
}

// EncodeActiveOrders serializes an active orders snapshot.
func EncodeActiveOrders(dst []byte, resp schema.ActiveOrders) []byte {
	dst = dst[:0]
	for _, o := range resp.Orders {
		dst = appendMessage(dst, 1, func(b []byte) []byte { return appendOrderEvent(b, o) })
	}
	return dst
}

// DecodeActiveOrders parses an active orders snapshot.
func DecodeActiveOrders(src []byte) (schema.ActiveOrders, error) {
	var resp schema.ActiveOrders
	err := walk(src, func(f field) error {
		if f.num != 1 {
			return nil
		}
		o, err := decodeOrderEvent(f.bytes)
		if err != nil {
			return err
		}
		resp.Orders = append(resp.Orders, o)
		return nil
	})
	if err != nil {
		return schema.ActiveOrders{}, errors.Wrap(err, "decode active orders")
	}
	return resp, nil
}

// EncodeMassCancelEvent serializes a mass cancel event.
func EncodeMassCancelEvent(dst []byte, ev schema.MassCancelEvent) []byte {
	dst = dst[:0]
	for _, o := range ev.Canceled {
		dst = appendMessage(dst, 1, func(b []byte) []byte { return appendOrderEvent(b, o) })
	}
	return dst
}

// DecodeMassCancelEvent parses a mass cancel event.
func DecodeMassCancelEvent(src []byte) (schema.MassCancelEvent, error) {
	var ev schema.MassCancelEvent
	err := walk(src, func(f field) error {
		if f.num != 1 {
			return nil
		}
		o, err := decodeOrderEvent(f.bytes)
		if err != nil {
			return err
		}
		ev.Canceled = append(ev.Canceled, o)
		return nil
	})
	if err != nil {
		return schema.MassCancelEvent{}, errors.Wrap(err, "decode mass cancel event")
	}
	return ev, nil
}

// EncodeOrderFailure serializes an order add/change/cancel failure.
func EncodeOrderFailure(dst []byte, fail schema.OrderFailure) []byte {
	dst = dst[:0]
	dst = appendString(dst, 1, fail.OrderNo)
	dst = appendContractField(dst, 2, fail.Contract)
	dst = appendInt(dst, 3, int64(fail.Side))
	dst = appendInt(dst, 4, fail.Qty)
	dst = appendInt(dst, 5, int64(fail.Price))
	dst = appendString(dst, 6, fail.Prefix)
	dst = appendInt(dst, 7, int64(fail.ErrorCode))
	dst = appendString(dst, 8, fail.Reason)
	dst = appendString(dst, 9, fail.ClientID)
	return dst
}

// DecodeOrderFailure parses an order add/change/cancel failure.
func DecodeOrderFailure(src []byte) (schema.OrderFailure, error) {
	var fail schema.OrderFailure
	err := walk(src, func(f field) error {
		var err error
		switch f.num {
		case 1:
			fail.OrderNo = f.str()
		case 2:
			fail.Contract, err = decodeContract(f.bytes)
		case 3:
			fail.Side = schema.Side(f.int32())
		case 4:
			fail.Qty = f.int64()
		case 5:
			fail.Price = schema.Price(f.int64())
		case 6:
			fail.Prefix = f.str()
		case 7:
			fail.ErrorCode = f.int32()
		case 8:
			fail.Reason = f.str()
		case 9:
			fail.ClientID = f.str()
		}
		return err
	})
	if err != nil {
		return schema.OrderFailure{}, errors.Wrap(err, "decode order failure")
	}
	return fail, nil
}
