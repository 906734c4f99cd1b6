package codec

import (
	"venuetrader/internal/schema"

	"github.com/yanun0323/errors"
)

// EncodeStartMarketData serializes a market data subscription.
func EncodeStartMarketData(dst []byte, req schema.StartMarketData) []byte {
	dst = dst[:0]
	for _, c := range req.Contracts {
		dst = appendContractField(dst, 1, c)
	}
	dst = appendInt(dst, 2, req.CadenceMillis)
	dst = appendBool(dst, 3, req.IncludeImplieds)
	dst = appendBool(dst, 4, req.IncludeTradeUpdates)
	return dst
}

// DecodeStartMarketData parses a market data subscription.
func DecodeStartMarketData(src []byte) (schema.StartMarketData, error) {
	var req schema.StartMarketData
	err := walk(src, func(f field) error {
		switch f.num {
		case 1:
			c, err := decodeContract(f.bytes)
			if err != nil {
				return err
			}
			req.Contracts = append(req.Contracts, c)
		case 2:
			req.CadenceMillis = f.int64()
		case 3:
			req.IncludeImplieds = f.boolean()
		case 4:
			req.IncludeTradeUpdates = f.boolean()
		}
		return nil
	})
	if err != nil {
		return schema.StartMarketData{}, errors.Wrap(err, "decode start market data")
	}
	return req, nil
}

// EncodeStopMarketData serializes a market data unsubscription.
func EncodeStopMarketData(dst []byte, req schema.StopMarketData) []byte {
	dst = dst[:0]
	for _, c := range req.Contracts {
		dst = appendContractField(dst, 1, c)
	}
	return dst
}

// DecodeStopMarketData parses a market data unsubscription.
func DecodeStopMarketData(src []byte) (schema.StopMarketData, error) {
	var req schema.StopMarketData
	err := walk(src, func(f field) error {
		if f.num != 1 {
			return nil
		}
		c, err := decodeContract(f.bytes)
		if err != nil {
			return err
		}
		req.Contracts = append(req.Contracts, c)
		return nil
	})
	if err != nil {
		return schema.StopMarketData{}, errors.Wrap(err, "decode stop market data")
	}
	return req, nil
}

func appendMarketUpdate(dst []byte, u schema.MarketUpdate) []byte {
	dst = appendContractField(dst, 1, u.Contract)
	for _, tr := range u.Trades {
		dst = appendMessage(dst, 2, func(b []byte) []byte {
			b = appendInt(b, 1, int64(tr.Price))
			b = appendInt(b, 2, tr.Qty)
			return b
		})
	}
	dst = appendMessage(dst, 3, func(b []byte) []byte {
		b = appendInt(b, 1, int64(u.Tob.BidPrice))
		b = appendInt(b, 2, u.Tob.BidQty)
		b = appendInt(b, 3, int64(u.Tob.AskPrice))
		b = appendInt(b, 4, u.Tob.AskQty)
		return b
	})
	return dst
}

func decodeMarketUpdate(src []byte) (schema.MarketUpdate, error) {
	var u schema.MarketUpdate
	err := walk(src, func(f field) error {
		var err error
		switch f.num {
		case 1:
			u.Contract, err = decodeContract(f.bytes)
		case 2:
			var tr schema.TradeUpdate
			err = walk(f.bytes, func(g field) error {
				switch g.num {
				case 1:
					tr.Price = schema.Price(g.int64())
				case 2:
					tr.Qty = g.int64()
				}
				return nil
			})
			u.Trades = append(u.Trades, tr)
		case 3:
			err = walk(f.bytes, func(g field) error {
				switch g.num {
				case 1:
					u.Tob.BidPrice = schema.Price(g.int64())
				case 2:
					u.Tob.BidQty = g.int64()
				case 3:
					u.Tob.AskPrice = schema.Price(g.int64())
				case 4:
					u.Tob.AskQty = g.int64()
				}
				return nil
			})
		}
		return err
	})
	return u, err
}

// EncodeMarketUpdates serializes a market update notification.
func EncodeMarketUpdates(dst []byte, msg schema.MarketUpdates) []byte {
	dst = dst[:0]
	for _, u := range msg.Updates {
		dst = appendMessage(dst, 1, func(b []byte) []byte { return appendMarketUpdate(b, u) })
	}
	return dst
}

// DecodeMarketUpdates parses a market update notification.
func DecodeMarketUpdates(src []byte) (schema.MarketUpdates, error) {
	var msg schema.MarketUpdates
	err := walk(src, func(f field) error {
		if f.num != 1 {
			return nil
		}
		u, err := decodeMarketUpdate(f.bytes)
		if err != nil {
			return err
		}
		msg.Updates = append(msg.Updates, u)
		return nil
	})
	if err != nil {
		return schema.MarketUpdates{}, errors.Wrap(err, "decode market updates")
	}
	return msg, nil
}
