package codec

import (
	"venuetrader/internal/schema"

	"github.com/yanun0323/errors"
)

// EncodeGetPositions serializes a positions request.
func EncodeGetPositions(dst []byte, req schema.GetPositions) []byte {
	dst = dst[:0]
	for _, a := range req.Accounts {
		dst = appendBytes(dst, 1, []byte(a))
	}
	for _, c := range req.Filters {
		dst = appendContractField(dst, 2, c)
	}
	dst = appendBool(dst, 3, req.IncludeSpec)
	return dst
}

// DecodeGetPositions parses a positions request.
func DecodeGetPositions(src []byte) (schema.GetPositions, error) {
	var req schema.GetPositions
	err := walk(src, func(f field) error {
		switch f.num {
		case 1:
			req.Accounts = append(req.Accounts, f.str())
		case 2:
			c, err := decodeContract(f.bytes)
			if err != nil {
				return err
			}
			req.Filters = append(req.Filters, c)
		case 3:
			req.IncludeSpec = f.boolean()
		}
		return nil
	})
	if err != nil {
		return schema.GetPositions{}, errors.Wrap(err, "decode get positions")
	}
	return req, nil
}

// EncodePositions serializes a positions snapshot.
func EncodePositions(dst []byte, resp schema.Positions) []byte {
	dst = dst[:0]
	for _, p := range resp.Positions {
		dst = appendMessage(dst, 1, func(b []byte) []byte {
			b = appendString(b, 1, p.Account)
			b = appendContractField(b, 2, p.Contract)
			b = appendInt(b, 3, p.TotalPos)
			return b
		})
	}
	return dst
}

// DecodePositions parses a positions snapshot.
func DecodePositions(src []byte) (schema.Positions, error) {
	var resp schema.Positions
	err := walk(src, func(f field) error {
		if f.num != 1 {
			return nil
		}
		var p schema.Position
		err := walk(f.bytes, func(g field) error {
			var err error
			switch g.num {
			case 1:
				p.Account = g.str()
			case 2:
				p.Contract, err = decodeContract(g.bytes)
			case 3:
				p.TotalPos = g.int64()
			}
			return err
		})
		if err != nil {
			return err
		}
		resp.Positions = append(resp.Positions, p)
		return nil
	})
	if err != nil {
		return schema.Positions{}, errors.Wrap(err, "decode positions")
	}
	return resp, nil
}
