package codec

import (
	"venuetrader/internal/schema"

	"github.com/yanun0323/errors"
)

// EncodeFillNotice serializes a fill notice.
func EncodeFillNotice(dst []byte, fill schema.FillNotice) []byte {
	dst = dst[:0]
	dst = appendString(dst, 1, fill.OrderNo)
	dst = appendString(dst, 2, fill.Account)
	dst = appendContractField(dst, 3, fill.Contract)
	dst = appendInt(dst, 4, int64(fill.Side))
	dst = appendInt(dst, 5, fill.Qty)
	dst = appendInt(dst, 6, int64(fill.Price))
	dst = appendString(dst, 7, fill.Prefix)
	dst = appendString(dst, 8, fill.Tag)
	dst = appendInt(dst, 9, fill.TransactTime)
	dst = appendString(dst, 10, fill.ClientID)
	return dst
}

// DecodeFillNotice parses a fill notice.
func DecodeFillNotice(src []byte) (schema.FillNotice, error) {
	var fill schema.FillNotice
	err := walk(src, func(f field) error {
		var err error
		switch f.num {
		case 1:
			fill.OrderNo = f.str()
		case 2:
			fill.Account = f.str()
		case 3:
			fill.Contract, err = decodeContract(f.bytes)
		case 4:
			fill.Side = schema.Side(f.int32())
		case 5:
			fill.Qty = f.int64()
		case 6:
			fill.Price = schema.Price(f.int64())
		case 7:
			fill.Prefix = f.str()
		case 8:
			fill.Tag = f.str()
		case 9:
			fill.TransactTime = f.int64()
		case 10:
			fill.ClientID = f.str()
		}
		return err
	})
	if err != nil {
		return schema.FillNotice{}, errors.Wrap(err, "decode fill notice")
	}
	return fill, nil
}
