package codec

import (
	"google.golang.org/protobuf/encoding/protowire"

	"venuetrader/internal/schema"
	"venuetrader/pkg/exception"

	"github.com/yanun0323/errors"
)

// Payloads use the protobuf wire format. Zero values are omitted, unknown
// fields are skipped on decode.

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendMessage writes a length-delimited sub message built by fn.
func appendMessage(b []byte, num protowire.Number, fn func([]byte) []byte) []byte {
	return appendBytes(b, num, fn(nil))
}

type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

func (f field) int64() int64 {
	if f.typ != protowire.VarintType {
		return 0
	}
	return int64(f.varint)
}

func (f field) int32() int32 {
	return int32(f.int64())
}

func (f field) boolean() bool {
	return f.typ == protowire.VarintType && protowire.DecodeBool(f.varint)
}

func (f field) str() string {
	if f.typ != protowire.BytesType {
		return ""
	}
	return string(f.bytes)
}

// walk calls fn for each top-level field in src.
func walk(src []byte, fn func(f field) error) error {
	for len(src) > 0 {
		num, typ, n := protowire.ConsumeTag(src)
		if n < 0 {
			return errors.Wrap(exception.ErrCodecMalformed, protowire.ParseError(n).Error())
		}
		src = src[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(src)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(src)
		default:
			n = protowire.ConsumeFieldValue(num, typ, src)
		}
		if n < 0 {
			return errors.Wrapf(exception.ErrCodecMalformed, "field %d: %s", num, protowire.ParseError(n).Error())
		}
		src = src[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func appendContract(b []byte, c schema.Contract) []byte {
	b = appendInt(b, 1, int64(c.Exchange))
	b = appendString(b, 2, c.SecDesc)
	b = appendString(b, 3, c.WhName)
	return b
}

func decodeContract(src []byte) (schema.Contract, error) {
	var c schema.Contract
	err := walk(src, func(f field) error {
		switch f.num {
		case 1:
			c.Exchange = schema.Exchange(f.int32())
		case 2:
			c.SecDesc = f.str()
		case 3:
			c.WhName = f.str()
		}
		return nil
	})
	return c, err
}

func appendContractField(b []byte, num protowire.Number, c schema.Contract) []byte {
	return appendMessage(b, num, func(dst []byte) []byte { return appendContract(dst, c) })
}
