package codec

import (
	"venuetrader/internal/schema"
	"venuetrader/pkg/exception"

	"github.com/yanun0323/errors"
)

// EncodeEnvelope serializes an envelope: field 1 is the header
// {1: type, 2: version}, field 2 the opaque payload.
func EncodeEnvelope(dst []byte, env schema.Envelope) []byte {
	dst = dst[:0]
	dst = appendMessage(dst, 1, func(b []byte) []byte {
		b = appendInt(b, 1, int64(env.Header.Type))
		b = appendString(b, 2, env.Header.Version)
		return b
	})
	if len(env.Payload) > 0 {
		dst = appendBytes(dst, 2, env.Payload)
	}
	return dst
}

// DecodeEnvelope parses a serialized envelope. The returned payload is a
// copy and does not alias src.
func DecodeEnvelope(src []byte) (schema.Envelope, error) {
	var (
		env       schema.Envelope
		hasHeader bool
	)
	err := walk(src, func(f field) error {
		switch f.num {
		case 1:
			hasHeader = true
			return walk(f.bytes, func(h field) error {
				switch h.num {
				case 1:
					env.Header.Type = schema.MsgType(h.int32())
				case 2:
					env.Header.Version = h.str()
				}
				return nil
			})
		case 2:
			env.Payload = append([]byte(nil), f.bytes...)
		}
		return nil
	})
	if err != nil {
		return schema.Envelope{}, errors.Wrap(err, "decode envelope")
	}
	if !hasHeader {
		return schema.Envelope{}, exception.ErrCodecMissingHeader
	}
	return env, nil
}
