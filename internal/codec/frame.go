package codec

import (
	"encoding/binary"

	"venuetrader/internal/schema"
	"venuetrader/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	// FrameHeaderSize is the width of the length prefix.
	FrameHeaderSize = 4
	// MaxFrameSize bounds a single serialized envelope.
	MaxFrameSize = 16 << 20
)

// AppendFrame appends the length-prefixed serialized envelope to dst.
// The prefix is a little-endian signed 32-bit byte count.
func AppendFrame(dst []byte, env schema.Envelope) []byte {
	start := len(dst)
	dst = append(dst, 0, 0, 0, 0)
	dst = append(dst, EncodeEnvelope(nil, env)...)
	binary.LittleEndian.PutUint32(dst[start:start+FrameHeaderSize], uint32(int32(len(dst)-start-FrameHeaderSize)))
	return dst
}

// Assembler reassembles frames from a byte stream that may deliver
// partial or coalesced reads.
type Assembler struct {
	buf []byte
}

// NewAssembler allocates an assembler with the given initial capacity.
func NewAssembler(capacity int) *Assembler {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Assembler{buf: make([]byte, 0, capacity)}
}

// Feed appends raw bytes read from the stream.
func (a *Assembler) Feed(p []byte) {
	a.buf = append(a.buf, p...)
}

// Buffered returns the number of bytes waiting to be assembled.
func (a *Assembler) Buffered() int {
	return len(a.buf)
}

// Next returns the next complete envelope. ok is false when more bytes are
// needed. A non-nil error means the stream is corrupt and cannot recover.
func (a *Assembler) Next() (schema.Envelope, bool, error) {
	if len(a.buf) < FrameHeaderSize {
		return schema.Envelope{}, false, nil
	}

	size := int32(binary.LittleEndian.Uint32(a.buf[:FrameHeaderSize]))
	if size < 0 {
		return schema.Envelope{}, false, errors.Wrapf(exception.ErrCodecNegativeFrame, "length: %d", size)
	}
	if size > MaxFrameSize {
		return schema.Envelope{}, false, errors.Wrapf(exception.ErrCodecFrameTooLarge, "length: %d", size)
	}

	end := FrameHeaderSize + int(size)
	if len(a.buf) < end {
		return schema.Envelope{}, false, nil
	}

	env, err := DecodeEnvelope(a.buf[FrameHeaderSize:end])
	a.consume(end)
	if err != nil {
		return schema.Envelope{}, false, err
	}
	return env, true, nil
}

// Reset drops any buffered bytes.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
}

func (a *Assembler) consume(n int) {
	rest := copy(a.buf, a.buf[n:])
	a.buf = a.buf[:rest]
}
