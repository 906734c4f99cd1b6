package exception

import "github.com/yanun0323/errors"

// Codec errors
var (
	ErrCodecNegativeFrame = errors.New("codec: negative frame length")
	ErrCodecFrameTooLarge = errors.New("codec: frame too large")
	ErrCodecMalformed     = errors.New("codec: malformed message")
	ErrCodecMissingHeader = errors.New("codec: missing header")
	ErrCodecUnknownType   = errors.New("codec: unknown message type")
)
