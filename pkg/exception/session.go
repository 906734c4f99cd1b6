package exception

import "github.com/yanun0323/errors"

// Session errors
var (
	ErrSessionNotConnected = errors.New("session: not connected")
	ErrSessionEmptyHost    = errors.New("session: empty host")
	ErrSessionPeerClosed   = errors.New("session: server disconnected")
)
