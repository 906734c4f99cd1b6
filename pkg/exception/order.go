package exception

import "github.com/yanun0323/errors"

var (
	ErrOrderInvalidRequest  = errors.New("order: invalid request")
	ErrOrderZeroQty         = errors.New("order: zero quantity")
	ErrOrderThrottled       = errors.New("order: throttled")
	ErrOrderUnknownProduct  = errors.New("order: unknown product")
	ErrOrderNotTracked      = errors.New("order: not tracked")
	ErrOrderInvalidTransfer = errors.New("order: invalid state transition")
)
