package exception

import "github.com/yanun0323/errors"

var (
	ErrHistoryEmpty    = errors.New("history: no ticks")
	ErrHistoryNilStore = errors.New("history: nil store")
)
