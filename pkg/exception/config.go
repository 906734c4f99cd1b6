package exception

import "github.com/yanun0323/errors"

var (
	ErrConfigMissing = errors.New("config: missing value")
	ErrConfigInvalid = errors.New("config: invalid value")
)
