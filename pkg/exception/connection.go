package exception

import "github.com/yanun0323/errors"

var (
	ErrUnexpectedHTTP = errors.New("unexpected http status")
)
