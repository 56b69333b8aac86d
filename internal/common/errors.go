package common

import "errors"

// ErrEmptyToken is returned by token stores asked to persist "".
var ErrEmptyToken = errors.New("empty token")
