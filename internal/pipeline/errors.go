package pipeline

import "errors"

var (
	ErrReadTimeout = errors.New("timed out waiting for message")
)
