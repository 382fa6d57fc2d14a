package connection

import "errors"

var (
	ErrNotOpen       = errors.New("connection is not open")
	ErrTransport     = errors.New("transport failure")
	ErrEmptyPacket   = errors.New("packet cannot be empty")
	ErrFrameTooLarge = errors.New("frame exceeds maximum length")
)
