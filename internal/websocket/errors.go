package websocket

import "errors"

// Transport errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrUnsupportedFrame = errors.New("unsupported websocket frame type")
)
