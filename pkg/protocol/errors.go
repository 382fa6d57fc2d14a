package protocol

import "errors"

// Construction errors are programmer errors: callers build messages from
// values they control, so these never originate from the wire.
var (
	ErrEmptySignal     = errors.New("signal cannot be empty")
	ErrSignalTooLong   = errors.New("signal exceeds maximum length")
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
)

// Decode errors all wrap ErrInvalidMessage so callers can tell a bad frame
// from a transport failure with a single errors.Is check.
var (
	ErrInvalidMessage      = errors.New("invalid message")
	ErrEmptyFrame          = errors.New("frame is empty")
	ErrMessageTooLarge     = errors.New("message exceeds maximum length")
	ErrMissingDelimiter    = errors.New("signal delimiter not found")
	ErrUnknownSignal       = errors.New("unknown signal")
	ErrEmptyPayload        = errors.New("payload required for signal")
	ErrSlideNumberLength   = errors.New("slide number payload must be 4 bytes")
	ErrNegativeSlideNumber = errors.New("slide number cannot be negative")
)
