package types

import "errors"

var (
	ErrInvalidUserID      = errors.New("user ID must be non-negative")
	ErrInvalidMeetingCode = errors.New("meeting code must be 1-200 bytes of valid UTF-8 without control characters")
)
