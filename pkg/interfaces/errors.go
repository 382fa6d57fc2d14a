package interfaces

import "errors"

// Directory errors shared by every Directory implementation
var (
	ErrDirectoryUnavailable = errors.New("directory service unavailable")
	ErrInvalidToken         = errors.New("invalid authentication token")
	ErrInvalidMeetingID     = errors.New("invalid meeting id")
)
