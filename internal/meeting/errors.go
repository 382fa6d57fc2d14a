package meeting

import "errors"

var (
	ErrUserExists         = errors.New("user is already a participant")
	ErrNotAnEvent         = errors.New("message does not map to a meeting event")
	ErrMeetingClosed      = errors.New("meeting is closed")
	ErrMeetingNotFound    = errors.New("meeting not found")
	ErrRegistryNotRunning = errors.New("meeting registry is not running")
)
