package hub

import "errors"

var (
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrRateLimited       = errors.New("connection rate limit exceeded")
	ErrAdmissionShutdown = errors.New("admission stopped before client was placed")
)
