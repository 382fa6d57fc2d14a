package lifecycle

import "errors"

var (
	ErrAlreadyStarted = errors.New("component can only be started from NEW")
	ErrNotRunning     = errors.New("component can only be stopped while RUNNING")
	ErrStartupFailed  = errors.New("component failed to start")
)
