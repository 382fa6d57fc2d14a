package validation

import (
	"errors"
	"fmt"
)

// Handshake stages, reported in FailedError.
const (
	StageBeforeCommunication = "Before Communication Started"
	StageAskToken            = "Asking for Authentication Token"
	StageReceiveToken        = "Receiving Authentication Token"
	StageValidateToken       = "Validating Authentication Token"
	StageAskMeetingID        = "Asking for Meeting ID"
	StageReceiveMeetingID    = "Receiving Meeting ID"
	StageValidateMeetingID   = "Validating Meeting ID"
)

var (
	ErrConnectionNotOpen = errors.New("connection is not open")
	ErrUnexpectedSignal  = errors.New("unexpected signal")
)

// FailedError is the single outcome of any failed handshake step.
type FailedError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *FailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("validation failed at %q: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("validation failed at %q: %s: %v", e.Stage, e.Reason, e.Err)
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

func failed(stage, reason string, err error) *FailedError {
	return &FailedError{Stage: stage, Reason: reason, Err: err}
}
