// Package validation runs the authentication handshake for new connections.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetinghost/internal/meeting"
	"meetinghost/internal/pipeline"
	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/protocol"
	"meetinghost/pkg/types"
)

// Config bounds the handshake.
type Config struct {
	// ResponseTimeout bounds each wait for a client reply.
	ResponseTimeout time.Duration
	// PollInterval is the interval between availability polls.
	PollInterval time.Duration
	// DirectoryTimeout bounds each directory call.
	DirectoryTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ResponseTimeout:  1000 * time.Millisecond,
		PollInterval:     10 * time.Millisecond,
		DirectoryTimeout: 5 * time.Second,
	}
}

// Validator authenticates a connection and resolves the meeting it joins.
type Validator struct {
	directory interfaces.Directory
	cfg       Config
}

func NewValidator(directory interfaces.Directory, cfg Config) *Validator {
	return &Validator{directory: directory, cfg: cfg}
}

// Validate runs the handshake. Any failure is a *FailedError.
func (v *Validator) Validate(ctx context.Context, conn interfaces.Connection) (*meeting.Client, error) {
	if !conn.IsOpen() {
		return nil, failed(StageBeforeCommunication, "connection is not open", ErrConnectionNotOpen)
	}
	if !v.available(ctx) {
		return nil, failed(StageBeforeCommunication, "directory service is unavailable", interfaces.ErrDirectoryUnavailable)
	}

	writer := pipeline.NewWriter(conn)
	reader := pipeline.NewReader(conn).WithTimeout(v.cfg.ResponseTimeout).WithPollInterval(v.cfg.PollInterval)

	if err := writer.SendMessage(protocol.AuthRequest()); err != nil {
		return nil, failed(StageAskToken, "could not send authentication request", err)
	}
	token, err := v.expect(ctx, reader, protocol.SignalToken)
	if err != nil {
		return nil, failed(StageReceiveToken, "no authentication token received", err)
	}

	user, err := v.resolveUser(ctx, token.Text())
	if err != nil {
		return nil, failed(StageValidateToken, reasonFor(err, "token was rejected"), err)
	}

	if err := writer.SendMessage(protocol.MeetingIDRequest()); err != nil {
		return nil, failed(StageAskMeetingID, "could not send meeting id request", err)
	}
	mid, err := v.expect(ctx, reader, protocol.SignalMeetingID)
	if err != nil {
		return nil, failed(StageReceiveMeetingID, "no meeting id received", err)
	}
	code := mid.Text()
	if !types.IsValidMeetingCode(code) {
		return nil, failed(StageValidateMeetingID, "meeting id is malformed", types.ErrInvalidMeetingCode)
	}

	presenterID, err := v.resolveMeeting(ctx, code)
	if err != nil {
		return nil, failed(StageValidateMeetingID, reasonFor(err, "meeting id was rejected"), err)
	}

	stamped := user.Clone()
	stamped.Presenting = presenterID == stamped.ID
	stamped.MeetingCode = code
	return meeting.NewClient(conn, stamped), nil
}

func (v *Validator) expect(ctx context.Context, reader *pipeline.Reader, signal string) (*protocol.Message, error) {
	m, err := reader.ReadNextMessage(ctx)
	if err != nil {
		return nil, err
	}
	if m.Signal() != signal {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrUnexpectedSignal, signal, m.Signal())
	}
	return m, nil
}

func (v *Validator) available(ctx context.Context) bool {
	ctx, cancel := v.directoryContext(ctx)
	defer cancel()
	return v.directory.IsAvailable(ctx)
}

func (v *Validator) resolveUser(ctx context.Context, token string) (*types.User, error) {
	ctx, cancel := v.directoryContext(ctx)
	defer cancel()
	user, err := v.directory.ResolveUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return user, nil
}

func (v *Validator) resolveMeeting(ctx context.Context, code string) (int, error) {
	ctx, cancel := v.directoryContext(ctx)
	defer cancel()
	return v.directory.ResolveMeeting(ctx, code)
}

func (v *Validator) directoryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.cfg.DirectoryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, v.cfg.DirectoryTimeout)
}

func reasonFor(err error, fallback string) string {
	if errors.Is(err, interfaces.ErrDirectoryUnavailable) {
		return "directory service is unavailable"
	}
	return fallback
}
