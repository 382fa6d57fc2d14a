package validation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meetinghost/internal/lifecycle"
	"meetinghost/internal/meeting"
	"meetinghost/internal/metrics"
	"meetinghost/internal/pipeline"
	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/protocol"
)

// Output receives clients that passed validation.
type Output func(client *meeting.Client)

// Task validates one connection on its own goroutine so a slow client
// never holds up the acceptor. It detaches from its parent when done.
type Task struct {
	*lifecycle.Node

	conn      interfaces.Connection
	validator *Validator
	output    Output
	metrics   *metrics.Metrics
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewTask(conn interfaces.Connection, validator *Validator, output Output, mt *metrics.Metrics) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	t := &Task{
		conn:      conn,
		validator: validator,
		output:    output,
		metrics:   mt,
		logger:    slog.Default().With("component", "validation", "task", id, "connection", conn.ID(), "remote", conn.Name()),
		ctx:       ctx,
		cancel:    cancel,
	}
	t.Node = lifecycle.NewNode("validation["+id+"]", lifecycle.Hooks{
		StartUp:  t.startUp,
		Shutdown: t.cancel,
	})
	return t
}

func (t *Task) startUp() error {
	go t.run()
	return nil
}

func (t *Task) run() {
	defer func() {
		t.cancel()
		t.MarkStopped()
		t.Detach()
	}()

	start := time.Now()
	client, err := t.validator.Validate(t.ctx, t.conn)
	if err != nil {
		t.reject(err, time.Since(start))
		return
	}

	if err := pipeline.NewWriter(t.conn).SendMessage(protocol.Validated()); err != nil {
		t.logger.Warn("failed to confirm validation", "error", err)
		t.metrics.ValidationFinished(StageValidateMeetingID, time.Since(start))
		_ = t.conn.Close()
		return
	}
	t.metrics.ValidationFinished("", time.Since(start))
	t.logger.Info("client validated", "user_id", client.User().ID, "meeting", client.MeetingCode(), "presenting", client.User().Presenting)
	t.output(client)
}

// reject sends the legacy NOT-VALIDATED notice, best effort, and closes.
func (t *Task) reject(err error, elapsed time.Duration) {
	stage := StageBeforeCommunication
	var failure *FailedError
	if errors.As(err, &failure) {
		stage = failure.Stage
	}
	t.metrics.ValidationFinished(stage, elapsed)
	t.logger.Warn("client rejected", "stage", stage, "error", err)

	if t.conn.IsOpen() {
		if sendErr := pipeline.NewWriter(t.conn).SendLegacyMessage(protocol.NotValidated()); sendErr != nil {
			t.logger.Debug("failed to send rejection", "error", sendErr)
		}
	}
	if closeErr := t.conn.Close(); closeErr != nil {
		t.logger.Debug("connection already closed", "error", closeErr)
	}
}
