package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"meetinghost/internal/lifecycle"
	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/protocol"
)

// BufferedWriter drains a FIFO of outbound messages onto a connection from
// its own goroutine. Enqueue never blocks.
type BufferedWriter struct {
	*lifecycle.Node

	conn         interfaces.Connection
	writer       *Writer
	pollInterval time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	queue []*protocol.Message
	wake  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func NewBufferedWriter(conn interfaces.Connection, pollInterval time.Duration) *BufferedWriter {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &BufferedWriter{
		conn:         conn,
		writer:       NewWriter(conn),
		pollInterval: pollInterval,
		logger:       slog.Default().With("component", "writer", "connection", conn.ID()),
		wake:         make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
	}
	w.Node = lifecycle.NewNode(fmt.Sprintf("writer[%s]", conn.Name()), lifecycle.Hooks{
		StartUp:  w.startUp,
		Shutdown: w.cancel,
	})
	return w
}

// Enqueue appends m to the outbound queue.
func (w *BufferedWriter) Enqueue(m *protocol.Message) {
	w.mu.Lock()
	w.queue = append(w.queue, m)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued messages.
func (w *BufferedWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *BufferedWriter) startUp() error {
	go w.run()
	return nil
}

func (w *BufferedWriter) run() {
	defer w.MarkStopped()

	for w.ctx.Err() == nil && w.conn.IsOpen() {
		m, ok := w.pop()
		if !ok {
			select {
			case <-w.ctx.Done():
			case <-w.wake:
			case <-time.After(w.pollInterval):
			}
			continue
		}
		if err := w.writer.SendMessage(m); err != nil {
			w.logger.Warn("failed to write message", "signal", m.Signal(), "error", err)
		}
	}
}

func (w *BufferedWriter) pop() (*protocol.Message, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return nil, false
	}
	m := w.queue[0]
	w.queue[0] = nil
	w.queue = w.queue[1:]
	return m, true
}
