package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"meetinghost/internal/lifecycle"
	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/protocol"
)

// Subscriber receives every message decoded from a connection, in order.
type Subscriber interface {
	OnMessage(origin interfaces.Connection, m *protocol.Message)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(origin interfaces.Connection, m *protocol.Message)

func (f SubscriberFunc) OnMessage(origin interfaces.Connection, m *protocol.Message) {
	f(origin, m)
}

// Broadcaster reads a connection for its whole life and fans each decoded
// message out to its subscribers.
type Broadcaster struct {
	*lifecycle.Node

	conn         interfaces.Connection
	reader       *Reader
	pollInterval time.Duration
	logger       *slog.Logger

	mu          sync.Mutex
	subscribers []Subscriber

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBroadcaster creates a stopped broadcaster; Start launches its loop.
func NewBroadcaster(conn interfaces.Connection, pollInterval time.Duration) *Broadcaster {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broadcaster{
		conn:         conn,
		reader:       NewReader(conn).WithTimeout(pollInterval).WithPollInterval(pollInterval),
		pollInterval: pollInterval,
		logger:       slog.Default().With("component", "broadcaster", "connection", conn.ID()),
		ctx:          ctx,
		cancel:       cancel,
	}
	b.Node = lifecycle.NewNode(fmt.Sprintf("broadcaster[%s]", conn.Name()), lifecycle.Hooks{
		StartUp:  b.startUp,
		Shutdown: b.cancel,
	})
	return b
}

// Subscribe registers s for every following message.
func (b *Broadcaster) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// SubscriberCount returns the number of registered subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Broadcaster) startUp() error {
	go b.run()
	return nil
}

func (b *Broadcaster) run() {
	defer b.MarkStopped()

	for b.ctx.Err() == nil && b.conn.IsOpen() {
		block, err := b.reader.WillReadBlock()
		if err != nil {
			b.logger.Warn("poll failed, ending broadcast", "error", err)
			return
		}
		if block {
			select {
			case <-b.ctx.Done():
			case <-time.After(b.pollInterval):
			}
			continue
		}

		m, err := b.reader.ReadNextMessage(b.ctx)
		switch {
		case err == nil:
			b.publish(m)
		case errors.Is(err, protocol.ErrInvalidMessage):
			b.logger.Warn("dropping malformed message", "error", err)
		case errors.Is(err, ErrReadTimeout), errors.Is(err, context.Canceled):
		default:
			b.logger.Warn("read failed, ending broadcast", "error", err)
			return
		}
	}
}

// publish hands m to a snapshot of the subscribers so the lock is never
// held while they run.
func (b *Broadcaster) publish(m *protocol.Message) {
	b.mu.Lock()
	subscribers := append([]Subscriber(nil), b.subscribers...)
	b.mu.Unlock()

	for _, s := range subscribers {
		s.OnMessage(b.conn, m)
	}
}
