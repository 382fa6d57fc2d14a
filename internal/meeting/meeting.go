// Package meeting runs meetings: participant membership, per-participant
// pipelines and the priority-ordered dispatch loop.
package meeting

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"meetinghost/internal/lifecycle"
	"meetinghost/internal/metrics"
	"meetinghost/internal/pipeline"
	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/protocol"
	"meetinghost/pkg/types"
)

// Config holds the dispatch loop timing.
type Config struct {
	EventPollInterval      time.Duration
	HeartbeatCheckInterval time.Duration
	HeartbeatTimeout       time.Duration
	CloseCheckInterval     time.Duration
	PipelinePollInterval   time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		EventPollInterval:      10 * time.Millisecond,
		HeartbeatCheckInterval: 100 * time.Millisecond,
		HeartbeatTimeout:       7000 * time.Millisecond,
		CloseCheckInterval:     5000 * time.Millisecond,
		PipelinePollInterval:   10 * time.Millisecond,
	}
}

// Option customizes a Meeting.
type Option func(*Meeting)

// WithMetrics records meeting activity.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Meeting) { m.metrics = mt }
}

// WithCloseHandler is called once, before the meeting stops itself for
// being empty.
func WithCloseHandler(fn func(*Meeting)) Option {
	return func(m *Meeting) { m.onClose = fn }
}

type participant struct {
	client      *Client
	broadcaster *pipeline.Broadcaster
	writer      *pipeline.BufferedWriter
}

// Meeting is one live session. All event execution happens on its dispatch
// goroutine; other goroutines only enqueue.
type Meeting struct {
	*lifecycle.Node

	id      string
	code    string
	cfg     Config
	metrics *metrics.Metrics
	onClose func(*Meeting)
	logger  *slog.Logger

	mu           sync.Mutex
	participants []*participant
	everJoined   bool
	closing      bool

	presenterID atomic.Int64
	createdAt   time.Time
	queue       *EventQueue
	stopOnce    sync.Once
	stopCh      chan struct{}
}

// New creates a meeting in NEW; Start launches the dispatch loop.
func New(code string, cfg Config, opts ...Option) *Meeting {
	m := &Meeting{
		id:        uuid.New().String(),
		code:      code,
		cfg:       cfg,
		createdAt: time.Now(),
		queue:     NewEventQueue(),
		stopCh:    make(chan struct{}),
	}
	m.presenterID.Store(types.NoPresenter)
	for _, opt := range opts {
		opt(m)
	}
	m.logger = slog.Default().With("component", "meeting", "meeting", code, "instance", m.id)
	m.Node = lifecycle.NewNode("meeting["+code+"]", lifecycle.Hooks{
		StartUp:  m.startUp,
		Shutdown: m.shutdown,
	})
	return m
}

// ID is unique per meeting instance, so a reopened code gets a new one.
func (m *Meeting) ID() string { return m.id }

// Code is the meeting code clients join with.
func (m *Meeting) Code() string { return m.code }

// CreatedAt is when this instance was created.
func (m *Meeting) CreatedAt() time.Time { return m.createdAt }

// isClosing reports whether the meeting stopped accepting participants.
func (m *Meeting) isClosing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closing || m.Node.State() >= lifecycle.StateStopping
}

// PresenterID returns the presenting user's id, or types.NoPresenter.
func (m *Meeting) PresenterID() int {
	return int(m.presenterID.Load())
}

func (m *Meeting) setPresenter(id int) {
	m.presenterID.Store(int64(id))
}

// AddParticipant registers c and starts its pipelines.
func (m *Meeting) AddParticipant(c *Client) error {
	m.mu.Lock()
	if m.closing || m.Node.State() >= lifecycle.StateStopping {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMeetingClosed, m.code)
	}
	m.everJoined = true
	for _, p := range m.participants {
		if p.client.Equal(c) {
			m.mu.Unlock()
			return fmt.Errorf("%w: user %d in %s", ErrUserExists, c.User().ID, m.code)
		}
	}

	p := &participant{
		client:      c,
		broadcaster: pipeline.NewBroadcaster(c.Conn(), m.cfg.PipelinePollInterval),
		writer:      pipeline.NewBufferedWriter(c.Conn(), m.cfg.PipelinePollInterval),
	}
	p.broadcaster.Subscribe(m)
	m.AddChild(p.broadcaster)
	m.AddChild(p.writer)
	m.participants = append(m.participants, p)
	m.mu.Unlock()

	if err := p.writer.Start(); err != nil {
		m.logger.Error("failed to start writer", "user_id", c.User().ID, "error", err)
	}
	if err := p.broadcaster.Start(); err != nil {
		m.logger.Error("failed to start broadcaster", "user_id", c.User().ID, "error", err)
	}
	m.metrics.ParticipantJoined()
	m.logger.Info("participant added", "user_id", c.User().ID, "name", c.User().FullName(), "connection", c.Conn().ID())
	return nil
}

// RemoveParticipant stops c's pipelines and drops it from membership.
func (m *Meeting) RemoveParticipant(c *Client) {
	m.mu.Lock()
	var removed *participant
	for i, p := range m.participants {
		if p.client.Equal(c) {
			removed = p
			m.participants = append(m.participants[:i], m.participants[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	if removed == nil {
		return
	}

	for _, comp := range []lifecycle.Component{removed.broadcaster, removed.writer} {
		if err := comp.Stop(); err != nil && !errors.Is(err, lifecycle.ErrNotRunning) {
			m.logger.Warn("failed to stop pipeline", "pipeline", comp.Name(), "error", err)
		}
		m.RemoveChild(comp)
	}
	m.metrics.ParticipantLeft()
	m.logger.Info("participant removed", "user_id", c.User().ID)
}

// Participants returns a snapshot in join order.
func (m *Meeting) Participants() []*Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Client, len(m.participants))
	for i, p := range m.participants {
		out[i] = p.client
	}
	return out
}

// ParticipantCount returns the current membership size.
func (m *Meeting) ParticipantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.participants)
}

// Enqueue schedules e for the dispatch loop.
func (m *Meeting) Enqueue(e Event) {
	m.queue.Push(e)
}

// PendingEvents returns the number of queued events.
func (m *Meeting) PendingEvents() int {
	return m.queue.Len()
}

// OnMessage translates messages from participant broadcasters into events.
func (m *Meeting) OnMessage(origin interfaces.Connection, msg *protocol.Message) {
	client := m.clientFor(origin)
	if client == nil {
		m.logger.Warn("message from unknown connection", "connection", origin.ID(), "signal", msg.Signal())
		return
	}
	event, err := ParseEvent(client, msg)
	if err != nil {
		m.logger.Debug("discarding message", "user_id", client.User().ID, "signal", msg.Signal(), "error", err)
		return
	}
	m.Enqueue(event)
}

func (m *Meeting) startUp() error {
	go m.run()
	m.metrics.MeetingOpened()
	m.logger.Info("meeting started")
	return nil
}

func (m *Meeting) shutdown() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Meeting) run() {
	defer m.finish()

	lastSweep := time.Now()
	lastCloseCheck := time.Now()
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		if time.Since(lastSweep) >= m.cfg.HeartbeatCheckInterval {
			m.sweepHeartbeats()
			lastSweep = time.Now()
		}

		if e, ok := m.queue.Pop(); ok {
			m.execute(e)
		} else {
			select {
			case <-m.stopCh:
				return
			case <-time.After(m.cfg.EventPollInterval):
			}
		}

		if time.Since(lastCloseCheck) >= m.cfg.CloseCheckInterval {
			lastCloseCheck = time.Now()
			m.closeIfEmpty()
		}
	}
}

func (m *Meeting) execute(e Event) {
	e.Execute(m)
	m.metrics.EventExecuted(e.Kind().String())
}

// sweepHeartbeats synthesizes UserLeft for participants that went silent
// or whose connection died.
func (m *Meeting) sweepHeartbeats() {
	now := time.Now()
	for _, c := range m.Participants() {
		if !c.HeartbeatExpired(now, m.cfg.HeartbeatTimeout) && c.Conn().IsOpen() {
			continue
		}
		if !c.markLeaving() {
			continue
		}
		m.logger.Info("evicting participant", "user_id", c.User().ID, "last_heartbeat", c.LastHeartbeat(), "connection_state", c.Conn().State())
		m.metrics.HeartbeatEviction()
		m.Enqueue(NewUserLeft(c))
	}
}

// closeIfEmpty stops a meeting that had participants and has none left.
func (m *Meeting) closeIfEmpty() {
	m.mu.Lock()
	if !m.everJoined || len(m.participants) > 0 || m.closing {
		m.mu.Unlock()
		return
	}
	m.closing = true
	m.mu.Unlock()

	m.logger.Info("meeting empty, closing")
	if m.onClose != nil {
		m.onClose(m)
	}
	if err := m.Stop(); err != nil {
		m.logger.Debug("meeting already stopping", "error", err)
	}
}

// finish tells remaining participants the meeting ended and releases them.
func (m *Meeting) finish() {
	m.mu.Lock()
	m.closing = true
	remaining := m.participants
	m.participants = nil
	m.mu.Unlock()

	for _, p := range remaining {
		writer := pipeline.NewWriter(p.client.Conn())
		if err := writer.SendMessage(protocol.End()); err != nil {
			m.logger.Debug("failed to send end notice", "user_id", p.client.User().ID, "error", err)
		}
		if err := p.client.Conn().Close(); err != nil {
			m.logger.Debug("connection already closed", "user_id", p.client.User().ID, "error", err)
		}
		m.metrics.ParticipantLeft()
	}

	m.metrics.MeetingClosed()
	m.MarkStopped()
	m.logger.Info("meeting stopped", "released", len(remaining))
}

func (m *Meeting) clientFor(conn interfaces.Connection) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.client.Conn().ID() == conn.ID() {
			return p.client
		}
	}
	return nil
}

func (m *Meeting) isParticipant(c *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.client == c {
			return true
		}
	}
	return false
}

func (m *Meeting) writerFor(c *Client) *pipeline.BufferedWriter {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.client == c {
			return p.writer
		}
	}
	return nil
}

// broadcast enqueues msg on every participant writer except except.
func (m *Meeting) broadcast(msg *protocol.Message, except *Client) {
	m.mu.Lock()
	writers := make([]*pipeline.BufferedWriter, 0, len(m.participants))
	for _, p := range m.participants {
		if except != nil && p.client == except {
			continue
		}
		writers = append(writers, p.writer)
	}
	m.mu.Unlock()

	for _, w := range writers {
		w.Enqueue(msg)
	}
}
