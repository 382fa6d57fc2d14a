// Package hub is the host server: it owns the acceptors, runs one
// validation task per incoming connection and admits validated clients
// into their meetings.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"meetinghost/internal/lifecycle"
	"meetinghost/internal/meeting"
	"meetinghost/internal/metrics"
	"meetinghost/internal/validation"
	"meetinghost/pkg/interfaces"
)

// Source produces connections, e.g. the TCP acceptor or websocket handler.
type Source interface {
	OnConnection(l interfaces.ConnectionListener)
}

// Config tunes the hub.
type Config struct {
	AdmissionBuffer int
	CleanupInterval time.Duration
}

// DefaultConfig returns the production hub settings.
func DefaultConfig() Config {
	return Config{
		AdmissionBuffer: 100,
		CleanupInterval: time.Minute,
	}
}

// Hub is the root lifecycle component. Its children are the meeting
// registry, the acceptors and every in-flight validation task.
// ARCHITECTURAL DISCOVERY: a single admission goroutine places clients, so
// get-or-create and join for one code never interleave
type Hub struct {
	*lifecycle.Node

	cfg       Config
	registry  *meeting.Registry
	validator *validation.Validator
	limiter   *RateLimiter
	metrics   *metrics.Metrics
	logger    *slog.Logger

	admit     chan *meeting.Client
	acceptors []lifecycle.Component

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles a hub. limiter may be nil.
func New(cfg Config, registry *meeting.Registry, validator *validation.Validator, limiter *RateLimiter, mt *metrics.Metrics) *Hub {
	if cfg.AdmissionBuffer <= 0 {
		cfg.AdmissionBuffer = DefaultConfig().AdmissionBuffer
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:       cfg,
		registry:  registry,
		validator: validator,
		limiter:   limiter,
		metrics:   mt,
		logger:    slog.Default().With("component", "hub"),
		admit:     make(chan *meeting.Client, cfg.AdmissionBuffer),
		ctx:       ctx,
		cancel:    cancel,
	}
	h.Node = lifecycle.NewNode("hub", lifecycle.Hooks{
		StartUp:  h.startUp,
		Shutdown: h.shutdown,
	})
	h.AddChild(registry)
	return h
}

// Registry exposes the live meetings.
func (h *Hub) Registry() *meeting.Registry {
	return h.registry
}

// AddAcceptor registers an acceptor component, started with the hub.
func (h *Hub) AddAcceptor(a interface {
	lifecycle.Component
	Source
}) {
	a.OnConnection(h.listen)
	h.acceptors = append(h.acceptors, a)
	h.AddChild(a)
}

// Attach feeds a Source that is not a lifecycle component, such as the
// websocket handler mounted on the HTTP server.
func (h *Hub) Attach(s Source) {
	s.OnConnection(h.listen)
}

func (h *Hub) startUp() error {
	if err := h.registry.Start(); err != nil {
		return err
	}
	for i, a := range h.acceptors {
		if err := a.Start(); err != nil {
			for _, started := range h.acceptors[:i] {
				_ = started.Stop()
			}
			_ = h.registry.Stop()
			return fmt.Errorf("failed to start %s: %w", a.Name(), err)
		}
	}

	h.wg.Add(2)
	go h.admissionLoop()
	go h.cleanupLoop()
	h.logger.Info("hub started", "acceptors", len(h.acceptors))
	return nil
}

func (h *Hub) shutdown() {
	h.cancel()
	h.wg.Wait()
	h.MarkStopped()
	h.logger.Info("hub stopped")
}

func (h *Hub) listen(conn interfaces.Connection) {
	if err := h.HandleConnection(conn); err != nil {
		h.logger.Debug("connection refused", "connection", conn.ID(), "remote", conn.Name(), "error", err)
	}
}

// HandleConnection starts validating conn on its own task. Refused
// connections are closed.
func (h *Hub) HandleConnection(conn interfaces.Connection) error {
	if h.State() != lifecycle.StateRunning {
		_ = conn.Close()
		return ErrHubNotRunning
	}
	if !h.limiter.Allow(hostOf(conn.Name())) {
		h.metrics.ConnectionRateLimited()
		h.logger.Warn("connection rate limited", "remote", conn.Name())
		_ = conn.Close()
		return ErrRateLimited
	}

	task := validation.NewTask(conn, h.validator, h.enqueueAdmission, h.metrics)
	h.AddChild(task)
	// FUNCTIONAL DISCOVERY: a stop racing with AddChild would miss the task
	if h.State() != lifecycle.StateRunning {
		h.RemoveChild(task)
		_ = conn.Close()
		return ErrHubNotRunning
	}
	if err := task.Start(); err != nil {
		h.RemoveChild(task)
		_ = conn.Close()
		return err
	}
	return nil
}

// enqueueAdmission is the validation output.
func (h *Hub) enqueueAdmission(client *meeting.Client) {
	select {
	case h.admit <- client:
	case <-h.ctx.Done():
		h.release(client, ErrAdmissionShutdown)
	}
}

func (h *Hub) admissionLoop() {
	defer h.wg.Done()
	for {
		select {
		case client := <-h.admit:
			h.place(client)
		case <-h.ctx.Done():
			for {
				select {
				case client := <-h.admit:
					h.release(client, ErrAdmissionShutdown)
				default:
					return
				}
			}
		}
	}
}

// place joins client to its meeting, retrying once when the meeting
// closed between lookup and join.
func (h *Hub) place(client *meeting.Client) {
	code := client.MeetingCode()
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var m *meeting.Meeting
		m, _, err = h.registry.GetOrCreate(code)
		if err != nil {
			break
		}
		err = m.AddParticipant(client)
		if err == nil {
			h.logger.Info("client admitted", "meeting", code, "user_id", client.User().ID, "connection", client.Conn().ID())
			return
		}
		if !errors.Is(err, meeting.ErrMeetingClosed) {
			break
		}
	}
	h.release(client, err)
}

func (h *Hub) release(client *meeting.Client, reason error) {
	h.logger.Warn("client not admitted", "meeting", client.MeetingCode(), "user_id", client.User().ID, "error", reason)
	if err := client.Conn().Close(); err != nil {
		h.logger.Debug("connection already closed", "connection", client.Conn().ID(), "error", err)
	}
}

func (h *Hub) cleanupLoop() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.limiter.Cleanup()
		case <-h.ctx.Done():
			return
		}
	}
}

// PendingValidations counts in-flight validation tasks.
func (h *Hub) PendingValidations() int {
	return h.ChildCount() - 1 - len(h.acceptors)
}
