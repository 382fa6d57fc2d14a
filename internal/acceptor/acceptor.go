// Package acceptor listens for raw TCP clients and hands every accepted
// socket, wrapped as a Connection, to the registered listeners.
package acceptor

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"meetinghost/internal/connection"
	"meetinghost/internal/lifecycle"
	"meetinghost/internal/metrics"
	"meetinghost/pkg/interfaces"
)

// DefaultAcceptTimeout bounds each blocking accept so the loop can notice
// a stop request.
const DefaultAcceptTimeout = time.Second

var ErrNotListening = errors.New("acceptor is not listening")

// Acceptor is a lifecycle component running the accept loop.
type Acceptor struct {
	*lifecycle.Node

	addr          string
	acceptTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger

	mu        sync.RWMutex
	listener  *net.TCPListener
	listeners []interfaces.ConnectionListener
}

// New creates an acceptor for addr ("host:port"; port 0 picks a free one).
func New(addr string, acceptTimeout time.Duration, mt *metrics.Metrics) *Acceptor {
	if acceptTimeout <= 0 {
		acceptTimeout = DefaultAcceptTimeout
	}
	a := &Acceptor{
		addr:          addr,
		acceptTimeout: acceptTimeout,
		metrics:       mt,
		logger:        slog.Default().With("component", "acceptor", "transport", "tcp"),
	}
	a.Node = lifecycle.NewNode("tcp-acceptor["+addr+"]", lifecycle.Hooks{
		StartUp:  a.startUp,
		Shutdown: a.shutdown,
	})
	return a
}

// OnConnection registers a listener for accepted connections. Listeners
// run on the accept goroutine and must not block.
func (a *Acceptor) OnConnection(l interfaces.ConnectionListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

// Addr returns the bound address once started.
func (a *Acceptor) Addr() (net.Addr, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.listener == nil {
		return nil, ErrNotListening
	}
	return a.listener.Addr(), nil
}

func (a *Acceptor) startUp() error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", a.addr, err)
	}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.addr, err)
	}

	a.mu.Lock()
	a.listener = listener
	a.mu.Unlock()

	a.logger.Info("accepting connections", "address", listener.Addr().String())
	go a.run(listener)
	return nil
}

func (a *Acceptor) shutdown() {
	a.mu.RLock()
	listener := a.listener
	a.mu.RUnlock()
	if listener != nil {
		_ = listener.Close()
	}
}

func (a *Acceptor) run(listener *net.TCPListener) {
	defer a.MarkStopped()

	for a.State() == lifecycle.StateRunning {
		// FUNCTIONAL DISCOVERY: the deadline turns accept into a poll so
		// the loop re-checks its state at least once per timeout
		_ = listener.SetDeadline(time.Now().Add(a.acceptTimeout))
		raw, err := listener.AcceptTCP()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if a.State() != lifecycle.StateRunning || errors.Is(err, net.ErrClosed) {
				break
			}
			a.logger.Error("accept failed", "error", err)
			continue
		}

		_ = raw.SetNoDelay(true)
		conn := connection.NewTCP(raw)
		a.metrics.ConnectionAccepted("tcp")
		a.logger.Debug("connection accepted", "connection", conn.ID(), "remote", conn.Name())
		a.notify(conn)
	}

	_ = listener.Close()
	a.logger.Info("acceptor stopped")
}

func (a *Acceptor) notify(conn interfaces.Connection) {
	a.mu.RLock()
	listeners := append([]interfaces.ConnectionListener(nil), a.listeners...)
	a.mu.RUnlock()

	if len(listeners) == 0 {
		a.logger.Warn("no listener for connection, closing", "connection", conn.ID())
		_ = conn.Close()
		return
	}
	for _, l := range listeners {
		l(conn)
	}
}
