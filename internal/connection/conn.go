// Package connection implements the state-guarded connection shared by every
// transport, plus the TCP transport.
package connection

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"meetinghost/pkg/interfaces"
)

// Transport moves framed packets over a concrete byte stream. Conn owns
// the state machine; transports only report errors.
type Transport interface {
	// Receive blocks until a full frame arrives and returns it with the end
	// marker stripped.
	Receive() ([]byte, error)
	// Send writes one already encoded frame.
	Send(packet []byte) error
	// WillReadBlock reports whether Receive would block right now.
	WillReadBlock() (bool, error)
	// Close releases the underlying resource. It must unblock Receive.
	Close() error
	// RemoteName describes the peer.
	RemoteName() string
}

// Conn is a Connection over any Transport. It moves to ERROR on the first
// transport failure and to CLOSED on Close; neither state is left again.
type Conn struct {
	id        string
	transport Transport

	mu    sync.RWMutex
	state interfaces.ConnectionState
}

// New wraps an open transport.
func New(t Transport) *Conn {
	return &Conn{
		id:        uuid.New().String(),
		transport: t,
		state:     interfaces.ConnectionOpen,
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Name() string {
	return c.transport.RemoteName()
}

func (c *Conn) State() interfaces.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Conn) IsOpen() bool {
	return c.State() == interfaces.ConnectionOpen
}

// ReceiveNextPacket returns the next frame from the transport.
func (c *Conn) ReceiveNextPacket() ([]byte, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	packet, err := c.transport.Receive()
	if err != nil {
		return nil, c.fail("receive", err)
	}
	return packet, nil
}

// SendPacket writes packet to the transport. An empty packet is a caller bug.
func (c *Conn) SendPacket(packet []byte) error {
	if len(packet) == 0 {
		return ErrEmptyPacket
	}
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.transport.Send(packet); err != nil {
		return c.fail("send", err)
	}
	return nil
}

// PollWillBlock asks the transport whether a read would block.
func (c *Conn) PollWillBlock() (bool, error) {
	if err := c.checkOpen(); err != nil {
		return true, err
	}
	block, err := c.transport.WillReadBlock()
	if err != nil {
		return true, c.fail("poll", err)
	}
	return block, nil
}

// Close moves an open connection to CLOSED.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state != interfaces.ConnectionOpen {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOpen, state)
	}
	c.state = interfaces.ConnectionClosed
	c.mu.Unlock()

	if err := c.transport.Close(); err != nil {
		slog.Debug("transport close failed", "connection", c.id, "error", err)
	}
	return nil
}

func (c *Conn) checkOpen() error {
	if state := c.State(); state != interfaces.ConnectionOpen {
		return fmt.Errorf("%w: %s", ErrNotOpen, state)
	}
	return nil
}

// fail records a transport error. A connection closed concurrently stays
// CLOSED and reports ErrNotOpen instead.
func (c *Conn) fail(op string, err error) error {
	c.mu.Lock()
	if c.state != interfaces.ConnectionOpen {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s during %s", ErrNotOpen, state, op)
	}
	c.state = interfaces.ConnectionError
	c.mu.Unlock()

	if closeErr := c.transport.Close(); closeErr != nil && !errors.Is(closeErr, ErrNotOpen) {
		slog.Debug("transport close after failure", "connection", c.id, "error", closeErr)
	}
	slog.Warn("connection failed", "connection", c.id, "remote", c.transport.RemoteName(), "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}
