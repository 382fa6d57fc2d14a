package websocket

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"meetinghost/pkg/protocol"
)

// Settings tune a websocket transport.
type Settings struct {
	WriteTimeout time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
	InboxSize    int
}

// DefaultSettings mirror the keepalive timings used for browser clients.
func DefaultSettings() Settings {
	return Settings{
		WriteTimeout: 5 * time.Second,
		PongWait:     60 * time.Second,
		PingInterval: 30 * time.Second,
		InboxSize:    100,
	}
}

var endMarker = []byte(protocol.PayloadEndMarker)

// Transport carries one encoded protocol message per websocket frame.
// ARCHITECTURAL DISCOVERY: gorilla allows one concurrent reader, so a read
// pump owns ReadMessage and feeds an inbox; polling is a length check
type Transport struct {
	conn     *websocket.Conn
	settings Settings

	inbox  chan []byte
	done   chan struct{}
	errMu  sync.Mutex
	err    error
	ctx    context.Context
	cancel context.CancelFunc

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewTransport starts the read pump and keepalive pinger for conn.
func NewTransport(conn *websocket.Conn, settings Settings) *Transport {
	if settings.InboxSize <= 0 {
		settings.InboxSize = DefaultSettings().InboxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		conn:     conn,
		settings: settings,
		inbox:    make(chan []byte, settings.InboxSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	conn.SetReadLimit(int64(protocol.MaxFrameLength))
	if settings.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(settings.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(settings.PongWait))
		})
	}

	go t.readPump()
	if settings.PingInterval > 0 {
		go t.pingLoop()
	}
	return t
}

func (t *Transport) readPump() {
	defer close(t.done)
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			t.setErr(err)
			return
		}
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			t.setErr(fmt.Errorf("%w: %d", ErrUnsupportedFrame, messageType))
			return
		}
		if t.settings.PongWait > 0 {
			_ = t.conn.SetReadDeadline(time.Now().Add(t.settings.PongWait))
		}
		select {
		case t.inbox <- bytes.TrimSuffix(data, endMarker):
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Transport) pingLoop() {
	ticker := time.NewTicker(t.settings.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(t.settings.WriteTimeout)
			if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Transport) setErr(err error) {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func (t *Transport) readErr() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.err == nil {
		return ErrConnectionClosed
	}
	return t.err
}

// Receive blocks until the next frame or until the pump ends. Frames
// already queued are delivered before the pump's error.
func (t *Transport) Receive() ([]byte, error) {
	select {
	case data := <-t.inbox:
		return data, nil
	default:
	}
	select {
	case data := <-t.inbox:
		return data, nil
	case <-t.done:
		select {
		case data := <-t.inbox:
			return data, nil
		default:
		}
		return nil, fmt.Errorf("failed to read frame: %w", t.readErr())
	}
}

// Send writes packet as one binary frame.
func (t *Transport) Send(packet []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.settings.WriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, packet); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// WillReadBlock is true while the inbox is empty. A dead pump with an
// empty inbox reports its error so the connection can move to ERROR.
func (t *Transport) WillReadBlock() (bool, error) {
	if len(t.inbox) > 0 {
		return false, nil
	}
	select {
	case <-t.done:
		if len(t.inbox) > 0 {
			return false, nil
		}
		return true, fmt.Errorf("failed to poll frame: %w", t.readErr())
	default:
		return true, nil
	}
}

// Close sends a close frame, best effort, and tears the socket down.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.cancel()
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *Transport) RemoteName() string {
	return "ws://" + t.conn.RemoteAddr().String()
}
