package connection

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"meetinghost/pkg/protocol"
)

// DefaultPollTimeout is how long WillReadBlock waits for a byte.
const DefaultPollTimeout = time.Millisecond

var endMarker = []byte(protocol.PayloadEndMarker)

// TCPTransport frames packets on a stream socket by scanning for the signal
// delimiter and then the payload end marker.
type TCPTransport struct {
	conn        net.Conn
	reader      *bufio.Reader
	pollTimeout time.Duration

	readMu  sync.Mutex
	writeMu sync.Mutex
}

// NewTCPTransport wraps an accepted socket.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{
		conn:        conn,
		reader:      bufio.NewReaderSize(conn, 4096),
		pollTimeout: DefaultPollTimeout,
	}
}

// NewTCP wraps an accepted socket in a Conn.
func NewTCP(conn net.Conn) *Conn {
	return New(NewTCPTransport(conn))
}

// Receive reads one byte at a time until the delimiter, then until the end
// marker, and returns signal, delimiter and payload.
func (t *TCPTransport) Receive() ([]byte, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	frame := make([]byte, 0, 64)
	for {
		b, err := t.reader.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read signal: %w", err)
		}
		frame = append(frame, b)
		if b == protocol.SignalDelimiter {
			break
		}
		if len(frame) >= protocol.MaxSerializedSignalLength {
			return nil, fmt.Errorf("%w: signal without delimiter", ErrFrameTooLarge)
		}
	}

	signalLen := len(frame)
	for !bytes.HasSuffix(frame[signalLen:], endMarker) {
		b, err := t.reader.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		frame = append(frame, b)
		if len(frame)-signalLen > protocol.MaxPayloadSize+len(endMarker) {
			return nil, fmt.Errorf("%w: payload without end marker", ErrFrameTooLarge)
		}
	}
	return frame[:len(frame)-len(endMarker)], nil
}

// Send writes the frame in one call.
func (t *TCPTransport) Send(packet []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.conn.Write(packet); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// WillReadBlock peeks for a buffered or incoming byte with a short deadline.
func (t *TCPTransport) WillReadBlock() (bool, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	if t.reader.Buffered() > 0 {
		return false, nil
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(t.pollTimeout)); err != nil {
		return true, fmt.Errorf("failed to set poll deadline: %w", err)
	}
	_, err := t.reader.Peek(1)
	if resetErr := t.conn.SetReadDeadline(time.Time{}); resetErr != nil {
		return true, fmt.Errorf("failed to clear poll deadline: %w", resetErr)
	}
	if err == nil {
		return false, nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true, nil
	}
	return true, fmt.Errorf("failed to poll socket: %w", err)
}

func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

func (t *TCPTransport) RemoteName() string {
	return t.conn.RemoteAddr().String()
}
