// Package pipeline runs the per-connection reader and writer loops.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"meetinghost/internal/connection"
	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/protocol"
)

// DefaultPollInterval is the minimum interval between availability polls.
const DefaultPollInterval = 10 * time.Millisecond

// Reader decodes messages from a connection, optionally bounded by a timeout.
type Reader struct {
	conn         interfaces.Connection
	timeout      time.Duration
	pollInterval time.Duration
}

// NewReader creates a reader without a timeout.
func NewReader(conn interfaces.Connection) *Reader {
	return &Reader{conn: conn, pollInterval: DefaultPollInterval}
}

// WithTimeout bounds how long ReadNextMessage waits for data. Zero waits
// until ctx ends.
func (r *Reader) WithTimeout(timeout time.Duration) *Reader {
	r.timeout = timeout
	return r
}

// WithPollInterval sets the interval between availability polls.
func (r *Reader) WithPollInterval(interval time.Duration) *Reader {
	if interval > 0 {
		r.pollInterval = interval
	}
	return r
}

// WillReadBlock reports whether no frame is ready yet.
func (r *Reader) WillReadBlock() (bool, error) {
	return r.conn.PollWillBlock()
}

// ReadNextMessage waits for data, reads one frame and decodes it. Decode
// failures wrap protocol.ErrInvalidMessage; connection failures wrap the
// connection package errors.
func (r *Reader) ReadNextMessage(ctx context.Context) (*protocol.Message, error) {
	if !r.conn.IsOpen() {
		return nil, fmt.Errorf("%w: %s", connection.ErrNotOpen, r.conn.State())
	}

	start := time.Now()
	for {
		block, err := r.conn.PollWillBlock()
		if err != nil {
			return nil, err
		}
		if !block {
			break
		}
		if r.timeout > 0 && time.Since(start) >= r.timeout {
			return nil, fmt.Errorf("%w after %s", ErrReadTimeout, r.timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}

	packet, err := r.conn.ReceiveNextPacket()
	if err != nil {
		return nil, err
	}
	return protocol.Decode(packet)
}
