package pipeline

import (
	"fmt"

	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/protocol"
)

// Writer encodes messages onto a connection synchronously.
type Writer struct {
	conn interfaces.Connection
}

// NewWriter sends straight to conn with no queue or goroutine.
func NewWriter(conn interfaces.Connection) *Writer {
	return &Writer{conn: conn}
}

// SendMessage sends m in the current wire form.
func (w *Writer) SendMessage(m *protocol.Message) error {
	if err := w.conn.SendPacket(m.Encode()); err != nil {
		return fmt.Errorf("failed to send %s: %w", m.Signal(), err)
	}
	return nil
}

// SendLegacyMessage sends m without the end marker.
func (w *Writer) SendLegacyMessage(m *protocol.Message) error {
	if err := w.conn.SendPacket(m.EncodeLegacy()); err != nil {
		return fmt.Errorf("failed to send %s: %w", m.Signal(), err)
	}
	return nil
}
