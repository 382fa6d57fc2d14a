package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

const (
	// MaxSignalLength is the signal bound in characters.
	MaxSignalLength = 4
	// MaxPayloadSize is the payload bound in bytes.
	MaxPayloadSize = 10000
	// SignalDelimiter separates the signal from the payload.
	SignalDelimiter = '\n'
	// PayloadEndMarker terminates the payload in the current wire form.
	PayloadEndMarker = "d11ebd74585511e89c2dfa7ae01bbebc"

	bytesPerChar = 4
	// MaxSerializedSignalLength covers a full-width signal plus delimiter.
	MaxSerializedSignalLength = MaxSignalLength*bytesPerChar + 1
	// MaxMessageLength bounds a frame with the end marker stripped.
	MaxMessageLength = MaxSerializedSignalLength + MaxPayloadSize
	// MaxFrameLength bounds a frame in the current wire form.
	MaxFrameLength = MaxMessageLength + len(PayloadEndMarker)
)

// Message is an immutable signal and optional payload.
type Message struct {
	signal  string
	payload []byte
}

// NewMessage validates the bounds and returns a message owning a copy of
// payload. An empty payload is normalized to none.
func NewMessage(signal string, payload []byte) (*Message, error) {
	if signal == "" {
		return nil, ErrEmptySignal
	}
	if utf8.RuneCountInString(signal) > MaxSignalLength {
		return nil, fmt.Errorf("%w: %q", ErrSignalTooLong, signal)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	m := &Message{signal: signal}
	if len(payload) > 0 {
		m.payload = append([]byte(nil), payload...)
	}
	return m, nil
}

// MustMessage is NewMessage for arguments known to be valid; it panics otherwise.
func MustMessage(signal string, payload []byte) *Message {
	m, err := NewMessage(signal, payload)
	if err != nil {
		panic(fmt.Sprintf("protocol: invalid message construction: %v", err))
	}
	return m
}

// Signal returns the opcode.
func (m *Message) Signal() string {
	return m.signal
}

// Payload returns a copy of the payload, or nil when there is none.
func (m *Message) Payload() []byte {
	if m.payload == nil {
		return nil
	}
	return append([]byte(nil), m.payload...)
}

// HasPayload reports whether the message carries payload bytes.
func (m *Message) HasPayload() bool {
	return len(m.payload) > 0
}

// PayloadLen returns the payload size in bytes.
func (m *Message) PayloadLen() int {
	return len(m.payload)
}

// Text returns the payload as a string, used for tokens and meeting codes.
func (m *Message) Text() string {
	return string(m.payload)
}

// SlideNumber decodes a slide change payload.
func (m *Message) SlideNumber() (int, error) {
	return decodeSlideNumber(m.payload)
}

func (m *Message) String() string {
	return fmt.Sprintf("%s(%d bytes)", m.signal, len(m.payload))
}

func decodeSlideNumber(payload []byte) (int, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("%w: got %d", ErrSlideNumberLength, len(payload))
	}
	n := int32(binary.BigEndian.Uint32(payload))
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeSlideNumber, n)
	}
	return int(n), nil
}
