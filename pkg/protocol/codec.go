package protocol

import (
	"bytes"
	"fmt"
)

// Encode serializes the message in the current wire form:
// signal, delimiter, payload, end marker.
func (m *Message) Encode() []byte {
	buf := make([]byte, 0, len(m.signal)+1+len(m.payload)+len(PayloadEndMarker))
	buf = append(buf, m.signal...)
	buf = append(buf, SignalDelimiter)
	buf = append(buf, m.payload...)
	return append(buf, PayloadEndMarker...)
}

// EncodeLegacy serializes the message without the end marker. Only the
// handshake rejection notice is sent this way.
func (m *Message) EncodeLegacy() []byte {
	buf := make([]byte, 0, len(m.signal)+1+len(m.payload))
	buf = append(buf, m.signal...)
	buf = append(buf, SignalDelimiter)
	return append(buf, m.payload...)
}

// Split separates a frame into signal and payload without checking either
// against a vocabulary. A trailing end marker is stripped if present.
func Split(frame []byte) (string, []byte, error) {
	if len(frame) == 0 {
		return "", nil, invalid(ErrEmptyFrame, "")
	}
	if len(frame) > MaxFrameLength {
		return "", nil, invalid(ErrMessageTooLarge, fmt.Sprintf("%d bytes", len(frame)))
	}
	frame = bytes.TrimSuffix(frame, []byte(PayloadEndMarker))
	if len(frame) > MaxMessageLength {
		return "", nil, invalid(ErrMessageTooLarge, fmt.Sprintf("%d bytes", len(frame)))
	}

	idx := bytes.IndexByte(frame, SignalDelimiter)
	if idx < 0 {
		return "", nil, invalid(ErrMissingDelimiter, "")
	}
	signal := string(frame[:idx])
	payload := frame[idx+1:]
	if len(payload) > MaxPayloadSize {
		return "", nil, invalid(ErrMessageTooLarge, fmt.Sprintf("payload %d bytes", len(payload)))
	}
	return signal, payload, nil
}

// Decode parses a client frame in either wire form and applies the payload
// rule of its signal.
func Decode(frame []byte) (*Message, error) {
	signal, payload, err := Split(frame)
	if err != nil {
		return nil, err
	}

	rule, ok := clientSignals[signal]
	if !ok {
		return nil, invalid(ErrUnknownSignal, fmt.Sprintf("%q", signal))
	}

	switch rule {
	case payloadRequired:
		if len(payload) == 0 {
			return nil, invalid(ErrEmptyPayload, signal)
		}
	case payloadSlideNumber:
		if _, err := decodeSlideNumber(payload); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
	case payloadDiscard:
		payload = nil
	}

	return NewMessage(signal, payload)
}

// DecodeAny parses a frame whose signal belongs to either vocabulary without
// applying payload rules. Clients and tests use it to read server output.
func DecodeAny(frame []byte) (*Message, error) {
	signal, payload, err := Split(frame)
	if err != nil {
		return nil, err
	}
	if !IsClientSignal(signal) && !IsServerSignal(signal) {
		return nil, invalid(ErrUnknownSignal, fmt.Sprintf("%q", signal))
	}
	return NewMessage(signal, payload)
}

func invalid(reason error, detail string) error {
	if detail == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, reason)
	}
	return fmt.Errorf("%w: %w: %s", ErrInvalidMessage, reason, detail)
}
