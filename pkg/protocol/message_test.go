package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage_ConstructionErrors(t *testing.T) {
	tests := []struct {
		name    string
		signal  string
		payload []byte
		wantErr error
	}{
		{"empty signal", "", nil, ErrEmptySignal},
		{"signal too long", "ABCDE", nil, ErrSignalTooLong},
		{"payload too large", "AUDI", make([]byte, MaxPayloadSize+1), ErrPayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMessage(tt.signal, tt.payload)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotErrorIs(t, err, ErrInvalidMessage)
		})
	}
}

func TestNewMessage_Bounds(t *testing.T) {
	m, err := NewMessage("ÄÖÜß", make([]byte, MaxPayloadSize))
	require.NoError(t, err)
	assert.Equal(t, MaxPayloadSize, m.PayloadLen())
}

func TestNewMessage_EmptyPayloadNormalized(t *testing.T) {
	m, err := NewMessage("HERE", []byte{})
	require.NoError(t, err)
	assert.Nil(t, m.Payload())
	assert.False(t, m.HasPayload())
}

func TestNewMessage_CopiesPayload(t *testing.T) {
	payload := []byte("abc")
	m, err := NewMessage("TOKE", payload)
	require.NoError(t, err)

	payload[0] = 'x'
	assert.Equal(t, "abc", m.Text())

	out := m.Payload()
	out[0] = 'y'
	assert.Equal(t, "abc", m.Text())
}

func TestMustMessage_Panics(t *testing.T) {
	assert.Panics(t, func() { MustMessage(strings.Repeat("A", 5), nil) })
	assert.NotPanics(t, func() { MustMessage("VAL", nil) })
}

func TestMessage_SlideNumber(t *testing.T) {
	m, err := SlideChange(42)
	require.NoError(t, err)
	n, err := m.SlideNumber()
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = SlideChange(-1)
	assert.ErrorIs(t, err, ErrNegativeSlideNumber)
}
