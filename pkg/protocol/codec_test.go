package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Layout(t *testing.T) {
	m := MustMessage("AUDI", []byte{1, 2, 3})

	assert.Equal(t, append([]byte("AUDI\n\x01\x02\x03"), PayloadEndMarker...), m.Encode())
	assert.Equal(t, []byte("AUDI\n\x01\x02\x03"), m.EncodeLegacy())
}

func TestDecode_RoundTripBothForms(t *testing.T) {
	big := bytes.Repeat([]byte{0xAB}, MaxPayloadSize)
	tests := []struct {
		name    string
		signal  string
		payload []byte
	}{
		{"token", SignalToken, []byte("abc")},
		{"meeting id", SignalMeetingID, []byte("room1")},
		{"audio max payload", SignalAudio, big},
		{"slide", SignalSlideChange, []byte{0, 0, 1, 0}},
		{"end of audio with info", SignalEndOfAudioSegment, []byte{0, 0, 0, 9}},
		{"end of audio without info", SignalEndOfAudioSegment, nil},
		{"heartbeat", SignalHeartbeat, nil},
		{"here", SignalHere, nil},
	}
	for _, tt := range tests {
		original := MustMessage(tt.signal, tt.payload)
		for form, frame := range map[string][]byte{"current": original.Encode(), "legacy": original.EncodeLegacy()} {
			t.Run(tt.name+"/"+form, func(t *testing.T) {
				decoded, err := Decode(frame)
				require.NoError(t, err)
				assert.Equal(t, tt.signal, decoded.Signal())
				assert.Equal(t, original.Payload(), decoded.Payload())
			})
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		wantErr error
	}{
		{"empty", nil, ErrEmptyFrame},
		{"no delimiter", []byte("AUDI"), ErrMissingDelimiter},
		{"unknown signal", []byte("NOPE\nx"), ErrUnknownSignal},
		{"signal is case sensitive", []byte("audi\nx"), ErrUnknownSignal},
		{"server signal from client", []byte("UDM\n{}"), ErrUnknownSignal},
		{"audio without payload", []byte("AUDI\n"), ErrEmptyPayload},
		{"token without payload", append([]byte("TOKE\n"), PayloadEndMarker...), ErrEmptyPayload},
		{"meeting id without payload", []byte("MID\n"), ErrEmptyPayload},
		{"slide short", []byte("CHNG\n\x00\x01"), ErrSlideNumberLength},
		{"slide long", []byte("CHNG\n\x00\x00\x00\x01\x02"), ErrSlideNumberLength},
		{"slide missing", []byte("CHNG\n"), ErrSlideNumberLength},
		{"slide negative", []byte("CHNG\n\xff\xff\xff\xfe"), ErrNegativeSlideNumber},
		{"oversized frame", bytes.Repeat([]byte("a"), MaxFrameLength+1), ErrMessageTooLarge},
		{"oversized payload", append([]byte("AUDI\n"), bytes.Repeat([]byte("a"), MaxPayloadSize+1)...), ErrMessageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode(tt.frame)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, ErrInvalidMessage)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_ZeroPayloadSignalsDiscardPayload(t *testing.T) {
	for _, signal := range []string{SignalHere, SignalGone, SignalHeartbeat, SignalGetParticipants, SignalEnd} {
		m, err := Decode([]byte(signal + "\njunk"))
		require.NoError(t, err, signal)
		assert.Equal(t, signal, m.Signal())
		assert.Nil(t, m.Payload(), signal)
	}
}

func TestDecode_PayloadMayContainDelimiter(t *testing.T) {
	m, err := Decode([]byte("AUDI\na\nb"))
	require.NoError(t, err)
	assert.Equal(t, "a\nb", m.Text())
}

func TestDecodeAny_AcceptsServerSignals(t *testing.T) {
	m, err := DecodeAny(UserLeft(12).Encode())
	require.NoError(t, err)
	assert.Equal(t, SignalUserLeft, m.Signal())

	_, err = DecodeAny([]byte("ZZZ\n"))
	assert.ErrorIs(t, err, ErrUnknownSignal)
}
