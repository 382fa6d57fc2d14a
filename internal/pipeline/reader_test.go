package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetinghost/internal/connection"
	"meetinghost/internal/connection/conntest"
	"meetinghost/pkg/protocol"
)

func TestReader_ReadsAvailableMessage(t *testing.T) {
	conn, pipe := conntest.NewConn("peer")
	pipe.PushSignal(protocol.SignalMeetingID, []byte("room1"))

	m, err := NewReader(conn).WithTimeout(time.Second).ReadNextMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.SignalMeetingID, m.Signal())
	assert.Equal(t, "room1", m.Text())
}

func TestReader_WaitsForLateMessage(t *testing.T) {
	conn, pipe := conntest.NewConn("peer")
	go func() {
		time.Sleep(30 * time.Millisecond)
		pipe.PushSignal(protocol.SignalToken, []byte("abc"))
	}()

	m, err := NewReader(conn).WithTimeout(time.Second).WithPollInterval(time.Millisecond).ReadNextMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", m.Text())
}

func TestReader_Timeout(t *testing.T) {
	conn, _ := conntest.NewConn("peer")

	start := time.Now()
	_, err := NewReader(conn).WithTimeout(40 * time.Millisecond).WithPollInterval(5 * time.Millisecond).ReadNextMessage(context.Background())
	assert.ErrorIs(t, err, ErrReadTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.True(t, conn.IsOpen(), "timeout does not affect the connection")
}

func TestReader_ContextCancel(t *testing.T) {
	conn, _ := conntest.NewConn("peer")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReader(conn).ReadNextMessage(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReader_DecodeError(t *testing.T) {
	conn, pipe := conntest.NewConn("peer")
	pipe.Push([]byte("BOGUS\n"))

	_, err := NewReader(conn).WithTimeout(time.Second).ReadNextMessage(context.Background())
	assert.ErrorIs(t, err, protocol.ErrInvalidMessage)
	assert.True(t, conn.IsOpen(), "decode errors leave the connection open")
}

func TestReader_ClosedConnection(t *testing.T) {
	conn, _ := conntest.NewConn("peer")
	require.NoError(t, conn.Close())

	_, err := NewReader(conn).ReadNextMessage(context.Background())
	assert.ErrorIs(t, err, connection.ErrNotOpen)
}

func TestWriter_SendForms(t *testing.T) {
	conn, pipe := conntest.NewConn("peer")
	w := NewWriter(conn)

	require.NoError(t, w.SendMessage(protocol.Validated()))
	require.NoError(t, w.SendLegacyMessage(protocol.NotValidated()))

	frames := pipe.SentFrames()
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.Validated().Encode(), frames[0])
	assert.Equal(t, []byte("NVAL\n"), frames[1])

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, w.SendMessage(protocol.Validated()), connection.ErrNotOpen)
}
