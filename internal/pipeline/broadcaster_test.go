package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetinghost/internal/connection/conntest"
	"meetinghost/internal/lifecycle"
	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/protocol"
)

type recordingSubscriber struct {
	mu       sync.Mutex
	messages []*protocol.Message
	origins  []interfaces.Connection
}

func (r *recordingSubscriber) OnMessage(origin interfaces.Connection, m *protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	r.origins = append(r.origins, origin)
}

func (r *recordingSubscriber) signals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Signal()
	}
	return out
}

func TestBroadcaster_FansOutInOrder(t *testing.T) {
	conn, pipe := conntest.NewConn("peer")
	b := NewBroadcaster(conn, time.Millisecond)
	first, second := &recordingSubscriber{}, &recordingSubscriber{}
	b.Subscribe(first)
	b.Subscribe(second)
	assert.Equal(t, 2, b.SubscriberCount())

	require.NoError(t, b.Start())
	defer func() { _ = b.Stop() }()

	pipe.PushSignal(protocol.SignalHere, nil)
	pipe.Push([]byte("JUNK\nx"))
	pipe.PushSignal(protocol.SignalAudio, []byte{1})
	pipe.PushSignal(protocol.SignalHeartbeat, nil)

	want := []string{protocol.SignalHere, protocol.SignalAudio, protocol.SignalHeartbeat}
	require.Eventually(t, func() bool { return len(second.signals()) == len(want) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, first.signals())
	assert.Equal(t, want, second.signals())
	assert.Same(t, conn, first.origins[0])
}

func TestBroadcaster_StopsWhenConnectionCloses(t *testing.T) {
	conn, _ := conntest.NewConn("peer")
	b := NewBroadcaster(conn, time.Millisecond)
	require.NoError(t, b.Start())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return b.State() == lifecycle.StateStopped }, 2*time.Second, 5*time.Millisecond)
}

func TestBroadcaster_Stop(t *testing.T) {
	conn, _ := conntest.NewConn("peer")
	b := NewBroadcaster(conn, time.Millisecond)
	require.NoError(t, b.Start())

	require.NoError(t, b.Stop())
	require.Eventually(t, func() bool { return b.State() == lifecycle.StateStopped }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, conn.IsOpen(), "stopping the broadcaster leaves the connection to its owner")
}

func TestBroadcaster_SubscriberFunc(t *testing.T) {
	conn, pipe := conntest.NewConn("peer")
	b := NewBroadcaster(conn, time.Millisecond)

	got := make(chan string, 1)
	b.Subscribe(SubscriberFunc(func(_ interfaces.Connection, m *protocol.Message) { got <- m.Signal() }))
	require.NoError(t, b.Start())
	defer func() { _ = b.Stop() }()

	pipe.PushSignal(protocol.SignalGone, nil)
	select {
	case s := <-got:
		assert.Equal(t, protocol.SignalGone, s)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never called")
	}
}
