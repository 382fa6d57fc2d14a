package hub

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetinghost/internal/connection"
	"meetinghost/internal/connection/conntest"
	"meetinghost/internal/lifecycle"
	"meetinghost/internal/meeting"
	"meetinghost/internal/metrics"
	"meetinghost/internal/validation"
	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/protocol"
	"meetinghost/pkg/types"
)

type mapDirectory struct {
	mu       sync.Mutex
	users    map[string]*types.User
	meetings map[string]int
}

func (d *mapDirectory) IsAvailable(ctx context.Context) bool { return true }

func (d *mapDirectory) ResolveUser(ctx context.Context, token string) (*types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[token]
	if !ok {
		return nil, interfaces.ErrInvalidToken
	}
	return u.Clone(), nil
}

func (d *mapDirectory) ResolveMeeting(ctx context.Context, code string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.meetings[code]
	if !ok {
		return 0, interfaces.ErrInvalidMeetingID
	}
	return id, nil
}

func testDirectory() *mapDirectory {
	return &mapDirectory{
		users: map[string]*types.User{
			"ada":   {ID: 1, FirstName: "Ada", Surname: "Lovelace"},
			"grace": {ID: 2, FirstName: "Grace", Surname: "Hopper"},
		},
		meetings: map[string]int{"room1": 1},
	}
}

func meetingConfig() meeting.Config {
	return meeting.Config{
		EventPollInterval:      time.Millisecond,
		HeartbeatCheckInterval: 10 * time.Millisecond,
		HeartbeatTimeout:       time.Minute,
		CloseCheckInterval:     10 * time.Millisecond,
		PipelinePollInterval:   time.Millisecond,
	}
}

func newTestHub(t *testing.T, limiter *RateLimiter, mt *metrics.Metrics) *Hub {
	validator := validation.NewValidator(testDirectory(), validation.Config{
		ResponseTimeout:  time.Second,
		PollInterval:     time.Millisecond,
		DirectoryTimeout: time.Second,
	})
	h := New(DefaultConfig(), meeting.NewRegistry(meetingConfig(), mt), validator, limiter, mt)
	t.Cleanup(func() {
		if h.State() == lifecycle.StateRunning {
			_ = h.Stop()
		}
	})
	return h
}

func handshake(name, token, code string) (*connection.Conn, *conntest.Pipe) {
	conn, pipe := conntest.NewConn(name)
	pipe.PushSignal(protocol.SignalToken, []byte(token))
	pipe.PushSignal(protocol.SignalMeetingID, []byte(code))
	return conn, pipe
}

func waitParticipants(t *testing.T, h *Hub, code string, n int) *meeting.Meeting {
	t.Helper()
	var m *meeting.Meeting
	require.Eventually(t, func() bool {
		var ok bool
		m, ok = h.Registry().Get(code)
		return ok && m.ParticipantCount() == n
	}, 2*time.Second, 5*time.Millisecond)
	return m
}

func TestHub_StartStop(t *testing.T) {
	h := newTestHub(t, nil, nil)

	require.NoError(t, h.Start())
	assert.Equal(t, lifecycle.StateRunning, h.State())
	assert.Equal(t, lifecycle.StateRunning, h.Registry().State())
	assert.ErrorIs(t, h.Start(), lifecycle.ErrAlreadyStarted)

	require.NoError(t, h.Stop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.WaitStopped(ctx, 5*time.Millisecond))
	assert.ErrorIs(t, h.Stop(), lifecycle.ErrNotRunning)
}

func TestHub_RefusesWhenNotRunning(t *testing.T) {
	h := newTestHub(t, nil, nil)
	conn, pipe := conntest.NewConn("10.0.0.1:1")

	assert.ErrorIs(t, h.HandleConnection(conn), ErrHubNotRunning)
	assert.True(t, pipe.Closed())
}

func TestHub_AdmitsValidatedClient(t *testing.T) {
	h := newTestHub(t, nil, nil)
	require.NoError(t, h.Start())

	conn, pipe := handshake("10.0.0.1:1", "ada", "room1")
	require.NoError(t, h.HandleConnection(conn))

	m := waitParticipants(t, h, "room1", 1)
	client := m.Participants()[0]
	assert.Equal(t, 1, client.User().ID)
	assert.True(t, client.User().Presenting)
	assert.Equal(t, "room1", client.MeetingCode())
	assert.Contains(t, pipe.SentSignals(), protocol.SignalValidated)

	require.Eventually(t, func() bool { return h.PendingValidations() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_RejectsDuplicateUser(t *testing.T) {
	h := newTestHub(t, nil, nil)
	require.NoError(t, h.Start())

	first, _ := handshake("10.0.0.1:1", "ada", "room1")
	require.NoError(t, h.HandleConnection(first))
	waitParticipants(t, h, "room1", 1)

	second, pipe := handshake("10.0.0.1:2", "ada", "room1")
	require.NoError(t, h.HandleConnection(second))

	require.Eventually(t, pipe.Closed, 2*time.Second, 5*time.Millisecond)
	assert.True(t, first.IsOpen())
	m := waitParticipants(t, h, "room1", 1)
	assert.Equal(t, first.ID(), m.Participants()[0].Conn().ID())
}

func TestHub_RejectsInvalidToken(t *testing.T) {
	h := newTestHub(t, nil, nil)
	require.NoError(t, h.Start())

	conn, pipe := handshake("10.0.0.1:1", "nobody", "room1")
	require.NoError(t, h.HandleConnection(conn))

	require.Eventually(t, pipe.Closed, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, h.Registry().Count())
}

func TestHub_RateLimitsPerHost(t *testing.T) {
	registry := prometheus.NewRegistry()
	mt := metrics.New(metrics.WithRegistry(registry))
	h := newTestHub(t, NewRateLimiter(1, time.Minute), mt)
	require.NoError(t, h.Start())

	first, _ := handshake("10.0.0.1:1", "ada", "room1")
	require.NoError(t, h.HandleConnection(first))

	second, pipe := conntest.NewConn("10.0.0.1:2")
	assert.ErrorIs(t, h.HandleConnection(second), ErrRateLimited)
	assert.True(t, pipe.Closed())

	other, _ := handshake("10.0.0.2:1", "grace", "room1")
	assert.NoError(t, h.HandleConnection(other))

	expected := `
# HELP meetinghost_connections_rate_limited_total Connections closed by the per-host rate limiter
# TYPE meetinghost_connections_rate_limited_total counter
meetinghost_connections_rate_limited_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "meetinghost_connections_rate_limited_total"))
	waitParticipants(t, h, "room1", 2)
}

func TestHub_StopReleasesParticipants(t *testing.T) {
	h := newTestHub(t, nil, nil)
	require.NoError(t, h.Start())

	conn, pipe := handshake("10.0.0.1:1", "ada", "room1")
	require.NoError(t, h.HandleConnection(conn))
	waitParticipants(t, h, "room1", 1)

	require.NoError(t, h.Stop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.WaitStopped(ctx, 5*time.Millisecond))

	assert.False(t, conn.IsOpen())
	assert.Equal(t, protocol.SignalEnd, pipe.SentSignals()[len(pipe.SentSignals())-1])
}

func TestHub_StopCancelsPendingValidation(t *testing.T) {
	h := newTestHub(t, nil, nil)
	require.NoError(t, h.Start())

	conn, pipe := conntest.NewConn("10.0.0.1:1")
	require.NoError(t, h.HandleConnection(conn))
	pipe.WaitForSent(1, time.Second)

	require.NoError(t, h.Stop())
	require.Eventually(t, pipe.Closed, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, h.Registry().Count())
}
