package meeting

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"meetinghost/internal/connection/conntest"
	"meetinghost/pkg/protocol"
	"meetinghost/pkg/types"
)

func fastConfig() Config {
	return Config{
		EventPollInterval:      time.Millisecond,
		HeartbeatCheckInterval: 5 * time.Millisecond,
		HeartbeatTimeout:       time.Hour,
		CloseCheckInterval:     20 * time.Millisecond,
		PipelinePollInterval:   time.Millisecond,
	}
}

func testUser(id int) *types.User {
	return &types.User{
		ID:          id,
		FirstName:   fmt.Sprintf("First%d", id),
		Surname:     fmt.Sprintf("Last%d", id),
		Company:     "Acme",
		JobTitle:    "Engineer",
		WorkEmail:   fmt.Sprintf("user%d@example.com", id),
		PhoneNumber: "555",
		AvatarID:    id,
		MeetingCode: "room1",
	}
}

func newTestClient(t *testing.T, user *types.User) (*Client, *conntest.Pipe) {
	t.Helper()
	conn, pipe := conntest.NewConn(fmt.Sprintf("user-%d", user.ID))
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn, user), pipe
}

func startMeeting(t *testing.T, cfg Config) *Meeting {
	t.Helper()
	m := New("room1", cfg)
	if err := m.Start(); err != nil {
		t.Fatalf("failed to start meeting: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop() })
	return m
}

func sentWithSignal(p *conntest.Pipe, signal string) []*protocol.Message {
	var out []*protocol.Message
	for _, m := range p.Sent() {
		if m.Signal() == signal {
			out = append(out, m)
		}
	}
	return out
}

// recordingEvent appends its label to a shared log when executed.
type recordingEvent struct {
	baseEvent
	label string
	mu    *sync.Mutex
	log   *[]string
}

func newRecordingEvent(label string, priority int, mu *sync.Mutex, log *[]string) *recordingEvent {
	return &recordingEvent{
		baseEvent: baseEvent{kind: KindHeartbeatRefresh, priority: priority},
		label:     label,
		mu:        mu,
		log:       log,
	}
}

func (e *recordingEvent) Execute(*Meeting) {
	e.mu.Lock()
	defer e.mu.Unlock()
	*e.log = append(*e.log, e.label)
}
