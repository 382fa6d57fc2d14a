package meeting

import (
	"sync/atomic"
	"time"

	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/types"
)

// Client is a validated connection bound to a user for one meeting.
// Equality is the wrapped user's equality.
type Client struct {
	conn interfaces.Connection
	user *types.User

	lastHeartbeat atomic.Int64
	leaving       atomic.Bool
}

// NewClient binds conn to user and starts its heartbeat clock.
func NewClient(conn interfaces.Connection, user *types.User) *Client {
	c := &Client{conn: conn, user: user}
	c.RefreshHeartbeat()
	return c
}

// Conn is the connection the client joined on.
func (c *Client) Conn() interfaces.Connection { return c.conn }

// User is the validated profile.
func (c *Client) User() *types.User { return c.user }

// MeetingCode is the code stamped during validation.
func (c *Client) MeetingCode() string { return c.user.MeetingCode }

// RefreshHeartbeat records the client as alive now.
func (c *Client) RefreshHeartbeat() {
	c.lastHeartbeat.Store(time.Now().UnixNano())
}

// LastHeartbeat returns when the client was last seen alive.
func (c *Client) LastHeartbeat() time.Time {
	return time.Unix(0, c.lastHeartbeat.Load())
}

// HeartbeatExpired reports whether the last heartbeat is older than timeout.
func (c *Client) HeartbeatExpired(now time.Time, timeout time.Duration) bool {
	return now.Sub(c.LastHeartbeat()) > timeout
}

// Equal compares wrapped users.
func (c *Client) Equal(other *Client) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.user.Equal(other.user)
}

// markLeaving returns true only for the first caller.
func (c *Client) markLeaving() bool {
	return c.leaving.CompareAndSwap(false, true)
}
