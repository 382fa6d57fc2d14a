package hub

import (
	"net"
	"strings"
	"sync"
	"time"
)

// RateLimiter caps new connections per remote host within a sliding window.
// A limit of 0 disables it.
// FUNCTIONAL DISCOVERY: each host keeps the times of its recent connections,
// so a burst straddling a window boundary is still counted as one window
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*hostLimit
}

type hostLimit struct {
	recent []time.Time
	last   time.Time
}

// prune drops connection times that left the window ending at now.
func (h *hostLimit) prune(now time.Time, window time.Duration) {
	keep := 0
	for keep < len(h.recent) && now.Sub(h.recent[keep]) >= window {
		keep++
	}
	h.recent = h.recent[keep:]
}

// NewRateLimiter allows limit connections per host in any window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*hostLimit),
	}
}

// Allow records one connection from host and reports whether it fits.
// Refused connections are not recorded.
func (rl *RateLimiter) Allow(host string) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limit, exists := rl.clients[host]
	if !exists {
		limit = &hostLimit{recent: make([]time.Time, 0, rl.limit)}
		rl.clients[host] = limit
	}
	limit.last = now
	limit.prune(now, rl.window)
	if len(limit.recent) >= rl.limit {
		return false
	}
	limit.recent = append(limit.recent, now)
	return true
}

// Cleanup drops hosts idle for five windows.
func (rl *RateLimiter) Cleanup() {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for host, limit := range rl.clients {
		if now.Sub(limit.last) > 5*rl.window {
			delete(rl.clients, host)
		}
	}
}

// Tracked returns the number of hosts with live state.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// hostOf reduces a connection name such as "ws://10.0.0.1:5000" to the
// host part used as the limiter key.
func hostOf(name string) string {
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	if host, _, err := net.SplitHostPort(name); err == nil {
		return host
	}
	return name
}
