package websocket

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"meetinghost/internal/connection"
	"meetinghost/internal/metrics"
	"meetinghost/pkg/interfaces"
)

// Handler upgrades HTTP requests and hands the resulting connections to
// the same listeners the TCP acceptor feeds.
type Handler struct {
	upgrader websocket.Upgrader
	settings Settings
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu        sync.RWMutex
	listeners []interfaces.ConnectionListener
}

// NewHandler builds a handler. An empty allowedOrigins accepts any origin.
func NewHandler(settings Settings, allowedOrigins []string, mt *metrics.Metrics) *Handler {
	h := &Handler{
		settings: settings,
		metrics:  mt,
		logger:   slog.Default().With("component", "acceptor", "transport", "websocket"),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      originChecker(allowedOrigins),
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		// FUNCTIONAL DISCOVERY: native clients send no Origin header at all
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// OnConnection registers a listener for upgraded connections.
func (h *Handler) OnConnection(l interfaces.ConnectionListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	listeners := append([]interfaces.ConnectionListener(nil), h.listeners...)
	h.mu.RUnlock()

	if len(listeners) == 0 {
		http.Error(w, "server is not accepting connections", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := connection.New(NewTransport(ws, h.settings))
	h.metrics.ConnectionAccepted("websocket")
	h.logger.Debug("connection accepted", "connection", conn.ID(), "remote", conn.Name())
	for _, l := range listeners {
		l(conn)
	}
}
