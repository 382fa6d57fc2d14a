// Package api serves the administrative HTTP surface: health, meeting
// inspection and force-close, Prometheus metrics, and the websocket
// endpoint when one is mounted.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"meetinghost/internal/meeting"
	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/types"
)

// Meetings is the slice of the meeting registry the API reads and closes.
type Meetings interface {
	List() []*meeting.Meeting
	Get(code string) (*meeting.Meeting, bool)
	Close(code string) error
	GetStats() map[string]int
}

// Server is the admin API router.
type Server struct {
	meetings  Meetings
	directory interfaces.Directory
	router    chi.Router
	logger    *slog.Logger
	started   time.Time

	wsPath    string
	wsHandler http.Handler
	metrics   http.Handler
}

// Option configures optional routes.
type Option func(*Server)

// WithWebSocket mounts the websocket upgrade handler at path.
func WithWebSocket(path string, h http.Handler) Option {
	return func(s *Server) {
		s.wsPath = path
		s.wsHandler = h
	}
}

// WithMetricsHandler exposes h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer builds the router. directory may be nil.
func NewServer(meetings Meetings, directory interfaces.Directory, opts ...Option) *Server {
	s := &Server{
		meetings:  meetings,
		directory: directory,
		logger:    slog.Default().With("component", "api"),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// ARCHITECTURAL DISCOVERY: the websocket and metrics routes sit outside
	// the JSON group since neither answers with JSON
	if s.wsHandler != nil {
		r.Handle(s.wsPath, s.wsHandler)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(jsonMiddleware)

		r.Get("/health", s.healthCheck)
		r.Route("/api/meetings", func(r chi.Router) {
			r.Get("/", s.listMeetings)
			r.Get("/{code}", s.getMeeting)
			r.Delete("/{code}", s.closeMeeting)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		s.sendError(w, "Route not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// MeetingView summarizes one live meeting.
type MeetingView struct {
	Code             string    `json:"code"`
	InstanceID       string    `json:"instance_id"`
	PresenterID      int       `json:"presenter_id"`
	ParticipantCount int       `json:"participant_count"`
	PendingEvents    int       `json:"pending_events"`
	State            string    `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
}

// ParticipantView is a participant's profile plus connection details.
type ParticipantView struct {
	User          types.User `json:"user"`
	ConnectionID  string     `json:"connection_id"`
	Remote        string     `json:"remote"`
	LastHeartbeat time.Time  `json:"last_heartbeat"`
}

type ListMeetingsResponse struct {
	Meetings []MeetingView `json:"meetings"`
}

type MeetingResponse struct {
	Meeting      MeetingView       `json:"meeting"`
	Participants []ParticipantView `json:"participants"`
}

type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Uptime    string         `json:"uptime"`
	Directory string         `json:"directory"`
	Meetings  map[string]int `json:"meetings"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func viewOf(m *meeting.Meeting) MeetingView {
	return MeetingView{
		Code:             m.Code(),
		InstanceID:       m.ID(),
		PresenterID:      m.PresenterID(),
		ParticipantCount: m.ParticipantCount(),
		PendingEvents:    m.PendingEvents(),
		State:            m.State().String(),
		CreatedAt:        m.CreatedAt(),
	}
}

func (s *Server) listMeetings(w http.ResponseWriter, r *http.Request) {
	meetings := s.meetings.List()
	views := make([]MeetingView, 0, len(meetings))
	for _, m := range meetings {
		views = append(views, viewOf(m))
	}
	s.sendJSON(w, http.StatusOK, ListMeetingsResponse{Meetings: views})
}

func (s *Server) getMeeting(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	m, ok := s.meetings.Get(code)
	if !ok {
		s.sendError(w, "Meeting not found", http.StatusNotFound)
		return
	}

	clients := m.Participants()
	participants := make([]ParticipantView, 0, len(clients))
	for _, c := range clients {
		participants = append(participants, ParticipantView{
			User:          *c.User(),
			ConnectionID:  c.Conn().ID(),
			Remote:        c.Conn().Name(),
			LastHeartbeat: c.LastHeartbeat(),
		})
	}
	s.sendJSON(w, http.StatusOK, MeetingResponse{Meeting: viewOf(m), Participants: participants})
}

func (s *Server) closeMeeting(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.meetings.Close(code); err != nil {
		if errors.Is(err, meeting.ErrMeetingNotFound) {
			s.sendError(w, "Meeting not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to close meeting", "meeting", code, "error", err)
		s.sendError(w, "Failed to close meeting", http.StatusInternalServerError)
		return
	}
	s.logger.Info("meeting closed by operator", "meeting", code, "remote", r.RemoteAddr)
	s.sendJSON(w, http.StatusOK, map[string]string{"message": "Meeting closed"})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	directory := "not configured"
	if s.directory != nil {
		directory = "available"
		// FUNCTIONAL DISCOVERY: without a directory no client can validate
		if !s.directory.IsAvailable(ctx) {
			status = "unhealthy"
			directory = "unavailable"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	s.sendJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Directory: directory,
		Meetings:  s.meetings.GetStats(),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, body any) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// sendError writes the uniform error body.
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
