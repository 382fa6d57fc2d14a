package meeting

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"meetinghost/internal/lifecycle"
	"meetinghost/internal/metrics"
)

// Registry owns the live meetings keyed by code. Meetings are lifecycle
// children of the registry, so stopping it stops every meeting.
// ARCHITECTURAL DISCOVERY: Removal checks the instance, not just the code,
// so a closing meeting never evicts its freshly created replacement
type Registry struct {
	*lifecycle.Node

	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu       sync.RWMutex
	meetings map[string]*Meeting
}

// NewRegistry creates an empty registry whose meetings use cfg.
func NewRegistry(cfg Config, mt *metrics.Metrics) *Registry {
	r := &Registry{
		cfg:      cfg,
		metrics:  mt,
		logger:   slog.Default().With("component", "registry"),
		meetings: make(map[string]*Meeting),
	}
	r.Node = lifecycle.NewNode("meeting-registry", lifecycle.Hooks{})
	return r
}

// GetOrCreate returns the live meeting for code, creating and starting one
// when none exists. A registered meeting that is already closing counts as
// absent and is replaced; its close handler leaves the replacement alone.
func (r *Registry) GetOrCreate(code string) (*Meeting, bool, error) {
	if r.State() >= lifecycle.StateStopping {
		return nil, false, ErrRegistryNotRunning
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.meetings[code]; ok && !m.isClosing() {
		return m, false, nil
	}

	m := New(code, r.cfg, WithMetrics(r.metrics), WithCloseHandler(r.remove))
	r.AddChild(m)
	if err := m.Start(); err != nil {
		r.RemoveChild(m)
		return nil, false, fmt.Errorf("failed to start meeting %s: %w", code, err)
	}
	r.meetings[code] = m
	r.logger.Info("meeting created", "meeting", code, "instance", m.ID())
	return m, true, nil
}

// Get returns the live meeting for code.
func (r *Registry) Get(code string) (*Meeting, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meetings[code]
	return m, ok
}

// List returns a snapshot of live meetings sorted by code.
func (r *Registry) List() []*Meeting {
	r.mu.RLock()
	out := make([]*Meeting, 0, len(r.meetings))
	for _, m := range r.meetings {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}

// Close force-stops the meeting for code, releasing its participants.
func (r *Registry) Close(code string) error {
	m, ok := r.Get(code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMeetingNotFound, code)
	}
	r.remove(m)
	if err := m.Stop(); err != nil {
		return fmt.Errorf("failed to stop meeting %s: %w", code, err)
	}
	return nil
}

// Count returns the number of live meetings.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.meetings)
}

// GetStats returns meeting and participant totals.
func (r *Registry) GetStats() map[string]int {
	meetings := r.List()
	participants := 0
	for _, m := range meetings {
		participants += m.ParticipantCount()
	}
	return map[string]int{
		"meetings":     len(meetings),
		"participants": participants,
	}
}

// remove deregisters m if it is still the live meeting for its code.
func (r *Registry) remove(m *Meeting) {
	r.mu.Lock()
	if current, ok := r.meetings[m.Code()]; ok && current == m {
		delete(r.meetings, m.Code())
	}
	r.mu.Unlock()

	r.RemoveChild(m)
	r.logger.Info("meeting removed", "meeting", m.Code(), "instance", m.ID())
}
