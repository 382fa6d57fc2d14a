package meeting

import (
	"fmt"

	"meetinghost/pkg/protocol"
	"meetinghost/pkg/types"
)

// Priorities. Lower is served first.
const (
	PriorityControl = 0
	PriorityMedia   = 5
)

// Kind tags an event variant.
type Kind int

const (
	KindAudioTransmit Kind = iota
	KindSlideChange
	KindUserJoined
	KindUserLeft
	KindHeartbeatRefresh
	KindGetAllParticipants
	KindEndOfAudioSegment
)

func (k Kind) String() string {
	switch k {
	case KindAudioTransmit:
		return "AudioTransmit"
	case KindSlideChange:
		return "SlideChange"
	case KindUserJoined:
		return "UserJoined"
	case KindUserLeft:
		return "UserLeft"
	case KindHeartbeatRefresh:
		return "HeartbeatRefresh"
	case KindGetAllParticipants:
		return "GetAllParticipants"
	case KindEndOfAudioSegment:
		return "EndOfAudioSegment"
	default:
		return "Unknown"
	}
}

// Event is one unit of work for a meeting's dispatch loop. Execute runs on
// the dispatch goroutine only.
type Event interface {
	Kind() Kind
	Origin() *Client
	Priority() int
	Execute(m *Meeting)
}

type baseEvent struct {
	kind     Kind
	origin   *Client
	priority int
}

func (e baseEvent) Kind() Kind      { return e.kind }
func (e baseEvent) Origin() *Client { return e.origin }
func (e baseEvent) Priority() int   { return e.priority }

// ParseEvent maps a decoded message to its event. Signals with no meeting
// behavior return ErrNotAnEvent.
func ParseEvent(origin *Client, msg *protocol.Message) (Event, error) {
	switch msg.Signal() {
	case protocol.SignalAudio:
		return &forwardEvent{baseEvent{KindAudioTransmit, origin, PriorityMedia}, msg, true}, nil
	case protocol.SignalEndOfAudioSegment:
		return &forwardEvent{baseEvent{KindEndOfAudioSegment, origin, PriorityMedia}, msg, true}, nil
	case protocol.SignalSlideChange:
		return &forwardEvent{baseEvent{KindSlideChange, origin, PriorityControl}, msg, false}, nil
	case protocol.SignalHere:
		return NewUserJoined(origin), nil
	case protocol.SignalGone:
		return NewUserLeft(origin), nil
	case protocol.SignalGetParticipants:
		return &getAllParticipantsEvent{baseEvent{KindGetAllParticipants, origin, PriorityControl}}, nil
	case protocol.SignalHeartbeat:
		return &heartbeatEvent{baseEvent{KindHeartbeatRefresh, origin, PriorityControl}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotAnEvent, msg.Signal())
	}
}

// NewUserJoined announces origin to the other participants.
func NewUserJoined(origin *Client) Event {
	return &userJoinedEvent{baseEvent{KindUserJoined, origin, PriorityControl}}
}

// NewUserLeft removes origin and tells the others.
func NewUserLeft(origin *Client) Event {
	return &userLeftEvent{baseEvent{KindUserLeft, origin, PriorityControl}}
}

// forwardEvent relays the original message verbatim, skipping the origin
// for audio.
type forwardEvent struct {
	baseEvent
	msg        *protocol.Message
	skipOrigin bool
}

func (e *forwardEvent) Execute(m *Meeting) {
	except := e.origin
	if !e.skipOrigin {
		except = nil
	}
	m.broadcast(e.msg, except)
}

type userJoinedEvent struct {
	baseEvent
}

func (e *userJoinedEvent) Execute(m *Meeting) {
	if !m.isParticipant(e.origin) {
		return
	}
	user := e.origin.User()
	if user.Presenting {
		m.setPresenter(user.ID)
	}
	udm, err := protocol.UserData(user)
	if err != nil {
		m.logger.Error("failed to build user data", "user_id", user.ID, "error", err)
		return
	}
	m.broadcast(udm, e.origin)
}

type userLeftEvent struct {
	baseEvent
}

func (e *userLeftEvent) Execute(m *Meeting) {
	if !m.isParticipant(e.origin) {
		return
	}
	e.origin.markLeaving()
	user := e.origin.User()
	m.broadcast(protocol.UserLeft(user.ID), e.origin)
	if m.PresenterID() == user.ID {
		m.setPresenter(types.NoPresenter)
	}
	if err := e.origin.Conn().Close(); err != nil {
		m.logger.Debug("connection already closed", "user_id", user.ID, "error", err)
	}
	m.RemoveParticipant(e.origin)
}

type getAllParticipantsEvent struct {
	baseEvent
}

func (e *getAllParticipantsEvent) Execute(m *Meeting) {
	writer := m.writerFor(e.origin)
	if writer == nil {
		m.logger.Warn("participant list requested by non-participant", "connection", e.origin.Conn().ID())
		return
	}
	for _, c := range m.Participants() {
		udm, err := protocol.UserData(c.User())
		if err != nil {
			m.logger.Error("failed to build user data", "user_id", c.User().ID, "error", err)
			continue
		}
		writer.Enqueue(udm)
	}
}

type heartbeatEvent struct {
	baseEvent
}

func (e *heartbeatEvent) Execute(m *Meeting) {
	e.origin.RefreshHeartbeat()
}
