package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"meetinghost/pkg/types"
)

var (
	authRequest      = MustMessage(SignalAuthRequest, nil)
	validated        = MustMessage(SignalValidated, nil)
	notValidated     = MustMessage(SignalNotValidated, nil)
	meetingIDRequest = MustMessage(SignalMeetingIDRequest, nil)
	endMeeting       = MustMessage(SignalEnd, nil)
)

// AuthRequest asks the client for its authentication token.
func AuthRequest() *Message { return authRequest }

// Validated tells the client the handshake succeeded.
func Validated() *Message { return validated }

// NotValidated tells the client the handshake failed.
func NotValidated() *Message { return notValidated }

// MeetingIDRequest asks the client for the meeting it wants to join.
func MeetingIDRequest() *Message { return meetingIDRequest }

// End tells the client the meeting is over.
func End() *Message { return endMeeting }

// UserData carries a participant profile as a flat JSON object.
func UserData(u *types.User) (*Message, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user %d: %w", u.ID, err)
	}
	return NewMessage(SignalUserData, data)
}

// UserLeft carries the departing user's id as a 4 byte big-endian integer.
func UserLeft(userID int) *Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(int32(userID)))
	return MustMessage(SignalUserLeft, payload)
}

// SlideChange builds a slide change message, used by clients and tests.
func SlideChange(slide int) (*Message, error) {
	if slide < 0 || slide > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeSlideNumber, slide)
	}
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(slide))
	return NewMessage(SignalSlideChange, payload)
}

// UserIDFromLeft decodes the payload of a USER-LEFT message.
func UserIDFromLeft(m *Message) (int, error) {
	if len(m.payload) != 4 {
		return 0, fmt.Errorf("%w: user left payload must be 4 bytes", ErrInvalidMessage)
	}
	return int(int32(binary.BigEndian.Uint32(m.payload))), nil
}
