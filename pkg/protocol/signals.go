package protocol

// Client to server signals.
const (
	SignalToken             = "TOKE"
	SignalSlideChange       = "CHNG"
	SignalAudio             = "AUDI"
	SignalEnd               = "END"
	SignalMeetingID         = "MID"
	SignalGetParticipants   = "GAP"
	SignalHere              = "HERE"
	SignalGone              = "GONE"
	SignalHeartbeat         = "HRTB"
	SignalEndOfAudioSegment = "EAUD"
)

// Server to client signals. CHNG, AUDI, EAUD and END are shared with the
// client vocabulary and forwarded verbatim.
const (
	SignalAuthRequest      = "AUTH"
	SignalValidated        = "VAL"
	SignalNotValidated     = "NVAL"
	SignalMeetingIDRequest = "MEET"
	SignalUserData         = "UDM"
	SignalUserLeft         = "LEFT"
)

type payloadRule int

const (
	// payloadAny keeps whatever payload arrived, including none.
	payloadAny payloadRule = iota
	// payloadRequired rejects frames without a payload.
	payloadRequired
	// payloadDiscard drops any payload that arrived.
	payloadDiscard
	// payloadSlideNumber requires a 4 byte big-endian non-negative integer.
	payloadSlideNumber
)

// clientSignals is the inbound vocabulary with the payload rule for each.
var clientSignals = map[string]payloadRule{
	SignalToken:             payloadRequired,
	SignalSlideChange:       payloadSlideNumber,
	SignalAudio:             payloadRequired,
	SignalEnd:               payloadDiscard,
	SignalMeetingID:         payloadRequired,
	SignalGetParticipants:   payloadDiscard,
	SignalHere:              payloadDiscard,
	SignalGone:              payloadDiscard,
	SignalHeartbeat:         payloadDiscard,
	SignalEndOfAudioSegment: payloadAny,
}

var serverSignals = map[string]struct{}{
	SignalAuthRequest:       {},
	SignalValidated:         {},
	SignalNotValidated:      {},
	SignalSlideChange:       {},
	SignalAudio:             {},
	SignalEndOfAudioSegment: {},
	SignalEnd:               {},
	SignalMeetingIDRequest:  {},
	SignalUserData:          {},
	SignalUserLeft:          {},
}

// IsClientSignal reports whether signal belongs to the inbound vocabulary.
func IsClientSignal(signal string) bool {
	_, ok := clientSignals[signal]
	return ok
}

// IsServerSignal reports whether signal belongs to the outbound vocabulary.
func IsServerSignal(signal string) bool {
	_, ok := serverSignals[signal]
	return ok
}
