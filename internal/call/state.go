package call

import "slices"

// Medium is the media kind of a call.
type Medium string

const (
	MediumAudio Medium = "audio"
	MediumVideo Medium = "video"
)

// Direction distinguishes who placed the call.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// State represents a call-session signaling state.
type State string

const (
	Idle                 State = "IDLE"
	RequestingPermission State = "REQUESTING_PERMISSION"
	Ringing              State = "RINGING"
	Incoming             State = "INCOMING"
	Active               State = "ACTIVE"
	Ended                State = "ENDED"
)

// validTransitions defines allowed signaling transitions.
var validTransitions = map[State][]State{
	Idle:                 {RequestingPermission, Incoming},
	RequestingPermission: {Ringing, Active, Idle},
	Ringing:              {Active, Ended, Idle},
	Incoming:             {Active, Idle},
	Active:               {Ended, Idle},
	Ended:                {Idle},
}

// canTransition reports whether from → to is an allowed signaling move.
func canTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}

// Outcomes recorded in call history.
const (
	OutcomeCompleted = "completed"
	OutcomeDeclined  = "declined"
	OutcomeMissed    = "missed"
	OutcomeFailed    = "failed"
)
