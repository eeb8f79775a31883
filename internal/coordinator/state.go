package coordinator

import "errors"

var ErrInvalidTransition = errors.New("invalid coordinator state transition")

// State is the maker cycle state.
type State uint8

const (
	StateIdle State = iota
	StatePlacing
	StateResting
	StateFilled
	StateCancelling
	StateTimedOut
)

var transitions = map[State][]State{
	StateIdle:       {StatePlacing},
	StatePlacing:    {StateResting, StateIdle},
	StateResting:    {StateFilled, StateCancelling, StateTimedOut, StateIdle},
	StateTimedOut:   {StateCancelling},
	StateCancelling: {StateFilled, StateIdle},
	StateFilled:     {StateIdle},
}

// CanTransition reports whether to is reachable from s in one step.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePlacing:
		return "PLACING"
	case StateResting:
		return "RESTING"
	case StateFilled:
		return "FILLED"
	case StateCancelling:
		return "CANCELLING"
	case StateTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}
