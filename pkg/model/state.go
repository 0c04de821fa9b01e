package model

// VisitState represents the lifecycle state of a Visit.
type VisitState string

const (
	StateCreated              VisitState = "CREATED"
	StateWaitingInQueue       VisitState = "WAITING_IN_QUEUE"
	StateCalled               VisitState = "CALLED"
	StateServing              VisitState = "SERVING"
	StateWaitingInUserPool    VisitState = "WAITING_IN_USER_POOL"
	StateWaitingInServicePool VisitState = "WAITING_IN_SERVICE_POOL"
	StateEnd                  VisitState = "END"
)

// String returns the string representation of the visit state.
func (s VisitState) String() string {
	return string(s)
}

// IsTerminal returns true if the visit is in a final state.
// A terminal visit accepts no further events, including self-transitions.
func (s VisitState) IsTerminal() bool {
	return s == StateEnd
}

// IsWaiting returns true for the states in which a visit is parked and
// eligible for dispatch: a queue, a staff pool, or a service point pool.
func (s VisitState) IsWaiting() bool {
	switch s {
	case StateWaitingInQueue, StateWaitingInUserPool, StateWaitingInServicePool:
		return true
	}
	return false
}

// ValidVisitTransitions defines the allowed state transitions for Visits.
// A transition to the current state itself (for example a recall while
// CALLED, or adding a mark while SERVING) is always allowed for
// non-terminal states and is not listed here.
var ValidVisitTransitions = map[VisitState][]VisitState{
	StateCreated:              {StateWaitingInQueue, StateCalled, StateEnd},
	StateWaitingInQueue:       {StateCalled, StateWaitingInUserPool, StateWaitingInServicePool, StateEnd},
	StateCalled:               {StateServing, StateWaitingInQueue, StateEnd},
	StateServing:              {StateCreated, StateWaitingInQueue, StateWaitingInUserPool, StateWaitingInServicePool, StateEnd},
	StateWaitingInUserPool:    {StateCalled, StateWaitingInQueue, StateWaitingInServicePool, StateEnd},
	StateWaitingInServicePool: {StateCalled, StateWaitingInQueue, StateWaitingInUserPool, StateEnd},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s VisitState) CanTransitionTo(next VisitState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == s {
		return true
	}
	for _, allowed := range ValidVisitTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
