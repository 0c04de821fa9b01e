package model

import "time"

// EventType identifies a lifecycle transition attempted on a Visit.
type EventType string

const (
	EventCreated                    EventType = "CREATED"
	EventPlacedInQueue              EventType = "PLACED_IN_QUEUE"
	EventCalled                     EventType = "CALLED"
	EventRecalled                   EventType = "RECALLED"
	EventStartServing               EventType = "START_SERVING"
	EventStopServing                EventType = "STOP_SERVING"
	EventNoShow                     EventType = "NO_SHOW"
	EventEnd                        EventType = "END"
	EventTransferToQueue            EventType = "TRANSFER_TO_QUEUE"
	EventBackToQueue                EventType = "BACK_TO_QUEUE"
	EventTransferToUserPool         EventType = "TRANSFER_TO_USER_POOL"
	EventBackToUserPool             EventType = "BACK_TO_USER_POOL"
	EventTransferToServicePointPool EventType = "TRANSFER_TO_SERVICE_POINT_POOL"
	EventBackToServicePointPool     EventType = "BACK_TO_SERVICE_POINT_POOL"
	EventAddService                 EventType = "ADD_SERVICE"
	EventAddedMark                  EventType = "ADDED_MARK"
	EventDeletedMark                EventType = "DELETED_MARK"
	EventAddedNote                  EventType = "ADDED_NOTE"
	EventDeletedNote                EventType = "DELETED_NOTE"
	EventDeleted                    EventType = "DELETED"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// eventStates maps each event type to the visit state it produces.
// The mapping is a pure function of the type, independent of history.
// STOP_SERVING drops the visit back to CREATED: the next queue must be
// re-detected before it waits again.
var eventStates = map[EventType]VisitState{
	EventCreated:                    StateCreated,
	EventPlacedInQueue:              StateWaitingInQueue,
	EventCalled:                     StateCalled,
	EventRecalled:                   StateCalled,
	EventStartServing:               StateServing,
	EventStopServing:                StateCreated,
	EventNoShow:                     StateEnd,
	EventEnd:                        StateEnd,
	EventTransferToQueue:            StateWaitingInQueue,
	EventBackToQueue:                StateWaitingInQueue,
	EventTransferToUserPool:         StateWaitingInUserPool,
	EventBackToUserPool:             StateWaitingInUserPool,
	EventTransferToServicePointPool: StateWaitingInServicePool,
	EventBackToServicePointPool:     StateWaitingInServicePool,
	EventAddService:                 StateServing,
	EventAddedMark:                  StateServing,
	EventDeletedMark:                StateServing,
	EventAddedNote:                  StateServing,
	EventDeletedNote:                StateServing,
	EventDeleted:                    StateEnd,
}

// State returns the visit state this event type produces.
// The second return is false for unknown event types.
func (t EventType) State() (VisitState, bool) {
	s, ok := eventStates[t]
	return s, ok
}

// transactionStarters is the set of event types that seal the current
// service episode and open a new one.
var transactionStarters = map[EventType]bool{
	EventStopServing:                true,
	EventNoShow:                     true,
	EventPlacedInQueue:              true,
	EventTransferToServicePointPool: true,
	EventTransferToUserPool:         true,
	EventDeleted:                    true,
}

// StartsNewTransaction returns true if this event type closes the
// visit's current transaction before being recorded.
func (t EventType) StartsNewTransaction() bool {
	return transactionStarters[t]
}

// CompletionStatus describes how a service episode ended.
type CompletionStatus string

const (
	CompletionOK                         CompletionStatus = "OK"
	CompletionNoShow                     CompletionStatus = "NO_SHOW"
	CompletionPlacedInQueue              CompletionStatus = "PLACED_IN_QUEUE"
	CompletionStopServing                CompletionStatus = "STOP_SERVING"
	CompletionRemovedByEmployee          CompletionStatus = "REMOVED_BY_EMP"
	CompletionRemovedByCustomer          CompletionStatus = "REMOVED_BY_CUSTOMER"
	CompletionRemovedByReset             CompletionStatus = "REMOVED_BY_RESET"
	CompletionTransferToQueue            CompletionStatus = "TRANSFER_TO_QUEUE"
	CompletionTransferToServicePointPool CompletionStatus = "TRANSFER_TO_SERVICE_POINT_POOL"
	CompletionTransferToUserPool         CompletionStatus = "TRANSFER_TO_USER_POOL"
	CompletionLogout                     CompletionStatus = "LOGOUT"
	CompletionCloseServicePoint          CompletionStatus = "CLOSE_SP"
)

// eventCompletions maps event types to the completion status they assign
// to the transaction they close.
var eventCompletions = map[EventType]CompletionStatus{
	EventStopServing:                CompletionStopServing,
	EventNoShow:                     CompletionNoShow,
	EventPlacedInQueue:              CompletionPlacedInQueue,
	EventTransferToQueue:            CompletionTransferToQueue,
	EventTransferToServicePointPool: CompletionTransferToServicePointPool,
	EventTransferToUserPool:         CompletionTransferToUserPool,
	EventDeleted:                    CompletionRemovedByEmployee,
	EventEnd:                        CompletionOK,
}

// Completion returns the completion status this event type assigns.
// The second return is false for events that do not complete an episode.
func (t EventType) Completion() (CompletionStatus, bool) {
	c, ok := eventCompletions[t]
	return c, ok
}

// LifecycleEvent is one recorded occurrence of a lifecycle transition.
// It is an immutable value created fresh per occurrence; the shared
// EventType carries no per-occurrence data.
type LifecycleEvent struct {
	Type       EventType         `json:"type"`
	At         time.Time         `json:"at"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// NewLifecycleEvent creates an event occurrence, copying the parameter
// map so later caller mutation cannot leak into the recorded history.
func NewLifecycleEvent(t EventType, at time.Time, params map[string]string) LifecycleEvent {
	ev := LifecycleEvent{Type: t, At: at.UTC()}
	if len(params) > 0 {
		ev.Parameters = make(map[string]string, len(params))
		for k, v := range params {
			ev.Parameters[k] = v
		}
	}
	return ev
}
