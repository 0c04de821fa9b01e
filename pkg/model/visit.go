package model

import (
	"time"

	"github.com/google/uuid"
)

// Parameter-bag keys with meaning to the rule engines.
const (
	// ParamReturnedToStart marks a visit that was returned to the head of
	// its queue. The value is the return timestamp in RFC1123 format; the
	// MaxWaitingTime dispatch rule compares flagged visits by it.
	ParamReturnedToStart = "returnedToStart"
)

// Mark is a staff-attached annotation on a visit (a mark or a note).
type Mark struct {
	ID       string    `json:"id"`
	Value    string    `json:"value"`
	AuthorID string    `json:"author_id,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

// Visit is a unit of customer work moving through the branch.
//
// All timestamps are recorded once by accepted lifecycle events; derived
// durations (waiting time, serving time, life time) are computed on read
// and never stored.
type Visit struct {
	ID       string `json:"id"`
	Ticket   string `json:"ticket"`
	BranchID string `json:"branch_id"`

	// Status mirrors the state produced by the last accepted event.
	Status VisitState `json:"status"`

	// Placement. At most one of QueueID, PoolUserID, PoolServicePointID,
	// ServicePointID refers to where the visit currently lives.
	QueueID            string `json:"queue_id,omitempty"`
	ServicePointID     string `json:"service_point_id,omitempty"`
	PoolUserID         string `json:"pool_user_id,omitempty"`
	PoolServicePointID string `json:"pool_service_point_id,omitempty"`

	// Staff member serving (or who last called) the visit.
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`

	CurrentService   *Service   `json:"current_service,omitempty"`
	UnservedServices []*Service `json:"unserved_services,omitempty"`
	ServedServices   []*Service `json:"served_services,omitempty"`

	Marks []Mark `json:"marks,omitempty"`
	Notes []Mark `json:"notes,omitempty"`

	// Parameters is the opaque key/value bag used by segmentation and
	// dispatch rules for matching and transient flags.
	Parameters map[string]string `json:"parameters,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	CalledAt       *time.Time `json:"called_at,omitempty"`
	StartServingAt *time.Time `json:"start_serving_at,omitempty"`
	TransferredAt  *time.Time `json:"transferred_at,omitempty"`
	ReturnedAt     *time.Time `json:"returned_at,omitempty"`
	ServedAt       *time.Time `json:"served_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`

	// ReturnDelay and TransferDelay hold back a returned or transferred
	// visit from dispatch until the corresponding elapsed time passes.
	ReturnDelay   time.Duration `json:"return_delay,omitempty"`
	TransferDelay time.Duration `json:"transfer_delay,omitempty"`

	// Events is the full ordered audit log of accepted lifecycle events.
	Events []LifecycleEvent `json:"events"`

	// CurrentTransaction is the open service episode; Transactions holds
	// the sealed history, oldest first.
	CurrentTransaction *Transaction   `json:"current_transaction,omitempty"`
	Transactions       []*Transaction `json:"transactions,omitempty"`
}

// NewVisit creates a visit shell for the given branch and service.
// No lifecycle event is recorded yet; the caller drives the created
// event through the state machine.
func NewVisit(branchID string, service *Service, params map[string]string) *Visit {
	v := &Visit{
		ID:             "vis_" + uuid.New().String(),
		BranchID:       branchID,
		CurrentService: service,
		Parameters:     make(map[string]string),
	}
	for k, val := range params {
		v.Parameters[k] = val
	}
	return v
}

// LastEvent returns the most recently recorded event, if any.
func (v *Visit) LastEvent() (LifecycleEvent, bool) {
	if len(v.Events) == 0 {
		return LifecycleEvent{}, false
	}
	return v.Events[len(v.Events)-1], true
}

// CurrentState derives the visit's state from its last recorded event.
// A visit with no events has no state yet and reports CREATED.
func (v *Visit) CurrentState() VisitState {
	last, ok := v.LastEvent()
	if !ok {
		return StateCreated
	}
	if s, ok := last.Type.State(); ok {
		return s
	}
	return v.Status
}

// WaitingTime is the time since the visit last entered a waiting
// position: the return, else the transfer, else creation, measured until
// serving started (or now).
func (v *Visit) WaitingTime(now time.Time) time.Duration {
	from := v.CreatedAt
	switch {
	case v.ReturnedAt != nil:
		from = *v.ReturnedAt
	case v.TransferredAt != nil:
		from = *v.TransferredAt
	}
	until := now
	if v.StartServingAt != nil {
		until = *v.StartServingAt
	}
	return until.Sub(from)
}

// ReturningTime is the time elapsed since the visit was returned to a
// queue, or zero if it has not been returned.
func (v *Visit) ReturningTime(now time.Time) time.Duration {
	if v.ReturnedAt == nil {
		return 0
	}
	return now.Sub(*v.ReturnedAt)
}

// TransferringTime is the time elapsed since the visit was transferred,
// or zero if it has not been transferred.
func (v *Visit) TransferringTime(now time.Time) time.Duration {
	if v.TransferredAt == nil {
		return 0
	}
	return now.Sub(*v.TransferredAt)
}

// LifeTime is the total time since creation, capped at the end of the
// visit once it has ended.
func (v *Visit) LifeTime(now time.Time) time.Duration {
	until := now
	if v.EndedAt != nil {
		until = *v.EndedAt
	}
	return until.Sub(v.CreatedAt)
}

// ServingTime is the elapsed serving time, zero before serving started.
func (v *Visit) ServingTime(now time.Time) time.Duration {
	if v.StartServingAt == nil {
		return 0
	}
	until := now
	if v.ServedAt != nil {
		until = *v.ServedAt
	}
	return until.Sub(*v.StartServingAt)
}

// ReturnedToStartAt parses the returned-to-start flag, if present.
func (v *Visit) ReturnedToStartAt() (time.Time, bool) {
	raw, ok := v.Parameters[ParamReturnedToStart]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC1123, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FlagReturnedToStart records the returned-to-start flag with the given
// return timestamp.
func (v *Visit) FlagReturnedToStart(at time.Time) {
	if v.Parameters == nil {
		v.Parameters = make(map[string]string)
	}
	v.Parameters[ParamReturnedToStart] = at.Format(time.RFC1123)
}

// ClearDispatchHolds removes the pending return/transfer timestamps and
// the returned-to-start flag. Dispatch rules call this on the visit they
// select, immediately before it is driven through the called event.
func (v *Visit) ClearDispatchHolds() {
	delete(v.Parameters, ParamReturnedToStart)
	v.ReturnedAt = nil
	v.TransferredAt = nil
}
