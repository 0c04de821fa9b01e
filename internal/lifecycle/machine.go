// Package lifecycle validates visit lifecycle transitions and folds
// accepted events into the visit's transaction history.
package lifecycle

import (
	"log/slog"

	"github.com/me/branchq/pkg/model"
)

// Machine enforces the legal lifecycle transitions for visits.
// Apply is all-or-nothing: a rejected event leaves the visit unmutated.
type Machine struct {
	tracker *Tracker
	logger  *slog.Logger
}

// NewMachine creates a lifecycle state machine.
func NewMachine(logger *slog.Logger) *Machine {
	return &Machine{
		tracker: &Tracker{},
		logger:  logger.With("component", "lifecycle"),
	}
}

// Apply validates the event against the visit's current state and, on
// acceptance, records it: the event is appended to the current
// transaction (rolling the transaction over when the event starts a new
// episode), the visit's denormalized status is updated, and the
// timestamp matching the event is stamped.
//
// The first event recorded for any visit must be the created event; any
// other first event is rejected with NotInitializedError. An illegal
// transition is rejected with InvalidTransitionError carrying both
// states.
func (m *Machine) Apply(v *model.Visit, ev model.LifecycleEvent) error {
	target, ok := ev.Type.State()
	if !ok {
		return &model.InvalidTransitionError{
			VisitID: v.ID,
			Event:   ev.Type,
			From:    v.CurrentState(),
		}
	}

	if _, any := v.LastEvent(); !any {
		if ev.Type != model.EventCreated {
			return &model.NotInitializedError{VisitID: v.ID, Event: ev.Type}
		}
	} else {
		current := v.CurrentState()
		if !current.CanTransitionTo(target) {
			return &model.InvalidTransitionError{
				VisitID: v.ID,
				Event:   ev.Type,
				From:    current,
				To:      target,
			}
		}
	}

	m.tracker.Record(v, ev)
	v.Status = target
	stampVisit(v, ev)

	m.logger.Debug("event accepted", "visit_id", v.ID, "event", ev.Type, "state", target)
	return nil
}

// stampVisit records the event's own timestamp on the visit field it
// corresponds to. Runs only after the event has been accepted.
func stampVisit(v *model.Visit, ev model.LifecycleEvent) {
	at := ev.At
	switch ev.Type {
	case model.EventCreated:
		v.CreatedAt = at
	case model.EventCalled, model.EventRecalled:
		v.CalledAt = &at
		if tx := v.CurrentTransaction; tx != nil && tx.CalledAt == nil {
			tx.CalledAt = &at
		}
	case model.EventStartServing:
		v.StartServingAt = &at
		if tx := v.CurrentTransaction; tx != nil {
			tx.StartServingAt = &at
		}
	case model.EventStopServing:
		v.ServedAt = &at
	case model.EventEnd:
		v.ServedAt = &at
		v.EndedAt = &at
	case model.EventNoShow, model.EventDeleted:
		v.EndedAt = &at
	case model.EventTransferToQueue, model.EventTransferToUserPool, model.EventTransferToServicePointPool:
		v.TransferredAt = &at
	case model.EventBackToQueue, model.EventBackToUserPool, model.EventBackToServicePointPool:
		v.ReturnedAt = &at
	}
}
