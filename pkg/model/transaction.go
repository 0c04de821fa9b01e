package model

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is one continuous service episode of a visit: from entering
// a queue (or creation) until the episode is closed by a completing event.
// This is the domain sense of the word, not a database transaction.
type Transaction struct {
	ID               string           `json:"id"`
	Service          *Service         `json:"service,omitempty"`
	QueueID          string           `json:"queue_id,omitempty"`
	ServicePointID   string           `json:"service_point_id,omitempty"`
	UserID           string           `json:"user_id,omitempty"`
	StartedAt        time.Time        `json:"started_at"`
	CalledAt         *time.Time       `json:"called_at,omitempty"`
	StartServingAt   *time.Time       `json:"start_serving_at,omitempty"`
	EndedAt          *time.Time       `json:"ended_at,omitempty"`
	CompletionStatus CompletionStatus `json:"completion_status,omitempty"`
	Events           []LifecycleEvent `json:"events"`
}

// NewTransaction opens an episode at the given time, snapshotting the
// visit's current placement. Fields the visit has not reached yet stay
// empty and are stamped as episode events arrive.
func NewTransaction(v *Visit, startedAt time.Time) *Transaction {
	tx := &Transaction{
		ID:        "txn_" + uuid.New().String(),
		StartedAt: startedAt.UTC(),
	}
	if v != nil {
		tx.Service = v.CurrentService
		tx.QueueID = v.QueueID
		tx.ServicePointID = v.ServicePointID
		tx.UserID = v.UserID
		tx.CalledAt = v.CalledAt
		tx.StartServingAt = v.StartServingAt
	}
	return tx
}

// Seal closes the episode with the given status and end time.
func (tx *Transaction) Seal(status CompletionStatus, endedAt time.Time) {
	end := endedAt.UTC()
	tx.CompletionStatus = status
	tx.EndedAt = &end
}

// Sealed returns true once the episode has been closed.
func (tx *Transaction) Sealed() bool {
	return tx.EndedAt != nil
}

// WaitingTime is the elapsed time between the episode start and the start
// of serving (or now, while still waiting).
func (tx *Transaction) WaitingTime(now time.Time) time.Duration {
	until := now
	if tx.StartServingAt != nil {
		until = *tx.StartServingAt
	}
	return until.Sub(tx.StartedAt)
}

// ServingTime is the elapsed serving time within the episode.
func (tx *Transaction) ServingTime(now time.Time) time.Duration {
	if tx.StartServingAt == nil {
		return 0
	}
	until := now
	if tx.EndedAt != nil {
		until = *tx.EndedAt
	}
	return until.Sub(*tx.StartServingAt)
}

// LifeTime is the total elapsed time of the episode.
func (tx *Transaction) LifeTime(now time.Time) time.Duration {
	until := now
	if tx.EndedAt != nil {
		until = *tx.EndedAt
	}
	return until.Sub(tx.StartedAt)
}
