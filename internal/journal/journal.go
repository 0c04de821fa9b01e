// Package journal persists the branch's activity trail: every applied
// lifecycle event, plus a snapshot of each visit when it leaves the
// branch. The live visit state stays in memory; the journal exists for
// audit and post-hoc reporting.
package journal

import (
	"context"

	"github.com/me/branchq/pkg/model"
)

// Entry is one recorded lifecycle event.
type Entry struct {
	ID        int64             `json:"id"`
	BranchID  string            `json:"branch_id"`
	VisitID   string            `json:"visit_id"`
	Ticket    string            `json:"ticket"`
	EventType model.EventType   `json:"event_type"`
	At        string            `json:"at"`
	Params    map[string]string `json:"params,omitempty"`
}

// Journal defines the persistence layer for the activity trail.
type Journal interface {
	// AppendEvent records one applied lifecycle event for a visit.
	AppendEvent(ctx context.Context, branchID string, v *model.Visit, ev model.LifecycleEvent) error

	// VisitEvents returns a visit's recorded events in append order.
	VisitEvents(ctx context.Context, visitID string) ([]Entry, error)

	// ArchiveVisit stores a terminal snapshot of the visit.
	ArchiveVisit(ctx context.Context, branchID string, v *model.Visit) error

	// ArchivedVisit fetches a snapshot back, or nil when unknown.
	ArchivedVisit(ctx context.Context, visitID string) (*model.Visit, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Nop is a Journal that records nothing. Used when persistence is
// disabled in configuration.
type Nop struct{}

func (Nop) AppendEvent(context.Context, string, *model.Visit, model.LifecycleEvent) error {
	return nil
}

func (Nop) VisitEvents(context.Context, string) ([]Entry, error) { return nil, nil }

func (Nop) ArchiveVisit(context.Context, string, *model.Visit) error { return nil }

func (Nop) ArchivedVisit(context.Context, string) (*model.Visit, error) { return nil, nil }

func (Nop) Close() error { return nil }

func (Nop) Migrate(context.Context) error { return nil }
