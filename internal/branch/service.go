// Package branch orchestrates visit operations against in-memory branch
// state. All mutation funnels through Service, which serializes access
// per branch, drives every change through the lifecycle state machine,
// journals accepted events, and publishes notifications.
package branch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/me/branchq/internal/dispatch"
	"github.com/me/branchq/internal/events"
	"github.com/me/branchq/internal/journal"
	"github.com/me/branchq/internal/lifecycle"
	"github.com/me/branchq/internal/segmentation"
	"github.com/me/branchq/pkg/model"
)

// Service owns the live branches and exposes every visit operation.
type Service struct {
	machine *lifecycle.Machine
	segment *segmentation.Resolver
	rule    dispatch.Rule
	bus     events.Publisher
	journal journal.Journal
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	branches map[string]*branchEntry
}

// branchEntry pairs a branch with the mutex serializing its operations.
type branchEntry struct {
	mu     sync.Mutex
	branch *model.Branch
}

// NewService wires the orchestrator. A nil bus or journal disables the
// corresponding concern.
func NewService(machine *lifecycle.Machine, segment *segmentation.Resolver, rule dispatch.Rule, bus events.Publisher, jnl journal.Journal, logger *slog.Logger) *Service {
	if bus == nil {
		bus = events.Nop{}
	}
	if jnl == nil {
		jnl = journal.Nop{}
	}
	return &Service{
		machine:  machine,
		segment:  segment,
		rule:     rule,
		bus:      bus,
		journal:  jnl,
		logger:   logger.With("component", "branch"),
		now:      time.Now,
		branches: make(map[string]*branchEntry),
	}
}

// AddBranch registers a branch. An existing branch with the same id is
// replaced wholesale.
func (s *Service) AddBranch(b *model.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[b.ID] = &branchEntry{branch: b}
	s.logger.Info("branch registered", "branch_id", b.ID, "branch_name", b.Name)
}

// BranchIDs lists the registered branch ids.
func (s *Service) BranchIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.branches))
	for id := range s.branches {
		ids = append(ids, id)
	}
	return ids
}

// View runs fn with the branch locked. fn must not retain references to
// branch internals past its return.
func (s *Service) View(branchID string, fn func(b *model.Branch) error) error {
	return s.withBranch(branchID, fn)
}

func (s *Service) withBranch(branchID string, fn func(b *model.Branch) error) error {
	s.mu.RLock()
	entry, ok := s.branches[branchID]
	s.mu.RUnlock()
	if !ok {
		return model.NewNotFoundError("branch", branchID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.branch)
}

// apply drives one lifecycle event through the state machine and, when
// accepted, journals it. The caller mutates placement around the call.
func (s *Service) apply(ctx context.Context, b *model.Branch, v *model.Visit, t model.EventType, params map[string]string) error {
	ev := model.NewLifecycleEvent(t, s.now(), params)
	if err := s.machine.Apply(v, ev); err != nil {
		return err
	}
	if err := s.journal.AppendEvent(ctx, b.ID, v, ev); err != nil {
		s.logger.Error("journal append failed", "visit_id", v.ID, "event", t, "error", err)
	}
	return nil
}

// publish emits a notification for an accepted event. Queue-affecting
// events broadcast branch-wide; others target the service point.
func (s *Service) publish(ctx context.Context, b *model.Branch, v *model.Visit, t model.EventType, destination string, broadcast bool) {
	params := map[string]string{
		"branch_id": b.ID,
		"visit_id":  v.ID,
		"ticket":    v.Ticket,
	}
	if v.QueueID != "" {
		params["queue_id"] = v.QueueID
	}
	if v.ServicePointID != "" {
		params["service_point_id"] = v.ServicePointID
	}
	if destination == "" {
		destination = b.ID
	}
	s.bus.Publish(ctx, destination, broadcast, events.New(string(t), v, params))
}

// publishRuleError surfaces a rule-engine failure to listeners before it
// is returned to the caller.
func (s *Service) publishRuleError(ctx context.Context, b *model.Branch, op string, err error) {
	s.logger.Error("rule engine error", "branch_id", b.ID, "op", op, "error", err)
	s.bus.Publish(ctx, b.ID, true, events.New("RULE_ENGINE_ERROR", nil, map[string]string{
		"branch_id": b.ID,
		"op":        op,
		"error":     err.Error(),
	}))
}

// retire removes an ended visit from the live registries and archives
// its terminal snapshot.
func (s *Service) retire(ctx context.Context, b *model.Branch, v *model.Visit) {
	b.RemoveVisit(v.ID)
	v.QueueID = ""
	v.ServicePointID = ""
	v.PoolUserID = ""
	v.PoolServicePointID = ""
	if err := s.journal.ArchiveVisit(ctx, b.ID, v); err != nil {
		s.logger.Error("archive failed", "visit_id", v.ID, "error", err)
	}
}

// detach pulls a live visit out of whatever queue, slot or pool holds it.
func detach(b *model.Branch, v *model.Visit) {
	b.RemoveVisit(v.ID)
	v.QueueID = ""
	v.ServicePointID = ""
	v.PoolUserID = ""
	v.PoolServicePointID = ""
}

// servicePoint resolves a service point or reports not found.
func servicePoint(b *model.Branch, id string) (*model.ServicePoint, error) {
	sp, ok := b.ServicePoints[id]
	if !ok {
		return nil, model.NewNotFoundError("service point", id)
	}
	return sp, nil
}

// servingVisit resolves the visit currently assigned to the slot.
func servingVisit(b *model.Branch, servicePointID string) (*model.ServicePoint, *model.Visit, error) {
	sp, err := servicePoint(b, servicePointID)
	if err != nil {
		return nil, nil, err
	}
	if sp.Visit == nil {
		return nil, nil, model.NewNotFoundError("visit at service point", servicePointID)
	}
	return sp, sp.Visit, nil
}
