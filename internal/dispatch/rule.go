// Package dispatch selects the next visit for an idle service point.
// Rules are stateless policies sharing one eligibility filter and
// differing in how they rank the eligible visits.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/me/branchq/pkg/model"
)

// Rule selects at most one visit for a service point to call next.
// A nil visit with a nil error means nothing is eligible right now.
//
// The candidate queue set is the explicit queueIDs list when non-empty,
// otherwise the queues of the staff member's current work profile. A
// service point without a logged-in staff member, or whose staff
// member's work profile is unknown, yields ForbiddenError rather than an
// empty result.
type Rule interface {
	Name() string
	SelectNext(ctx context.Context, b *model.Branch, sp *model.ServicePoint, queueIDs []string) (*model.Visit, error)
}

// Rule names accepted in branch configuration.
const (
	RuleSimple         = "simple"
	RuleMaxWaitingTime = "max_waiting_time"
	RuleMaxLifeTime    = "max_life_time"
	RuleCustom         = "custom"
)

// New resolves a configured rule name to a concrete rule. The custom
// rule requires a policy client.
func New(name string, client PolicyClient) (Rule, error) {
	switch name {
	case RuleSimple, "":
		return &SimpleRule{now: time.Now}, nil
	case RuleMaxWaitingTime:
		return &MaxWaitingTimeRule{now: time.Now}, nil
	case RuleMaxLifeTime:
		return &MaxLifeTimeRule{now: time.Now}, nil
	case RuleCustom:
		if client == nil {
			return nil, fmt.Errorf("dispatch rule %q requires a policy client", name)
		}
		return &RemoteRule{client: client}, nil
	default:
		return nil, fmt.Errorf("unknown dispatch rule %q", name)
	}
}

// candidateQueues resolves the queues a service point may pull from,
// in priority order, after checking staffing preconditions.
func candidateQueues(b *model.Branch, sp *model.ServicePoint, queueIDs []string) ([]*model.Queue, error) {
	if sp.User == nil {
		return nil, &model.ForbiddenError{ServicePointID: sp.ID, Reason: "no staff member logged in"}
	}
	wp, ok := b.WorkProfiles[sp.User.CurrentWorkProfileID]
	if !ok {
		return nil, &model.ForbiddenError{ServicePointID: sp.ID, Reason: "staff member has no valid work profile"}
	}

	ids := queueIDs
	if len(ids) == 0 {
		ids = wp.QueueIDs
	}

	queues := make([]*model.Queue, 0, len(ids))
	for _, id := range ids {
		q, ok := b.Queues[id]
		if !ok {
			return nil, &model.ConfigMissingError{Kind: "queue", ID: id}
		}
		queues = append(queues, q)
	}
	return queues, nil
}

// eligible reports whether a visit may be dispatched: it must be in a
// waiting state and past its return and transfer delays. With strict
// set, the elapsed time must strictly exceed the delay.
func eligible(v *model.Visit, now time.Time, strict bool) bool {
	if !v.Status.IsWaiting() {
		return false
	}
	if v.ReturnedAt != nil && !delayElapsed(v.ReturningTime(now), v.ReturnDelay, strict) {
		return false
	}
	if v.TransferredAt != nil && !delayElapsed(v.TransferringTime(now), v.TransferDelay, strict) {
		return false
	}
	return true
}

func delayElapsed(elapsed, delay time.Duration, strict bool) bool {
	if strict {
		return elapsed > delay
	}
	return elapsed >= delay
}

// selected applies the selection side effects: the visit's pending
// return/transfer holds and returned-to-start flag are cleared so the
// caller can drive it straight through the called event.
func selected(v *model.Visit) *model.Visit {
	if v != nil {
		v.ClearDispatchHolds()
	}
	return v
}

// AvailableServicePoints answers the inverse query: which staffed
// service points are allowed to call the given visit, by work-profile
// membership of the queue linked to the visit's current service.
func AvailableServicePoints(b *model.Branch, v *model.Visit) []*model.ServicePoint {
	if v.CurrentService == nil {
		return nil
	}
	queueID := v.CurrentService.LinkedQueueID

	profiles := make(map[string]bool)
	for id, wp := range b.WorkProfiles {
		if wp.ServesQueue(queueID) {
			profiles[id] = true
		}
	}

	var points []*model.ServicePoint
	for _, sp := range b.ServicePoints {
		if sp.User != nil && profiles[sp.User.CurrentWorkProfileID] {
			points = append(points, sp)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].ID < points[j].ID })
	return points
}
