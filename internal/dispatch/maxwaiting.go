package dispatch

import (
	"context"
	"time"

	"github.com/me/branchq/pkg/model"
)

// MaxWaitingTimeRule ranks by waiting time like SimpleRule, but applies
// a strict delay comparison and prioritizes visits returned to the head
// of their queue: a flagged visit always beats an unflagged one, and two
// flagged visits compare by return timestamp, most recent first.
type MaxWaitingTimeRule struct {
	now func() time.Time
}

// Name returns the configuration name of the rule.
func (r *MaxWaitingTimeRule) Name() string { return RuleMaxWaitingTime }

// SelectNext implements Rule. With an explicit queue list, the first
// queue holding any visits decides: queue priority order wins over a
// cross-queue comparison.
func (r *MaxWaitingTimeRule) SelectNext(_ context.Context, b *model.Branch, sp *model.ServicePoint, queueIDs []string) (*model.Visit, error) {
	queues, err := candidateQueues(b, sp, queueIDs)
	if err != nil {
		return nil, err
	}

	now := r.now()
	if len(queueIDs) > 0 {
		for _, q := range queues {
			if len(q.Visits) > 0 {
				return selected(r.pick(q.Visits, now)), nil
			}
		}
		return nil, nil
	}

	var all []*model.Visit
	for _, q := range queues {
		all = append(all, q.Visits...)
	}
	return selected(r.pick(all, now)), nil
}

func (r *MaxWaitingTimeRule) pick(visits []*model.Visit, now time.Time) *model.Visit {
	var best *model.Visit
	for _, v := range visits {
		if !eligible(v, now, true) {
			continue
		}
		if best == nil || r.better(v, best, now) {
			best = v
		}
	}
	return best
}

// better reports whether a outranks b.
func (r *MaxWaitingTimeRule) better(a, b *model.Visit, now time.Time) bool {
	aAt, aFlagged := a.ReturnedToStartAt()
	bAt, bFlagged := b.ReturnedToStartAt()
	switch {
	case aFlagged && bFlagged:
		return aAt.After(bAt)
	case aFlagged:
		return true
	case bFlagged:
		return false
	}
	return a.WaitingTime(now) > b.WaitingTime(now)
}
