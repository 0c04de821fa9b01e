package dispatch

import (
	"context"
	"time"

	"github.com/me/branchq/pkg/model"
)

// MaxLifeTimeRule ranks by return time, breaking ties by the total life
// time since creation: among equally-returned visits, the one carried
// the longest wins.
type MaxLifeTimeRule struct {
	now func() time.Time
}

// Name returns the configuration name of the rule.
func (r *MaxLifeTimeRule) Name() string { return RuleMaxLifeTime }

// SelectNext implements Rule. With an explicit queue list, the first
// queue holding any visits decides: queue priority order wins over a
// cross-queue comparison.
func (r *MaxLifeTimeRule) SelectNext(_ context.Context, b *model.Branch, sp *model.ServicePoint, queueIDs []string) (*model.Visit, error) {
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

func (r *MaxLifeTimeRule) pick(visits []*model.Visit, now time.Time) *model.Visit {
	var best *model.Visit
	for _, v := range visits {
		if !eligible(v, now, false) {
			continue
		}
		if best == nil || r.better(v, best, now) {
			best = v
		}
	}
	return best
}

// better reports whether a outranks b.
func (r *MaxLifeTimeRule) better(a, b *model.Visit, now time.Time) bool {
	aRet, bRet := a.ReturningTime(now), b.ReturningTime(now)
	if aRet != bRet {
		return aRet > bRet
	}
	return a.LifeTime(now) > b.LifeTime(now)
}
