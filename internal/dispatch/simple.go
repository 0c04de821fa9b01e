package dispatch

import (
	"context"
	"time"

	"github.com/me/branchq/pkg/model"
)

// SimpleRule picks the eligible visit that has waited longest, scanning
// all candidate queues jointly.
type SimpleRule struct {
	now func() time.Time
}

// Name returns the configuration name of the rule.
func (r *SimpleRule) Name() string { return RuleSimple }

// SelectNext implements Rule.
func (r *SimpleRule) SelectNext(_ context.Context, b *model.Branch, sp *model.ServicePoint, queueIDs []string) (*model.Visit, error) {
	queues, err := candidateQueues(b, sp, queueIDs)
	if err != nil {
		return nil, err
	}

	now := r.now()
	var best *model.Visit
	for _, q := range queues {
		for _, v := range q.Visits {
			if !eligible(v, now, false) {
				continue
			}
			if best == nil || v.WaitingTime(now) > best.WaitingTime(now) {
				best = v
			}
		}
	}
	return selected(best), nil
}
