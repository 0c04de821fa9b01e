// Package segmentation assigns visits to queues: by named property-match
// rules, by an embedded-script rule, or by the service's linked queue.
package segmentation

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"

	"github.com/me/branchq/internal/script"
	"github.com/me/branchq/pkg/model"
)

// Script rules must declare these input variables and populate the
// queue output with a queue id.
const (
	InputVisit  = "visit"
	InputBranch = "branch"
	OutputQueue = "queue"
)

// Resolver resolves the queue a visit belongs in.
type Resolver struct {
	engine *script.Engine
	logger *slog.Logger
}

// NewResolver creates a segmentation resolver backed by the given script
// engine.
func NewResolver(engine *script.Engine, logger *slog.Logger) *Resolver {
	return &Resolver{
		engine: engine,
		logger: logger.With("component", "segmentation"),
	}
}

// ResolveQueue resolves the visit's queue. Named property-match rules are
// checked first (scoped to the service's group when the rule names one);
// if the service's group designates a script rule, that runs next; the
// final fallback is the queue directly linked to the visit's current
// service. A nil queue with a nil error means no queue is configured for
// this visit.
func (r *Resolver) ResolveQueue(ctx context.Context, v *model.Visit, b *model.Branch) (*model.Queue, error) {
	service := v.CurrentService
	if service == nil {
		return nil, nil
	}

	group := b.ServiceGroupOf(service)

	if q, ok, err := r.matchPropertyRules(v, b, group); err != nil {
		return nil, err
	} else if ok {
		return q, nil
	}

	if group != nil && group.ScriptRuleID != "" {
		q, err := r.ResolveQueueByRule(ctx, v, b, group.ScriptRuleID)
		if err != nil {
			return nil, err
		}
		if q != nil {
			return q, nil
		}
	}

	if q, ok := b.Queues[service.LinkedQueueID]; ok {
		return q, nil
	}
	return nil, nil
}

// ResolveQueueByRule runs the named script rule for the visit. A missing
// rule, or a rule that does not declare both required inputs, is a
// configuration fault, not an empty result.
func (r *Resolver) ResolveQueueByRule(ctx context.Context, v *model.Visit, b *model.Branch, ruleID string) (*model.Queue, error) {
	rule, ok := b.ScriptRules[ruleID]
	if !ok {
		return nil, &model.ConfigMissingError{Kind: "segmentation rule", ID: ruleID}
	}
	if !rule.DeclaresInput(InputVisit) || !rule.DeclaresInput(InputBranch) {
		return nil, &model.ConfigMissingError{Kind: "segmentation rule inputs", ID: ruleID}
	}

	inputs := map[string]any{
		InputVisit:  visitView(v),
		InputBranch: branchView(b),
	}
	queueID, ok, err := r.engine.RunString(ctx, rule.Code, inputs, OutputQueue)
	if err != nil {
		return nil, fmt.Errorf("segmentation rule %s: %w", ruleID, err)
	}
	if !ok || queueID == "" {
		r.logger.Debug("script rule resolved no queue", "rule_id", ruleID, "visit_id", v.ID)
		return nil, nil
	}

	q, found := b.Queues[queueID]
	if !found {
		return nil, &model.ConfigMissingError{Kind: "queue", ID: queueID}
	}
	return q, nil
}

// matchPropertyRules checks the branch's named property-match rules
// against the visit's parameter bag. First full match wins. Rules scoped
// to a service group only apply to visits whose service is in that group.
func (r *Resolver) matchPropertyRules(v *model.Visit, b *model.Branch, group *model.ServiceGroup) (*model.Queue, bool, error) {
	if len(v.Parameters) == 0 {
		return nil, false, nil
	}
	ids := make([]string, 0, len(b.SegmentationRules))
	for id := range b.SegmentationRules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rule := b.SegmentationRules[id]
		if rule.ServiceGroupID != "" && (group == nil || rule.ServiceGroupID != group.ID) {
			continue
		}
		if !rule.Matches(v.Parameters) {
			continue
		}
		q, ok := b.Queues[rule.QueueID]
		if !ok {
			return nil, false, &model.ConfigMissingError{Kind: "queue", ID: rule.QueueID}
		}
		r.logger.Debug("property rule matched", "rule_id", rule.ID, "visit_id", v.ID, "queue_id", q.ID)
		return q, true, nil
	}
	return nil, false, nil
}

// visitView is the narrowed visit projection handed to rule scripts.
// Scripts never see the live aggregate. The parameter bag is cloned so
// rule code cannot write back into the visit.
func visitView(v *model.Visit) map[string]any {
	view := map[string]any{
		"id":         v.ID,
		"ticket":     v.Ticket,
		"parameters": maps.Clone(v.Parameters),
	}
	if v.CurrentService != nil {
		view["service"] = map[string]any{
			"id":             v.CurrentService.ID,
			"name":           v.CurrentService.Name,
			"serviceGroupId": v.CurrentService.ServiceGroupID,
		}
	}
	return view
}

// branchView is the narrowed branch projection handed to rule scripts.
func branchView(b *model.Branch) map[string]any {
	queues := make([]map[string]any, 0, len(b.Queues))
	for _, q := range b.Queues {
		queues = append(queues, map[string]any{
			"id":      q.ID,
			"name":    q.Name,
			"waiting": len(q.Visits),
		})
	}
	return map[string]any{
		"id":     b.ID,
		"name":   b.Name,
		"queues": queues,
	}
}
