package dispatch

import (
	"context"

	"github.com/me/branchq/pkg/model"
)

// PolicyClient is the remote dispatch policy collaborator the custom
// rule delegates to. An empty visit id means the policy selected
// nothing.
type PolicyClient interface {
	SelectNext(ctx context.Context, branchID, servicePointID string, queueIDs []string) (visitID string, err error)
	Endpoint() string
}

// RemoteRule delegates ranking to an external policy service, used when
// branch configuration designates a non-local strategy. Staffing
// preconditions are still checked locally so a misconfigured service
// point fails the same way under every rule.
type RemoteRule struct {
	client PolicyClient
}

// Name returns the configuration name of the rule.
func (r *RemoteRule) Name() string { return RuleCustom }

// SelectNext implements Rule. A failed policy call surfaces as
// PolicyUnavailableError; the caller may retry with backoff, this rule
// does not.
func (r *RemoteRule) SelectNext(ctx context.Context, b *model.Branch, sp *model.ServicePoint, queueIDs []string) (*model.Visit, error) {
	if _, err := candidateQueues(b, sp, queueIDs); err != nil {
		return nil, err
	}

	visitID, err := r.client.SelectNext(ctx, b.ID, sp.ID, queueIDs)
	if err != nil {
		return nil, &model.PolicyUnavailableError{Endpoint: r.client.Endpoint(), Err: err}
	}
	if visitID == "" {
		return nil, nil
	}
	return selected(b.FindVisit(visitID)), nil
}
