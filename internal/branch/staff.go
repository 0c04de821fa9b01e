package branch

import (
	"context"

	"github.com/me/branchq/internal/events"
	"github.com/me/branchq/pkg/model"
)

// Bus event types for staffing changes, distinct from visit lifecycle
// events.
const (
	eventServicePointOpened = "SERVICE_POINT_OPENED"
	eventServicePointClosed = "SERVICE_POINT_CLOSED"
	eventWorkProfileChanged = "WORK_PROFILE_CHANGED"
	eventAutoCallChanged    = "AUTOCALL_MODE_CHANGED"
)

// OpenServicePoint logs the staff member in at the service point with
// the given work profile.
func (s *Service) OpenServicePoint(ctx context.Context, branchID, servicePointID, userID, workProfileID string) error {
	return s.withBranch(branchID, func(b *model.Branch) error {
		sp, err := servicePoint(b, servicePointID)
		if err != nil {
			return err
		}
		u, ok := b.Users[userID]
		if !ok {
			return model.NewNotFoundError("user", userID)
		}
		if _, ok := b.WorkProfiles[workProfileID]; !ok {
			return model.NewNotFoundError("work profile", workProfileID)
		}
		if sp.User != nil && sp.User.ID != userID {
			return &model.APIError{Code: model.ErrConflict, Message: "service point " + servicePointID + " is staffed by another user"}
		}
		if u.ServicePointID != "" && u.ServicePointID != servicePointID {
			return &model.APIError{Code: model.ErrConflict, Message: "user " + userID + " is logged in elsewhere"}
		}

		u.CurrentWorkProfileID = workProfileID
		u.ServicePointID = servicePointID
		sp.User = u
		s.logger.Info("service point opened", "branch_id", b.ID, "service_point_id", sp.ID, "user_id", u.ID)
		s.bus.Publish(ctx, sp.ID, true, events.New(eventServicePointOpened, nil, map[string]string{
			"branch_id":        b.ID,
			"service_point_id": sp.ID,
			"user_id":          u.ID,
			"work_profile_id":  workProfileID,
		}))
		return nil
	})
}

// CloseServicePoint logs the staff member out. A point still serving a
// visit cannot be closed.
func (s *Service) CloseServicePoint(ctx context.Context, branchID, servicePointID string) error {
	return s.withBranch(branchID, func(b *model.Branch) error {
		sp, err := servicePoint(b, servicePointID)
		if err != nil {
			return err
		}
		if sp.User == nil {
			return nil
		}
		if sp.Visit != nil {
			return &model.APIError{Code: model.ErrConflict, Message: "service point " + servicePointID + " is serving a visit"}
		}

		userID := sp.User.ID
		sp.User.ServicePointID = ""
		sp.User = nil
		sp.AutoCallMode = false
		s.logger.Info("service point closed", "branch_id", b.ID, "service_point_id", sp.ID, "user_id", userID)
		s.bus.Publish(ctx, sp.ID, true, events.New(eventServicePointClosed, nil, map[string]string{
			"branch_id":        b.ID,
			"service_point_id": sp.ID,
			"user_id":          userID,
		}))
		return nil
	})
}

// ChangeWorkProfile switches the logged-in staff member's work profile.
func (s *Service) ChangeWorkProfile(ctx context.Context, branchID, servicePointID, workProfileID string) error {
	return s.withBranch(branchID, func(b *model.Branch) error {
		sp, err := servicePoint(b, servicePointID)
		if err != nil {
			return err
		}
		if sp.User == nil {
			return &model.ForbiddenError{ServicePointID: sp.ID, Reason: "no staff member logged in"}
		}
		if _, ok := b.WorkProfiles[workProfileID]; !ok {
			return model.NewNotFoundError("work profile", workProfileID)
		}

		sp.User.CurrentWorkProfileID = workProfileID
		s.bus.Publish(ctx, sp.ID, false, events.New(eventWorkProfileChanged, nil, map[string]string{
			"branch_id":        b.ID,
			"service_point_id": sp.ID,
			"user_id":          sp.User.ID,
			"work_profile_id":  workProfileID,
		}))
		return nil
	})
}

// SetAutoCall toggles automatic calling for the service point. The
// auto-call loop calls the next visit whenever an enabled point idles.
func (s *Service) SetAutoCall(ctx context.Context, branchID, servicePointID string, enabled bool) error {
	return s.withBranch(branchID, func(b *model.Branch) error {
		sp, err := servicePoint(b, servicePointID)
		if err != nil {
			return err
		}
		if enabled && sp.User == nil {
			return &model.ForbiddenError{ServicePointID: sp.ID, Reason: "no staff member logged in"}
		}
		if sp.AutoCallMode == enabled {
			return nil
		}

		sp.AutoCallMode = enabled
		s.logger.Info("auto-call mode changed", "branch_id", b.ID, "service_point_id", sp.ID, "enabled", enabled)
		s.bus.Publish(ctx, sp.ID, true, events.New(eventAutoCallChanged, nil, map[string]string{
			"branch_id":        b.ID,
			"service_point_id": sp.ID,
		}))
		return nil
	})
}

// AutoCallCandidates lists the service points of a branch that are in
// auto-call mode and idle right now.
func (s *Service) AutoCallCandidates(branchID string) ([]string, error) {
	var ids []string
	err := s.withBranch(branchID, func(b *model.Branch) error {
		for id, sp := range b.ServicePoints {
			if sp.AutoCallMode && sp.Idle() {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
