package branch

import (
	"context"
	"time"

	"github.com/me/branchq/pkg/model"
)

func placeInQueue(q *model.Queue, v *model.Visit, toStart bool) {
	if toStart {
		q.Visits = append([]*model.Visit{v}, q.Visits...)
		return
	}
	q.Visits = append(q.Visits, v)
}

// TransferToQueue moves a live visit to the named queue. The transfer
// delay holds it back from dispatch; toStart puts it at the head of the
// waiting list instead of the tail.
func (s *Service) TransferToQueue(ctx context.Context, branchID, visitID, queueID string, delay time.Duration, toStart bool) (*model.Visit, error) {
	var moved *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		v := b.FindVisit(visitID)
		if v == nil {
			return model.NewNotFoundError("visit", visitID)
		}
		q, ok := b.Queues[queueID]
		if !ok {
			return model.NewNotFoundError("queue", queueID)
		}

		if err := s.apply(ctx, b, v, model.EventTransferToQueue, map[string]string{"queue_id": q.ID}); err != nil {
			return err
		}
		detach(b, v)
		v.QueueID = q.ID
		v.TransferDelay = delay
		placeInQueue(q, v, toStart)
		moved = v
		s.publish(ctx, b, v, model.EventTransferToQueue, "", true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// BackToQueue returns the visit at the service point to the queue its
// open transaction started from. With toStart set, the visit goes to
// the head of the queue and carries the returned-to-start flag the
// MaxWaitingTime rule prioritizes.
func (s *Service) BackToQueue(ctx context.Context, branchID, servicePointID string, delay time.Duration, toStart bool) (*model.Visit, error) {
	var returned *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, v, err := servingVisit(b, servicePointID)
		if err != nil {
			return err
		}
		queueID := ""
		if v.CurrentTransaction != nil {
			queueID = v.CurrentTransaction.QueueID
		}
		q, ok := b.Queues[queueID]
		if !ok {
			return model.NewValidationError("visit " + v.ID + " has no origin queue to return to")
		}

		if err := s.apply(ctx, b, v, model.EventBackToQueue, map[string]string{"queue_id": q.ID}); err != nil {
			return err
		}
		detach(b, v)
		v.QueueID = q.ID
		v.ReturnDelay = delay
		if toStart && v.ReturnedAt != nil {
			v.FlagReturnedToStart(*v.ReturnedAt)
		}
		placeInQueue(q, v, toStart)
		returned = v
		s.publish(ctx, b, v, model.EventBackToQueue, sp.ID, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return returned, nil
}

// TransferToUserPool parks a live visit in the named staff member's
// personal pool.
func (s *Service) TransferToUserPool(ctx context.Context, branchID, visitID, userID string, delay time.Duration) (*model.Visit, error) {
	var moved *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		v := b.FindVisit(visitID)
		if v == nil {
			return model.NewNotFoundError("visit", visitID)
		}
		u, ok := b.Users[userID]
		if !ok {
			return model.NewNotFoundError("user", userID)
		}

		if err := s.apply(ctx, b, v, model.EventTransferToUserPool, map[string]string{"user_id": u.ID}); err != nil {
			return err
		}
		detach(b, v)
		v.PoolUserID = u.ID
		v.TransferDelay = delay
		u.Pool = append(u.Pool, v)
		moved = v
		s.publish(ctx, b, v, model.EventTransferToUserPool, "", true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// BackToUserPool parks the visit at the service point in the serving
// staff member's own pool.
func (s *Service) BackToUserPool(ctx context.Context, branchID, servicePointID string, delay time.Duration) (*model.Visit, error) {
	var returned *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, v, err := servingVisit(b, servicePointID)
		if err != nil {
			return err
		}
		if sp.User == nil {
			return &model.ForbiddenError{ServicePointID: sp.ID, Reason: "no staff member logged in"}
		}
		u := sp.User

		if err := s.apply(ctx, b, v, model.EventBackToUserPool, map[string]string{"user_id": u.ID}); err != nil {
			return err
		}
		detach(b, v)
		v.PoolUserID = u.ID
		v.ReturnDelay = delay
		u.Pool = append(u.Pool, v)
		returned = v
		s.publish(ctx, b, v, model.EventBackToUserPool, sp.ID, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return returned, nil
}

// TransferToServicePointPool parks a live visit in the named service
// point's pool.
func (s *Service) TransferToServicePointPool(ctx context.Context, branchID, visitID, servicePointID string, delay time.Duration) (*model.Visit, error) {
	var moved *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		v := b.FindVisit(visitID)
		if v == nil {
			return model.NewNotFoundError("visit", visitID)
		}
		sp, err := servicePoint(b, servicePointID)
		if err != nil {
			return err
		}

		if err := s.apply(ctx, b, v, model.EventTransferToServicePointPool, map[string]string{"service_point_id": sp.ID}); err != nil {
			return err
		}
		detach(b, v)
		v.PoolServicePointID = sp.ID
		v.TransferDelay = delay
		sp.Pool = append(sp.Pool, v)
		moved = v
		s.publish(ctx, b, v, model.EventTransferToServicePointPool, sp.ID, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// BackToServicePointPool parks the visit at the service point in that
// same point's pool.
func (s *Service) BackToServicePointPool(ctx context.Context, branchID, servicePointID string, delay time.Duration) (*model.Visit, error) {
	var returned *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, v, err := servingVisit(b, servicePointID)
		if err != nil {
			return err
		}

		if err := s.apply(ctx, b, v, model.EventBackToServicePointPool, map[string]string{"service_point_id": sp.ID}); err != nil {
			return err
		}
		detach(b, v)
		v.PoolServicePointID = sp.ID
		v.ReturnDelay = delay
		sp.Pool = append(sp.Pool, v)
		returned = v
		s.publish(ctx, b, v, model.EventBackToServicePointPool, sp.ID, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return returned, nil
}
