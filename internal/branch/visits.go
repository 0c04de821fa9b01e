package branch

import (
	"context"

	"github.com/google/uuid"
	"github.com/me/branchq/pkg/model"
)

// CreateVisit registers a new visit for the given service: segmentation
// picks the queue, the queue mints the ticket, and the visit enters the
// waiting list through the created and placed-in-queue events.
func (s *Service) CreateVisit(ctx context.Context, branchID, serviceID string, params map[string]string) (*model.Visit, error) {
	var created *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		svc, ok := b.Services[serviceID]
		if !ok {
			return model.NewNotFoundError("service", serviceID)
		}

		v := model.NewVisit(b.ID, svc, params)
		q, err := s.segment.ResolveQueue(ctx, v, b)
		if err != nil {
			s.publishRuleError(ctx, b, "create_visit", err)
			return err
		}
		if q == nil {
			return model.NewValidationError("service " + serviceID + " resolves to no queue")
		}
		if err := s.admit(ctx, b, v, q); err != nil {
			return err
		}
		created = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("visit created", "visit_id", created.ID, "ticket", created.Ticket, "queue_id", created.QueueID)
	return created, nil
}

// CreateVisitByRule is CreateVisit with an explicitly chosen script
// segmentation rule instead of the branch's configured resolution order.
func (s *Service) CreateVisitByRule(ctx context.Context, branchID, serviceID, ruleID string, params map[string]string) (*model.Visit, error) {
	var created *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		svc, ok := b.Services[serviceID]
		if !ok {
			return model.NewNotFoundError("service", serviceID)
		}

		v := model.NewVisit(b.ID, svc, params)
		q, err := s.segment.ResolveQueueByRule(ctx, v, b, ruleID)
		if err != nil {
			s.publishRuleError(ctx, b, "create_visit_by_rule", err)
			return err
		}
		if q == nil {
			return model.NewValidationError("rule " + ruleID + " resolves to no queue")
		}
		if err := s.admit(ctx, b, v, q); err != nil {
			return err
		}
		created = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("visit created", "visit_id", created.ID, "ticket", created.Ticket, "queue_id", created.QueueID)
	return created, nil
}

// admit runs the two-event admission sequence and parks the visit in q.
func (s *Service) admit(ctx context.Context, b *model.Branch, v *model.Visit, q *model.Queue) error {
	v.Ticket = q.NextTicket()
	if err := s.apply(ctx, b, v, model.EventCreated, nil); err != nil {
		return err
	}
	s.publish(ctx, b, v, model.EventCreated, "", true)

	v.QueueID = q.ID
	if err := s.apply(ctx, b, v, model.EventPlacedInQueue, map[string]string{"queue_id": q.ID}); err != nil {
		return err
	}
	q.Visits = append(q.Visits, v)
	s.publish(ctx, b, v, model.EventPlacedInQueue, "", true)
	return nil
}

// CallNext asks the dispatch rule for the next visit and assigns it to
// the service point. A nil visit with nil error means nothing is
// waiting. queueIDs optionally narrows the candidate queues, in
// priority order.
func (s *Service) CallNext(ctx context.Context, branchID, servicePointID string, queueIDs []string) (*model.Visit, error) {
	var called *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, err := servicePoint(b, servicePointID)
		if err != nil {
			return err
		}
		if sp.Visit != nil {
			return &model.APIError{Code: model.ErrConflict, Message: "service point " + servicePointID + " is already serving a visit"}
		}

		v, err := s.rule.SelectNext(ctx, b, sp, queueIDs)
		if err != nil {
			s.publishRuleError(ctx, b, "call_next", err)
			return err
		}
		if v == nil {
			return nil
		}

		if err := s.apply(ctx, b, v, model.EventCalled, map[string]string{"service_point_id": sp.ID}); err != nil {
			return err
		}
		detach(b, v)
		v.ServicePointID = sp.ID
		if sp.User != nil {
			v.UserID = sp.User.ID
			v.UserName = sp.User.Name
		}
		sp.Visit = v
		called = v
		s.publish(ctx, b, v, model.EventCalled, sp.ID, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if called != nil {
		s.logger.Info("visit called", "visit_id", called.ID, "ticket", called.Ticket, "service_point_id", servicePointID)
	}
	return called, nil
}

// CallVisit calls a specific waiting visit to the service point,
// bypassing the dispatch rule's ranking but not its side effects.
func (s *Service) CallVisit(ctx context.Context, branchID, servicePointID, visitID string) (*model.Visit, error) {
	var called *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, err := servicePoint(b, servicePointID)
		if err != nil {
			return err
		}
		if sp.Visit != nil {
			return &model.APIError{Code: model.ErrConflict, Message: "service point " + servicePointID + " is already serving a visit"}
		}
		v := b.FindVisit(visitID)
		if v == nil {
			return model.NewNotFoundError("visit", visitID)
		}

		if err := s.apply(ctx, b, v, model.EventCalled, map[string]string{"service_point_id": sp.ID}); err != nil {
			return err
		}
		v.ClearDispatchHolds()
		detach(b, v)
		v.ServicePointID = sp.ID
		if sp.User != nil {
			v.UserID = sp.User.ID
			v.UserName = sp.User.Name
		}
		sp.Visit = v
		called = v
		s.publish(ctx, b, v, model.EventCalled, sp.ID, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return called, nil
}

// Recall re-announces the visit already assigned to the service point.
func (s *Service) Recall(ctx context.Context, branchID, servicePointID string) (*model.Visit, error) {
	var recalled *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, v, err := servingVisit(b, servicePointID)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, b, v, model.EventRecalled, map[string]string{"service_point_id": sp.ID}); err != nil {
			return err
		}
		recalled = v
		s.publish(ctx, b, v, model.EventRecalled, sp.ID, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recalled, nil
}

// StartServing begins service delivery for the called visit.
func (s *Service) StartServing(ctx context.Context, branchID, servicePointID string) (*model.Visit, error) {
	var serving *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, v, err := servingVisit(b, servicePointID)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, b, v, model.EventStartServing, nil); err != nil {
			return err
		}
		serving = v
		s.publish(ctx, b, v, model.EventStartServing, sp.ID, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return serving, nil
}

// StopServing completes the current service delivery. With further
// unserved services on the visit, the next one is taken up and the
// visit re-enters segmentation; otherwise the visit ends.
func (s *Service) StopServing(ctx context.Context, branchID, servicePointID string) (*model.Visit, error) {
	var stopped *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, v, err := servingVisit(b, servicePointID)
		if err != nil {
			return err
		}

		if err := s.apply(ctx, b, v, model.EventStopServing, nil); err != nil {
			return err
		}
		sp.Visit = nil
		v.ServicePointID = ""
		s.publish(ctx, b, v, model.EventStopServing, sp.ID, true)

		if v.CurrentService != nil {
			v.ServedServices = append(v.ServedServices, v.CurrentService)
		}
		if len(v.UnservedServices) == 0 {
			if err := s.apply(ctx, b, v, model.EventEnd, nil); err != nil {
				return err
			}
			s.retire(ctx, b, v)
			s.publish(ctx, b, v, model.EventEnd, sp.ID, true)
			stopped = v
			return nil
		}

		// Take up the next requested service and requeue.
		v.CurrentService = v.UnservedServices[0]
		v.UnservedServices = v.UnservedServices[1:]
		q, err := s.segment.ResolveQueue(ctx, v, b)
		if err != nil {
			s.publishRuleError(ctx, b, "stop_serving", err)
			return err
		}
		if q == nil {
			return model.NewValidationError("service " + v.CurrentService.ID + " resolves to no queue")
		}
		v.QueueID = q.ID
		if err := s.apply(ctx, b, v, model.EventPlacedInQueue, map[string]string{"queue_id": q.ID}); err != nil {
			return err
		}
		q.Visits = append(q.Visits, v)
		stopped = v
		s.publish(ctx, b, v, model.EventPlacedInQueue, "", true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stopped, nil
}

// NoShow marks the called visit as never having appeared and ends it.
func (s *Service) NoShow(ctx context.Context, branchID, servicePointID string) (*model.Visit, error) {
	var gone *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, v, err := servingVisit(b, servicePointID)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, b, v, model.EventNoShow, nil); err != nil {
			return err
		}
		sp.Visit = nil
		s.retire(ctx, b, v)
		gone = v
		s.publish(ctx, b, v, model.EventNoShow, sp.ID, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gone, nil
}

// EndVisit completes the visit outright, regardless of remaining
// unserved services.
func (s *Service) EndVisit(ctx context.Context, branchID, servicePointID string) (*model.Visit, error) {
	var ended *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, v, err := servingVisit(b, servicePointID)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, b, v, model.EventEnd, nil); err != nil {
			return err
		}
		sp.Visit = nil
		if v.CurrentService != nil {
			v.ServedServices = append(v.ServedServices, v.CurrentService)
		}
		s.retire(ctx, b, v)
		ended = v
		s.publish(ctx, b, v, model.EventEnd, sp.ID, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ended, nil
}

// DeleteVisit removes a live visit from the branch on staff request.
func (s *Service) DeleteVisit(ctx context.Context, branchID, visitID string) error {
	return s.withBranch(branchID, func(b *model.Branch) error {
		v := b.FindVisit(visitID)
		if v == nil {
			return model.NewNotFoundError("visit", visitID)
		}
		if err := s.apply(ctx, b, v, model.EventDeleted, nil); err != nil {
			return err
		}
		s.retire(ctx, b, v)
		s.publish(ctx, b, v, model.EventDeleted, "", true)
		return nil
	})
}

// AddService appends another requested service to the visit being
// served. It is taken up when the current delivery stops.
func (s *Service) AddService(ctx context.Context, branchID, servicePointID, serviceID string) (*model.Visit, error) {
	var updated *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, v, err := servingVisit(b, servicePointID)
		if err != nil {
			return err
		}
		svc, ok := b.Services[serviceID]
		if !ok {
			return model.NewNotFoundError("service", serviceID)
		}
		if v.Status != model.StateServing {
			return model.NewValidationError("services can only be added while serving")
		}
		if err := s.apply(ctx, b, v, model.EventAddService, map[string]string{"service_id": serviceID}); err != nil {
			return err
		}
		v.UnservedServices = append(v.UnservedServices, svc)
		updated = v
		s.publish(ctx, b, v, model.EventAddService, sp.ID, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddMark attaches a staff mark to the visit being served.
func (s *Service) AddMark(ctx context.Context, branchID, servicePointID, value string) (*model.Visit, error) {
	return s.annotate(ctx, branchID, servicePointID, value, model.EventAddedMark)
}

// AddNote attaches a staff note to the visit being served.
func (s *Service) AddNote(ctx context.Context, branchID, servicePointID, value string) (*model.Visit, error) {
	return s.annotate(ctx, branchID, servicePointID, value, model.EventAddedNote)
}

func (s *Service) annotate(ctx context.Context, branchID, servicePointID, value string, t model.EventType) (*model.Visit, error) {
	var updated *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, v, err := servingVisit(b, servicePointID)
		if err != nil {
			return err
		}
		if v.Status != model.StateServing {
			return model.NewValidationError("marks and notes can only be changed while serving")
		}
		if err := s.apply(ctx, b, v, t, nil); err != nil {
			return err
		}
		mark := model.Mark{ID: "mrk_" + uuid.New().String(), Value: value, AddedAt: s.now()}
		if sp.User != nil {
			mark.AuthorID = sp.User.ID
		}
		if t == model.EventAddedMark {
			v.Marks = append(v.Marks, mark)
		} else {
			v.Notes = append(v.Notes, mark)
		}
		updated = v
		s.publish(ctx, b, v, t, sp.ID, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteMark removes a mark from the visit being served.
func (s *Service) DeleteMark(ctx context.Context, branchID, servicePointID, markID string) (*model.Visit, error) {
	return s.unannotate(ctx, branchID, servicePointID, markID, model.EventDeletedMark)
}

// DeleteNote removes a note from the visit being served.
func (s *Service) DeleteNote(ctx context.Context, branchID, servicePointID, markID string) (*model.Visit, error) {
	return s.unannotate(ctx, branchID, servicePointID, markID, model.EventDeletedNote)
}

func (s *Service) unannotate(ctx context.Context, branchID, servicePointID, markID string, t model.EventType) (*model.Visit, error) {
	var updated *model.Visit
	err := s.withBranch(branchID, func(b *model.Branch) error {
		sp, v, err := servingVisit(b, servicePointID)
		if err != nil {
			return err
		}
		if v.Status != model.StateServing {
			return model.NewValidationError("marks and notes can only be changed while serving")
		}

		list := &v.Marks
		if t == model.EventDeletedNote {
			list = &v.Notes
		}
		idx := -1
		for i, m := range *list {
			if m.ID == markID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return model.NewNotFoundError("mark", markID)
		}

		if err := s.apply(ctx, b, v, t, nil); err != nil {
			return err
		}
		*list = append((*list)[:idx], (*list)[idx+1:]...)
		updated = v
		s.publish(ctx, b, v, t, sp.ID, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
