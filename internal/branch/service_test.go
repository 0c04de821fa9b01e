package branch

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/me/branchq/internal/dispatch"
	"github.com/me/branchq/internal/events"
	"github.com/me/branchq/internal/lifecycle"
	"github.com/me/branchq/internal/script"
	"github.com/me/branchq/internal/segmentation"
	"github.com/me/branchq/pkg/model"
)

type busRecorder struct {
	types []string
}

func (r *busRecorder) Publish(_ context.Context, _ string, _ bool, ev events.Event) {
	r.types = append(r.types, ev.Type)
}

func (r *busRecorder) saw(eventType string) bool {
	for _, t := range r.types {
		if t == eventType {
			return true
		}
	}
	return false
}

func testBranch() *model.Branch {
	b := model.NewBranch("br1", "Main", "MB")
	b.Queues["q1"] = &model.Queue{ID: "q1", Name: "Standard", TicketPrefix: "A"}
	b.Queues["q2"] = &model.Queue{ID: "q2", Name: "Cards", TicketPrefix: "C"}
	b.ServicePoints["sp1"] = &model.ServicePoint{ID: "sp1", Name: "Window 1"}
	b.ServicePoints["sp2"] = &model.ServicePoint{ID: "sp2", Name: "Window 2"}
	b.Users["u1"] = &model.User{ID: "u1", Name: "clerk"}
	b.Users["u2"] = &model.User{ID: "u2", Name: "teller"}
	b.WorkProfiles["wp1"] = &model.WorkProfile{ID: "wp1", Name: "all", QueueIDs: []string{"q1", "q2"}}
	b.Services["svc1"] = &model.Service{ID: "svc1", Name: "Deposits", LinkedQueueID: "q1"}
	b.Services["svc2"] = &model.Service{ID: "svc2", Name: "Cards", LinkedQueueID: "q2"}
	return b
}

func newTestService(t *testing.T) (*Service, *busRecorder) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rule, err := dispatch.New(dispatch.RuleSimple, nil)
	if err != nil {
		t.Fatalf("dispatch rule: %v", err)
	}
	bus := &busRecorder{}
	resolver := segmentation.NewResolver(script.NewEngine(script.DefaultTimeout, logger), logger)
	s := NewService(lifecycle.NewMachine(logger), resolver, rule, bus, nil, logger)
	s.AddBranch(testBranch())
	return s, bus
}

// open logs u1 in at sp1 so dispatch has a staffed point.
func open(t *testing.T, s *Service) {
	t.Helper()
	if err := s.OpenServicePoint(context.Background(), "br1", "sp1", "u1", "wp1"); err != nil {
		t.Fatalf("open service point: %v", err)
	}
}

func TestCreateVisit(t *testing.T) {
	s, bus := newTestService(t)
	ctx := context.Background()

	v, err := s.CreateVisit(ctx, "br1", "svc1", map[string]string{"segment": "retail"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.Ticket != "A001" {
		t.Errorf("ticket = %q, want A001", v.Ticket)
	}
	if v.Status != model.StateWaitingInQueue || v.QueueID != "q1" {
		t.Errorf("placement = %s/%s, want WAITING_IN_QUEUE in q1", v.Status, v.QueueID)
	}
	if !bus.saw("CREATED") || !bus.saw("PLACED_IN_QUEUE") {
		t.Errorf("published events = %v", bus.types)
	}

	err = s.View("br1", func(b *model.Branch) error {
		if len(b.Queues["q1"].Visits) != 1 {
			t.Errorf("queue q1 holds %d visits, want 1", len(b.Queues["q1"].Visits))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	v2, err := s.CreateVisit(ctx, "br1", "svc1", nil)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if v2.Ticket != "A002" {
		t.Errorf("second ticket = %q, want A002", v2.Ticket)
	}
}

func TestCreateVisit_UnknownService(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.CreateVisit(context.Background(), "br1", "svc-nope", nil)
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrNotFound {
		t.Errorf("got %v, want NOT_FOUND", err)
	}
}

func TestCreateVisit_UnknownBranch(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.CreateVisit(context.Background(), "br-nope", "svc1", nil)
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrNotFound {
		t.Errorf("got %v, want NOT_FOUND", err)
	}
}

func TestServeFlow(t *testing.T) {
	s, bus := newTestService(t)
	ctx := context.Background()
	open(t, s)

	created, err := s.CreateVisit(ctx, "br1", "svc1", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	called, err := s.CallNext(ctx, "br1", "sp1", nil)
	if err != nil {
		t.Fatalf("call next: %v", err)
	}
	if called == nil || called.ID != created.ID {
		t.Fatalf("called %v, want the created visit", called)
	}
	if called.Status != model.StateCalled || called.ServicePointID != "sp1" {
		t.Errorf("after call: %s at %q", called.Status, called.ServicePointID)
	}
	if called.UserID != "u1" {
		t.Errorf("serving user = %q, want u1", called.UserID)
	}

	if _, err := s.Recall(ctx, "br1", "sp1"); err != nil {
		t.Fatalf("recall: %v", err)
	}

	serving, err := s.StartServing(ctx, "br1", "sp1")
	if err != nil {
		t.Fatalf("start serving: %v", err)
	}
	if serving.Status != model.StateServing {
		t.Errorf("status = %s, want SERVING", serving.Status)
	}

	stopped, err := s.StopServing(ctx, "br1", "sp1")
	if err != nil {
		t.Fatalf("stop serving: %v", err)
	}
	if stopped.Status != model.StateEnd {
		t.Errorf("status = %s, want END with no further services", stopped.Status)
	}
	if len(stopped.ServedServices) != 1 || stopped.ServedServices[0].ID != "svc1" {
		t.Errorf("served services = %v", stopped.ServedServices)
	}
	if !bus.saw("END") {
		t.Errorf("published events = %v", bus.types)
	}

	s.View("br1", func(b *model.Branch) error {
		if b.FindVisit(created.ID) != nil {
			t.Error("ended visit still live in the branch")
		}
		if b.ServicePoints["sp1"].Visit != nil {
			t.Error("service point slot not freed")
		}
		return nil
	})
}

func TestCallNext_EmptyQueues(t *testing.T) {
	s, _ := newTestService(t)
	open(t, s)

	v, err := s.CallNext(context.Background(), "br1", "sp1", nil)
	if err != nil || v != nil {
		t.Errorf("CallNext = (%v, %v), want (nil, nil)", v, err)
	}
}

func TestCallNext_Unstaffed(t *testing.T) {
	s, bus := newTestService(t)

	_, err := s.CallNext(context.Background(), "br1", "sp1", nil)
	if _, ok := err.(*model.ForbiddenError); !ok {
		t.Errorf("got %v, want ForbiddenError", err)
	}
	if !bus.saw("RULE_ENGINE_ERROR") {
		t.Errorf("published events = %v", bus.types)
	}
}

func TestCallNext_AlreadyServing(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	open(t, s)

	if _, err := s.CreateVisit(ctx, "br1", "svc1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CallNext(ctx, "br1", "sp1", nil); err != nil {
		t.Fatal(err)
	}

	_, err := s.CallNext(ctx, "br1", "sp1", nil)
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrConflict {
		t.Errorf("got %v, want CONFLICT", err)
	}
}

func TestStopServing_TakesUpNextService(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	open(t, s)

	created, err := s.CreateVisit(ctx, "br1", "svc1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CallNext(ctx, "br1", "sp1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartServing(ctx, "br1", "sp1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddService(ctx, "br1", "sp1", "svc2"); err != nil {
		t.Fatalf("add service: %v", err)
	}

	stopped, err := s.StopServing(ctx, "br1", "sp1")
	if err != nil {
		t.Fatalf("stop serving: %v", err)
	}
	if stopped.Status != model.StateWaitingInQueue {
		t.Errorf("status = %s, want WAITING_IN_QUEUE", stopped.Status)
	}
	if stopped.CurrentService == nil || stopped.CurrentService.ID != "svc2" {
		t.Errorf("current service = %v, want svc2", stopped.CurrentService)
	}
	if stopped.QueueID != "q2" {
		t.Errorf("requeued into %q, want q2 (svc2's linked queue)", stopped.QueueID)
	}
	if stopped.Ticket != created.Ticket {
		t.Errorf("ticket changed across services: %q vs %q", stopped.Ticket, created.Ticket)
	}
	if len(stopped.UnservedServices) != 0 {
		t.Errorf("unserved services = %v, want empty", stopped.UnservedServices)
	}
}

func TestNoShow(t *testing.T) {
	s, bus := newTestService(t)
	ctx := context.Background()
	open(t, s)

	created, _ := s.CreateVisit(ctx, "br1", "svc1", nil)
	if _, err := s.CallNext(ctx, "br1", "sp1", nil); err != nil {
		t.Fatal(err)
	}

	gone, err := s.NoShow(ctx, "br1", "sp1")
	if err != nil {
		t.Fatalf("no show: %v", err)
	}
	if gone.Status != model.StateEnd {
		t.Errorf("status = %s, want END", gone.Status)
	}
	if !bus.saw("NO_SHOW") {
		t.Errorf("published events = %v", bus.types)
	}
	s.View("br1", func(b *model.Branch) error {
		if b.FindVisit(created.ID) != nil {
			t.Error("no-show visit still live")
		}
		return nil
	})
}

func TestBackToQueue_ToStart(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	open(t, s)

	first, _ := s.CreateVisit(ctx, "br1", "svc1", nil)
	if _, err := s.CreateVisit(ctx, "br1", "svc1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CallNext(ctx, "br1", "sp1", nil); err != nil {
		t.Fatal(err)
	}

	returned, err := s.BackToQueue(ctx, "br1", "sp1", 30*time.Second, true)
	if err != nil {
		t.Fatalf("back to queue: %v", err)
	}
	if returned.ID != first.ID {
		t.Fatalf("returned %s, want the called visit", returned.ID)
	}
	if returned.Status != model.StateWaitingInQueue || returned.QueueID != "q1" {
		t.Errorf("placement = %s/%s", returned.Status, returned.QueueID)
	}
	if returned.ReturnedAt == nil || returned.ReturnDelay != 30*time.Second {
		t.Error("return hold not recorded")
	}
	if _, ok := returned.ReturnedToStartAt(); !ok {
		t.Error("returned-to-start flag not set")
	}

	s.View("br1", func(b *model.Branch) error {
		q := b.Queues["q1"]
		if len(q.Visits) != 2 || q.Visits[0].ID != first.ID {
			t.Error("returned visit not at the head of the queue")
		}
		if b.ServicePoints["sp1"].Visit != nil {
			t.Error("service point slot not freed")
		}
		return nil
	})
}

func TestTransferToQueue(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	v, _ := s.CreateVisit(ctx, "br1", "svc1", nil)

	moved, err := s.TransferToQueue(ctx, "br1", v.ID, "q2", time.Minute, false)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if moved.QueueID != "q2" || moved.TransferredAt == nil || moved.TransferDelay != time.Minute {
		t.Errorf("transfer state = %q/%v/%v", moved.QueueID, moved.TransferredAt, moved.TransferDelay)
	}
	s.View("br1", func(b *model.Branch) error {
		if len(b.Queues["q1"].Visits) != 0 || len(b.Queues["q2"].Visits) != 1 {
			t.Error("visit not moved between queues")
		}
		return nil
	})
}

func TestUserPoolRoundTrip(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	open(t, s)

	v, _ := s.CreateVisit(ctx, "br1", "svc1", nil)

	moved, err := s.TransferToUserPool(ctx, "br1", v.ID, "u2", 0)
	if err != nil {
		t.Fatalf("transfer to user pool: %v", err)
	}
	if moved.Status != model.StateWaitingInUserPool || moved.PoolUserID != "u2" {
		t.Errorf("pool placement = %s/%q", moved.Status, moved.PoolUserID)
	}
	s.View("br1", func(b *model.Branch) error {
		if len(b.Users["u2"].Pool) != 1 {
			t.Error("visit not in the user's pool")
		}
		if len(b.Queues["q1"].Visits) != 0 {
			t.Error("visit still in its queue")
		}
		return nil
	})

	// A pooled visit can be called directly to a service point.
	called, err := s.CallVisit(ctx, "br1", "sp1", v.ID)
	if err != nil {
		t.Fatalf("call from pool: %v", err)
	}
	if called.Status != model.StateCalled || called.PoolUserID != "" {
		t.Errorf("after call: %s pool=%q", called.Status, called.PoolUserID)
	}
}

func TestBackToServicePointPool(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	open(t, s)

	if _, err := s.CreateVisit(ctx, "br1", "svc1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CallNext(ctx, "br1", "sp1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartServing(ctx, "br1", "sp1"); err != nil {
		t.Fatal(err)
	}

	parked, err := s.BackToServicePointPool(ctx, "br1", "sp1", 0)
	if err != nil {
		t.Fatalf("back to pool: %v", err)
	}
	if parked.Status != model.StateWaitingInServicePool || parked.PoolServicePointID != "sp1" {
		t.Errorf("pool placement = %s/%q", parked.Status, parked.PoolServicePointID)
	}
	s.View("br1", func(b *model.Branch) error {
		sp := b.ServicePoints["sp1"]
		if sp.Visit != nil || len(sp.Pool) != 1 {
			t.Error("visit not parked in the service point pool")
		}
		return nil
	})
}

func TestMarksAndNotes(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	open(t, s)

	if _, err := s.CreateVisit(ctx, "br1", "svc1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CallNext(ctx, "br1", "sp1", nil); err != nil {
		t.Fatal(err)
	}

	// Marks require an active service delivery.
	if _, err := s.AddMark(ctx, "br1", "sp1", "vip"); err == nil {
		t.Error("mark before serving should be rejected")
	}

	if _, err := s.StartServing(ctx, "br1", "sp1"); err != nil {
		t.Fatal(err)
	}

	v, err := s.AddMark(ctx, "br1", "sp1", "vip")
	if err != nil {
		t.Fatalf("add mark: %v", err)
	}
	if len(v.Marks) != 1 || v.Marks[0].Value != "vip" || v.Marks[0].AuthorID != "u1" {
		t.Errorf("marks = %+v", v.Marks)
	}

	v, err = s.AddNote(ctx, "br1", "sp1", "asked for statement copy")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if len(v.Notes) != 1 {
		t.Errorf("notes = %+v", v.Notes)
	}

	v, err = s.DeleteMark(ctx, "br1", "sp1", v.Marks[0].ID)
	if err != nil {
		t.Fatalf("delete mark: %v", err)
	}
	if len(v.Marks) != 0 {
		t.Errorf("marks after delete = %+v", v.Marks)
	}

	if _, err := s.DeleteMark(ctx, "br1", "sp1", "mrk_nope"); err == nil {
		t.Error("deleting an unknown mark should fail")
	}
}

func TestDeleteVisit(t *testing.T) {
	s, bus := newTestService(t)
	ctx := context.Background()

	v, _ := s.CreateVisit(ctx, "br1", "svc1", nil)
	if err := s.DeleteVisit(ctx, "br1", v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !bus.saw("DELETED") {
		t.Errorf("published events = %v", bus.types)
	}
	s.View("br1", func(b *model.Branch) error {
		if b.FindVisit(v.ID) != nil {
			t.Error("deleted visit still live")
		}
		return nil
	})

	if err := s.DeleteVisit(ctx, "br1", v.ID); err == nil {
		t.Error("deleting twice should fail")
	}
}

func TestServicePointSessions(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	if err := s.OpenServicePoint(ctx, "br1", "sp1", "u1", "wp1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	// Same user elsewhere is a conflict.
	if err := s.OpenServicePoint(ctx, "br1", "sp2", "u1", "wp1"); err == nil {
		t.Error("double login should be rejected")
	}
	// Another user at the occupied point is a conflict.
	if err := s.OpenServicePoint(ctx, "br1", "sp1", "u2", "wp1"); err == nil {
		t.Error("occupied point should reject another user")
	}

	if err := s.SetAutoCall(ctx, "br1", "sp1", true); err != nil {
		t.Fatalf("set auto call: %v", err)
	}
	ids, err := s.AutoCallCandidates("br1")
	if err != nil || len(ids) != 1 || ids[0] != "sp1" {
		t.Errorf("auto-call candidates = %v (%v)", ids, err)
	}

	if err := s.CloseServicePoint(ctx, "br1", "sp1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	s.View("br1", func(b *model.Branch) error {
		sp := b.ServicePoints["sp1"]
		if sp.User != nil || sp.AutoCallMode {
			t.Error("close did not clear the session")
		}
		return nil
	})

	// Auto-call needs a logged-in user.
	if err := s.SetAutoCall(ctx, "br1", "sp2", true); err == nil {
		t.Error("auto-call on an unstaffed point should be rejected")
	}
}

func TestCloseServicePoint_WhileServing(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	open(t, s)

	if _, err := s.CreateVisit(ctx, "br1", "svc1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CallNext(ctx, "br1", "sp1", nil); err != nil {
		t.Fatal(err)
	}

	err := s.CloseServicePoint(ctx, "br1", "sp1")
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrConflict {
		t.Errorf("got %v, want CONFLICT", err)
	}
}
