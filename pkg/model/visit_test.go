package model

import (
	"testing"
	"time"
)

var testBase = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func ts(offset time.Duration) *time.Time {
	t := testBase.Add(offset)
	return &t
}

func TestVisit_WaitingTime(t *testing.T) {
	now := testBase.Add(10 * time.Minute)

	tests := []struct {
		name  string
		visit Visit
		want  time.Duration
	}{
		{
			name:  "from creation while waiting",
			visit: Visit{CreatedAt: testBase},
			want:  10 * time.Minute,
		},
		{
			name:  "transfer resets the waiting clock",
			visit: Visit{CreatedAt: testBase, TransferredAt: ts(6 * time.Minute)},
			want:  4 * time.Minute,
		},
		{
			name:  "return wins over transfer",
			visit: Visit{CreatedAt: testBase, TransferredAt: ts(2 * time.Minute), ReturnedAt: ts(8 * time.Minute)},
			want:  2 * time.Minute,
		},
		{
			name:  "stops at start of serving",
			visit: Visit{CreatedAt: testBase, StartServingAt: ts(3 * time.Minute)},
			want:  3 * time.Minute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.visit.WaitingTime(now); got != tt.want {
				t.Errorf("WaitingTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVisit_ReturningTime(t *testing.T) {
	now := testBase.Add(10 * time.Minute)

	v := Visit{CreatedAt: testBase}
	if got := v.ReturningTime(now); got != 0 {
		t.Errorf("ReturningTime() without return = %v, want 0", got)
	}

	v.ReturnedAt = ts(7 * time.Minute)
	if got := v.ReturningTime(now); got != 3*time.Minute {
		t.Errorf("ReturningTime() = %v, want 3m", got)
	}
}

func TestVisit_LifeTime(t *testing.T) {
	now := testBase.Add(time.Hour)

	v := Visit{CreatedAt: testBase}
	if got := v.LifeTime(now); got != time.Hour {
		t.Errorf("LifeTime() = %v, want 1h", got)
	}

	v.EndedAt = ts(30 * time.Minute)
	if got := v.LifeTime(now); got != 30*time.Minute {
		t.Errorf("LifeTime() after end = %v, want 30m", got)
	}
}

func TestVisit_ServingTime(t *testing.T) {
	now := testBase.Add(time.Hour)

	v := Visit{CreatedAt: testBase}
	if got := v.ServingTime(now); got != 0 {
		t.Errorf("ServingTime() before serving = %v, want 0", got)
	}

	v.StartServingAt = ts(10 * time.Minute)
	if got := v.ServingTime(now); got != 50*time.Minute {
		t.Errorf("ServingTime() = %v, want 50m", got)
	}

	v.ServedAt = ts(25 * time.Minute)
	if got := v.ServingTime(now); got != 15*time.Minute {
		t.Errorf("ServingTime() after served = %v, want 15m", got)
	}
}

func TestVisit_CurrentState(t *testing.T) {
	v := NewVisit("br1", nil, nil)
	if got := v.CurrentState(); got != StateCreated {
		t.Errorf("CurrentState() with no events = %q, want CREATED", got)
	}

	v.Events = append(v.Events, NewLifecycleEvent(EventCreated, testBase, nil))
	v.Events = append(v.Events, NewLifecycleEvent(EventPlacedInQueue, testBase, nil))
	if got := v.CurrentState(); got != StateWaitingInQueue {
		t.Errorf("CurrentState() = %q, want WAITING_IN_QUEUE", got)
	}
}

func TestVisit_ReturnedToStartFlag(t *testing.T) {
	v := NewVisit("br1", nil, nil)

	if _, ok := v.ReturnedToStartAt(); ok {
		t.Error("unflagged visit should report no returned-to-start time")
	}

	at := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	v.FlagReturnedToStart(at)
	got, ok := v.ReturnedToStartAt()
	if !ok {
		t.Fatal("flag not readable after FlagReturnedToStart")
	}
	if !got.Equal(at) {
		t.Errorf("ReturnedToStartAt() = %v, want %v", got, at)
	}
}

func TestVisit_ClearDispatchHolds(t *testing.T) {
	v := NewVisit("br1", nil, nil)
	v.ReturnedAt = ts(0)
	v.TransferredAt = ts(0)
	v.FlagReturnedToStart(testBase)

	v.ClearDispatchHolds()

	if v.ReturnedAt != nil || v.TransferredAt != nil {
		t.Error("return/transfer timestamps not cleared")
	}
	if _, ok := v.Parameters[ParamReturnedToStart]; ok {
		t.Error("returned-to-start flag not cleared")
	}
}

func TestQueue_NextTicket(t *testing.T) {
	q := &Queue{ID: "q1", TicketPrefix: "A"}

	if got := q.NextTicket(); got != "A001" {
		t.Errorf("NextTicket() = %q, want A001", got)
	}
	if got := q.NextTicket(); got != "A002" {
		t.Errorf("NextTicket() = %q, want A002", got)
	}
	if q.TicketCounter != 2 {
		t.Errorf("TicketCounter = %d, want 2", q.TicketCounter)
	}
}

func TestSegmentationRuleData_Matches(t *testing.T) {
	rule := &SegmentationRuleData{
		QueueID:       "q-vip",
		VisitProperty: map[string]string{"segment": "vip", "language": "en"},
	}

	tests := []struct {
		name   string
		params map[string]string
		want   bool
	}{
		{"full match", map[string]string{"segment": "vip", "language": "en", "extra": "x"}, true},
		{"partial match", map[string]string{"segment": "vip"}, false},
		{"wrong value", map[string]string{"segment": "vip", "language": "de"}, false},
		{"empty bag", map[string]string{}, false},
		{"nil bag", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rule.Matches(tt.params); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.params, got, tt.want)
			}
		})
	}
}

func TestBranch_RemoveVisit(t *testing.T) {
	b := NewBranch("br1", "Main", "MB")
	v := NewVisit("br1", nil, nil)

	q := &Queue{ID: "q1", TicketPrefix: "A", Visits: []*Visit{v}}
	b.Queues["q1"] = q
	sp := &ServicePoint{ID: "sp1", Pool: []*Visit{v}}
	b.ServicePoints["sp1"] = sp
	u := &User{ID: "u1", Pool: []*Visit{v}}
	b.Users["u1"] = u

	if b.FindVisit(v.ID) == nil {
		t.Fatal("FindVisit() should locate a live visit")
	}

	b.RemoveVisit(v.ID)

	if len(q.Visits) != 0 || len(sp.Pool) != 0 || len(u.Pool) != 0 {
		t.Error("RemoveVisit() must detach the visit from every registry")
	}
	if b.FindVisit(v.ID) != nil {
		t.Error("removed visit still discoverable")
	}
}
