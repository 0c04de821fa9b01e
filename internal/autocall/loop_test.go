package autocall

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/me/branchq/pkg/model"
)

// fakeCaller hands out one pending visit per candidate point.
type fakeCaller struct {
	mu         sync.Mutex
	candidates map[string][]string // branchID -> service point ids
	pending    map[string]int      // branchID -> waiting visits
	calls      []string            // "branch/sp" in call order
	callErr    error
}

func (f *fakeCaller) BranchIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.candidates))
	for id := range f.candidates {
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeCaller) AutoCallCandidates(branchID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candidates[branchID], nil
}

func (f *fakeCaller) CallNext(_ context.Context, branchID, spID string, _ []string) (*model.Visit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	f.calls = append(f.calls, branchID+"/"+spID)
	if f.pending[branchID] == 0 {
		return nil, nil
	}
	f.pending[branchID]--
	return &model.Visit{ID: "vis_1", Ticket: "A001"}, nil
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestTick_CallsIdlePoints(t *testing.T) {
	caller := &fakeCaller{
		candidates: map[string][]string{"br1": {"sp1", "sp2"}},
		pending:    map[string]int{"br1": 1},
	}
	l := NewLoop(caller, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	l.Tick(context.Background())

	if got := caller.callCount(); got != 2 {
		t.Errorf("call attempts = %d, want 2 (one per candidate)", got)
	}
}

func TestTick_NoCandidates(t *testing.T) {
	caller := &fakeCaller{candidates: map[string][]string{"br1": nil}}
	l := NewLoop(caller, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	l.Tick(context.Background())

	if got := caller.callCount(); got != 0 {
		t.Errorf("call attempts = %d, want 0", got)
	}
}

func TestTick_CallErrorDoesNotAbort(t *testing.T) {
	caller := &fakeCaller{
		candidates: map[string][]string{"br1": {"sp1"}, "br2": {"sp9"}},
		callErr:    errors.New("no staff member logged in"),
	}
	l := NewLoop(caller, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Must not panic or stop early; both branches are attempted.
	l.Tick(context.Background())
}

func TestStartStop(t *testing.T) {
	caller := &fakeCaller{
		candidates: map[string][]string{"br1": {"sp1"}},
		pending:    map[string]int{"br1": 100},
	}
	l := NewLoop(caller, Config{PollInterval: 5 * time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	errCh := make(chan error, 1)
	go func() { errCh <- l.Start(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for caller.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("loop never ticked")
		case <-time.After(time.Millisecond):
		}
	}

	if err := l.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("start returned %v", err)
	}
}

func TestStart_ContextCancel(t *testing.T) {
	caller := &fakeCaller{candidates: map[string][]string{}}
	l := NewLoop(caller, Config{PollInterval: time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Start(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on context cancel")
	}
}
