package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	destinations []string
	events       []Event
}

func (r *recorder) Publish(_ context.Context, destination string, _ bool, ev Event) {
	r.destinations = append(r.destinations, destination)
	r.events = append(r.events, ev)
}

func TestNew(t *testing.T) {
	ev := New("VISIT_CALLED", map[string]string{"visit_id": "vis_1"}, nil)
	if !strings.HasPrefix(ev.ID, "evt_") {
		t.Errorf("event ID = %q, want evt_ prefix", ev.ID)
	}
	if ev.Type != "VISIT_CALLED" {
		t.Errorf("event type = %q", ev.Type)
	}
	if ev.At.IsZero() {
		t.Error("event timestamp not set")
	}
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, b}

	m.Publish(context.Background(), "sp1", false, New("VISIT_CREATED", nil, nil))

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fan-out reached %d/%d sinks, want 1/1", len(a.events), len(b.events))
	}
	if a.destinations[0] != "sp1" {
		t.Errorf("destination = %q, want sp1", a.destinations[0])
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := NewLogSink(logger)
	s.Publish(context.Background(), "q1", true, New("QUEUE_REFRESHED", nil, nil))

	out := buf.String()
	if !strings.Contains(out, "QUEUE_REFRESHED") || !strings.Contains(out, "q1") {
		t.Errorf("log output missing event fields: %s", out)
	}
}

func TestDataBus_Delivers(t *testing.T) {
	received := make(chan busEnvelope, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env busEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		received <- env
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := NewDataBus(srv.URL, "branchq", slog.New(slog.NewTextHandler(io.Discard, nil)))
	bus.Publish(context.Background(), "frontend", true, New("VISIT_END", nil, nil))

	select {
	case env := <-received:
		if env.Destination != "frontend" || !env.Broadcast {
			t.Errorf("envelope routing = %+v", env)
		}
		if env.Event.SenderID != "branchq" {
			t.Errorf("sender = %q, want branchq", env.Event.SenderID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestDataBus_RetriesOnce(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	bus := NewDataBus(srv.URL, "branchq", slog.New(slog.NewTextHandler(io.Discard, nil)))
	bus.retryDelay = 10 * time.Millisecond
	bus.Publish(context.Background(), "frontend", false, New("VISIT_END", nil, nil))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry never arrived")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestDataBus_SurvivesCanceledContext(t *testing.T) {
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	bus := NewDataBus(srv.URL, "branchq", slog.New(slog.NewTextHandler(io.Discard, nil)))
	bus.Publish(ctx, "frontend", false, New("VISIT_CREATED", nil, nil))
	cancel()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("send should not be tied to the caller's context")
	}
}
