// Package events carries change notifications out of the branch core.
// Every accepted lifecycle transition, queue change, and rule-engine
// failure is published as an Event; sinks decide where it lands.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event is a single notification. Params hold routing hints and short
// scalar attributes; Body holds the affected entity, if any.
type Event struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	SenderID string            `json:"sender_id,omitempty"`
	At       time.Time         `json:"at"`
	Params   map[string]string `json:"params,omitempty"`
	Body     any               `json:"body,omitempty"`
}

// New builds an event stamped with the current time.
func New(eventType string, body any, params map[string]string) Event {
	return Event{
		ID:     "evt_" + uuid.New().String(),
		Type:   eventType,
		At:     time.Now().UTC(),
		Params: params,
		Body:   body,
	}
}

// Publisher delivers events to interested parties. Delivery is best
// effort: a failing sink must not block or fail the operation that
// produced the event.
type Publisher interface {
	// Publish sends the event to the named destination. With broadcast
	// set, the sink should also fan the event out to every listener
	// regardless of destination.
	Publish(ctx context.Context, destination string, broadcast bool, ev Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(context.Context, string, bool, Event) {}

// LogSink writes every event to the structured log. It doubles as the
// default sink when no data bus is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "events")}
}

func (s *LogSink) Publish(ctx context.Context, destination string, broadcast bool, ev Event) {
	s.logger.InfoContext(ctx, "event published",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"destination", destination,
		"broadcast", broadcast)
}

// Multi fans each event out to all wrapped publishers.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, destination string, broadcast bool, ev Event) {
	for _, p := range m {
		p.Publish(ctx, destination, broadcast, ev)
	}
}
