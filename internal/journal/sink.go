package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/me/branchq/internal/events"
)

// PublishedEvent is one recorded notification.
type PublishedEvent struct {
	ID          int64             `json:"id"`
	EventID     string            `json:"event_id"`
	EventType   string            `json:"event_type"`
	Destination string            `json:"destination"`
	Broadcast   bool              `json:"broadcast"`
	SenderID    string            `json:"sender_id,omitempty"`
	At          string            `json:"at"`
	Params      map[string]string `json:"params,omitempty"`
	Body        string            `json:"body,omitempty"`
}

// Sink records every published event in the journal, implementing
// events.Publisher. Like any sink it is best effort: a failed insert is
// logged and never surfaces to the operation that produced the event.
type Sink struct {
	journal *SQLiteJournal
	logger  *slog.Logger
}

// NewSink creates a journal-backed event sink.
func NewSink(j *SQLiteJournal, logger *slog.Logger) *Sink {
	return &Sink{
		journal: j,
		logger:  logger.With("component", "journal"),
	}
}

func (s *Sink) Publish(ctx context.Context, destination string, broadcast bool, ev events.Event) {
	paramsJSON, err := json.Marshal(ev.Params)
	if err != nil || ev.Params == nil {
		paramsJSON = []byte("{}")
	}
	var bodyJSON []byte
	if ev.Body != nil {
		if bodyJSON, err = json.Marshal(ev.Body); err != nil {
			s.logger.Warn("event body not recordable", "event_id", ev.ID, "error", err)
			bodyJSON = nil
		}
	}

	// The record outlives the request that produced the event.
	_, err = s.journal.db.ExecContext(context.WithoutCancel(ctx),
		`INSERT INTO published_events (event_id, event_type, destination, broadcast, sender_id, at, params, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Type, destination, broadcast, ev.SenderID,
		ev.At.Format(time.RFC3339Nano), string(paramsJSON), string(bodyJSON),
	)
	if err != nil {
		s.logger.Warn("event not recorded", "event_id", ev.ID, "error", err)
	}
}

// PublishedEvents returns recorded events in publish order, filtered to
// one destination when destination is non-empty.
func (j *SQLiteJournal) PublishedEvents(ctx context.Context, destination string) ([]PublishedEvent, error) {
	j.logger.Debug("sql", "op", "select", "table", "published_events", "destination", destination)

	query := `SELECT id, event_id, event_type, destination, broadcast, sender_id, at, params, body
		 FROM published_events`
	args := []any{}
	if destination != "" {
		query += ` WHERE destination = ?`
		args = append(args, destination)
	}
	query += ` ORDER BY id`

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []PublishedEvent
	for rows.Next() {
		var rec PublishedEvent
		var paramsJSON string
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &rec.Destination,
			&rec.Broadcast, &rec.SenderID, &rec.At, &paramsJSON, &rec.Body); err != nil {
			return nil, err
		}
		if paramsJSON != "{}" {
			if err := json.Unmarshal([]byte(paramsJSON), &rec.Params); err != nil {
				return nil, err
			}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
