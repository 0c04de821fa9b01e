package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/me/branchq/pkg/model"
)

// queueSnapshot is the SSE payload for one queue state.
type queueSnapshot struct {
	QueueID string   `json:"queue_id"`
	Name    string   `json:"name"`
	Tickets []string `json:"tickets"`
}

// handleSSEQueue streams queue content changes via Server-Sent Events.
// GET /api/v1/sse/branches/{branchID}/queues/{queueID}
func (s *Server) handleSSEQueue(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")
	queueID := chi.URLParam(r, "queueID")
	reqID := RequestIDFromContext(r.Context())

	snap, err := s.queueSnapshot(branchID, queueID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Send initial state.
	if err := sendSSEEvent(w, flusher, "init", snap); err != nil {
		s.logger.Debug("sse client disconnected", "queue_id", queueID, "error", err)
		return
	}

	// Poll for updates until the client disconnects.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastTickets := strings.Join(snap.Tickets, ",")

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap, err := s.queueSnapshot(branchID, queueID)
			if err != nil {
				s.logger.Error("sse fetch error", "queue_id", queueID, "error", err)
				return
			}

			tickets := strings.Join(snap.Tickets, ",")
			if tickets != lastTickets {
				if err := sendSSEEvent(w, flusher, "update", snap); err != nil {
					s.logger.Debug("sse client disconnected", "queue_id", queueID)
					return
				}
				lastTickets = tickets
			} else {
				// Send heartbeat.
				fmt.Fprintf(w, ": heartbeat\n\n")
				flusher.Flush()
			}
		}
	}
}

func (s *Server) queueSnapshot(branchID, queueID string) (queueSnapshot, error) {
	var snap queueSnapshot
	err := s.branches.View(branchID, func(b *model.Branch) error {
		q, ok := b.Queues[queueID]
		if !ok {
			return model.NewNotFoundError("queue", queueID)
		}
		snap.QueueID = q.ID
		snap.Name = q.Name
		snap.Tickets = make([]string, len(q.Visits))
		for i, v := range q.Visits {
			snap.Tickets[i] = v.Ticket
		}
		return nil
	})
	return snap, err
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
