package server

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/me/branchq/pkg/model"
)

type branchSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Queues        int    `json:"queues"`
	ServicePoints int    `json:"service_points"`
	Waiting       int    `json:"waiting_visits"`
}

// GET /api/v1/branches
func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	ids := s.branches.BranchIDs()
	sort.Strings(ids)

	summaries := make([]branchSummary, 0, len(ids))
	for _, id := range ids {
		err := s.branches.View(id, func(b *model.Branch) error {
			sum := branchSummary{
				ID:            b.ID,
				Name:          b.Name,
				Queues:        len(b.Queues),
				ServicePoints: len(b.ServicePoints),
			}
			for _, q := range b.Queues {
				sum.Waiting += len(q.Visits)
			}
			summaries = append(summaries, sum)
			return nil
		})
		if err != nil {
			respondDomainError(w, reqID, err)
			return
		}
	}
	respondOK(w, reqID, summaries)
}

// GET /api/v1/branches/{branchID}
func (s *Server) handleGetBranch(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID := chi.URLParam(r, "branchID")

	err := s.branches.View(branchID, func(b *model.Branch) error {
		respondOK(w, reqID, b)
		return nil
	})
	if err != nil {
		respondDomainError(w, reqID, err)
	}
}

type queueView struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	TicketPrefix string         `json:"ticket_prefix"`
	Waiting      int            `json:"waiting_visits"`
	Visits       []*model.Visit `json:"visits,omitempty"`
}

// GET /api/v1/branches/{branchID}/queues
func (s *Server) handleListQueues(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID := chi.URLParam(r, "branchID")

	err := s.branches.View(branchID, func(b *model.Branch) error {
		views := make([]queueView, 0, len(b.Queues))
		for _, q := range b.Queues {
			views = append(views, queueView{
				ID:           q.ID,
				Name:         q.Name,
				TicketPrefix: q.TicketPrefix,
				Waiting:      len(q.Visits),
			})
		}
		sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
		respondOK(w, reqID, views)
		return nil
	})
	if err != nil {
		respondDomainError(w, reqID, err)
	}
}

// GET /api/v1/branches/{branchID}/queues/{queueID}
func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID := chi.URLParam(r, "branchID")
	queueID := chi.URLParam(r, "queueID")

	err := s.branches.View(branchID, func(b *model.Branch) error {
		q, ok := b.Queues[queueID]
		if !ok {
			return model.NewNotFoundError("queue", queueID)
		}
		respondOK(w, reqID, queueView{
			ID:           q.ID,
			Name:         q.Name,
			TicketPrefix: q.TicketPrefix,
			Waiting:      len(q.Visits),
			Visits:       q.Visits,
		})
		return nil
	})
	if err != nil {
		respondDomainError(w, reqID, err)
	}
}
