package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/me/branchq/internal/dispatch"
	"github.com/me/branchq/pkg/model"
)

type createVisitRequest struct {
	ServiceID string            `json:"service_id"`
	RuleID    string            `json:"rule_id,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

// POST /api/v1/branches/{branchID}/visits
func (s *Server) handleCreateVisit(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID := chi.URLParam(r, "branchID")

	var req createVisitRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.ServiceID == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("service_id is required"))
		return
	}

	var (
		v   *model.Visit
		err error
	)
	if req.RuleID != "" {
		v, err = s.branches.CreateVisitByRule(r.Context(), branchID, req.ServiceID, req.RuleID, req.Params)
	} else {
		v, err = s.branches.CreateVisit(r.Context(), branchID, req.ServiceID, req.Params)
	}
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, v)
}

// GET /api/v1/branches/{branchID}/visits/{visitID}
// Falls back to the archived snapshot for ended visits.
func (s *Server) handleGetVisit(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID := chi.URLParam(r, "branchID")
	visitID := chi.URLParam(r, "visitID")

	found := false
	err := s.branches.View(branchID, func(b *model.Branch) error {
		if v := b.FindVisit(visitID); v != nil {
			found = true
			respondOK(w, reqID, v)
		}
		return nil
	})
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	if found {
		return
	}

	archived, err := s.journal.ArchivedVisit(r.Context(), visitID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	if archived == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("visit", visitID))
		return
	}
	respondOK(w, reqID, archived)
}

// DELETE /api/v1/branches/{branchID}/visits/{visitID}
func (s *Server) handleDeleteVisit(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID := chi.URLParam(r, "branchID")
	visitID := chi.URLParam(r, "visitID")

	if err := s.branches.DeleteVisit(r.Context(), branchID, visitID); err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"visit_id": visitID, "state": "deleted"})
}

// GET /api/v1/branches/{branchID}/visits/{visitID}/events
func (s *Server) handleVisitEvents(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	visitID := chi.URLParam(r, "visitID")

	entries, err := s.journal.VisitEvents(r.Context(), visitID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, entries)
}

type availablePointView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	Busy     bool   `json:"busy"`
}

// GET /api/v1/branches/{branchID}/visits/{visitID}/available-service-points
// Lists the staffed service points whose work profile covers the queue
// of the visit's current service.
func (s *Server) handleAvailableServicePoints(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID := chi.URLParam(r, "branchID")
	visitID := chi.URLParam(r, "visitID")

	found := false
	err := s.branches.View(branchID, func(b *model.Branch) error {
		v := b.FindVisit(visitID)
		if v == nil {
			return nil
		}
		found = true

		points := dispatch.AvailableServicePoints(b, v)
		views := make([]availablePointView, 0, len(points))
		for _, sp := range points {
			views = append(views, availablePointView{
				ID:       sp.ID,
				Name:     sp.Name,
				UserID:   sp.User.ID,
				UserName: sp.User.Name,
				Busy:     sp.Visit != nil,
			})
		}
		respondOK(w, reqID, views)
		return nil
	})
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	if !found {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("visit", visitID))
	}
}

type transferRequest struct {
	QueueID        string `json:"queue_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	ServicePointID string `json:"service_point_id,omitempty"`
	DelaySeconds   int    `json:"delay_seconds,omitempty"`
	ToStart        bool   `json:"to_start,omitempty"`
}

func (req transferRequest) delay() time.Duration {
	return time.Duration(req.DelaySeconds) * time.Second
}

// POST /api/v1/branches/{branchID}/visits/{visitID}/transfer/queue
func (s *Server) handleTransferToQueue(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID := chi.URLParam(r, "branchID")
	visitID := chi.URLParam(r, "visitID")

	var req transferRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.QueueID == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("queue_id is required"))
		return
	}

	v, err := s.branches.TransferToQueue(r.Context(), branchID, visitID, req.QueueID, req.delay(), req.ToStart)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}

// POST /api/v1/branches/{branchID}/visits/{visitID}/transfer/user-pool
func (s *Server) handleTransferToUserPool(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID := chi.URLParam(r, "branchID")
	visitID := chi.URLParam(r, "visitID")

	var req transferRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.UserID == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("user_id is required"))
		return
	}

	v, err := s.branches.TransferToUserPool(r.Context(), branchID, visitID, req.UserID, req.delay())
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}

// POST /api/v1/branches/{branchID}/visits/{visitID}/transfer/service-point-pool
func (s *Server) handleTransferToServicePointPool(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID := chi.URLParam(r, "branchID")
	visitID := chi.URLParam(r, "visitID")

	var req transferRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.ServicePointID == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("service_point_id is required"))
		return
	}

	v, err := s.branches.TransferToServicePointPool(r.Context(), branchID, visitID, req.ServicePointID, req.delay())
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}
