package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/branchq/pkg/model"
)

func servicePointParams(r *http.Request) (branchID, servicePointID string) {
	return chi.URLParam(r, "branchID"), chi.URLParam(r, "servicePointID")
}

// GET /api/v1/branches/{branchID}/service-points/{servicePointID}
func (s *Server) handleGetServicePoint(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	err := s.branches.View(branchID, func(b *model.Branch) error {
		sp, ok := b.ServicePoints[spID]
		if !ok {
			return model.NewNotFoundError("service point", spID)
		}
		respondOK(w, reqID, sp)
		return nil
	})
	if err != nil {
		respondDomainError(w, reqID, err)
	}
}

type openRequest struct {
	UserID        string `json:"user_id"`
	WorkProfileID string `json:"work_profile_id"`
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/open
func (s *Server) handleOpenServicePoint(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	var req openRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.UserID == "" || req.WorkProfileID == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("user_id and work_profile_id are required"))
		return
	}

	if err := s.branches.OpenServicePoint(r.Context(), branchID, spID, req.UserID, req.WorkProfileID); err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"service_point_id": spID, "state": "open"})
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/close
func (s *Server) handleCloseServicePoint(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	if err := s.branches.CloseServicePoint(r.Context(), branchID, spID); err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"service_point_id": spID, "state": "closed"})
}

// PUT /api/v1/branches/{branchID}/service-points/{servicePointID}/work-profile
func (s *Server) handleChangeWorkProfile(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	var req struct {
		WorkProfileID string `json:"work_profile_id"`
	}
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.WorkProfileID == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("work_profile_id is required"))
		return
	}

	if err := s.branches.ChangeWorkProfile(r.Context(), branchID, spID, req.WorkProfileID); err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"service_point_id": spID, "work_profile_id": req.WorkProfileID})
}

// PUT /api/v1/branches/{branchID}/service-points/{servicePointID}/auto-call
func (s *Server) handleSetAutoCall(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, reqID, &req) {
		return
	}

	if err := s.branches.SetAutoCall(r.Context(), branchID, spID, req.Enabled); err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"service_point_id": spID, "auto_call": req.Enabled})
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/call-next
func (s *Server) handleCallNext(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	// The body is optional; queue_ids narrows the candidate queues.
	var req struct {
		QueueIDs []string `json:"queue_ids,omitempty"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, reqID, &req) {
		return
	}

	v, err := s.branches.CallNext(r.Context(), branchID, spID, req.QueueIDs)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	if v == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondOK(w, reqID, v)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/call
func (s *Server) handleCallVisit(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	var req struct {
		VisitID string `json:"visit_id"`
	}
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.VisitID == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("visit_id is required"))
		return
	}

	v, err := s.branches.CallVisit(r.Context(), branchID, spID, req.VisitID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/recall
func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	s.servicePointAction(w, r, s.branches.Recall)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/start-serving
func (s *Server) handleStartServing(w http.ResponseWriter, r *http.Request) {
	s.servicePointAction(w, r, s.branches.StartServing)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/stop-serving
func (s *Server) handleStopServing(w http.ResponseWriter, r *http.Request) {
	s.servicePointAction(w, r, s.branches.StopServing)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/no-show
func (s *Server) handleNoShow(w http.ResponseWriter, r *http.Request) {
	s.servicePointAction(w, r, s.branches.NoShow)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/end
func (s *Server) handleEndVisit(w http.ResponseWriter, r *http.Request) {
	s.servicePointAction(w, r, s.branches.EndVisit)
}

type spAction func(ctx context.Context, branchID, servicePointID string) (*model.Visit, error)

func (s *Server) servicePointAction(w http.ResponseWriter, r *http.Request, action spAction) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	v, err := action(r.Context(), branchID, spID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/back/queue
func (s *Server) handleBackToQueue(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	var req transferRequest
	if r.ContentLength > 0 && !decodeBody(w, r, reqID, &req) {
		return
	}

	v, err := s.branches.BackToQueue(r.Context(), branchID, spID, req.delay(), req.ToStart)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/back/user-pool
func (s *Server) handleBackToUserPool(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	var req transferRequest
	if r.ContentLength > 0 && !decodeBody(w, r, reqID, &req) {
		return
	}

	v, err := s.branches.BackToUserPool(r.Context(), branchID, spID, req.delay())
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/back/service-point-pool
func (s *Server) handleBackToServicePointPool(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	var req transferRequest
	if r.ContentLength > 0 && !decodeBody(w, r, reqID, &req) {
		return
	}

	v, err := s.branches.BackToServicePointPool(r.Context(), branchID, spID, req.delay())
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/services
func (s *Server) handleAddService(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	var req struct {
		ServiceID string `json:"service_id"`
	}
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.ServiceID == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("service_id is required"))
		return
	}

	v, err := s.branches.AddService(r.Context(), branchID, spID, req.ServiceID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/marks
func (s *Server) handleAddMark(w http.ResponseWriter, r *http.Request) {
	s.addAnnotation(w, r, s.branches.AddMark)
}

// POST /api/v1/branches/{branchID}/service-points/{servicePointID}/notes
func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	s.addAnnotation(w, r, s.branches.AddNote)
}

func (s *Server) addAnnotation(w http.ResponseWriter, r *http.Request, add func(ctx context.Context, branchID, servicePointID, value string) (*model.Visit, error)) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)

	var req struct {
		Value string `json:"value"`
	}
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.Value == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("value is required"))
		return
	}

	v, err := add(r.Context(), branchID, spID, req.Value)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}

// DELETE /api/v1/branches/{branchID}/service-points/{servicePointID}/marks/{markID}
func (s *Server) handleDeleteMark(w http.ResponseWriter, r *http.Request) {
	s.deleteAnnotation(w, r, s.branches.DeleteMark)
}

// DELETE /api/v1/branches/{branchID}/service-points/{servicePointID}/notes/{markID}
func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	s.deleteAnnotation(w, r, s.branches.DeleteNote)
}

func (s *Server) deleteAnnotation(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, branchID, servicePointID, markID string) (*model.Visit, error)) {
	reqID := RequestIDFromContext(r.Context())
	branchID, spID := servicePointParams(r)
	markID := chi.URLParam(r, "markID")

	v, err := del(r.Context(), branchID, spID, markID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}
