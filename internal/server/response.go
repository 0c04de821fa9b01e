package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/me/branchq/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, apiErr)
}

// respondDomainError maps a branch-service error to an HTTP status and
// the envelope's error shape.
func respondDomainError(w http.ResponseWriter, reqID string, err error) {
	var (
		apiErr     *model.APIError
		forbidden  *model.ForbiddenError
		invalid    *model.InvalidTransitionError
		uninit     *model.NotInitializedError
		cfgMissing *model.ConfigMissingError
		policy     *model.PolicyUnavailableError
	)
	switch {
	case errors.As(err, &apiErr):
		respondError(w, reqID, statusForCode(apiErr.Code), apiErr)
	case errors.As(err, &forbidden):
		respondError(w, reqID, http.StatusForbidden,
			&model.APIError{Code: model.ErrForbidden, Message: forbidden.Error()})
	case errors.As(err, &invalid):
		respondError(w, reqID, http.StatusConflict,
			&model.APIError{Code: model.ErrConflict, Message: invalid.Error()})
	case errors.As(err, &uninit):
		respondError(w, reqID, http.StatusConflict,
			&model.APIError{Code: model.ErrConflict, Message: uninit.Error()})
	case errors.As(err, &cfgMissing):
		respondError(w, reqID, http.StatusBadRequest,
			&model.APIError{Code: model.ErrValidation, Message: cfgMissing.Error()})
	case errors.As(err, &policy):
		respondError(w, reqID, http.StatusServiceUnavailable,
			&model.APIError{Code: model.ErrUnavailable, Message: policy.Error()})
	default:
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
	}
}

func statusForCode(code model.ErrorCode) int {
	switch code {
	case model.ErrValidation:
		return http.StatusBadRequest
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrConflict:
		return http.StatusConflict
	case model.ErrForbidden:
		return http.StatusForbidden
	case model.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, apiErr *model.APIError) {
	resp := model.Response{
		RequestID: reqID,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, reqID string, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}
