package model

import "fmt"

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation  ErrorCode = "VALIDATION_ERROR"
	ErrNotFound    ErrorCode = "NOT_FOUND"
	ErrConflict    ErrorCode = "CONFLICT"
	ErrForbidden   ErrorCode = "FORBIDDEN"
	ErrUnavailable ErrorCode = "UNAVAILABLE"
	ErrInternal    ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the branchq API.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates a VALIDATION_ERROR APIError.
func NewValidationError(msg string) *APIError {
	return &APIError{Code: ErrValidation, Message: msg}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// NewInternalError creates an INTERNAL_ERROR APIError.
func NewInternalError(msg string) *APIError {
	return &APIError{Code: ErrInternal, Message: msg}
}

// InvalidTransitionError is returned when a lifecycle event is illegal
// for the visit's current state. The visit is left unmutated.
type InvalidTransitionError struct {
	VisitID string
	Event   EventType
	From    VisitState
	To      VisitState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid visit state transition: %s to %s via %s (visit %s)", e.From, e.To, e.Event, e.VisitID)
}

// NotInitializedError is returned when the first event recorded for a
// visit is anything other than the created event.
type NotInitializedError struct {
	VisitID string
	Event   EventType
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("visit %s not initialized: first event must be %s, got %s", e.VisitID, EventCreated, e.Event)
}

// ForbiddenError is returned when a service point has no logged-in staff
// member, or its staff member's work profile is unknown to the branch.
type ForbiddenError struct {
	ServicePointID string
	Reason         string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("service point %s: %s", e.ServicePointID, e.Reason)
}

// ConfigMissingError is returned when referenced branch configuration
// (a segmentation rule, queue, work profile, or a script rule's declared
// inputs) does not exist. It is a setup fault, not a transient error.
type ConfigMissingError struct {
	Kind string
	ID   string
}

func (e *ConfigMissingError) Error() string {
	return fmt.Sprintf("%s '%s' not configured", e.Kind, e.ID)
}

// PolicyUnavailableError is returned when the remote dispatch policy
// could not be reached or answered with a fault. The caller may retry
// with backoff; the engine does not retry internally.
type PolicyUnavailableError struct {
	Endpoint string
	Err      error
}

func (e *PolicyUnavailableError) Error() string {
	return fmt.Sprintf("dispatch policy %s unavailable: %v", e.Endpoint, e.Err)
}

func (e *PolicyUnavailableError) Unwrap() error {
	return e.Err
}
