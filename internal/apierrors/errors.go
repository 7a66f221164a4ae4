// Package apierrors is the gateway's error taxonomy: a fixed set of kinds
// that Router maps to HTTP status codes, adapted from the upstream
// service's structured API error shape.
package apierrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is one of the gateway's fixed error kinds.
type Kind string

const (
	BadRequest         Kind = "BAD_REQUEST"
	NotFound           Kind = "NOT_FOUND"
	ServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	InternalError      Kind = "INTERNAL_ERROR"
	ConfigurationError Kind = "CONFIGURATION_ERROR"
)

// APIError is a structured, user-visible error.
type APIError struct {
	Kind      Kind        `json:"errorCode"`
	Message   string      `json:"error"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// errorResponse is the JSON body written by WriteError.
type errorResponse struct {
	Error      string      `json:"error"`
	ErrorCode  Kind        `json:"errorCode"`
	StatusCode int         `json:"statusCode"`
	Timestamp  string      `json:"timestamp"`
	Details    interface{} `json:"details,omitempty"`
}

// New builds an APIError of kind with message.
func New(kind Kind, message string) *APIError {
	return &APIError{
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// WithDetails attaches arbitrary structured detail to the error.
func (e *APIError) WithDetails(details interface{}) *APIError {
	e.Details = details
	return e
}

// WithRequestID attaches the inbound request's correlation id.
func (e *APIError) WithRequestID(requestID string) *APIError {
	e.RequestID = requestID
	return e
}

// StatusCode maps the error's kind to an HTTP status code.
func (e *APIError) StatusCode() int {
	switch e.Kind {
	case BadRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case ConfigurationError:
		return http.StatusInternalServerError
	case InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// WriteError writes err as the gateway's standard JSON error body.
func WriteError(w http.ResponseWriter, err *APIError) {
	statusCode := err.StatusCode()
	resp := errorResponse{
		Error:      err.Message,
		ErrorCode:  err.Kind,
		StatusCode: statusCode,
		Timestamp:  err.Timestamp,
		Details:    err.Details,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// AsAPIError unwraps err looking for an *APIError, the way errors.As would.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Helper constructors for the common cases.

func NewBadRequest(message string) *APIError {
	return New(BadRequest, message)
}

func NewNotFound(message string) *APIError {
	return New(NotFound, message)
}

func NewServiceUnavailable(database, reason string) *APIError {
	msg := fmt.Sprintf("database %q is unavailable", database)
	if reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, reason)
	}
	return New(ServiceUnavailable, msg)
}

func NewInternalError(message string) *APIError {
	return New(InternalError, message)
}
