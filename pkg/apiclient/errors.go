package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/certforge/certstore/pkg/storage"
)

// APIError represents an error response from the API: a problem document or
// a failed mutation envelope.
type APIError struct {
	StatusCode int
	Title      string
	Message    string

	// Kind is the storage error kind, zero when the failure did not come
	// from storage (authentication, malformed request).
	Kind storage.ErrorKind

	// RequestID is the X-Request-Id the request was sent with.
	RequestID string
}

// errorBody covers both error shapes the server writes.
type errorBody struct {
	// application/problem+json
	Title  string            `json:"title"`
	Detail string            `json:"detail"`
	Kind   storage.ErrorKind `json:"kind"`

	// Mutation envelope
	Message   string            `json:"message"`
	ErrorKind storage.ErrorKind `json:"errorKind"`
}

func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		apiErr.Title = eb.Title
		apiErr.Message = eb.Detail
		if apiErr.Message == "" {
			apiErr.Message = eb.Message
		}
		apiErr.Kind = eb.Kind
		if apiErr.Kind == 0 {
			apiErr.Kind = eb.ErrorKind
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Kind != 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized ||
		(e.StatusCode == http.StatusForbidden && e.Kind == 0)
}

// IsNotFound returns true if this is a not found error.
func (e *APIError) IsNotFound() bool {
	return e.Kind == storage.KindNotFound || (e.Kind == 0 && e.StatusCode == http.StatusNotFound)
}

// IsConflict returns true if the destination already exists.
func (e *APIError) IsConflict() bool {
	return e.Kind == storage.KindConflict
}

// IsInUse returns true if live usage records blocked the operation.
func (e *APIError) IsInUse() bool {
	return e.Kind == storage.KindInUse
}

// IsForbidden returns true if protection or directory permissions blocked
// the operation.
func (e *APIError) IsForbidden() bool {
	return e.Kind == storage.KindForbidden
}

// KindOf returns the storage error kind carried by err, or zero.
func KindOf(err error) storage.ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}
