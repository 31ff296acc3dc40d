// Package handlers implements the HTTP handlers of the certstore API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/certforge/certstore/pkg/storage"
)

// ContentTypeProblemJSON is the media type of error responses (RFC 7807).
const ContentTypeProblemJSON = "application/problem+json"

// Problem is an RFC 7807 error body. Kind is set when the failure came
// from the storage service, so clients can branch on it.
type Problem struct {
	Type     string            `json:"type,omitempty"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Kind     storage.ErrorKind `json:"kind,omitempty"`
}

func (p *Problem) write(w http.ResponseWriter) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteProblem writes a problem titled after status.
func WriteProblem(w http.ResponseWriter, status int, detail string) {
	(&Problem{Status: status, Detail: detail}).write(w)
}

func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, detail)
}

func Unauthorized(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusUnauthorized, detail)
}

func Forbidden(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusForbidden, detail)
}

func NotFound(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusNotFound, detail)
}

func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInternalServerError, detail)
}

var kindStatus = map[storage.ErrorKind]int{
	storage.KindNotFound:           http.StatusNotFound,
	storage.KindForbidden:          http.StatusForbidden,
	storage.KindInUse:              http.StatusLocked,
	storage.KindConflict:           http.StatusConflict,
	storage.KindInvalidInput:       http.StatusBadRequest,
	storage.KindTimeout:            http.StatusGatewayTimeout,
	storage.KindCanceled:           http.StatusRequestTimeout,
	storage.KindBackendUnavailable: http.StatusServiceUnavailable,
}

// StatusForKind is the HTTP status of a storage error kind; unknown kinds
// are 500.
func StatusForKind(kind storage.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// MapStorageError returns the status and the caller-safe message of err.
// Backend causes never reach the message.
func MapStorageError(err error) (int, string) {
	se := storage.AsError("", err)
	if se == nil {
		return http.StatusInternalServerError, "Internal server error"
	}
	return StatusForKind(se.Kind), se.Message
}

// HandleStorageError writes err as a problem carrying its kind.
func HandleStorageError(w http.ResponseWriter, err error) {
	status, msg := MapStorageError(err)
	(&Problem{Status: status, Detail: msg, Kind: storage.KindOf(err)}).write(w)
}

// WriteJSON writes data as a JSON body with status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}
