package handlers

import (
	"net/http"
	"time"

	"github.com/certforge/certstore/pkg/storage"
)

// Response is the body of the health checks. Error is set only when
// Status is "unhealthy".
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthyResponse(data any) Response {
	return Response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthyResponse(msg string) Response {
	return Response{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: msg}
}

// writeMutation writes a mutation envelope. Failed mutations carry the HTTP
// status of their error kind; the body is the envelope either way.
func writeMutation(w http.ResponseWriter, res *storage.MutationResult, created bool) {
	switch {
	case !res.Success:
		WriteJSON(w, StatusForKind(res.ErrorKind), res)
	case created:
		WriteJSONCreated(w, res)
	default:
		WriteJSONOK(w, res)
	}
}

// writeUsageResult is writeMutation for usage registry mutations.
func writeUsageResult(w http.ResponseWriter, success bool, kind storage.ErrorKind, body any) {
	if !success {
		WriteJSON(w, StatusForKind(kind), body)
		return
	}
	WriteJSONOK(w, body)
}
