// Package api provides HTTP API handlers for training sessions, courses and
// attempt history.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/course"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// StatusFor maps a domain error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, course.ErrCourseNotFound), errors.Is(err, store.ErrNotFound), errors.Is(err, ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrSuperseded), errors.Is(err, ErrNoFeed):
		return http.StatusConflict
	case errors.Is(err, session.ErrCameraAccessDenied), errors.Is(err, session.ErrDetectorInit):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
