package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/session"
)

// SessionHandler exposes the training controller: the current snapshot,
// user commands and pushed frames.
type SessionHandler struct {
	ctl    *session.Controller
	frames FramePusher
}

// NewSessionHandler creates a new SessionHandler. frames may be nil when a
// local camera feeds the session.
func NewSessionHandler(ctl *session.Controller, frames FramePusher) *SessionHandler {
	return &SessionHandler{ctl: ctl, frames: frames}
}

type startRequest struct {
	CourseID string `json:"course_id"`
}

type stopRequest struct {
	Success bool `json:"success"`
}

type frameRequest struct {
	HandPresent bool `json:"hand_present"`
}

// ServeHTTP handles /api/session and /api/session/{action}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/session")
	action = strings.TrimPrefix(action, "/")

	if action == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.ctl.Snapshot())
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if action == "frames" {
		h.frame(w, r)
		return
	}
	h.command(w, r, action)
}

func (h *SessionHandler) command(w http.ResponseWriter, r *http.Request, name string) {
	cmd := Command{Name: name}

	switch name {
	case CommandStart:
		var req startRequest
		if !decodeBody(w, r, &req) {
			return
		}
		cmd.CourseID = req.CourseID
	case CommandStop:
		var req stopRequest
		if !decodeBody(w, r, &req) {
			return
		}
		cmd.Success = req.Success
	}

	if err := Execute(r.Context(), h.ctl, cmd); err != nil {
		writeError(w, StatusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

func (h *SessionHandler) frame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := PushFrame(h.frames, req.HandPresent); err != nil {
		writeError(w, StatusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// decodeBody decodes an optional JSON body. It writes a 400 and returns false
// on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
