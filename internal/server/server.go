// Package server provides the HTTP server for hand-sign training sessions.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/course"
	"github.com/ayusman/mudra/internal/progress"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds the server configuration. Routes are registered only for the
// collaborators that are set.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Catalog    *course.Catalog
	Tracker    *progress.Tracker
	Controller *session.Controller
	// Frames receives hand-presence results pushed by browser clients. It is
	// nil when a local camera feeds the session.
	Frames api.FramePusher
	// Preview serves /api/stream from the local camera feed.
	Preview FrameSource
}

// Server represents the HTTP server for the training application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	socket *SessionSocket
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Catalog != nil && s.config.Tracker != nil {
		courses := api.NewCourseHandler(s.config.Catalog, s.config.Tracker)
		s.mux.Handle("/api/courses", courses)
		s.mux.Handle("/api/courses/", courses)
	}

	if s.config.Controller != nil {
		sessions := api.NewSessionHandler(s.config.Controller, s.config.Frames)
		s.mux.Handle("/api/session", sessions)
		s.mux.Handle("/api/session/", sessions)

		s.socket = NewSessionSocket(s.config.Controller, s.config.Frames)
		s.mux.Handle("/api/session/ws", s.socket)
	}

	if s.config.Store != nil {
		s.mux.Handle("/api/attempts", api.NewAttemptHandler(s.config.Store))
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Controller != nil {
		response["session_state"] = s.config.Controller.Snapshot().State
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close disconnects socket clients and stops snapshot broadcasts.
func (s *Server) Close() {
	if s.socket != nil {
		s.socket.Close()
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
