package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/store"
)

const defaultAttemptLimit = 50

// AttemptHandler lists finished attempts, newest first.
type AttemptHandler struct {
	store *store.Store
}

// NewAttemptHandler creates a new AttemptHandler with the given store.
func NewAttemptHandler(s *store.Store) *AttemptHandler {
	return &AttemptHandler{store: s}
}

type listAttemptsResponse struct {
	Attempts []store.Attempt `json:"attempts"`
}

// ServeHTTP handles GET /api/attempts?course={id}&limit={n}.
func (h *AttemptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultAttemptLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	attempts, err := h.store.Attempts().List(r.Context(), r.URL.Query().Get("course"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list attempts")
		return
	}
	if attempts == nil {
		attempts = []store.Attempt{}
	}
	writeJSON(w, http.StatusOK, listAttemptsResponse{Attempts: attempts})
}
