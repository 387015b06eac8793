package api

import (
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/course"
	"github.com/ayusman/mudra/internal/progress"
	"github.com/ayusman/mudra/internal/session"
)

// CourseHandler serves the course catalog with committed progress.
type CourseHandler struct {
	catalog *course.Catalog
	tracker *progress.Tracker
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(catalog *course.Catalog, tracker *progress.Tracker) *CourseHandler {
	return &CourseHandler{catalog: catalog, tracker: tracker}
}

type courseResponse struct {
	ID              string `json:"id"`
	Instruction     string `json:"instruction"`
	Goal            int    `json:"goal"`
	Correct         int    `json:"correct_count"`
	ProgressPercent int    `json:"progress_percent"`
	Completed       bool   `json:"completed"`
}

type listCoursesResponse struct {
	Courses []courseResponse `json:"courses"`
}

// ServeHTTP handles /api/courses and /api/courses/{id}.
func (h *CourseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/courses")
	id = strings.TrimPrefix(id, "/")

	if id == "" {
		h.list(w)
		return
	}
	h.get(w, id)
}

func (h *CourseHandler) list(w http.ResponseWriter) {
	courses := h.catalog.List()
	resp := listCoursesResponse{Courses: make([]courseResponse, 0, len(courses))}
	for _, c := range courses {
		resp.Courses = append(resp.Courses, h.toResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CourseHandler) get(w http.ResponseWriter, id string) {
	c, err := h.catalog.Get(id)
	if err != nil {
		writeError(w, StatusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(c))
}

func (h *CourseHandler) toResponse(c course.Course) courseResponse {
	correct := h.tracker.Get(c.ID)
	return courseResponse{
		ID:              c.ID,
		Instruction:     c.Instruction,
		Goal:            c.Goal,
		Correct:         correct,
		ProgressPercent: session.Percent(correct, c.Goal),
		Completed:       correct >= c.Goal,
	}
}
