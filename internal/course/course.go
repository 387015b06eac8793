// Package course provides the static catalog of hand-sign training courses.
package course

import (
	"errors"
	"fmt"
)

// DefaultGoal is the number of correct gestures needed to complete a course.
const DefaultGoal = 20

// ErrCourseNotFound is returned when a course id is not in the catalog.
var ErrCourseNotFound = errors.New("course not found")

// Course is a named gesture-training unit.
type Course struct {
	ID          string `json:"id"`
	Instruction string `json:"instruction"`
	Goal        int    `json:"goal"`
}

// Catalog is an immutable, ordered registry of courses.
type Catalog struct {
	courses []Course
	index   map[string]int
}

// NewCatalog builds a catalog from the given courses, keeping their order.
// Ids must be non-empty and unique, and goals positive.
func NewCatalog(courses ...Course) (*Catalog, error) {
	c := &Catalog{
		courses: make([]Course, 0, len(courses)),
		index:   make(map[string]int, len(courses)),
	}

	for _, crs := range courses {
		if crs.ID == "" {
			return nil, errors.New("course id is empty")
		}
		if crs.Goal <= 0 {
			return nil, fmt.Errorf("course %s: goal must be positive, got %d", crs.ID, crs.Goal)
		}
		if _, dup := c.index[crs.ID]; dup {
			return nil, fmt.Errorf("course %s: duplicate id", crs.ID)
		}
		c.index[crs.ID] = len(c.courses)
		c.courses = append(c.courses, crs)
	}

	return c, nil
}

// Builtin returns the five vowel courses with the given goal.
// A goal of zero or less falls back to DefaultGoal.
func Builtin(goal int) *Catalog {
	if goal <= 0 {
		goal = DefaultGoal
	}

	c, err := NewCatalog(
		Course{ID: "A", Instruction: "Close your fingers and show your thumb.", Goal: goal},
		Course{ID: "E", Instruction: "Bend your fingers and bring them to your little finger.", Goal: goal},
		Course{ID: "I", Instruction: "Close every finger except the little finger.", Goal: goal},
		Course{ID: "O", Instruction: "Form a circle with all your fingers.", Goal: goal},
		Course{ID: "U", Instruction: "Raise the index and little fingers.", Goal: goal},
	)
	if err != nil {
		// The built-in table is static; a failure here is a programming error.
		panic(err)
	}
	return c
}

// List returns the courses in insertion order.
func (c *Catalog) List() []Course {
	out := make([]Course, len(c.courses))
	copy(out, c.courses)
	return out
}

// Get returns the course with the given id.
func (c *Catalog) Get(id string) (Course, error) {
	i, ok := c.index[id]
	if !ok {
		return Course{}, fmt.Errorf("%w: %q", ErrCourseNotFound, id)
	}
	return c.courses[i], nil
}

// Has reports whether the catalog contains id.
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}
