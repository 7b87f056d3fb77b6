// Package catalog holds the read-only course and workout reference data.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fitpro/fitsync/internal/domain"
)

// Catalog is an immutable id-indexed set of courses and workouts.
type Catalog struct {
	courses  map[string]domain.Course
	workouts map[string]domain.Workout
	order    []string // course ids in load order
}

var _ domain.Catalog = (*Catalog)(nil)

// New builds a catalog. A workout without an owning course is attributed to
// the first course that lists it.
func New(courses []domain.Course, workouts []domain.Workout) *Catalog {
	c := &Catalog{
		courses:  make(map[string]domain.Course, len(courses)),
		workouts: make(map[string]domain.Workout, len(workouts)),
	}

	owner := make(map[string]string)
	for _, course := range courses {
		if course.ID == "" {
			continue
		}
		if _, dup := c.courses[course.ID]; !dup {
			c.order = append(c.order, course.ID)
		}
		c.courses[course.ID] = course
		for _, wid := range course.WorkoutIDs {
			if _, taken := owner[wid]; !taken {
				owner[wid] = course.ID
			}
		}
	}

	for _, w := range workouts {
		if w.ID == "" {
			continue
		}
		if w.CourseID == "" {
			w.CourseID = owner[w.ID]
		}
		w.Exercises = assignExerciseIDs(w.ID, w.Exercises)
		c.workouts[w.ID] = w
	}
	return c
}

// assignExerciseIDs fills missing exercise ids with "<workoutID>-ex<index>".
func assignExerciseIDs(workoutID string, exercises []domain.Exercise) []domain.Exercise {
	out := make([]domain.Exercise, len(exercises))
	for i, ex := range exercises {
		if ex.ID == "" {
			ex.ID = fmt.Sprintf("%s-ex%d", workoutID, i)
		}
		out[i] = ex
	}
	return out
}

// Course returns the course with the given id.
func (c *Catalog) Course(id string) (domain.Course, bool) {
	course, ok := c.courses[id]
	return course, ok
}

// Workout returns the workout with the given id.
func (c *Catalog) Workout(id string) (domain.Workout, bool) {
	w, ok := c.workouts[id]
	return w, ok
}

// Courses returns every course in load order.
func (c *Catalog) Courses() []domain.Course {
	out := make([]domain.Course, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.courses[id])
	}
	return out
}

// Workouts returns the resolvable workouts of a course in course order.
func (c *Catalog) Workouts(courseID string) []domain.Workout {
	course, ok := c.courses[courseID]
	if !ok {
		return nil
	}
	out := make([]domain.Workout, 0, len(course.WorkoutIDs))
	for _, id := range course.WorkoutIDs {
		if w, ok := c.workouts[id]; ok {
			out = append(out, w)
		}
	}
	return out
}

// Len returns the number of courses.
func (c *Catalog) Len() int {
	return len(c.order)
}

// persisted is the encoding used for the local copy of the catalog.
type persisted struct {
	Courses  []domain.Course  `json:"courses"`
	Workouts []domain.Workout `json:"workouts"`
}

// MarshalJSON encodes the catalog with workouts sorted by id.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	p := persisted{Courses: c.Courses()}
	ids := make([]string, 0, len(c.workouts))
	for id := range c.workouts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p.Workouts = append(p.Workouts, c.workouts[id])
	}
	return json.Marshal(p)
}

// Decode parses a catalog encoded with MarshalJSON.
func Decode(data []byte) (*Catalog, error) {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(p.Courses, p.Workouts), nil
}
