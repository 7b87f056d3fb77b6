package domain

import (
	"time"
)

// User identifies the account whose progress is being synchronized.
// The auth token is owned by the auth collaborator and never inspected here.
type User struct {
	ID          string
	DisplayName string
	Token       string
}

// Course is read-only catalog data: a named, ordered sequence of workouts.
type Course struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`                   // Display name (nameRU in the catalog)
	NameEN      string   `json:"nameEN,omitempty" yaml:"nameEN"`     // Latin display name
	Description string   `json:"description,omitempty" yaml:"description"`
	WorkoutIDs  []string `json:"workouts" yaml:"workouts"` // Ordered workout references
}

// Exercise is a single movement inside a workout with a repetition target.
type Exercise struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	TargetReps int    `json:"quantity" yaml:"quantity"`
}

// Workout belongs to exactly one course and lists its exercises in order.
type Workout struct {
	ID        string     `json:"id" yaml:"id"`
	CourseID  string     `json:"courseId" yaml:"course"`
	Name      string     `json:"name" yaml:"name"`
	VideoURL  string     `json:"video,omitempty" yaml:"video"`
	Exercises []Exercise `json:"exercises" yaml:"exercises"`
}

// Exercise returns the exercise with the given id.
func (w Workout) Exercise(id string) (Exercise, bool) {
	for _, ex := range w.Exercises {
		if ex.ID == id {
			return ex, true
		}
	}
	return Exercise{}, false
}

// EnrolledCourse is the user-owned reference to a course, stored as one element
// of the courses array in the user's progress document.
type EnrolledCourse struct {
	CourseID   string    `json:"id"`
	Name       string    `json:"name"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// ExerciseReps maps exercise id to completed repetitions.
type ExerciseReps map[string]int

// CourseProgress maps workout id to the exercise reps recorded for it.
type CourseProgress map[string]ExerciseReps

// ProgressMap maps course id to the progress recorded for it.
type ProgressMap map[string]CourseProgress

// Reps returns the completed reps for one exercise, 0 when nothing is recorded.
func (p ProgressMap) Reps(courseID, workoutID, exerciseID string) int {
	return p[courseID][workoutID][exerciseID]
}

// Set records reps for one exercise, creating intermediate levels as needed.
func (p ProgressMap) Set(courseID, workoutID, exerciseID string, reps int) {
	course, ok := p[courseID]
	if !ok {
		course = CourseProgress{}
		p[courseID] = course
	}
	workout, ok := course[workoutID]
	if !ok {
		workout = ExerciseReps{}
		course[workoutID] = workout
	}
	workout[exerciseID] = reps
}

// Clone returns a deep copy.
func (p ProgressMap) Clone() ProgressMap {
	out := make(ProgressMap, len(p))
	for courseID, course := range p {
		c := make(CourseProgress, len(course))
		for workoutID, reps := range course {
			r := make(ExerciseReps, len(reps))
			for exerciseID, n := range reps {
				r[exerciseID] = n
			}
			c[workoutID] = r
		}
		out[courseID] = c
	}
	return out
}

// Snapshot is the full enrollment + progress state of one user at one revision.
// It is the unit of caching and reconciliation.
type Snapshot struct {
	UserID    string           `json:"userId"`
	Courses   []EnrolledCourse `json:"courses"`
	Progress  ProgressMap      `json:"progress"`
	Revision  Revision         `json:"revision"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

// EmptySnapshot returns the state of a freshly initialized user document.
func EmptySnapshot(userID string) Snapshot {
	return Snapshot{
		UserID:   userID,
		Courses:  []EnrolledCourse{},
		Progress: ProgressMap{},
	}
}

// Enrolled returns the enrolled course entry for courseID.
func (s Snapshot) Enrolled(courseID string) (EnrolledCourse, bool) {
	for _, c := range s.Courses {
		if c.CourseID == courseID {
			return c, true
		}
	}
	return EnrolledCourse{}, false
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Courses = append([]EnrolledCourse(nil), s.Courses...)
	if out.Courses == nil {
		out.Courses = []EnrolledCourse{}
	}
	out.Progress = s.Progress.Clone()
	return out
}

// DedupeCourses keeps the first entry per course id, preserving order.
func DedupeCourses(courses []EnrolledCourse) []EnrolledCourse {
	seen := make(map[string]bool, len(courses))
	out := make([]EnrolledCourse, 0, len(courses))
	for _, c := range courses {
		if seen[c.CourseID] {
			continue
		}
		seen[c.CourseID] = true
		out = append(out, c)
	}
	return out
}
