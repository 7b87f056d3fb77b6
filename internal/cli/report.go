package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fitpro/fitsync/internal/catalog"
	"github.com/fitpro/fitsync/internal/domain"
	"github.com/fitpro/fitsync/internal/progress"
	"github.com/fitpro/fitsync/internal/reactive"
)

// StatusReport is the rendered state of the signed-in user.
type StatusReport struct {
	UserID       string         `json:"userId"`
	State        string         `json:"state"`
	Revision     int64          `json:"revision"`
	Offline      bool           `json:"offline"`
	Stale        bool           `json:"stale"`
	NoCachedData bool           `json:"noCachedData,omitempty"`
	Error        string         `json:"error,omitempty"`
	Courses      []CourseReport `json:"courses"`

	detail bool
}

// CourseReport is one enrolled course with derived progress.
type CourseReport struct {
	CourseID   string          `json:"courseId"`
	Name       string          `json:"name"`
	Percent    int             `json:"percent"`
	EnrolledAt time.Time       `json:"enrolledAt"`
	Workouts   []WorkoutReport `json:"workouts"`
}

// WorkoutReport is one workout of an enrolled course.
type WorkoutReport struct {
	domain.WorkoutSummary
	Exercises []ExerciseReport `json:"exercises"`
}

// ExerciseReport is the recorded reps of one exercise.
type ExerciseReport struct {
	ExerciseID string `json:"exerciseId"`
	Name       string `json:"name"`
	Done       int    `json:"done"`
	Target     int    `json:"target"`
}

// NewStatusReport derives the report for view. Courses missing from the
// catalog keep their stored name and report no workouts.
func NewStatusReport(view reactive.View, cat *catalog.Catalog, detail bool) StatusReport {
	r := StatusReport{
		UserID:       view.UserID,
		State:        view.State.String(),
		Revision:     int64(view.Revision),
		Offline:      view.Offline,
		Stale:        view.Stale,
		NoCachedData: view.NoCachedData,
		Courses:      make([]CourseReport, 0, len(view.Courses)),
		detail:       detail,
	}
	if view.Err != nil {
		r.Error = view.Err.Error()
	}

	for _, entry := range view.Courses {
		cr := CourseReport{
			CourseID:   entry.CourseID,
			Name:       entry.Name,
			EnrolledAt: entry.EnrolledAt,
			Workouts:   []WorkoutReport{},
		}
		course, ok := cat.Course(entry.CourseID)
		if !ok {
			r.Courses = append(r.Courses, cr)
			continue
		}

		done := view.Progress[entry.CourseID]
		summary := progress.Summarize(course, cat, done)
		cr.Name = course.Name
		cr.Percent = summary.Percent
		for _, ws := range summary.Workouts {
			wr := WorkoutReport{WorkoutSummary: ws, Exercises: []ExerciseReport{}}
			if w, ok := cat.Workout(ws.WorkoutID); ok {
				for _, ex := range w.Exercises {
					wr.Exercises = append(wr.Exercises, ExerciseReport{
						ExerciseID: ex.ID,
						Name:       ex.Name,
						Done:       progress.ClampReps(done[w.ID][ex.ID], ex.TargetReps),
						Target:     ex.TargetReps,
					})
				}
			}
			cr.Workouts = append(cr.Workouts, wr)
		}
		r.Courses = append(r.Courses, cr)
	}
	return r
}

// String renders the report as text.
func (r StatusReport) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "User: %s (%s, revision %d)\n", r.UserID, r.State, r.Revision)
	switch {
	case r.NoCachedData:
		b.WriteString("Offline: no cached data available\n")
	case r.Offline:
		b.WriteString("Offline: showing cached data\n")
	case r.Stale:
		b.WriteString("Showing cached data\n")
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}

	if len(r.Courses) == 0 {
		b.WriteString("\nNot enrolled in any course.\n")
		return b.String()
	}

	for _, c := range r.Courses {
		fmt.Fprintf(&b, "\n%-32s %3d%%  %s\n", c.Name+" ("+c.CourseID+")", c.Percent, c.EnrolledAt.UTC().Format("2006-01-02"))
		for _, w := range c.Workouts {
			mark := " "
			if w.Complete {
				mark = "✓"
			}
			fmt.Fprintf(&b, "  %s %-28s %3d%%\n", mark, w.Name, w.Percent)
			if !r.detail {
				continue
			}
			for _, ex := range w.Exercises {
				fmt.Fprintf(&b, "      %-24s %d/%d  [%s]\n", ex.Name, ex.Done, ex.Target, ex.ExerciseID)
			}
		}
	}
	return b.String()
}

// CourseListing is one catalog course in "courses" output.
type CourseListing struct {
	CourseID    string `json:"courseId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Workouts    int    `json:"workouts"`
	Enrolled    bool   `json:"enrolled"`
}

// CourseList is the output of the courses command.
type CourseList struct {
	Query   string          `json:"query,omitempty"`
	Stale   bool            `json:"stale"`
	Courses []CourseListing `json:"courses"`
}

// NewCourseList lists the catalog, or the courses matching query best first.
func NewCourseList(cat *catalog.Catalog, view reactive.View, query string, stale bool) CourseList {
	var courses []domain.Course
	if query == "" {
		courses = cat.Courses()
	} else {
		for _, m := range cat.Search(query) {
			courses = append(courses, m.Course)
		}
	}

	list := CourseList{Query: query, Stale: stale, Courses: make([]CourseListing, 0, len(courses))}
	for _, c := range courses {
		list.Courses = append(list.Courses, CourseListing{
			CourseID:    c.ID,
			Name:        c.Name,
			Description: c.Description,
			Workouts:    len(c.WorkoutIDs),
			Enrolled:    view.Enrolled(c.ID),
		})
	}
	return list
}

func (l CourseList) String() string {
	if len(l.Courses) == 0 {
		if l.Query != "" {
			return fmt.Sprintf("No courses match %q.\n", l.Query)
		}
		return "The catalog is empty.\n"
	}

	var b strings.Builder
	if l.Stale {
		b.WriteString("Catalog loaded from local copy\n")
	}
	for _, c := range l.Courses {
		mark := " "
		if c.Enrolled {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s %-16s %-32s %d workouts\n", mark, c.CourseID, c.Name, c.Workouts)
	}
	return b.String()
}

// RecordResult is the output of the record command.
type RecordResult struct {
	CourseID       string `json:"courseId"`
	WorkoutID      string `json:"workoutId"`
	ExerciseID     string `json:"exerciseId"`
	Requested      int    `json:"requested"`
	Reps           int    `json:"reps"`
	Target         int    `json:"target"`
	WorkoutPercent int    `json:"workoutPercent"`
	CoursePercent  int    `json:"coursePercent"`
}

func (r RecordResult) String() string {
	s := fmt.Sprintf("Recorded %d/%d reps for %s/%s/%s\n", r.Reps, r.Target, r.CourseID, r.WorkoutID, r.ExerciseID)
	if r.Reps != r.Requested {
		s += fmt.Sprintf("Requested %d, clamped to %d\n", r.Requested, r.Reps)
	}
	return s + fmt.Sprintf("Workout %d%%, course %d%%\n", r.WorkoutPercent, r.CoursePercent)
}

// Message is a plain confirmation.
type Message struct {
	Message string `json:"message"`
}

func (m Message) String() string {
	return m.Message + "\n"
}
