// Package progress computes completion percentages from raw exercise reps.
// Everything here is pure: no I/O, no state, absent progress counts as zero.
package progress

import "github.com/fitpro/fitsync/internal/domain"

// WorkoutLookup resolves workout ids to catalog definitions.
type WorkoutLookup interface {
	Workout(id string) (domain.Workout, bool)
}

// WorkoutPercent returns round(100 * completed / target) across the workout's
// exercises. A workout without exercises (or with zero total target) is 0.
func WorkoutPercent(w domain.Workout, done domain.ExerciseReps) int {
	var completed, target int
	for _, ex := range w.Exercises {
		if ex.TargetReps <= 0 {
			continue
		}
		target += ex.TargetReps
		completed += clamp(done[ex.ID], 0, ex.TargetReps)
	}
	return percent(completed, target)
}

// IsWorkoutComplete reports completion. Only exactly 100 counts.
func IsWorkoutComplete(workoutPercent int) bool {
	return workoutPercent == 100
}

// CoursePercent returns round(100 * completeWorkouts / totalWorkouts).
// Workouts the lookup cannot resolve stay in the denominator as incomplete.
func CoursePercent(c domain.Course, workouts WorkoutLookup, done domain.CourseProgress) int {
	if len(c.WorkoutIDs) == 0 {
		return 0
	}
	complete := 0
	for _, id := range c.WorkoutIDs {
		w, ok := workouts.Workout(id)
		if !ok {
			continue
		}
		if IsWorkoutComplete(WorkoutPercent(w, done[id])) {
			complete++
		}
	}
	return percent(complete, len(c.WorkoutIDs))
}

// Summarize computes per-workout and course percentages in one pass.
func Summarize(c domain.Course, workouts WorkoutLookup, done domain.CourseProgress) domain.CourseSummary {
	summary := domain.CourseSummary{
		CourseID: c.ID,
		Name:     c.Name,
		Workouts: make([]domain.WorkoutSummary, 0, len(c.WorkoutIDs)),
	}
	complete := 0
	for _, id := range c.WorkoutIDs {
		ws := domain.WorkoutSummary{WorkoutID: id}
		if w, ok := workouts.Workout(id); ok {
			ws.Name = w.Name
			ws.Percent = WorkoutPercent(w, done[id])
			ws.Complete = IsWorkoutComplete(ws.Percent)
		}
		if ws.Complete {
			complete++
		}
		summary.Workouts = append(summary.Workouts, ws)
	}
	summary.Percent = percent(complete, len(c.WorkoutIDs))
	return summary
}

// ClampReps bounds reps to [0, target].
func ClampReps(reps, target int) int {
	return clamp(reps, 0, target)
}

// percent rounds half up on non-negative integers.
func percent(num, den int) int {
	if den <= 0 || num <= 0 {
		return 0
	}
	return (200*num + den) / (2 * den)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
