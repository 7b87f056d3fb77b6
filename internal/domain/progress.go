package domain

// SyncState is the sync engine's lifecycle state
type SyncState int

const (
	StateUnauthenticated SyncState = iota
	StateInitializing
	StateLive
	StateOffline
	StateDisposed
)

// String returns a human-readable representation of the state
func (s SyncState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateInitializing:
		return "initializing"
	case StateLive:
		return "live"
	case StateOffline:
		return "offline"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// WorkoutSummary is the derived progress of one workout.
type WorkoutSummary struct {
	WorkoutID string `json:"workoutId"`
	Name      string `json:"name"`
	Percent   int    `json:"percent"`
	Complete  bool   `json:"complete"`
}

// CourseSummary is the derived progress of one enrolled course.
type CourseSummary struct {
	CourseID string           `json:"courseId"`
	Name     string           `json:"name"`
	Percent  int              `json:"percent"`
	Workouts []WorkoutSummary `json:"workouts"`
}
