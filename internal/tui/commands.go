package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fitpro/fitsync/internal/domain"
)

// Engine is the part of the sync engine the dashboard drives.
type Engine interface {
	Enroll(ctx context.Context, courseID string) error
	Unenroll(ctx context.Context, courseID string) error
	RecordProgress(ctx context.Context, courseID, workoutID, exerciseID string, reps int) (int, error)
	Refresh(ctx context.Context) error
}

// Connectivity switches between working online and offline.
type Connectivity interface {
	ForcedOffline() bool
	SetForcedOffline(offline bool) error
}

// opContext bounds one engine call. Zero timeout means no deadline.
func opContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

// EnrollCmd enrolls in a course
func EnrollCmd(engine Engine, timeout time.Duration, courseID, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		err := engine.Enroll(ctx, courseID)
		return OpDoneMsg{Op: "enroll", Message: fmt.Sprintf("Enrolled in %s", name), Err: err}
	}
}

// UnenrollCmd leaves a course
func UnenrollCmd(engine Engine, timeout time.Duration, courseID, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		err := engine.Unenroll(ctx, courseID)
		return OpDoneMsg{Op: "unenroll", Message: fmt.Sprintf("Left %s", name), Err: err}
	}
}

// RecordCmd stores reps for one exercise
func RecordCmd(engine Engine, timeout time.Duration, courseID, workoutID string, ex domain.Exercise, reps int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		stored, err := engine.RecordProgress(ctx, courseID, workoutID, ex.ID, reps)
		return OpDoneMsg{Op: "record", Message: fmt.Sprintf("%s: %d/%d", ex.Name, stored, ex.TargetReps), Err: err}
	}
}

// RefreshCmd re-reads the user document
func RefreshCmd(engine Engine, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		return OpDoneMsg{Op: "refresh", Message: "Refreshed", Err: engine.Refresh(ctx)}
	}
}

// ToggleOnlineCmd flips the forced-offline switch
func ToggleOnlineCmd(conn Connectivity) tea.Cmd {
	return func() tea.Msg {
		offline := !conn.ForcedOffline()
		msg := "Back online"
		if offline {
			msg = "Working offline"
		}
		return OpDoneMsg{Op: "connectivity", Message: msg, Err: conn.SetForcedOffline(offline)}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
