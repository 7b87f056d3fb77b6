package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// handleKeyMsg handles keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.State {
	case StateHelp:
		if key.Matches(msg, Keys.Escape, Keys.Help, Keys.Quit) {
			m.State = StateBrowsing
		}
		return m, nil

	case StateConfirmUnenroll:
		switch {
		case key.Matches(msg, Keys.Confirm):
			m.State = StateBrowsing
			course, ok := m.SelectedCourse()
			if !ok {
				return m, nil
			}
			m.Busy++
			return m, UnenrollCmd(m.engine, m.timeout, course.ID, course.Name)
		case key.Matches(msg, Keys.Deny):
			m.State = StateBrowsing
		}
		return m, nil

	case StateFiltering:
		switch msg.Type {
		case tea.KeyEsc:
			m.clearFilter()
			return m, nil
		case tea.KeyEnter:
			m.State = StateBrowsing
			m.filterInput.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.State = StateHelp
		return m, nil

	case key.Matches(msg, Keys.Escape):
		if m.filtered != nil {
			m.clearFilter()
		}
		return m, nil

	case key.Matches(msg, Keys.Filter):
		m.State = StateFiltering
		m.Focus = ColumnCourses
		return m, m.filterInput.Focus()

	case key.Matches(msg, Keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, Keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, Keys.Home):
		m.moveCursor(-m.rows())
	case key.Matches(msg, Keys.End):
		m.moveCursor(m.rows())

	case key.Matches(msg, Keys.Right):
		if m.Focus < ColumnExercises && m.childCount() > 0 {
			m.Focus++
			m.cursors[m.Focus] = 0
		}
	case key.Matches(msg, Keys.Left):
		if m.Focus > ColumnCourses {
			m.Focus--
		}

	case key.Matches(msg, Keys.Refresh):
		m.Busy++
		return m, RefreshCmd(m.engine, m.timeout)

	case key.Matches(msg, Keys.ToggleOnline):
		if m.conn == nil {
			return m, nil
		}
		m.Busy++
		return m, ToggleOnlineCmd(m.conn)

	case key.Matches(msg, Keys.Enroll):
		course, ok := m.SelectedCourse()
		if !ok {
			return m, nil
		}
		m.Busy++
		return m, EnrollCmd(m.engine, m.timeout, course.ID, course.Name)

	case key.Matches(msg, Keys.Unenroll):
		course, ok := m.SelectedCourse()
		if !ok || !m.Current.Enrolled(course.ID) {
			return m, nil
		}
		m.State = StateConfirmUnenroll
		return m, nil

	case key.Matches(msg, Keys.Increment):
		return m.record(func(cur, target int) int { return cur + 1 })
	case key.Matches(msg, Keys.Decrement):
		return m.record(func(cur, target int) int { return cur - 1 })
	case key.Matches(msg, Keys.Complete):
		return m.record(func(cur, target int) int { return target })
	case key.Matches(msg, Keys.Reset):
		return m.record(func(cur, target int) int { return 0 })
	}

	return m, nil
}

// record stores next(current, target) for the selected exercise.
func (m Model) record(next func(cur, target int) int) (tea.Model, tea.Cmd) {
	if m.Focus != ColumnExercises {
		return m, nil
	}
	course, ok := m.SelectedCourse()
	if !ok {
		return m, nil
	}
	if !m.Current.Enrolled(course.ID) {
		m.StatusMsg, m.StatusIsErr = "Enroll first (e)", true
		return m, ClearStatusCmd(3 * time.Second)
	}
	workout, ok := m.SelectedWorkout()
	if !ok {
		return m, nil
	}
	ex, ok := m.SelectedExercise()
	if !ok {
		return m, nil
	}

	cur := m.Current.Progress.Reps(course.ID, workout.ID, ex.ID)
	reps := next(cur, ex.TargetReps)
	if reps == cur || reps < 0 || reps > ex.TargetReps {
		return m, nil
	}
	m.Busy++
	return m, RecordCmd(m.engine, m.timeout, course.ID, workout.ID, ex, reps)
}
