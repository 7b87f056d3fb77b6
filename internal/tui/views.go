package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fitpro/fitsync/internal/progress"
	"github.com/fitpro/fitsync/internal/tui/styles"
)

const minColumnWidth = 24

// View renders the dashboard
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	if m.State == StateHelp {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(),
			"",
			m.help.FullHelpView(Keys.FullHelp()),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderColumns(),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	user := m.Current.UserID
	if user == "" {
		user = "not signed in"
	}
	parts := []string{
		styles.TitleStyle.Render("fitsync"),
		styles.SubtitleStyle.Render(user),
		m.stateBadge(),
		styles.DimStyle.Render(fmt.Sprintf("rev %d", m.Current.Revision)),
	}
	if m.Current.Stale && !m.Current.Offline {
		parts = append(parts, styles.WarningStyle.Render("cached"))
	}
	if s := m.Spinner(); s != "" {
		parts = append(parts, styles.AccentStyle.Render(s))
	}
	header := strings.Join(parts, "  ")
	if m.Current.Err != nil {
		header += "\n" + styles.ErrorStyle.Render(m.Current.Err.Error())
	}
	return header
}

func (m Model) columnSize() (width, height int) {
	width = max(minColumnWidth, m.Width/3-2)
	height = max(3, m.Height-6)
	return width, height
}

func (m Model) renderColumns() string {
	width, height := m.columnSize()
	cols := []string{
		m.renderColumn(ColumnCourses, "Courses", m.courseRows(width), width, height),
		m.renderColumn(ColumnWorkouts, "Workouts", m.workoutRows(width), width, height),
		m.renderColumn(ColumnExercises, "Exercises", m.exerciseRows(width), width, height),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) renderColumn(col Column, title string, rows []string, width, height int) string {
	style := styles.InactiveBorder
	if m.Focus == col {
		style = styles.ActiveBorder
	}

	// Keep the cursor in view
	visible := height - 2
	offset := 0
	if cur := m.cursors[col]; cur >= visible {
		offset = cur - visible + 1
	}
	end := min(len(rows), offset+visible)

	lines := []string{styles.TitleStyle.Render(title), ""}
	if offset < end {
		lines = append(lines, rows[offset:end]...)
	} else if len(rows) == 0 {
		lines = append(lines, styles.DimStyle.Render("nothing here"))
	}
	return style.Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

// row renders one line; callers truncate the text parts
func (m Model) row(col Column, i int, text string, width int) string {
	if i == m.cursors[col] && m.Focus == col {
		return styles.SelectedItemStyle.Width(width).Render(text)
	}
	return styles.NormalItemStyle.Render(text)
}

func (m Model) courseRows(width int) []string {
	visible := m.visibleCourses()
	rows := make([]string, 0, len(visible))
	for i, idx := range visible {
		c := m.courses[idx]
		prefix := "   "
		suffix := ""
		if m.Current.Enrolled(c.ID) {
			pct := progress.CoursePercent(c, m.catalog, m.Current.Progress[c.ID])
			prefix = styles.RenderCompletion(pct) + "  "
			suffix = " " + percentLabel(pct)
		}
		name := styles.Truncate(c.Name, width-12)
		if hl, ok := m.highlights[idx]; ok {
			name = styles.HighlightMatches(name, hl, lipgloss.NewStyle())
		}
		rows = append(rows, m.row(ColumnCourses, i, prefix+name+suffix, width))
	}
	return rows
}

func (m Model) workoutRows(width int) []string {
	course, ok := m.SelectedCourse()
	if !ok {
		return nil
	}
	enrolled := m.Current.Enrolled(course.ID)
	done := m.Current.Progress[course.ID]

	var rows []string
	for i, w := range m.workouts() {
		text := styles.Truncate(w.Name, width-4)
		if enrolled {
			pct := progress.WorkoutPercent(w, done[w.ID])
			text = fmt.Sprintf("%s %s %s", styles.RenderCompletion(pct), m.bar.ViewAs(float64(pct)/100), styles.Truncate(w.Name, width-20))
		}
		rows = append(rows, m.row(ColumnWorkouts, i, text, width))
	}
	return rows
}

func (m Model) exerciseRows(width int) []string {
	course, ok := m.SelectedCourse()
	if !ok {
		return nil
	}
	w, ok := m.SelectedWorkout()
	if !ok {
		return nil
	}
	enrolled := m.Current.Enrolled(course.ID)

	var rows []string
	for i, ex := range w.Exercises {
		count := fmt.Sprintf("  -/%d", ex.TargetReps)
		if enrolled {
			count = fmt.Sprintf("%3d/%d", m.Current.Progress.Reps(course.ID, w.ID, ex.ID), ex.TargetReps)
		}
		text := fmt.Sprintf("%s %s", count, styles.Truncate(ex.Name, width-12))
		rows = append(rows, m.row(ColumnExercises, i, text, width))
	}
	return rows
}

func (m Model) renderFooter() string {
	var lines []string

	switch m.State {
	case StateFiltering:
		lines = append(lines, m.filterInput.View())
	case StateConfirmUnenroll:
		course, _ := m.SelectedCourse()
		lines = append(lines, styles.WarningStyle.Render(
			fmt.Sprintf("Leave %s and delete its progress? (y/n)", course.Name)))
	default:
		if m.filtered != nil {
			lines = append(lines, styles.DimStyle.Render("filter: "+m.filterInput.Value()+"  (esc to clear)"))
		}
	}

	if m.StatusMsg != "" {
		style := styles.SuccessStyle
		if m.StatusIsErr {
			style = styles.ErrorStyle
		}
		lines = append(lines, style.Render(m.StatusMsg))
	}
	lines = append(lines, m.help.ShortHelpView(Keys.ShortHelp()))
	return strings.Join(lines, "\n")
}
