// Package tui is the terminal dashboard: a three-column browser over the
// course catalog (courses, workouts, exercises) that renders the reactive
// store and drives the sync engine.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/fitpro/fitsync/internal/catalog"
	"github.com/fitpro/fitsync/internal/domain"
	"github.com/fitpro/fitsync/internal/reactive"
	"github.com/fitpro/fitsync/internal/tui/styles"
)

// ApplicationState represents the current UI state
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateFiltering
	StateHelp
	StateConfirmUnenroll
)

// Column identifies one of the three browser columns
type Column int

const (
	ColumnCourses Column = iota
	ColumnWorkouts
	ColumnExercises
)

// Model is the main Bubble Tea model for the dashboard
type Model struct {
	State ApplicationState
	Ready bool

	// Collaborators
	engine   Engine
	conn     Connectivity
	catalog  *catalog.Catalog
	observer *ChannelObserver
	timeout  time.Duration

	// Data
	Current reactive.View
	courses []domain.Course

	// Navigation
	Focus   Column
	cursors [3]int

	// Filter over course names; nil filtered means no filter
	filterInput textinput.Model
	filtered    []int
	highlights  map[int][]int // course index -> matched rune positions

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg    string
	StatusIsErr  bool
	Busy         int
	SpinnerFrame int

	bar  progress.Model
	help help.Model
}

// NewModel creates a dashboard model. observer may be nil in tests.
func NewModel(engine Engine, conn Connectivity, cat *catalog.Catalog, observer *ChannelObserver, timeout time.Duration) Model {
	input := textinput.New()
	input.Prompt = styles.FilterPromptStyle.Render("/ ")
	input.Placeholder = "filter courses"

	return Model{
		State:       StateBrowsing,
		engine:      engine,
		conn:        conn,
		catalog:     cat,
		observer:    observer,
		timeout:     timeout,
		courses:     cat.Courses(),
		filterInput: input,
		bar: progress.New(
			progress.WithSolidFill(string(styles.Accent)),
			progress.WithoutPercentage(),
			progress.WithWidth(12),
		),
		help: help.New(),
	}
}

// Init initializes the dashboard
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{TickCmd(100 * time.Millisecond)}
	if m.observer != nil {
		cmds = append(cmds, m.observer.Next())
	}
	return tea.Batch(cmds...)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case ViewMsg:
		m.Current = msg.View
		m.clampCursors()
		if m.observer != nil {
			return m, m.observer.Next()
		}
		return m, nil

	case OpDoneMsg:
		if m.Busy > 0 {
			m.Busy--
		}
		m.setStatus(msg)
		return m, ClearStatusCmd(3 * time.Second)

	case TickMsg:
		m.SpinnerFrame++
		return m, TickCmd(100 * time.Millisecond)

	case ClearStatusMsg:
		if m.Busy == 0 {
			m.StatusMsg = ""
			m.StatusIsErr = false
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) setStatus(msg OpDoneMsg) {
	switch {
	case msg.Err == nil:
		m.StatusMsg, m.StatusIsErr = msg.Message, false
	case domain.IsNotice(msg.Err):
		m.StatusMsg, m.StatusIsErr = noticeText(msg.Err), false
	case domain.IsRetryable(msg.Err):
		m.StatusMsg, m.StatusIsErr = "Offline: "+msg.Op+" not saved, try again later", true
	case errors.Is(msg.Err, domain.ErrConflict):
		m.StatusMsg, m.StatusIsErr = "Changed elsewhere, reloaded. Try again", true
	case errors.Is(msg.Err, domain.ErrAccessDenied):
		m.StatusMsg, m.StatusIsErr = "Access denied", true
	default:
		m.StatusMsg, m.StatusIsErr = msg.Err.Error(), true
	}
}

func noticeText(err error) string {
	if errors.Is(err, domain.ErrAlreadyEnrolled) {
		return "Already enrolled"
	}
	return "Not enrolled"
}

// visibleCourses returns indexes into m.courses after filtering
func (m Model) visibleCourses() []int {
	if m.filtered != nil {
		return m.filtered
	}
	idx := make([]int, len(m.courses))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// SelectedCourse returns the course under the course cursor
func (m Model) SelectedCourse() (domain.Course, bool) {
	visible := m.visibleCourses()
	i := m.cursors[ColumnCourses]
	if i < 0 || i >= len(visible) {
		return domain.Course{}, false
	}
	return m.courses[visible[i]], true
}

func (m Model) workouts() []domain.Workout {
	course, ok := m.SelectedCourse()
	if !ok {
		return nil
	}
	return m.catalog.Workouts(course.ID)
}

// SelectedWorkout returns the workout under the workout cursor
func (m Model) SelectedWorkout() (domain.Workout, bool) {
	ws := m.workouts()
	i := m.cursors[ColumnWorkouts]
	if i < 0 || i >= len(ws) {
		return domain.Workout{}, false
	}
	return ws[i], true
}

// SelectedExercise returns the exercise under the exercise cursor
func (m Model) SelectedExercise() (domain.Exercise, bool) {
	w, ok := m.SelectedWorkout()
	if !ok {
		return domain.Exercise{}, false
	}
	i := m.cursors[ColumnExercises]
	if i < 0 || i >= len(w.Exercises) {
		return domain.Exercise{}, false
	}
	return w.Exercises[i], true
}

// rows returns the number of rows in the focused column
func (m Model) rows() int {
	switch m.Focus {
	case ColumnWorkouts:
		return len(m.workouts())
	case ColumnExercises:
		w, _ := m.SelectedWorkout()
		return len(w.Exercises)
	default:
		return len(m.visibleCourses())
	}
}

// childCount returns the number of rows the next column would show
func (m Model) childCount() int {
	switch m.Focus {
	case ColumnCourses:
		return len(m.workouts())
	case ColumnWorkouts:
		w, _ := m.SelectedWorkout()
		return len(w.Exercises)
	default:
		return 0
	}
}

func (m *Model) moveCursor(delta int) {
	n := m.rows()
	if n == 0 {
		return
	}
	c := m.cursors[m.Focus] + delta
	c = max(0, min(c, n-1))
	if c != m.cursors[m.Focus] {
		m.cursors[m.Focus] = c
		// children follow the new parent
		for col := m.Focus + 1; col <= ColumnExercises; col++ {
			m.cursors[col] = 0
		}
	}
}

func (m *Model) clampCursors() {
	focus := m.Focus
	for col := ColumnCourses; col <= ColumnExercises; col++ {
		m.Focus = col
		if n := m.rows(); m.cursors[col] >= n {
			m.cursors[col] = max(0, n-1)
		}
	}
	m.Focus = focus
}

// filterIndex implements sahilm/fuzzy.Source over lowercase course names
type filterIndex struct {
	lowerNames []string
}

func (idx filterIndex) String(i int) string { return idx.lowerNames[i] }
func (idx filterIndex) Len() int            { return len(idx.lowerNames) }

func (m *Model) applyFilter() {
	query := strings.TrimSpace(m.filterInput.Value())
	if query == "" {
		m.filtered = nil
		m.highlights = nil
		return
	}

	idx := filterIndex{lowerNames: make([]string, len(m.courses))}
	for i, c := range m.courses {
		idx.lowerNames[i] = strings.ToLower(c.Name)
	}
	matches := fuzzy.FindFrom(strings.ToLower(query), idx)

	m.filtered = make([]int, len(matches))
	m.highlights = make(map[int][]int, len(matches))
	for i, match := range matches {
		m.filtered[i] = match.Index
		m.highlights[match.Index] = runePositions(match.Str, match.MatchedIndexes)
	}

	// Reset cursor to first match
	m.cursors = [3]int{}
}

func (m *Model) clearFilter() {
	m.State = StateBrowsing
	m.filterInput.SetValue("")
	m.filterInput.Blur()
	m.filtered = nil
	m.highlights = nil
	m.cursors = [3]int{}
}

// runePositions converts byte offsets from fuzzy matching to rune positions
func runePositions(s string, byteIdx []int) []int {
	out := make([]int, 0, len(byteIdx))
	for _, b := range byteIdx {
		if b <= len(s) {
			out = append(out, utf8.RuneCountInString(s[:b]))
		}
	}
	return out
}

// Spinner returns the current spinner frame, empty when idle
func (m Model) Spinner() string {
	if m.Busy == 0 {
		return ""
	}
	return styles.SpinnerFrames[m.SpinnerFrame%len(styles.SpinnerFrames)]
}

func (m Model) stateBadge() string {
	switch {
	case m.Current.NoCachedData:
		return styles.OfflineBadge.Render("OFFLINE · NO DATA")
	case m.Current.Offline:
		return styles.OfflineBadge.Render("OFFLINE")
	case m.Current.State == domain.StateLive:
		return styles.LiveBadge.Render("LIVE")
	default:
		return styles.DimBadge.Render(strings.ToUpper(m.Current.State.String()))
	}
}

func percentLabel(p int) string {
	return fmt.Sprintf("%3d%%", p)
}
