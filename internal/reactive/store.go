// Package reactive holds the in-memory state the UI reads: the current user's
// enrolled courses, progress and sync status.
//
// Reads go through Store; writes go through the single Writer returned by New,
// which is handed to the sync engine.
package reactive

import (
	"sync"
	"time"

	"github.com/fitpro/fitsync/internal/domain"
)

// View is an immutable copy of the reactive state.
type View struct {
	UserID   string
	State    domain.SyncState
	Courses  []domain.EnrolledCourse
	Progress domain.ProgressMap
	Revision domain.Revision

	Offline      bool  // connectivity lost, values may be out of date
	Stale        bool  // values came from the local cache, not the remote store
	NoCachedData bool  // offline start with nothing cached
	Err          error // last hard error, cleared by the next successful update

	UpdatedAt time.Time
}

// Snapshot returns the enrollment and progress part of the view.
func (v View) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		UserID:    v.UserID,
		Courses:   v.Courses,
		Progress:  v.Progress,
		Revision:  v.Revision,
		FetchedAt: v.UpdatedAt,
	}.Clone()
}

// Enrolled reports whether courseID is in the enrolled set.
func (v View) Enrolled(courseID string) bool {
	for _, c := range v.Courses {
		if c.CourseID == courseID {
			return true
		}
	}
	return false
}

func (v View) clone() View {
	out := v
	out.Courses = append([]domain.EnrolledCourse(nil), v.Courses...)
	out.Progress = v.Progress.Clone()
	return out
}

// Store is the read side of the reactive state.
type Store struct {
	// writeMu serializes writes together with their notifications so
	// watchers observe changes in the order they were made
	writeMu sync.Mutex

	mu       sync.RWMutex
	view     View
	watchers map[int]func(View)
	nextID   int

	now func() time.Time
}

// New creates an empty store and its single writer.
func New() (*Store, *Writer) {
	s := &Store{
		view:     emptyView(""),
		watchers: make(map[int]func(View)),
		now:      time.Now,
	}
	return s, &Writer{s: s}
}

func emptyView(userID string) View {
	return View{
		UserID:   userID,
		State:    domain.StateUnauthenticated,
		Courses:  []domain.EnrolledCourse{},
		Progress: domain.ProgressMap{},
	}
}

// Current returns a copy of the current state.
func (s *Store) Current() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.clone()
}

// Watch calls fn with the current state and after every change until cancel
// is called. fn runs on the writer's goroutine and must not block.
func (s *Store) Watch(fn func(View)) (cancel func()) {
	s.writeMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	current := s.view.clone()
	s.mu.Unlock()
	fn(current)
	s.writeMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// update applies fn under the write lock and notifies watchers if fn reports
// a change.
func (s *Store) update(fn func(v *View) bool) (View, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next := s.view.clone()
	if !fn(&next) {
		s.mu.Unlock()
		return View{}, false
	}
	next.UpdatedAt = s.now()
	s.view = next
	watchers := make([]func(View), 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w(next.clone())
	}
	return next.clone(), true
}
