package reactive

import (
	"github.com/fitpro/fitsync/internal/domain"
)

// Writer is the only way to change a Store.
type Writer struct {
	s *Store
}

// Reset discards all state and starts over for userID.
func (w *Writer) Reset(userID string, state domain.SyncState) {
	w.s.update(func(v *View) bool {
		*v = emptyView(userID)
		v.State = state
		return true
	})
}

// SetState records a lifecycle transition. Offline follows the state.
func (w *Writer) SetState(state domain.SyncState) {
	w.s.update(func(v *View) bool {
		if v.State == state {
			return false
		}
		v.State = state
		v.Offline = state == domain.StateOffline
		return true
	})
}

// SetError records a hard error without touching the values.
func (w *Writer) SetError(err error) {
	w.s.update(func(v *View) bool {
		v.Err = err
		return true
	})
}

// MarkNoCachedData flags an offline start with nothing to show.
func (w *Writer) MarkNoCachedData() {
	w.s.update(func(v *View) bool {
		v.NoCachedData = true
		v.Stale = false
		return true
	})
}

// ApplySnapshot replaces courses and progress with snap. A snapshot older than
// the current revision of the same user is ignored so the view never regresses.
// stale marks values that came from the local cache.
func (w *Writer) ApplySnapshot(snap domain.Snapshot, stale bool) (View, bool) {
	return w.s.update(func(v *View) bool {
		if v.UserID != "" && v.UserID != snap.UserID {
			return false
		}
		if snap.Revision < v.Revision {
			return false
		}
		snap = snap.Clone()
		v.UserID = snap.UserID
		v.Courses = domain.DedupeCourses(snap.Courses)
		v.Progress = snap.Progress
		v.Revision = snap.Revision
		v.Stale = stale
		v.NoCachedData = false
		if !stale {
			v.Err = nil
		}
		return true
	})
}

// Mutate applies a confirmed change on top of the current values and tags the
// result with rev. It is skipped when the view already reflects a later
// revision. The returned snapshot is what should be cached.
func (w *Writer) Mutate(rev domain.Revision, fn func(snap *domain.Snapshot)) (domain.Snapshot, bool) {
	view, ok := w.s.update(func(v *View) bool {
		if rev < v.Revision {
			return false
		}
		snap := v.Snapshot()
		fn(&snap)
		v.Courses = domain.DedupeCourses(snap.Courses)
		v.Progress = snap.Progress
		v.Revision = rev
		v.Err = nil
		return true
	})
	if !ok {
		return domain.Snapshot{}, false
	}
	return view.Snapshot(), true
}

// Current returns a copy of the current state.
func (w *Writer) Current() View {
	return w.s.Current()
}
