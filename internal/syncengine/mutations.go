package syncengine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fitpro/fitsync/internal/domain"
	"github.com/fitpro/fitsync/internal/progress"
	"github.com/fitpro/fitsync/internal/reactive"
)

// Enroll adds courseID to the user's enrolled set with an empty progress entry.
// Enrolling twice returns ErrAlreadyEnrolled and leaves progress untouched.
func (e *Engine) Enroll(ctx context.Context, courseID string) error {
	const op = "enroll"

	userID, err := e.session(op)
	if err != nil {
		return err
	}
	course, ok := e.catalog.Course(courseID)
	if !ok || !validKey(courseID) {
		return &domain.OpError{Op: op, UserID: userID, CourseID: courseID, Err: domain.ErrNotFound}
	}

	unlock := e.locks.Lock(userID)
	defer unlock()

	logger := e.opLogger(op, userID, courseID)
	entry := domain.EnrolledCourse{
		CourseID:   course.ID,
		Name:       course.Name,
		EnrolledAt: e.now().UTC(),
	}
	path := userPath(userID)

	rev, err := e.transact(ctx, func(ctx context.Context, tx domain.Txn) error {
		doc, err := tx.Get(path)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			fields := emptyDocumentFields()
			fields["courses"] = []any{courseEntry(entry)}
			fields["progress"] = map[string]any{courseID: map[string]any{}}
			tx.Set(path, fields)
			return nil
		}
		if err != nil {
			return err
		}
		if len(storedCourseEntries(doc, courseID)) > 0 {
			return domain.ErrAlreadyEnrolled
		}
		tx.Update(path, domain.Update{
			"courses":              domain.ArrayUnion{Values: []any{courseEntry(entry)}},
			progressPath(courseID): domain.SetValue{Value: map[string]any{}},
		})
		return nil
	})
	if err != nil {
		return e.fail(ctx, op, userID, courseID, err)
	}

	logger.Info("enrolled", "revision", rev)
	e.applyConfirmed(userID, rev, func(snap *domain.Snapshot) {
		if _, ok := snap.Enrolled(courseID); !ok {
			snap.Courses = append(snap.Courses, entry)
		}
		snap.Progress[courseID] = domain.CourseProgress{}
	})
	return nil
}

// Unenroll removes courseID and all of its progress in one commit.
func (e *Engine) Unenroll(ctx context.Context, courseID string) error {
	const op = "unenroll"

	userID, err := e.session(op)
	if err != nil {
		return err
	}
	if !validKey(courseID) {
		return &domain.OpError{Op: op, UserID: userID, CourseID: courseID, Err: domain.ErrNotEnrolled}
	}

	unlock := e.locks.Lock(userID)
	defer unlock()

	logger := e.opLogger(op, userID, courseID)
	path := userPath(userID)

	rev, err := e.transact(ctx, func(ctx context.Context, tx domain.Txn) error {
		doc, err := tx.Get(path)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return domain.ErrNotEnrolled
		}
		if err != nil {
			return err
		}
		stored := storedCourseEntries(doc, courseID)
		if len(stored) == 0 {
			return domain.ErrNotEnrolled
		}
		tx.Update(path, domain.Update{
			"courses":              domain.ArrayRemove{Values: stored},
			progressPath(courseID): domain.DeleteField{},
		})
		return nil
	})
	if err != nil {
		return e.fail(ctx, op, userID, courseID, err)
	}

	logger.Info("unenrolled", "revision", rev)
	e.applyConfirmed(userID, rev, func(snap *domain.Snapshot) {
		kept := snap.Courses[:0]
		for _, c := range snap.Courses {
			if c.CourseID != courseID {
				kept = append(kept, c)
			}
		}
		snap.Courses = kept
		delete(snap.Progress, courseID)
	})
	return nil
}

// RecordProgress stores reps for one exercise, clamped to [0, target], and
// returns the stored value. Recording the same value twice is idempotent.
func (e *Engine) RecordProgress(ctx context.Context, courseID, workoutID, exerciseID string, reps int) (int, error) {
	const op = "record"

	userID, err := e.session(op)
	if err != nil {
		return 0, err
	}
	notFound := &domain.OpError{Op: op, UserID: userID, CourseID: courseID, Err: domain.ErrNotFound}

	course, ok := e.catalog.Course(courseID)
	if !ok || !validKey(courseID) || !containsID(course.WorkoutIDs, workoutID) {
		return 0, notFound
	}
	workout, ok := e.catalog.Workout(workoutID)
	if !ok || !validKey(workoutID) {
		return 0, notFound
	}
	exercise, ok := workout.Exercise(exerciseID)
	if !ok || !validKey(exerciseID) {
		return 0, notFound
	}

	// enrollment is checked under the user lock so an unenroll in flight
	// cannot leave progress behind for a course that is gone
	unlock := e.locks.Lock(userID)
	defer unlock()
	if !e.writer.Current().Enrolled(courseID) {
		return 0, &domain.OpError{Op: op, UserID: userID, CourseID: courseID, Err: domain.ErrNotEnrolled}
	}

	stored := progress.ClampReps(reps, exercise.TargetReps)

	logger := e.opLogger(op, userID, courseID)

	rev, err := e.remote.AtomicUpdate(ctx, userPath(userID), domain.Update{
		progressPath(courseID, workoutID, exerciseID): domain.SetValue{Value: stored},
	})
	if err != nil {
		return 0, e.fail(ctx, op, userID, courseID, err)
	}

	logger.Info("recorded progress",
		"workoutID", workoutID,
		"exerciseID", exerciseID,
		"reps", stored,
		"requested", reps,
		"revision", rev)
	e.applyConfirmed(userID, rev, func(snap *domain.Snapshot) {
		snap.Progress.Set(courseID, workoutID, exerciseID, stored)
	})
	return stored, nil
}

// transact runs fn in a remote transaction, retrying on concurrent
// modification up to maxAttempts times.
func (e *Engine) transact(ctx context.Context, fn func(ctx context.Context, tx domain.Txn) error) (domain.Revision, error) {
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		var rev domain.Revision
		rev, err = e.remote.RunTransaction(ctx, fn)
		if !errors.Is(err, domain.ErrAborted) {
			return rev, err
		}
		e.logger.Debug("transaction aborted, retrying", "attempt", attempt)
	}
	return 0, errors.Join(domain.ErrConflict, err)
}

// fail classifies a mutation failure, applies its side effects on engine
// state and returns the error to surface.
func (e *Engine) fail(ctx context.Context, op, userID, courseID string, err error) error {
	opErr := &domain.OpError{Op: op, UserID: userID, CourseID: courseID, Err: err}

	switch {
	case domain.IsNotice(err), errors.Is(err, domain.ErrNotFound):
		e.logger.Info(op+" was a no-op", "userID", userID, "courseID", courseID, "reason", err)

	case domain.IsConnectivity(err):
		e.logger.Warn(op+" failed, remote unreachable", "userID", userID, "courseID", courseID, "error", err)
		e.mu.Lock()
		gen, current := e.gen, e.userID == userID && e.state != domain.StateOffline
		e.mu.Unlock()
		if current {
			e.goOffline(gen, userID, false, true)
		}
		opErr.Err = errors.Join(domain.ErrOffline, err)

	case errors.Is(err, domain.ErrPermissionDenied):
		e.logger.Warn(op+" denied", "userID", userID, "courseID", courseID, "error", err)
		e.publishUser(userID, func(w *reactive.Writer) { w.SetError(domain.ErrAccessDenied) })
		opErr.Err = errors.Join(domain.ErrAccessDenied, err)

	case errors.Is(err, domain.ErrConflict):
		e.logger.Warn(op+" conflicted, resyncing", "userID", userID, "courseID", courseID, "attempts", e.maxAttempts)
		if snap, ferr := e.fetch(ctx, userID); ferr == nil {
			e.publishSnapshot(userID, snap)
		} else {
			e.logger.Warn("resync after conflict failed", "userID", userID, "error", ferr)
		}

	default:
		e.logger.Error(op+" failed", "userID", userID, "courseID", courseID, "error", err)
		e.publishUser(userID, func(w *reactive.Writer) { w.SetError(err) })
	}
	return opErr
}

// applyConfirmed applies a committed change to the reactive store and cache.
func (e *Engine) applyConfirmed(userID string, rev domain.Revision, fn func(snap *domain.Snapshot)) {
	var (
		snap    domain.Snapshot
		applied bool
	)
	e.publishUser(userID, func(w *reactive.Writer) {
		snap, applied = w.Mutate(rev, fn)
	})
	if applied {
		e.persist(userID, snap)
	}
}

func (e *Engine) opLogger(op, userID, courseID string) *slog.Logger {
	return e.logger.With(
		"op", op,
		"opID", uuid.Must(uuid.NewV7()).String(),
		"userID", userID,
		"courseID", courseID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
