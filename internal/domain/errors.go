package domain

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors returned by collaborators (remote store, local storage)
var (
	// ErrUnavailable indicates the remote store could not be reached
	ErrUnavailable = errors.New("remote store is unreachable")

	// ErrPermissionDenied indicates the caller may not access the document
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAborted indicates a transaction lost a race with a concurrent commit
	ErrAborted = errors.New("transaction aborted by concurrent modification")

	// ErrDocumentNotFound indicates the requested document does not exist
	ErrDocumentNotFound = errors.New("document not found")
)

// Sentinel errors surfaced by the sync engine
var (
	// ErrOffline indicates the operation failed because connectivity was lost. Retryable.
	ErrOffline = errors.New("offline")

	// ErrAccessDenied indicates credentials are invalid or expired
	ErrAccessDenied = errors.New("access denied")

	// ErrConflict indicates concurrent modification exceeded the retry bound
	ErrConflict = errors.New("conflict")

	// ErrAlreadyEnrolled indicates the course is already in the enrolled set
	ErrAlreadyEnrolled = errors.New("already enrolled")

	// ErrNotEnrolled indicates the course is not in the enrolled set
	ErrNotEnrolled = errors.New("not enrolled")

	// ErrNotFound indicates a course, workout or exercise id is not in the catalog
	ErrNotFound = errors.New("not found in catalog")

	// ErrDisposed indicates the engine has been torn down
	ErrDisposed = errors.New("engine disposed")

	// ErrNotSignedIn indicates no user identity is available
	ErrNotSignedIn = errors.New("no signed-in user")

	// ErrNoCachedData indicates an offline start found nothing in the local cache
	ErrNoCachedData = errors.New("no cached data")
)

// OpError describes a failed sync engine operation.
type OpError struct {
	Op       string // "enroll", "unenroll", "record", "sign-in", ...
	UserID   string
	CourseID string
	Err      error
}

func (e *OpError) Error() string {
	if e.CourseID != "" {
		return fmt.Sprintf("%s %s (user=%s): %v", e.Op, e.CourseID, e.UserID, e.Err)
	}
	return fmt.Sprintf("%s (user=%s): %v", e.Op, e.UserID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// IsNotice reports whether err is a semantic no-op that callers should treat
// as success with a notice rather than a failure.
func IsNotice(err error) bool {
	return errors.Is(err, ErrAlreadyEnrolled) || errors.Is(err, ErrNotEnrolled)
}

// IsRetryable reports whether the user may simply retry the operation later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOffline)
}

// IsConnectivity reports whether err is attributable to network unavailability.
// A collaborator-enforced timeout counts as connectivity loss.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
