package syncengine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fitpro/fitsync/internal/domain"
)

const usersCollection = "users/"

func userPath(userID string) string {
	return usersCollection + userID
}

func progressPath(segments ...string) string {
	return "progress." + strings.Join(segments, ".")
}

// validKey reports whether id can be used as a field path segment.
func validKey(id string) bool {
	return id != "" && !strings.ContainsAny(id, "./")
}

// userDocument is the stored shape of users/{uid}.
type userDocument struct {
	Courses  []domain.EnrolledCourse `json:"courses"`
	Progress domain.ProgressMap      `json:"progress"`
}

func emptyDocumentFields() map[string]any {
	return map[string]any{
		"courses":  []any{},
		"progress": map[string]any{},
	}
}

// decodeSnapshot converts a pushed or read document into a Snapshot.
func decodeSnapshot(userID string, doc *domain.Document, fetchedAt time.Time) (domain.Snapshot, error) {
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("encode document: %w", err)
	}
	var ud userDocument
	if err := json.Unmarshal(data, &ud); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode user document: %w", err)
	}

	snap := domain.EmptySnapshot(userID)
	if ud.Courses != nil {
		snap.Courses = domain.DedupeCourses(ud.Courses)
	}
	if ud.Progress != nil {
		snap.Progress = ud.Progress
	}
	snap.Revision = doc.Revision
	snap.FetchedAt = fetchedAt
	return snap, nil
}

// courseEntry is the stored form of one element of the courses array.
func courseEntry(ec domain.EnrolledCourse) map[string]any {
	return map[string]any{
		"id":         ec.CourseID,
		"name":       ec.Name,
		"enrolledAt": ec.EnrolledAt.UTC().Format(time.RFC3339Nano),
	}
}

// storedCourseEntries returns every stored element of the courses array whose
// id is courseID, exactly as stored.
func storedCourseEntries(doc *domain.Document, courseID string) []any {
	if doc == nil {
		return nil
	}
	arr, _ := doc.Fields["courses"].([]any)
	var out []any
	for _, el := range arr {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := m["id"].(string); id == courseID {
			out = append(out, el)
		}
	}
	return out
}
