package domain

// LocalStorage is the local durable key-value medium (survives restarts).
// Values are serialized text.
type LocalStorage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// SnapshotCache is the last-known-good mirror of each user's Snapshot.
// It has no authority and no merge logic: last write wins. Failures of the
// underlying medium degrade to "absent" instead of surfacing.
type SnapshotCache interface {
	Read(userID string) (Snapshot, bool)
	Write(userID string, snap Snapshot)
}

// Catalog is read-only course/workout reference data keyed by id.
type Catalog interface {
	Course(id string) (Course, bool)
	Workout(id string) (Workout, bool)
	Courses() []Course
}
