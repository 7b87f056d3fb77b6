package store

import (
	"encoding/json"
	"log/slog"

	"github.com/fitpro/fitsync/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache on top of any LocalStorage.
// It never reports errors: a broken medium reads as "no cached data".
type SnapshotCache struct {
	storage domain.LocalStorage
	logger  *slog.Logger
}

// NewSnapshotCache creates a snapshot cache backed by storage.
func NewSnapshotCache(storage domain.LocalStorage, logger *slog.Logger) *SnapshotCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotCache{storage: storage, logger: logger}
}

func snapshotKey(userID string) string {
	return PrefixSnapshot + userID
}

// Read returns the last snapshot written for userID.
func (c *SnapshotCache) Read(userID string) (snap domain.Snapshot, ok bool) {
	if c.storage == nil {
		return domain.Snapshot{}, false
	}
	defer func() {
		// A misbehaving medium must not crash the caller's control flow
		if r := recover(); r != nil {
			c.logger.Error("snapshot cache read panicked", "userID", userID, "panic", r)
			snap, ok = domain.Snapshot{}, false
		}
	}()

	raw, found := c.storage.Get(snapshotKey(userID))
	if !found {
		return domain.Snapshot{}, false
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		c.logger.Warn("discarding undecodable cached snapshot", "userID", userID, "error", err)
		return domain.Snapshot{}, false
	}
	if snap.Progress == nil {
		snap.Progress = domain.ProgressMap{}
	}
	if snap.Courses == nil {
		snap.Courses = []domain.EnrolledCourse{}
	}
	return snap, true
}

// Write overwrites the cached snapshot for userID.
func (c *SnapshotCache) Write(userID string, snap domain.Snapshot) {
	if c.storage == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("snapshot cache write panicked", "userID", userID, "panic", r)
		}
	}()

	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Error("failed to encode snapshot", "userID", userID, "error", err)
		return
	}
	if err := c.storage.Set(snapshotKey(userID), string(data)); err != nil {
		c.logger.Warn("failed to save snapshot", "userID", userID, "error", err)
	}
}

// Forget removes the cached snapshot for userID.
func (c *SnapshotCache) Forget(userID string) {
	if c.storage == nil {
		return
	}
	if err := c.storage.Remove(snapshotKey(userID)); err != nil {
		c.logger.Warn("failed to remove snapshot", "userID", userID, "error", err)
	}
}
