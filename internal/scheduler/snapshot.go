package scheduler

import (
	"sync/atomic"
	"time"

	"zonetime/internal/types"
)

// SnapshotStore holds the most recently published DwellResult. Publication is
// a single pointer swap, so readers see either the previous complete result
// or the next one, never a partial cycle.
type SnapshotStore struct {
	current atomic.Pointer[types.DwellResult]
}

// NewSnapshotStore returns an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Load returns the current snapshot, or nil before the first publication.
// Callers must treat the result as read-only.
func (s *SnapshotStore) Load() *types.DwellResult {
	return s.current.Load()
}

// Publish replaces the current snapshot.
func (s *SnapshotStore) Publish(result *types.DwellResult) {
	s.current.Store(result)
}

// LastUpdated returns the completion time of the current snapshot, or the
// zero time before the first publication.
func (s *SnapshotStore) LastUpdated() time.Time {
	if r := s.current.Load(); r != nil {
		return r.LastUpdated
	}
	return time.Time{}
}
