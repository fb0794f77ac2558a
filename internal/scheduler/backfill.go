package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"zonetime/internal/types"
)

// BackfillCoordinator widens the history range requested for zones that ask
// for backfill, on the first successful cycle after process start only.
// There is no separate backfill job: the aggregator recomputes from the
// history store every cycle, so one wider fetch is all backfill amounts to.
type BackfillCoordinator struct {
	mu      sync.Mutex
	done    bool
	applied map[string]bool
	logger  *slog.Logger
}

// NewBackfillCoordinator returns a coordinator in its pending state.
func NewBackfillCoordinator(logger *slog.Logger) *BackfillCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackfillCoordinator{
		applied: make(map[string]bool),
		logger:  logger,
	}
}

// ExtendedRange returns the minimum range the aggregator must fetch for zone
// on this cycle. ok is false when no extension applies: backfill is disabled,
// BackfillDays is not positive, or the first cycle has already completed.
func (b *BackfillCoordinator) ExtendedRange(zone types.ZoneDescriptor, now time.Time) (start, end time.Time, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done || !zone.BackfillEnabled || zone.BackfillDays <= 0 {
		return time.Time{}, time.Time{}, false
	}
	return now.AddDate(0, 0, -zone.BackfillDays), now, true
}

// Pending reports whether the first cycle has yet to complete.
func (b *BackfillCoordinator) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.done
}

// Consume marks the first cycle done and records which zones were extended.
// Later calls are no-ops.
func (b *BackfillCoordinator) Consume(extended []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.done = true
	for _, zoneID := range extended {
		b.applied[zoneID] = true
	}
	if len(extended) > 0 {
		b.logger.Info("backfill complete", "zones", extended)
	}
}

// Backfilled reports whether zoneID received an extended range in this
// process.
func (b *BackfillCoordinator) Backfilled(zoneID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applied[zoneID]
}
