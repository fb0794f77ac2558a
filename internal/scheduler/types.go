// Package scheduler runs the zone dwell-time refresh cycle.
//
// A Runner ticks once per interval and hands the current zone descriptors to
// the Aggregator, which fetches the tracked entity's history once per zone,
// accumulates every window, and swaps the finished DwellResult into the
// SnapshotStore. The BackfillCoordinator widens the fetch range on the first
// cycle of the process only.
package scheduler

import (
	"context"
	"time"

	"zonetime/internal/types"
)

// HistoryFetcher supplies the tracked entity's state changes for a time
// range. Results are sorted ascending and may include one observation dated
// before start carrying the state at start.
type HistoryFetcher interface {
	Fetch(ctx context.Context, entityID string, start, end time.Time) ([]types.Observation, error)
}

// ZoneSource returns the zone descriptors to compute on the next cycle.
type ZoneSource interface {
	Zones(ctx context.Context) ([]types.ZoneDescriptor, error)
}

// ZoneResolver reports whether a configured zone still exists upstream.
// Wiring one is optional; without it every configured zone is computed.
type ZoneResolver interface {
	ZoneExists(ctx context.Context, zoneID string) (bool, error)
}

// CycleObserver is notified after every published cycle.
type CycleObserver interface {
	ObserveCycle(ctx context.Context, result *types.DwellResult, elapsed time.Duration)
}

// SnapshotPublisher forwards a published result to an outside consumer.
type SnapshotPublisher interface {
	Name() string
	Publish(ctx context.Context, result *types.DwellResult) error
}

// AveragePolicy decides how weekday occurrences without any recorded state
// contribute to the weekday average.
type AveragePolicy string

const (
	// AverageCountEmpty counts an occurrence without data as zero hours.
	AverageCountEmpty AveragePolicy = "count_empty"
	// AverageExcludeEmpty leaves occurrences without data out of the mean.
	AverageExcludeEmpty AveragePolicy = "exclude_empty"
)

// DefaultRetentionDays bounds the weekday-average horizon for zones that do
// not configure their own retention.
const DefaultRetentionDays = 90

// DefaultZoneTimeout caps a single zone's fetch-and-accumulate step.
const DefaultZoneTimeout = 20 * time.Second

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 60 * time.Second
