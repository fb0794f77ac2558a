package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"zonetime/internal/types"
)

// Refresher runs a single aggregation cycle.
type Refresher interface {
	Refresh(ctx context.Context, zones []types.ZoneDescriptor, now time.Time) (*types.DwellResult, error)
}

// Runner drives the Aggregator on a fixed interval and serializes manual
// refreshes against scheduled ones.
type Runner struct {
	refresher  Refresher
	zones      ZoneSource
	publishers []SnapshotPublisher
	interval   time.Duration
	now        func() time.Time
	logger     *slog.Logger

	cycle sync.Mutex

	zonesMu   sync.Mutex
	lastZones []types.ZoneDescriptor
}

// RunnerConfig holds the configuration for creating a Runner.
type RunnerConfig struct {
	Refresher  Refresher
	Zones      ZoneSource
	Publishers []SnapshotPublisher
	Interval   time.Duration
	// Now overrides the clock in tests.
	Now    func() time.Time
	Logger *slog.Logger
}

// NewRunner creates a new Runner with the given configuration.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		refresher:  cfg.Refresher,
		zones:      cfg.Zones,
		publishers: cfg.Publishers,
		interval:   interval,
		now:        now,
		logger:     logger,
	}
}

// Run refreshes immediately and then once per interval until ctx is done.
// It always returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "refresh runner started", "interval", r.interval.String())

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "refresh runner stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if _, err := r.RefreshNow(ctx); err != nil {
		if types.CodeOf(err) == types.ErrCodeConflictRefreshInProgress {
			r.logger.WarnContext(ctx, "refresh skipped: cycle in progress")
			return
		}
		if ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "refresh failed", "error", err)
		}
	}
}

// RefreshNow runs one cycle immediately. It fails with
// conflict_refresh_in_progress instead of waiting when another cycle holds
// the lock.
func (r *Runner) RefreshNow(ctx context.Context) (*types.DwellResult, error) {
	if !r.cycle.TryLock() {
		return nil, types.NewAppError(types.ErrCodeConflictRefreshInProgress,
			"a refresh cycle is already running", nil)
	}
	defer r.cycle.Unlock()

	zones := r.loadZones(ctx)
	result, err := r.refresher.Refresh(ctx, zones, r.now())
	if err != nil {
		return nil, err
	}
	r.publish(ctx, result)
	return result, nil
}

// Zones returns the descriptor set used by the most recent cycle.
func (r *Runner) Zones() []types.ZoneDescriptor {
	r.zonesMu.Lock()
	defer r.zonesMu.Unlock()
	out := make([]types.ZoneDescriptor, len(r.lastZones))
	copy(out, r.lastZones)
	return out
}

// loadZones asks the source for the current descriptors, keeping the last
// good set when the source fails.
func (r *Runner) loadZones(ctx context.Context) []types.ZoneDescriptor {
	zones, err := r.zones.Zones(ctx)

	r.zonesMu.Lock()
	defer r.zonesMu.Unlock()
	if err != nil {
		r.logger.WarnContext(ctx, "zone source failed, using last known zones",
			"error", err,
			"zones", len(r.lastZones),
		)
		return r.lastZones
	}
	r.lastZones = zones
	return zones
}

// publish forwards the result to every sink. Sink failures are logged and
// never affect the published snapshot.
func (r *Runner) publish(ctx context.Context, result *types.DwellResult) {
	for _, p := range r.publishers {
		if err := p.Publish(ctx, result); err != nil {
			r.logger.ErrorContext(ctx, "snapshot publish failed",
				"sink", p.Name(),
				"cycle_id", result.CycleID,
				"error", err,
			)
		}
	}
}
