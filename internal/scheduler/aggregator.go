package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"zonetime/internal/dwell"
	"zonetime/internal/periods"
	"zonetime/internal/types"
)

// ZoneOutcome is the tagged result of one zone's computation. Exactly one of
// Hours or Err is meaningful.
type ZoneOutcome struct {
	Zone     types.ZoneDescriptor
	Hours    map[types.WindowLabel]float64
	Extended bool
	Err      error
}

// Aggregator computes dwell time for every tracked zone and publishes the
// result to its SnapshotStore.
type Aggregator struct {
	entityID      string
	history       HistoryFetcher
	resolver      ZoneResolver
	backfill      *BackfillCoordinator
	store         *SnapshotStore
	observer      CycleObserver
	location      *time.Location
	zoneTimeout   time.Duration
	concurrency   int
	averagePolicy AveragePolicy
	retentionDays int
	logger        *slog.Logger
}

// AggregatorConfig holds the configuration for creating an Aggregator.
type AggregatorConfig struct {
	// EntityID is the tracked person entity, e.g. "person.alice".
	EntityID string
	History  HistoryFetcher
	// Resolver is optional.
	Resolver ZoneResolver
	Backfill *BackfillCoordinator
	Store    *SnapshotStore
	// Observer is optional.
	Observer      CycleObserver
	Location      *time.Location
	ZoneTimeout   time.Duration
	Concurrency   int
	AveragePolicy AveragePolicy
	// RetentionDays applies to zones that leave their own RetentionDays at 0.
	RetentionDays int
	Logger        *slog.Logger
}

// NewAggregator creates a new Aggregator with the given configuration.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := cfg.ZoneTimeout
	if timeout <= 0 {
		timeout = DefaultZoneTimeout
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	policy := cfg.AveragePolicy
	if policy == "" {
		policy = AverageCountEmpty
	}
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = DefaultRetentionDays
	}
	backfill := cfg.Backfill
	if backfill == nil {
		backfill = NewBackfillCoordinator(logger)
	}
	store := cfg.Store
	if store == nil {
		store = NewSnapshotStore()
	}
	return &Aggregator{
		entityID:      cfg.EntityID,
		history:       cfg.History,
		resolver:      cfg.Resolver,
		backfill:      backfill,
		store:         store,
		observer:      cfg.Observer,
		location:      loc,
		zoneTimeout:   timeout,
		concurrency:   concurrency,
		averagePolicy: policy,
		retentionDays: retention,
		logger:        logger,
	}
}

// Store returns the snapshot store the aggregator publishes to.
func (a *Aggregator) Store() *SnapshotStore {
	return a.store
}

// Refresh runs one cycle over zones with now as the reference instant.
//
// Zone failures are contained: the failing zone publishes zeros tagged with
// its error code and the cycle still completes. The only error returned is the
// context's, in which case nothing is published.
func (a *Aggregator) Refresh(ctx context.Context, zones []types.ZoneDescriptor, now time.Time) (*types.DwellResult, error) {
	cycleID := uuid.NewString()
	ctx = types.WithCycleID(ctx, cycleID)
	logger := a.logger.With("cycle_id", cycleID, "entity_id", a.entityID)
	started := time.Now()
	now = now.In(a.location)

	// Descriptors are copied so edits made while the cycle runs wait for the
	// next one.
	snapshot := make([]types.ZoneDescriptor, len(zones))
	copy(snapshot, zones)

	outcomes := make([]ZoneOutcome, len(snapshot))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, zone := range snapshot {
		i, zone := i, zone
		g.Go(func() error {
			zctx, cancel := context.WithTimeout(gctx, a.zoneTimeout)
			defer cancel()
			outcomes[i] = a.computeZone(zctx, zone, now)
			// Never fail the group: one zone must not cancel its siblings.
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.WarnContext(ctx, "refresh cycle abandoned", "error", err)
		return nil, err
	}

	result := &types.DwellResult{
		CycleID:     cycleID,
		EntityID:    a.entityID,
		LastUpdated: now,
		Zones:       make(map[string]*types.ZoneDwell, len(outcomes)),
	}
	var extended []string
	failures := 0
	for _, out := range outcomes {
		zd := &types.ZoneDwell{
			ZoneID:      out.Zone.ZoneID,
			DisplayName: out.Zone.Label(),
			Hours:       zeroHours(out.Zone.EnableAverages),
		}
		if out.Extended && out.Err == nil {
			extended = append(extended, out.Zone.ZoneID)
		}
		if out.Err != nil {
			failures++
			zd.Error = types.CodeOf(out.Err)
			logger.ErrorContext(ctx, "zone refresh failed",
				"zone_id", out.Zone.ZoneID,
				"error_code", zd.Error,
				"error", out.Err,
			)
		} else {
			for label, h := range out.Hours {
				zd.Hours[label] = h
			}
		}
		result.Zones[zd.ZoneID] = zd
	}

	if a.backfill.Pending() {
		a.backfill.Consume(extended)
	}
	for _, zd := range result.Zones {
		zd.Backfilled = a.backfill.Backfilled(zd.ZoneID)
	}

	a.store.Publish(result)
	elapsed := time.Since(started)
	if a.observer != nil {
		a.observer.ObserveCycle(ctx, result, elapsed)
	}
	logger.InfoContext(ctx, "refresh cycle complete",
		"zones", len(result.Zones),
		"failures", failures,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

// computeZone fetches the zone's history once and evaluates every window
// against the in-memory sequence.
func (a *Aggregator) computeZone(ctx context.Context, zone types.ZoneDescriptor, now time.Time) ZoneOutcome {
	out := ZoneOutcome{Zone: zone}

	if a.resolver != nil {
		exists, err := a.resolver.ZoneExists(ctx, zone.ZoneID)
		if err != nil {
			out.Err = fetchError(ctx, zone, err)
			return out
		}
		if !exists {
			out.Err = types.NewAppErrorWithDetails(types.ErrCodeNotFoundZone,
				"zone no longer exists", nil, map[string]any{"zone_id": zone.ZoneID})
			return out
		}
	}

	windows := periods.Windows(now, false)
	fetchStart := periods.Earliest(windows)

	var occurrences map[types.WindowLabel][]types.Window
	if zone.EnableAverages {
		since := now.AddDate(0, 0, -a.retentionFor(zone))
		occurrences = make(map[types.WindowLabel][]types.Window, len(types.WeekdayWindows))
		for _, w := range periods.Windows(now, true)[len(windows):] {
			occ := periods.WeekdayOccurrences(now, w.Start.Weekday(), since)
			occurrences[w.Label] = occ
			if len(occ) > 0 && occ[0].Start.Before(fetchStart) {
				fetchStart = occ[0].Start
			}
		}
	}

	if start, _, ok := a.backfill.ExtendedRange(zone, now); ok {
		out.Extended = true
		if start.Before(fetchStart) {
			fetchStart = start
		}
		a.logger.InfoContext(ctx, "performing backfill",
			"zone_id", zone.ZoneID,
			"backfill_days", zone.BackfillDays,
		)
	}

	obs, err := a.history.Fetch(ctx, a.entityID, fetchStart, now)
	if err != nil {
		out.Err = fetchError(ctx, zone, err)
		return out
	}
	if err := dwell.CheckOrdered(obs); err != nil {
		out.Err = err
		return out
	}

	target := zone.Label()
	hours := make(map[types.WindowLabel]float64, len(windows)+len(occurrences))
	for _, w := range windows {
		hours[w.Label] = dwell.HoursWithin(dwell.AccumulateWindow(obs, target, w), w.Duration())
	}
	for label, occ := range occurrences {
		hours[label] = a.average(obs, target, occ)
	}
	out.Hours = hours
	return out
}

// average is the single decision point for how occurrences without data
// contribute to a weekday mean.
func (a *Aggregator) average(obs []types.Observation, target string, occurrences []types.Window) float64 {
	var total float64
	var longest time.Duration
	counted := 0
	for _, occ := range occurrences {
		if a.averagePolicy == AverageExcludeEmpty && !hasData(obs, occ) {
			continue
		}
		total += dwell.AccumulateWindow(obs, target, occ)
		if d := occ.Duration(); d > longest {
			longest = d
		}
		counted++
	}
	if counted == 0 {
		return 0
	}
	return dwell.HoursWithin(total/float64(counted), longest)
}

func (a *Aggregator) retentionFor(zone types.ZoneDescriptor) int {
	if zone.RetentionDays > 0 {
		return zone.RetentionDays
	}
	return a.retentionDays
}

// hasData reports whether any observation tells us the entity's state during
// w: either one recorded inside w or one recorded before it.
func hasData(obs []types.Observation, w types.Window) bool {
	return len(obs) > 0 && obs[0].Timestamp.Before(w.End)
}

func fetchError(ctx context.Context, zone types.ZoneDescriptor, err error) error {
	details := map[string]any{"zone_id": zone.ZoneID}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamHistory,
			"history fetch timed out", err, details)
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundZone {
		return appErr
	}
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamHistory,
		fmt.Sprintf("history fetch failed for %s", zone.ZoneID), err, details)
}

func zeroHours(averages bool) map[types.WindowLabel]float64 {
	hours := make(map[types.WindowLabel]float64, len(types.RollingWindows)+len(types.WeekdayWindows))
	for _, label := range types.RollingWindows {
		hours[label] = 0
	}
	if averages {
		for _, label := range types.WeekdayWindows {
			hours[label] = 0
		}
	}
	return hours
}
