// Package telemetry exposes refresh results and cycle health as metrics.
// Prometheus gauges mirror the published dwell snapshot one series per zone
// and window; CloudWatch receives cycle-level counters when configured.
package telemetry

import (
	"strings"

	"zonetime/internal/types"
)

// MetricDescriptor describes one published dwell metric.
type MetricDescriptor struct {
	// UniqueID is stable across restarts: p2z_<person>_<zone>_<window>[_avg].
	UniqueID   string            `json:"unique_id"`
	Name       string            `json:"name"`
	ZoneID     string            `json:"zone_id"`
	Window     types.WindowLabel `json:"window"`
	Average    bool              `json:"average"`
	Unit       string            `json:"unit"`
	Backfilled bool              `json:"backfilled"`
}

// UnitHours is the unit every dwell metric reports in.
const UnitHours = "h"

// Catalog lists the metrics a zone yields for the tracked entity: the
// rolling windows always, the weekday averages when enabled.
func Catalog(entityID string, zone types.ZoneDescriptor, backfilled bool) []MetricDescriptor {
	display := zone.Label()

	out := make([]MetricDescriptor, 0, len(types.RollingWindows)+len(types.WeekdayWindows))
	for _, w := range types.RollingWindows {
		out = append(out, MetricDescriptor{
			UniqueID:   MetricID(entityID, zone.ZoneID, w),
			Name:       display + " " + titleCase(string(w)),
			ZoneID:     zone.ZoneID,
			Window:     w,
			Unit:       UnitHours,
			Backfilled: backfilled,
		})
	}
	if !zone.EnableAverages {
		return out
	}
	for _, w := range types.WeekdayWindows {
		out = append(out, MetricDescriptor{
			UniqueID:   MetricID(entityID, zone.ZoneID, w),
			Name:       display + " " + titleCase(string(w)) + " Average",
			ZoneID:     zone.ZoneID,
			Window:     w,
			Average:    true,
			Unit:       UnitHours,
			Backfilled: backfilled,
		})
	}
	return out
}

// MetricID returns the stable identifier of one zone/window metric. Weekday
// windows carry an _avg suffix.
func MetricID(entityID, zoneID string, w types.WindowLabel) string {
	person := types.Slugify(strings.TrimPrefix(entityID, "person."))
	zone := types.ZoneDescriptor{ZoneID: zoneID}.Slug()
	id := "p2z_" + person + "_" + zone + "_" + string(w)
	if w.IsWeekday() {
		id += "_avg"
	}
	return id
}

// CatalogFor builds the catalog for every zone, taking the backfilled flag
// from result when one has been published.
func CatalogFor(entityID string, zones []types.ZoneDescriptor, result *types.DwellResult) []MetricDescriptor {
	var out []MetricDescriptor
	for _, z := range zones {
		backfilled := false
		if result != nil {
			if zd, ok := result.Zones[z.ZoneID]; ok {
				backfilled = zd.Backfilled
			}
		}
		out = append(out, Catalog(entityID, z, backfilled)...)
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
