package types

import (
	"strings"
	"time"
)

// WindowLabel names an aggregation window in the published dwell result.
type WindowLabel string

const (
	WindowToday WindowLabel = "today"
	WindowWeek  WindowLabel = "week"
	WindowMonth WindowLabel = "month"

	WindowMonday    WindowLabel = "monday"
	WindowTuesday   WindowLabel = "tuesday"
	WindowWednesday WindowLabel = "wednesday"
	WindowThursday  WindowLabel = "thursday"
	WindowFriday    WindowLabel = "friday"
	WindowSaturday  WindowLabel = "saturday"
	WindowSunday    WindowLabel = "sunday"
)

// RollingWindows lists the windows computed for every zone, in publication order.
var RollingWindows = []WindowLabel{WindowToday, WindowWeek, WindowMonth}

// WeekdayWindows lists the per-weekday average windows, Monday first.
var WeekdayWindows = []WindowLabel{
	WindowMonday,
	WindowTuesday,
	WindowWednesday,
	WindowThursday,
	WindowFriday,
	WindowSaturday,
	WindowSunday,
}

// WeekdayLabel returns the window label for a time.Weekday.
func WeekdayLabel(d time.Weekday) WindowLabel {
	// time.Weekday starts at Sunday; WeekdayWindows starts at Monday.
	return WeekdayWindows[(int(d)+6)%7]
}

// IsWeekday reports whether the label is one of the weekday average windows.
func (l WindowLabel) IsWeekday() bool {
	for _, w := range WeekdayWindows {
		if w == l {
			return true
		}
	}
	return false
}

// Sentinel states reported by the tracked entity when it is not inside any zone.
const (
	StateNotHome     = "not_home"
	StateAway        = "away"
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// zoneEntityPrefix is the entity domain prefix carried by zone identifiers.
const zoneEntityPrefix = "zone."

// Observation is one recorded change of the tracked entity's location state.
type Observation struct {
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// ZoneDescriptor configures one tracked zone. ZoneID is the identity;
// DisplayName is cosmetic but doubles as the state label when set.
type ZoneDescriptor struct {
	ZoneID          string `json:"zone_id" validate:"required"`
	DisplayName     string `json:"display_name,omitempty"`
	BackfillEnabled bool   `json:"backfill_enabled"`
	BackfillDays    int    `json:"backfill_days" validate:"min=0,max=3650"`
	RetentionDays   int    `json:"retention_days" validate:"min=0,max=3650"`
	EnableAverages  bool   `json:"enable_averages"`
}

// Label returns the state label the tracked entity reports while inside the
// zone: the display name when configured, otherwise the zone ID without its
// "zone." prefix.
func (z ZoneDescriptor) Label() string {
	if z.DisplayName != "" {
		return z.DisplayName
	}
	return strings.TrimPrefix(z.ZoneID, zoneEntityPrefix)
}

// Slug returns a lowercase identifier-safe form of the zone ID, used when
// naming metrics.
func (z ZoneDescriptor) Slug() string {
	return Slugify(strings.TrimPrefix(z.ZoneID, zoneEntityPrefix))
}

// Window is a time range over which dwell time is aggregated.
type Window struct {
	Label WindowLabel
	Start time.Time
	End   time.Time
}

// Duration returns the window length, or zero for an inverted window.
func (w Window) Duration() time.Duration {
	if w.End.Before(w.Start) {
		return 0
	}
	return w.End.Sub(w.Start)
}

// ZoneDwell is the published result for a single zone.
type ZoneDwell struct {
	ZoneID      string                  `json:"zone_id"`
	DisplayName string                  `json:"display_name"`
	Hours       map[WindowLabel]float64 `json:"hours"`
	Backfilled  bool                    `json:"backfilled"`
	// Error carries the failure code when the zone's windows were zeroed.
	Error ErrorCode `json:"error,omitempty"`
}

// DwellResult is the unit of publication. A new value is built for every
// refresh cycle and never mutated after it has been published.
type DwellResult struct {
	CycleID     string                `json:"cycle_id"`
	EntityID    string                `json:"entity_id"`
	LastUpdated time.Time             `json:"last_updated"`
	Zones       map[string]*ZoneDwell `json:"zones"`
}

// Hours returns the hours for a zone/window pair, or zero when absent.
func (r *DwellResult) Hours(zoneID string, label WindowLabel) float64 {
	if r == nil {
		return 0
	}
	z, ok := r.Zones[zoneID]
	if !ok {
		return 0
	}
	return z.Hours[label]
}

// Slugify lowercases s and replaces every run of non-alphanumeric characters
// with a single underscore.
func Slugify(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
