// Package periods computes the calendar boundaries of the aggregation
// windows. All functions are pure: they never read the clock and interpret
// "local" as the location carried by the reference instant.
package periods

import (
	"time"

	"zonetime/internal/types"
)

// StartOfDay returns local midnight of t's calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns local midnight of the Monday on or before t's date.
func StartOfWeek(t time.Time) time.Time {
	// Monday=0 ... Sunday=6
	sinceMonday := (int(t.Weekday()) + 6) % 7
	return addDays(StartOfDay(t), -sinceMonday)
}

// StartOfMonth returns local midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// NextDay returns local midnight of the calendar day after the one starting
// at dayStart. DST transitions make this 23 or 25 hours later, not 24.
func NextDay(dayStart time.Time) time.Time {
	return addDays(dayStart, 1)
}

// Windows returns the rolling windows ending at now: today, week and month.
// Weekday averages are not contiguous ranges; when includeWeekdays is set the
// result additionally carries one window per weekday spanning that weekday's
// most recent completed occurrence, and callers use WeekdayOccurrences for the
// full per-occurrence breakdown.
func Windows(now time.Time, includeWeekdays bool) []types.Window {
	windows := []types.Window{
		{Label: types.WindowToday, Start: StartOfDay(now), End: now},
		{Label: types.WindowWeek, Start: StartOfWeek(now), End: now},
		{Label: types.WindowMonth, Start: StartOfMonth(now), End: now},
	}
	if !includeWeekdays {
		return windows
	}

	for _, label := range types.WeekdayWindows {
		day := lastCompleted(now, weekdayOf(label))
		windows = append(windows, types.Window{Label: label, Start: day, End: NextDay(day)})
	}
	return windows
}

// WeekdayOccurrences returns every completed occurrence of weekday whose day
// starts at or after since, oldest first. Each occurrence spans
// [midnight, next midnight). The day containing now has not elapsed yet and is
// never included.
func WeekdayOccurrences(now time.Time, weekday time.Weekday, since time.Time) []types.Window {
	label := types.WeekdayLabel(weekday)
	since = since.In(now.Location())
	floor := StartOfDay(since)
	if since.After(floor) {
		// A partial first day is not an occurrence.
		floor = NextDay(floor)
	}

	var out []types.Window
	for day := lastCompleted(now, weekday); !day.Before(floor); day = addDays(day, -7) {
		out = append(out, types.Window{Label: label, Start: day, End: NextDay(day)})
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// lastCompleted returns local midnight of the latest day falling on weekday
// that ended at or before now.
func lastCompleted(now time.Time, weekday time.Weekday) time.Time {
	day := mostRecent(StartOfDay(now), weekday)
	if NextDay(day).After(now) {
		day = addDays(day, -7)
	}
	return day
}

func addDays(day time.Time, n int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, day.Location())
}

// mostRecent returns local midnight of the latest day on or before today
// that falls on weekday.
func mostRecent(today time.Time, weekday time.Weekday) time.Time {
	back := (int(today.Weekday()) - int(weekday) + 7) % 7
	return addDays(today, -back)
}

func weekdayOf(label types.WindowLabel) time.Weekday {
	for i, w := range types.WeekdayWindows {
		if w == label {
			return time.Weekday((i + 1) % 7)
		}
	}
	return time.Sunday
}

// Earliest returns the earliest start among the given windows, or the zero
// time when windows is empty.
func Earliest(windows []types.Window) time.Time {
	var earliest time.Time
	for i, w := range windows {
		if i == 0 || w.Start.Before(earliest) {
			earliest = w.Start
		}
	}
	return earliest
}
