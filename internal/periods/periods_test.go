package periods

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonetime/internal/types"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func windowByLabel(t *testing.T, windows []types.Window, label types.WindowLabel) types.Window {
	t.Helper()
	for _, w := range windows {
		if w.Label == label {
			return w
		}
	}
	t.Fatalf("window %q not found", label)
	return types.Window{}
}

func TestWindows_WednesdayWeekStartsMonday(t *testing.T) {
	// 2026-10-14 is a Wednesday.
	now := time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

	windows := Windows(now, false)
	require.Len(t, windows, 3)

	week := windowByLabel(t, windows, types.WindowWeek)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), week.Start)
	assert.Equal(t, time.Monday, week.Start.Weekday())
	assert.Equal(t, now, week.End)

	today := windowByLabel(t, windows, types.WindowToday)
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), today.Start)

	month := windowByLabel(t, windows, types.WindowMonth)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), month.Start)
}

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"monday itself", time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC), time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{"sunday goes back six days", time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC), time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{"crosses year boundary", time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)},
		{"crosses month boundary", time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC), time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StartOfWeek(tt.now))
		})
	}
}

func TestStartOfMonth_JanuaryFirst(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now, StartOfMonth(now))
	assert.Equal(t, now, StartOfDay(now))
}

func TestBoundariesUseLocalMidnight(t *testing.T) {
	ny := mustLocation(t, "America/New_York")
	// 01:30 local on the 2nd is 05:30 UTC; boundaries follow the local calendar.
	now := time.Date(2026, 7, 2, 1, 30, 0, 0, ny)

	today := StartOfDay(now)
	assert.Equal(t, time.Date(2026, 7, 2, 0, 0, 0, 0, ny), today)
	assert.Equal(t, ny, today.Location())
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, ny), StartOfMonth(now))
}

func TestNextDay_DSTTransition(t *testing.T) {
	ny := mustLocation(t, "America/New_York")
	// Clocks spring forward on 2026-03-08.
	day := time.Date(2026, 3, 8, 0, 0, 0, 0, ny)
	next := NextDay(day)

	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, ny), next)
	assert.Equal(t, 23*time.Hour, next.Sub(day))
}

func TestWindows_WithWeekdays(t *testing.T) {
	// Wednesday afternoon.
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)
	windows := Windows(now, true)
	require.Len(t, windows, 3+7)

	// Wednesday has not completed yet: the most recent completed Wednesday is a week ago.
	wed := windowByLabel(t, windows, types.WindowWednesday)
	assert.Equal(t, time.Date(2026, 10, 7, 0, 0, 0, 0, time.UTC), wed.Start)
	assert.Equal(t, time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC), wed.End)

	tue := windowByLabel(t, windows, types.WindowTuesday)
	assert.Equal(t, time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC), tue.Start)

	for _, w := range windows {
		assert.False(t, w.End.After(now), "window %s ends after now", w.Label)
	}
}

func TestWeekdayOccurrences(t *testing.T) {
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC) // Wednesday

	t.Run("four weeks of mondays", func(t *testing.T) {
		since := now.AddDate(0, 0, -28)
		occ := WeekdayOccurrences(now, time.Monday, since)
		require.Len(t, occ, 4)
		assert.Equal(t, time.Date(2026, 9, 21, 0, 0, 0, 0, time.UTC), occ[0].Start)
		assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), occ[3].Start)
		for _, w := range occ {
			assert.Equal(t, types.WindowMonday, w.Label)
			assert.Equal(t, time.Monday, w.Start.Weekday())
			assert.Equal(t, 24*time.Hour, w.Duration())
		}
	})

	t.Run("current day excluded", func(t *testing.T) {
		since := now.AddDate(0, 0, -7)
		occ := WeekdayOccurrences(now, time.Wednesday, since)
		// since falls on last Wednesday 15:00, a partial day, so no Wednesday qualifies.
		assert.Empty(t, occ)
	})

	t.Run("since at midnight includes that day", func(t *testing.T) {
		since := time.Date(2026, 10, 7, 0, 0, 0, 0, time.UTC)
		occ := WeekdayOccurrences(now, time.Wednesday, since)
		require.Len(t, occ, 1)
		assert.Equal(t, since, occ[0].Start)
	})

	t.Run("since in the future yields nothing", func(t *testing.T) {
		assert.Empty(t, WeekdayOccurrences(now, time.Monday, now.Add(time.Hour)))
	})
}

func TestEarliest(t *testing.T) {
	assert.True(t, Earliest(nil).IsZero())

	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)
	windows := Windows(now, false)
	assert.Equal(t, StartOfMonth(now), Earliest(windows))
}
