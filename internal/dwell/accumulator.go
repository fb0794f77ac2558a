// Package dwell converts a time-ordered stream of location observations into
// the time spent inside a zone. Everything here is a pure function over an
// in-memory slice; fetching and scheduling live in the scheduler package.
package dwell

import (
	"fmt"
	"math"
	"time"

	"zonetime/internal/types"
)

// Accumulate returns the number of seconds the entity was recorded as being
// in the target state within [start, end].
//
// Observations must be sorted ascending by timestamp. Each timestamp is
// clipped into the window before use, so an observation dated before start
// establishes the state at start. Until the first observation the state is
// unknown and counts as outside the zone. An entry with no matching exit is
// counted up to end.
func Accumulate(observations []types.Observation, target string, start, end time.Time) float64 {
	if !end.After(start) || len(observations) == 0 {
		return 0
	}

	var (
		total   time.Duration
		entered time.Time
		inside  bool
	)
	for _, obs := range observations {
		ts := clip(obs.Timestamp, start, end)
		switch {
		case obs.State == target && !inside:
			entered = ts
			inside = true
		case obs.State != target && inside:
			total += ts.Sub(entered)
			inside = false
		}
		// Same state while inside is a duplicate and must not reset the entry.
	}
	if inside {
		total += end.Sub(entered)
	}
	return total.Seconds()
}

// AccumulateWindow is Accumulate over a types.Window.
func AccumulateWindow(observations []types.Observation, target string, w types.Window) float64 {
	return Accumulate(observations, target, w.Start, w.End)
}

// Hours converts seconds to hours rounded to two decimal places.
func Hours(seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Round(seconds/3600*100) / 100
}

// HoursWithin converts seconds to rounded hours, capped at the window length
// so that rounding never reports more time than the window holds.
func HoursWithin(seconds float64, window time.Duration) float64 {
	h := Hours(seconds)
	if limit := window.Hours(); h > limit {
		return math.Floor(limit*100) / 100
	}
	return h
}

// CheckOrdered verifies the ascending-timestamp precondition of Accumulate.
// Equal timestamps are allowed.
func CheckOrdered(observations []types.Observation) error {
	for i := 1; i < len(observations); i++ {
		if observations[i].Timestamp.Before(observations[i-1].Timestamp) {
			return types.NewAppErrorWithDetails(
				types.ErrCodeInternalObservationOrdering,
				fmt.Sprintf("observation %d precedes observation %d", i, i-1),
				nil,
				map[string]any{
					"index":    i,
					"previous": observations[i-1].Timestamp,
					"current":  observations[i].Timestamp,
				},
			)
		}
	}
	return nil
}

func clip(ts, start, end time.Time) time.Time {
	if ts.Before(start) {
		return start
	}
	if ts.After(end) {
		return end
	}
	return ts
}
