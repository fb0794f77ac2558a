package db

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"zonetime/internal/types"
)

// RecorderHistoryRepository reads an entity's state changes from a Home
// Assistant recorder database (schema 32+, where states reference
// states_meta and timestamps are stored as epoch seconds in
// last_updated_ts).
type RecorderHistoryRepository struct {
	db DBTX
}

// NewRecorderHistoryRepository creates a new RecorderHistoryRepository backed
// by the given database connection (pool or transaction).
func NewRecorderHistoryRepository(db DBTX) *RecorderHistoryRepository {
	return &RecorderHistoryRepository{db: db}
}

// Fetch returns the entity's observations in [start, end], ascending. The
// latest state recorded before start is prepended so callers know the state
// at the beginning of the range.
//
// SQL pattern:
//
//	SELECT state, last_updated_ts FROM (
//	  (latest row before $2) UNION ALL (rows in [$2, $3])
//	) h ORDER BY last_updated_ts ASC
//
// Rows with a NULL state (recorder purges and restarts) are skipped.
func (r *RecorderHistoryRepository) Fetch(ctx context.Context, entityID string, start, end time.Time) ([]types.Observation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT state, last_updated_ts FROM (
		   (SELECT s.state, s.last_updated_ts
		      FROM states s
		      JOIN states_meta m ON m.metadata_id = s.metadata_id
		     WHERE m.entity_id = $1
		       AND s.last_updated_ts < $2
		     ORDER BY s.last_updated_ts DESC
		     LIMIT 1)
		   UNION ALL
		   (SELECT s.state, s.last_updated_ts
		      FROM states s
		      JOIN states_meta m ON m.metadata_id = s.metadata_id
		     WHERE m.entity_id = $1
		       AND s.last_updated_ts >= $2
		       AND s.last_updated_ts <= $3)
		 ) h
		 ORDER BY last_updated_ts ASC`,
		entityID,
		toEpoch(start),
		toEpoch(end),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamHistory, "failed to query recorder history", err)
	}
	defer rows.Close()

	var obs []types.Observation
	for rows.Next() {
		var state *string
		var ts float64
		if err := rows.Scan(&state, &ts); err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamHistory, "failed to scan recorder state row", err)
		}
		if state == nil {
			continue
		}
		obs = append(obs, types.Observation{State: *state, Timestamp: fromEpoch(ts)})
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamHistory, "error iterating recorder state rows", err)
	}
	return obs, nil
}

// ZoneExists reports whether the recorder knows the zone entity.
func (r *RecorderHistoryRepository) ZoneExists(ctx context.Context, zoneID string) (bool, error) {
	var one int
	err := r.db.QueryRow(ctx,
		`SELECT 1 FROM states_meta WHERE entity_id = $1`,
		zoneID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, types.NewAppError(types.ErrCodeUpstreamHistory, "failed to look up zone entity", err)
	}
	return true, nil
}

func toEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpoch(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
}
