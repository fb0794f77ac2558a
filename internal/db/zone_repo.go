package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"zonetime/internal/types"
)

// ZoneRepository provides data access for the tracked_zones table. Each row
// configures one zone for one tracked entity; the refresh cycle reads the
// whole set at cycle start through Zones.
type ZoneRepository struct {
	db       DBTX
	entityID string
}

// NewZoneRepository creates a ZoneRepository scoped to the tracked entity.
func NewZoneRepository(db DBTX, entityID string) *ZoneRepository {
	return &ZoneRepository{db: db, entityID: entityID}
}

// TrackedZonesSchema creates the tracked_zones table when it does not exist.
const TrackedZonesSchema = `CREATE TABLE IF NOT EXISTS tracked_zones (
	entity_id        TEXT        NOT NULL,
	zone_id          TEXT        NOT NULL,
	display_name     TEXT,
	backfill_enabled BOOLEAN     NOT NULL DEFAULT FALSE,
	backfill_days    INTEGER     NOT NULL DEFAULT 0,
	retention_days   INTEGER     NOT NULL DEFAULT 0,
	enable_averages  BOOLEAN     NOT NULL DEFAULT FALSE,
	disabled_at      TIMESTAMPTZ,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (entity_id, zone_id)
)`

// EnsureSchema applies TrackedZonesSchema.
func (r *ZoneRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, TrackedZonesSchema); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create tracked_zones table", err)
	}
	return nil
}

const zoneColumns = `zone_id, display_name, backfill_enabled, backfill_days, retention_days, enable_averages`

// Zones returns every enabled zone for the entity, ordered by zone_id.
func (r *ZoneRepository) Zones(ctx context.Context) ([]types.ZoneDescriptor, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+zoneColumns+`
		 FROM tracked_zones
		 WHERE entity_id = $1 AND disabled_at IS NULL
		 ORDER BY zone_id ASC`,
		r.entityID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list tracked zones", err)
	}
	defer rows.Close()

	var zones []types.ZoneDescriptor
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan tracked zone row", err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating tracked zone rows", err)
	}
	return zones, nil
}

// GetByID returns a single zone. Disabled zones are reported as not found.
func (r *ZoneRepository) GetByID(ctx context.Context, zoneID string) (*types.ZoneDescriptor, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+zoneColumns+`
		 FROM tracked_zones
		 WHERE entity_id = $1 AND zone_id = $2 AND disabled_at IS NULL`,
		r.entityID,
		zoneID,
	)
	z, err := scanZone(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundZone, "zone not tracked", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get tracked zone", err)
	}
	return &z, nil
}

// Upsert inserts or replaces a zone's configuration and re-enables it.
func (r *ZoneRepository) Upsert(ctx context.Context, z types.ZoneDescriptor) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tracked_zones (entity_id, `+zoneColumns+`, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 ON CONFLICT (entity_id, zone_id) DO UPDATE
		   SET display_name = EXCLUDED.display_name,
		       backfill_enabled = EXCLUDED.backfill_enabled,
		       backfill_days = EXCLUDED.backfill_days,
		       retention_days = EXCLUDED.retention_days,
		       enable_averages = EXCLUDED.enable_averages,
		       disabled_at = NULL,
		       updated_at = NOW()`,
		r.entityID,
		z.ZoneID,
		z.DisplayName,
		z.BackfillEnabled,
		z.BackfillDays,
		z.RetentionDays,
		z.EnableAverages,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert tracked zone", err)
	}
	return nil
}

// Disable soft-deletes a zone. The next cycle no longer computes it and its
// metrics are reconciled away.
func (r *ZoneRepository) Disable(ctx context.Context, zoneID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tracked_zones SET disabled_at = NOW()
		 WHERE entity_id = $1 AND zone_id = $2 AND disabled_at IS NULL`,
		r.entityID,
		zoneID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to disable tracked zone", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundZone, "zone not tracked", nil)
	}
	return nil
}

func scanZone(row pgx.Row) (types.ZoneDescriptor, error) {
	var z types.ZoneDescriptor
	var displayName *string
	err := row.Scan(
		&z.ZoneID,
		&displayName,
		&z.BackfillEnabled,
		&z.BackfillDays,
		&z.RetentionDays,
		&z.EnableAverages,
	)
	if displayName != nil {
		z.DisplayName = *displayName
	}
	return z, err
}
