// Package publish forwards each published dwell snapshot to downstream
// consumers over SQS or Kafka.
package publish

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"zonetime/internal/types"
)

// SchemaVersion is bumped on incompatible changes to SnapshotMessage.
const SchemaVersion = 1

// SnapshotMessage is the wire form of a published DwellResult.
type SnapshotMessage struct {
	SchemaVersion int           `json:"schema_version"`
	CycleID       string        `json:"cycle_id"`
	EntityID      string        `json:"entity_id"`
	LastUpdated   time.Time     `json:"last_updated"`
	Zones         []ZoneMessage `json:"zones"`
}

// ZoneMessage carries one zone's hours. Error is set when the hours are
// zeros substituted for a failed computation.
type ZoneMessage struct {
	ZoneID      string                        `json:"zone_id"`
	DisplayName string                        `json:"display_name"`
	Hours       map[types.WindowLabel]float64 `json:"hours"`
	Backfilled  bool                          `json:"backfilled"`
	Error       types.ErrorCode               `json:"error,omitempty"`
}

// NewSnapshotMessage converts a result, ordering zones by ID.
func NewSnapshotMessage(r *types.DwellResult) SnapshotMessage {
	msg := SnapshotMessage{
		SchemaVersion: SchemaVersion,
		CycleID:       r.CycleID,
		EntityID:      r.EntityID,
		LastUpdated:   r.LastUpdated.UTC(),
		Zones:         make([]ZoneMessage, 0, len(r.Zones)),
	}
	for _, z := range r.Zones {
		msg.Zones = append(msg.Zones, ZoneMessage{
			ZoneID:      z.ZoneID,
			DisplayName: z.DisplayName,
			Hours:       z.Hours,
			Backfilled:  z.Backfilled,
			Error:       z.Error,
		})
	}
	sort.Slice(msg.Zones, func(i, j int) bool { return msg.Zones[i].ZoneID < msg.Zones[j].ZoneID })
	return msg
}

func encode(r *types.DwellResult) ([]byte, error) {
	body, err := json.Marshal(NewSnapshotMessage(r))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot %s: %w", r.CycleID, err)
	}
	return body, nil
}
