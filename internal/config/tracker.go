package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"zonetime/internal/types"
)

// Location resolves the configured IANA time zone.
func (c TrackerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TRACKER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ParseZones decodes and validates TRACKER_ZONES. Zone IDs must be unique.
func (c TrackerConfig) ParseZones() ([]types.ZoneDescriptor, error) {
	if strings.TrimSpace(c.ZonesJSON) == "" {
		return nil, nil
	}
	var zones []types.ZoneDescriptor
	if err := json.Unmarshal([]byte(c.ZonesJSON), &zones); err != nil {
		return nil, fmt.Errorf("decode TRACKER_ZONES: %w", err)
	}

	validate := validator.New()
	seen := make(map[string]bool, len(zones))
	for i, z := range zones {
		if err := validate.Struct(z); err != nil {
			return nil, fmt.Errorf("zone %d: %w", i, err)
		}
		if seen[z.ZoneID] {
			return nil, fmt.Errorf("zone %d: duplicate zone_id %q", i, z.ZoneID)
		}
		seen[z.ZoneID] = true
	}
	return zones, nil
}

// StaticZones serves a fixed zone list from configuration.
type StaticZones []types.ZoneDescriptor

// Zones returns a copy of the configured descriptors.
func (s StaticZones) Zones(context.Context) ([]types.ZoneDescriptor, error) {
	out := make([]types.ZoneDescriptor, len(s))
	copy(out, s)
	return out, nil
}

// validateSources checks the rules that span sections and cannot be
// expressed as struct tags.
func validateSources(cfg *Config) error {
	var problems []string

	if _, err := cfg.Tracker.Location(); err != nil {
		problems = append(problems, err.Error())
	}

	needsDB := cfg.History.Source == HistorySourceRecorder || cfg.Tracker.ZoneSource == ZoneSourceDatabase
	if needsDB && cfg.Database.URL.IsEmpty() {
		problems = append(problems, "DATABASE_URL is required for the recorder history source or database zone source")
	}

	if cfg.History.Source == HistorySourceHomeAssistant {
		if cfg.History.BaseURL == "" {
			problems = append(problems, "HA_BASE_URL is required when HISTORY_SOURCE=rest")
		}
		if cfg.History.Token.IsEmpty() {
			problems = append(problems, "HA_TOKEN is required when HISTORY_SOURCE=rest")
		}
	}

	if cfg.Tracker.ZoneSource == ZoneSourceStatic {
		zones, err := cfg.Tracker.ParseZones()
		switch {
		case err != nil:
			problems = append(problems, err.Error())
		case len(zones) == 0:
			problems = append(problems, "TRACKER_ZONES must list at least one zone when TRACKER_ZONE_SOURCE=static")
		}
	}

	switch cfg.Publish.Sink {
	case SinkSQS:
		if cfg.Publish.SQSQueueURL == "" {
			problems = append(problems, "SQS_SNAPSHOT_QUEUE is required when PUBLISH_SINK=sqs")
		}
	case SinkKafka:
		if len(cfg.Publish.KafkaBrokers) == 0 {
			problems = append(problems, "KAFKA_BROKERS is required when PUBLISH_SINK=kafka")
		}
	}

	if cfg.Database.MinConns > cfg.Database.MaxConns {
		problems = append(problems, "DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
