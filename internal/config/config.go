// Package config defines the configuration for the zonetime service and its
// refresh Lambda. Configuration is loaded once at process start and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"zonetime/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the sections they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"zonetime"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Tracker       TrackerConfig
	History       HistoryConfig
	Publish       PublishConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	AWS           AWSConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters. The
// database is the Home Assistant recorder and, when zones are managed through
// the API, the tracked_zones table.
type DatabaseConfig struct {
	// Resolved from SSM or Env. Required when the recorder or database zone
	// source is in use; checked in validateSources.
	URL SecretString `envconfig:"DATABASE_URL"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2" validate:"min=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// Zone source values for TrackerConfig.ZoneSource.
const (
	ZoneSourceStatic   = "static"
	ZoneSourceDatabase = "database"
)

// TrackerConfig describes the tracked person and how often and how far back
// dwell time is computed.
type TrackerConfig struct {
	EntityID       string        `envconfig:"TRACKER_ENTITY_ID" validate:"required,startswith=person."`
	Timezone       string        `envconfig:"TRACKER_TIMEZONE" default:"UTC"`
	UpdateInterval time.Duration `envconfig:"TRACKER_UPDATE_INTERVAL" default:"60s" validate:"min=1s"`
	RetentionDays  int           `envconfig:"TRACKER_RETENTION_DAYS" default:"90" validate:"min=1,max=3650"`
	ZoneTimeout    time.Duration `envconfig:"TRACKER_ZONE_TIMEOUT" default:"20s" validate:"min=1s"`
	// ZoneConcurrency bounds how many zones are computed at once.
	ZoneConcurrency int    `envconfig:"TRACKER_ZONE_CONCURRENCY" default:"4" validate:"min=1,max=64"`
	AveragePolicy   string `envconfig:"TRACKER_AVERAGE_POLICY" default:"count_empty" validate:"oneof=count_empty exclude_empty"`
	ZoneSource      string `envconfig:"TRACKER_ZONE_SOURCE" default:"static" validate:"oneof=static database"`
	// ZonesJSON is a JSON array of zone descriptors, used by the static source.
	// Example: [{"zone_id":"zone.home","enable_averages":true}]
	ZonesJSON string `envconfig:"TRACKER_ZONES" validate:"omitempty,json"`
	// VerifyZones checks each zone still exists before computing it.
	VerifyZones bool `envconfig:"TRACKER_VERIFY_ZONES" default:"false"`
}

// History source values for HistoryConfig.Source.
const (
	HistorySourceRecorder      = "recorder"
	HistorySourceHomeAssistant = "rest"
)

// HistoryConfig selects where location history is read from: the recorder
// database directly or the Home Assistant REST API.
type HistoryConfig struct {
	Source         string        `envconfig:"HISTORY_SOURCE" default:"recorder" validate:"oneof=recorder rest"`
	BaseURL        string        `envconfig:"HA_BASE_URL" validate:"omitempty,url"`
	Token          SecretString  `envconfig:"HA_TOKEN"`
	RequestTimeout time.Duration `envconfig:"HA_REQUEST_TIMEOUT" default:"15s"`
}

// Sink values for PublishConfig.Sink.
const (
	SinkNone  = "none"
	SinkSQS   = "sqs"
	SinkKafka = "kafka"
)

// PublishConfig selects where completed snapshots are sent.
type PublishConfig struct {
	Sink         string   `envconfig:"PUBLISH_SINK" default:"none" validate:"oneof=none sqs kafka"`
	SQSQueueURL  string   `envconfig:"SQS_SNAPSHOT_QUEUE" validate:"omitempty,url"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"zonetime.snapshots"`
}

// Metrics backends for ObservabilityConfig.MetricsBackend.
const (
	MetricsPrometheus = "prometheus"
	MetricsCloudWatch = "cloudwatch"
)

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricsBackend string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch"`
	// StaleAfter marks the health check degraded when the last snapshot is
	// older than this.
	StaleAfter time.Duration `envconfig:"HEALTH_STALE_AFTER" default:"5m"`
}

// SecurityConfig holds admin access settings.
type SecurityConfig struct {
	// AdminAPIKeyHash is the bcrypt hash of the key accepted by admin
	// endpoints. Empty disables them.
	AdminAPIKeyHash SecretString `envconfig:"ADMIN_API_KEY_HASH"`
}

// AWSConfig holds regional configuration for SSM, SQS and CloudWatch.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
