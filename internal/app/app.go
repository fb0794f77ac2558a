// Package app assembles the zonetime components from a loaded configuration.
// Both the long-running service and the refresh Lambda build through New so
// the two binaries wire history, zones, sinks and telemetry identically.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"zonetime/internal/config"
	"zonetime/internal/db"
	"zonetime/internal/external"
	"zonetime/internal/publish"
	"zonetime/internal/scheduler"
	"zonetime/internal/telemetry"
)

// App holds the wired components. Pool and ZoneStore are nil when the
// configuration does not use the database.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool      *pgxpool.Pool
	ZoneStore *db.ZoneRepository
	Zones     scheduler.ZoneSource

	Store      *scheduler.SnapshotStore
	Aggregator *scheduler.Aggregator
	Runner     *scheduler.Runner
	Publishers []scheduler.SnapshotPublisher

	Registry *prometheus.Registry

	aggCfg  scheduler.AggregatorConfig
	closers []func() error
}

// Option adjusts how New builds the application.
type Option func(*options)

type options struct {
	httpClient *http.Client
	sqsClient  publish.SQSSender
	cwClient   telemetry.CloudWatchClient
}

// WithHTTPClient sets the client used for the Home Assistant REST API.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithSQSClient replaces the SQS client built from the AWS configuration.
func WithSQSClient(c publish.SQSSender) Option {
	return func(o *options) { o.sqsClient = c }
}

// WithCloudWatchClient replaces the CloudWatch client built from the AWS
// configuration.
func WithCloudWatchClient(c telemetry.CloudWatchClient) Option {
	return func(o *options) { o.cwClient = c }
}

// New wires every component cfg asks for. On error, anything already opened
// is closed before returning.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	if err := a.build(ctx, o); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, o options) error {
	cfg, logger := a.Config, a.Logger

	loc, err := cfg.Tracker.Location()
	if err != nil {
		return err
	}

	if needsDatabase(cfg) {
		if err := a.openPool(ctx); err != nil {
			return err
		}
	}

	history, resolver := a.historySource(o.httpClient)
	if !cfg.Tracker.VerifyZones {
		resolver = nil
	}

	if err := a.zoneSource(ctx); err != nil {
		return err
	}

	var awsCfg *aws.Config
	if (cfg.Publish.Sink == config.SinkSQS && o.sqsClient == nil) ||
		(cfg.Observability.MetricsBackend == config.MetricsCloudWatch && o.cwClient == nil) {
		loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		awsCfg = &loaded
	}

	observer := a.observers(awsCfg, o.cwClient)
	if err := a.publishers(awsCfg, o.sqsClient); err != nil {
		return err
	}

	a.Store = scheduler.NewSnapshotStore()
	a.aggCfg = scheduler.AggregatorConfig{
		EntityID:      cfg.Tracker.EntityID,
		History:       history,
		Resolver:      resolver,
		Store:         a.Store,
		Observer:      observer,
		Location:      loc,
		ZoneTimeout:   cfg.Tracker.ZoneTimeout,
		Concurrency:   cfg.Tracker.ZoneConcurrency,
		AveragePolicy: scheduler.AveragePolicy(cfg.Tracker.AveragePolicy),
		RetentionDays: cfg.Tracker.RetentionDays,
		Logger:        logger,
	}
	a.Aggregator = a.NewAggregator(scheduler.NewBackfillCoordinator(logger))
	a.Runner = scheduler.NewRunner(scheduler.RunnerConfig{
		Refresher:  a.Aggregator,
		Zones:      a.Zones,
		Publishers: a.Publishers,
		Interval:   cfg.Tracker.UpdateInterval,
		Logger:     logger,
	})

	logger.Info("components wired",
		"entity_id", cfg.Tracker.EntityID,
		"history_source", cfg.History.Source,
		"zone_source", cfg.Tracker.ZoneSource,
		"sink", cfg.Publish.Sink,
		"metrics_backend", cfg.Observability.MetricsBackend,
		"verify_zones", resolver != nil,
	)
	return nil
}

// NewAggregator builds an aggregator with the wired history, store and
// observers and the given backfill coordinator.
func (a *App) NewAggregator(backfill *scheduler.BackfillCoordinator) *scheduler.Aggregator {
	cfg := a.aggCfg
	cfg.Backfill = backfill
	return scheduler.NewAggregator(cfg)
}

// Close releases the pool and sink connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func needsDatabase(cfg *config.Config) bool {
	return cfg.History.Source == config.HistorySourceRecorder ||
		cfg.Tracker.ZoneSource == config.ZoneSourceDatabase
}

func (a *App) openPool(ctx context.Context) error {
	dbCfg := a.Config.Database
	poolCfg, err := pgxpool.ParseConfig(dbCfg.URL.Unmask())
	if err != nil {
		return fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(dbCfg.MaxConns)
	poolCfg.MinConns = int32(dbCfg.MinConns)
	poolCfg.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = dbCfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return nil
}

func (a *App) historySource(httpClient *http.Client) (scheduler.HistoryFetcher, scheduler.ZoneResolver) {
	if a.Config.History.Source == config.HistorySourceRecorder {
		repo := db.NewRecorderHistoryRepository(a.Pool)
		return repo, repo
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: a.Config.History.RequestTimeout}
	}
	client := external.NewHomeAssistantClient(external.HomeAssistantConfig{
		BaseURL:    a.Config.History.BaseURL,
		Token:      a.Config.History.Token.Unmask(),
		HTTPClient: httpClient,
		Options:    []external.BaseClientOption{external.WithBreaker(external.NewBreaker("homeassistant"))},
	})
	return client, client
}

func (a *App) zoneSource(ctx context.Context) error {
	if a.Config.Tracker.ZoneSource == config.ZoneSourceDatabase {
		repo := db.NewZoneRepository(a.Pool, a.Config.Tracker.EntityID)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing tracked_zones: %w", err)
		}
		a.ZoneStore = repo
		a.Zones = repo
		return nil
	}

	zones, err := a.Config.Tracker.ParseZones()
	if err != nil {
		return err
	}
	a.Zones = config.StaticZones(zones)
	return nil
}

func (a *App) observers(awsCfg *aws.Config, cw telemetry.CloudWatchClient) scheduler.CycleObserver {
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	fanout := telemetry.Fanout{
		telemetry.NewPrometheusRecorder(a.Registry, a.Config.Tracker.EntityID, a.Logger),
	}

	if a.Config.Observability.MetricsBackend == config.MetricsCloudWatch {
		if cw == nil {
			cw = cloudwatch.NewFromConfig(*awsCfg, func(o *cloudwatch.Options) {
				if ep := a.Config.AWS.EndpointURL; ep != "" {
					o.BaseEndpoint = aws.String(ep)
				}
			})
		}
		fanout = append(fanout, telemetry.NewCloudWatchRecorder(cw, a.Logger))
	}
	return fanout
}

func (a *App) publishers(awsCfg *aws.Config, sqsClient publish.SQSSender) error {
	pc := a.Config.Publish
	switch pc.Sink {
	case config.SinkSQS:
		if sqsClient == nil {
			sqsClient = sqs.NewFromConfig(*awsCfg, func(o *sqs.Options) {
				if ep := a.Config.AWS.EndpointURL; ep != "" {
					o.BaseEndpoint = aws.String(ep)
				}
			})
		}
		a.Publishers = append(a.Publishers, publish.NewSQSSink(sqsClient, pc.SQSQueueURL, a.Logger))
	case config.SinkKafka:
		writer := publish.NewKafkaWriter(pc.KafkaBrokers, pc.KafkaTopic)
		sink := publish.NewKafkaSink(writer, pc.KafkaTopic, a.Logger)
		a.Publishers = append(a.Publishers, sink)
		a.closers = append(a.closers, sink.Close)
	case config.SinkNone, "":
	default:
		return fmt.Errorf("unknown publish sink %q", pc.Sink)
	}
	return nil
}
