// Package main is the entry point for the refresh Lambda.
//
// An EventBridge schedule invokes it once per interval. Each invocation runs a
// single refresh cycle and forwards the snapshot to the configured sink; the
// snapshot store lives only as long as the execution environment, so the sink
// is how results leave the function. Backfill applies on the first invocation
// of each cold start, or whenever the event sets force_backfill.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"zonetime/internal/app"
	"zonetime/internal/config"
	"zonetime/internal/scheduler"
	"zonetime/internal/types"
)

// RefreshInput is the invocation payload. Both fields are optional; a plain
// scheduled event refreshes at the current time.
type RefreshInput struct {
	// ReferenceTime replaces "now" as the cycle's reference instant.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
	// ForceBackfill widens the fetch range as if this were a cold start.
	ForceBackfill bool `json:"force_backfill,omitempty"`
}

// RefreshOutput summarizes the cycle for the invocation log.
type RefreshOutput struct {
	CycleID     string            `json:"cycle_id"`
	EntityID    string            `json:"entity_id"`
	LastUpdated time.Time         `json:"last_updated"`
	Zones       int               `json:"zones"`
	Failures    map[string]string `json:"failures,omitempty"`
}

// refreshHandler runs one cycle per invocation.
type refreshHandler struct {
	zones      scheduler.ZoneSource
	refresher  scheduler.Refresher
	fresh      func() scheduler.Refresher
	publishers []scheduler.SnapshotPublisher
	now        func() time.Time
	logger     *slog.Logger
}

// Handle decodes the event and runs the cycle.
func (h *refreshHandler) Handle(ctx context.Context, event json.RawMessage) (*RefreshOutput, error) {
	var in RefreshInput
	if len(event) > 0 {
		if err := json.Unmarshal(event, &in); err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid refresh event", err)
		}
	}

	refresher := h.refresher
	if in.ForceBackfill {
		refresher = h.fresh()
	}
	clock := h.now
	if in.ReferenceTime != nil {
		ref := *in.ReferenceTime
		if ref.After(h.now()) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidTime,
				"reference_time is in the future", nil, map[string]any{"reference_time": ref})
		}
		clock = func() time.Time { return ref }
	}

	runner := scheduler.NewRunner(scheduler.RunnerConfig{
		Refresher:  refresher,
		Zones:      h.zones,
		Publishers: h.publishers,
		Now:        clock,
		Logger:     h.logger,
	})
	result, err := runner.RefreshNow(ctx)
	if err != nil {
		return nil, err
	}

	out := &RefreshOutput{
		CycleID:     result.CycleID,
		EntityID:    result.EntityID,
		LastUpdated: result.LastUpdated,
		Zones:       len(result.Zones),
	}
	for id, z := range result.Zones {
		if z.Error != "" {
			if out.Failures == nil {
				out.Failures = make(map[string]string)
			}
			out.Failures[id] = string(z.Error)
		}
	}
	h.logger.InfoContext(ctx, "refresh invocation complete",
		"cycle_id", out.CycleID,
		"zones", out.Zones,
		"failures", len(out.Failures),
		"force_backfill", in.ForceBackfill,
	)
	return out, nil
}

func newRefreshHandler(a *app.App) *refreshHandler {
	return &refreshHandler{
		zones:     a.Zones,
		refresher: a.Aggregator,
		fresh: func() scheduler.Refresher {
			return a.NewAggregator(scheduler.NewBackfillCoordinator(a.Logger))
		},
		publishers: a.Publishers,
		now:        time.Now,
		logger:     a.Logger,
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("refresh Lambda initializing (cold start)")

	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to wire components", "error", err)
		os.Exit(1)
	}
	h := newRefreshHandler(a)

	// Local mode: read one event from stdin instead of starting the runtime.
	// Usage: echo '{"force_backfill":true}' | go run ./cmd/refresh-lambda
	if cfg.Environment == "local" {
		if err := runLocal(h, os.Stdin); err != nil {
			logger.Error("handler execution failed", "error", err)
			_ = a.Close()
			os.Exit(1)
		}
		_ = a.Close()
		return
	}

	lambda.StartWithOptions(h.Handle, lambda.WithEnableSIGTERM(func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}))
}

func runLocal(h *refreshHandler, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	out, err := h.Handle(context.Background(), payload)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(out)
}
