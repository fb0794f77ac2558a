package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zonetime/internal/app"
	"zonetime/internal/config"
	"zonetime/internal/core"
)

func newTestServer(t *testing.T) (*core.Server, *app.App) {
	t.Helper()

	ha := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/history/period/") {
			_, _ = w.Write([]byte(`[[{"entity_id":"person.alice","state":"home","last_changed":"2026-10-01T00:00:00+00:00"}]]`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(ha.Close)

	cfg := &config.Config{
		Environment: "local",
		LogLevel:    "error",
		Server:      config.ServerConfig{Port: "0", WriteTimeout: 10 * time.Second},
		Tracker: config.TrackerConfig{
			EntityID:       "person.alice",
			Timezone:       "UTC",
			UpdateInterval: time.Minute,
			ZoneSource:     config.ZoneSourceStatic,
			ZonesJSON:      `[{"zone_id":"zone.home","display_name":"home"}]`,
		},
		History: config.HistoryConfig{
			Source:         config.HistorySourceHomeAssistant,
			BaseURL:        ha.URL,
			Token:          "token",
			RequestTimeout: 5 * time.Second,
		},
		Publish:       config.PublishConfig{Sink: config.SinkNone},
		Observability: config.ObservabilityConfig{MetricsBackend: config.MetricsPrometheus, StaleAfter: time.Minute},
	}

	logger := newLogger(cfg.LogLevel)
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	configureServer(srv, a)
	srv.MountRoutes()
	return srv, a
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestConfigureServer_BeforeAndAfterFirstCycle(t *testing.T) {
	srv, a := newTestServer(t)
	h := srv.Handler()

	if rec := get(t, h, "/v1/dwell"); rec.Code != http.StatusNotFound {
		t.Errorf("dwell before first cycle = %d, want 404", rec.Code)
	}
	if rec := get(t, h, "/health"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health before first cycle = %d, want 503", rec.Code)
	}

	if _, err := a.Runner.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	if rec := get(t, h, "/v1/dwell"); rec.Code != http.StatusOK {
		t.Errorf("dwell after cycle = %d", rec.Code)
	}
	if rec := get(t, h, "/health"); rec.Code != http.StatusOK {
		t.Errorf("health after cycle = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := get(t, h, "/v1/zones/zone.home/metrics"); rec.Code != http.StatusOK {
		t.Errorf("zone metrics = %d", rec.Code)
	}

	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"zonetime_dwell_hours", "zonetime_http_request_duration_seconds"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestConfigureServer_AdminRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/refresh", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh without admin hash = %d, want 401", rec.Code)
	}

	// The zone admin API only exists for the database zone source.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/zones/zone.gym", strings.NewReader(`{}`)))
	if rec.Code != http.StatusMethodNotAllowed && rec.Code != http.StatusNotFound {
		t.Errorf("zone admin on static source = %d", rec.Code)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		logger := newLogger(tt.level)
		if !logger.Enabled(context.Background(), tt.want) {
			t.Errorf("level %q: %v not enabled", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-1) {
			t.Errorf("level %q: below %v enabled", tt.level, tt.want)
		}
	}
}

func TestSecretProvider(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	if p := secretProvider(); p != nil {
		t.Errorf("local provider = %T, want nil", p)
	}
	t.Setenv("APP_ENV", "prod")
	if p := secretProvider(); p == nil {
		t.Error("prod provider is nil")
	}
}
