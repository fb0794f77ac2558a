package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zonetime/internal/config"
)

func serveHealth(t *testing.T, s *Server) (int, healthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	return rec.Code, body
}

func TestHandleHealthNoProbes(t *testing.T) {
	s := newTestServer(t, &config.Config{Build: config.BuildInfo{Version: "1.4.0"}})

	code, body := serveHealth(t, s)
	if code != http.StatusOK || body.Status != "healthy" || body.Version != "1.4.0" {
		t.Errorf("got %d %+v", code, body)
	}
}

func TestHandleHealthAllHealthy(t *testing.T) {
	s := newTestServer(t, nil)
	s.HealthProbes = []HealthProbe{
		NewProbe("database", func(context.Context) error { return nil }),
		FreshnessProbe{LastUpdated: time.Now, MaxAge: time.Minute},
	}

	code, body := serveHealth(t, s)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Components["database"].Status != "healthy" || body.Components["snapshot"].Status != "healthy" {
		t.Errorf("components = %+v", body.Components)
	}
}

func TestHandleHealthFailingProbe(t *testing.T) {
	s := newTestServer(t, nil)
	s.HealthProbes = []HealthProbe{
		NewProbe("database", func(context.Context) error { return errors.New("connection refused") }),
		NewProbe("panicky", func(context.Context) error { panic("probe bug") }),
	}

	code, body := serveHealth(t, s)
	if code != http.StatusServiceUnavailable || body.Status != "unhealthy" {
		t.Fatalf("got %d %+v", code, body)
	}
	if body.Components["database"].Message != "connection refused" {
		t.Errorf("database = %+v", body.Components["database"])
	}
	if !strings.Contains(body.Components["panicky"].Message, "panicked") {
		t.Errorf("panicky = %+v", body.Components["panicky"])
	}
}

func TestHandleHealthProbeTimeout(t *testing.T) {
	s := newTestServer(t, nil)
	release := make(chan struct{})
	defer close(release)
	s.HealthProbes = []HealthProbe{
		NewProbe("slow", func(ctx context.Context) error {
			select {
			case <-release:
			case <-time.After(10 * time.Second):
			}
			return nil
		}),
	}

	code, body := serveHealth(t, s)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", code)
	}
	if body.Components["slow"].Message != "health check timed out" {
		t.Errorf("slow = %+v", body.Components["slow"])
	}
}

func TestFreshnessProbe(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tests := []struct {
		name    string
		last    time.Time
		wantErr string
	}{
		{name: "never published", wantErr: "no snapshot"},
		{name: "fresh", last: now.Add(-30 * time.Second)},
		{name: "stale", last: now.Add(-10 * time.Minute), wantErr: "10m0s old"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FreshnessProbe{LastUpdated: func() time.Time { return tt.last }, MaxAge: 5 * time.Minute, Now: clock}
			err := p.Check(context.Background())
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
