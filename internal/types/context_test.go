package types

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID = %q, want %q", got, "req-123")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on empty context = %q, want empty", got)
	}
}

func TestCycleIDRoundTrip(t *testing.T) {
	ctx := WithCycleID(context.Background(), "cycle-1")
	if got := GetCycleID(ctx); got != "cycle-1" {
		t.Errorf("GetCycleID = %q, want %q", got, "cycle-1")
	}
	if got := GetCycleID(context.Background()); got != "" {
		t.Errorf("GetCycleID on empty context = %q, want empty", got)
	}
}

func TestLoggerFromContext(t *testing.T) {
	stored := slog.New(slog.NewTextHandler(io.Discard, nil))
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("stored logger wins", func(t *testing.T) {
		ctx := WithLogger(context.Background(), stored)
		if got := LoggerFromContext(ctx, fallback); got != stored {
			t.Error("expected the stored logger")
		}
	})

	t.Run("fallback when absent", func(t *testing.T) {
		if got := LoggerFromContext(context.Background(), fallback); got != fallback {
			t.Error("expected the fallback logger")
		}
	})

	t.Run("default when no fallback", func(t *testing.T) {
		if got := LoggerFromContext(context.Background(), nil); got == nil {
			t.Error("expected slog.Default, got nil")
		}
	})
}
