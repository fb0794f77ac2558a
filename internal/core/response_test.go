package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zonetime/internal/types"
)

func TestJSONWritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(rec, req, http.StatusCreated, APIResponse{
		Data: map[string]float64{"today": 3},
		Meta: &ResponseMeta{CycleID: "c1", LastUpdated: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)},
	})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	want := `{"data":{"today":3},"meta":{"cycle_id":"c1","last_updated":"2026-10-14T12:00:00Z"}}`
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %s\nwant  %s", got, want)
	}
}

func TestJSONMarshalFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, APIResponse{Data: make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   types.ErrorCode
		wantMsg    string
	}{
		{
			name:       "not found",
			err:        types.NewAppError(types.ErrCodeNotFoundZone, "zone not tracked", nil),
			wantStatus: http.StatusNotFound,
			wantCode:   types.ErrCodeNotFoundZone,
			wantMsg:    "zone not tracked",
		},
		{
			name:       "conflict wrapped",
			err:        fmt.Errorf("manual refresh: %w", types.NewAppError(types.ErrCodeConflictRefreshInProgress, "refresh in progress", nil)),
			wantStatus: http.StatusConflict,
			wantCode:   types.ErrCodeConflictRefreshInProgress,
			wantMsg:    "refresh in progress",
		},
		{
			name:       "generic error hides cause",
			err:        errors.New("pq: password authentication failed"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   types.ErrCodeInternalUnexpected,
			wantMsg:    "an unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(types.WithRequestID(req.Context(), "req-9"))
			rec := httptest.NewRecorder()

			Error(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body APIErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != string(tt.wantCode) || body.Error.Message != tt.wantMsg || body.Error.RequestID != "req-9" {
				t.Errorf("error = %+v", body.Error)
			}
		})
	}
}

type decodeTarget struct {
	ZoneID string `json:"zone_id"`
	Days   int    `json:"backfill_days"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"zone_id":"zone.home","backfill_days":7}`},
		{name: "empty", body: ``, wantErr: "must not be empty"},
		{name: "syntax", body: `{"zone_id":`, wantErr: "invalid JSON"},
		{name: "unknown field", body: `{"zone_id":"zone.home","colour":"red"}`, wantErr: "unknown field"},
		{name: "wrong type", body: `{"backfill_days":"seven"}`, wantErr: "invalid value"},
		{name: "two values", body: `{"zone_id":"a"}{"zone_id":"b"}`, wantErr: "single JSON object"},
		{name: "too large", body: `{"zone_id":"` + strings.Repeat("x", maxRequestBodySize) + `"}`, wantErr: "must not exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			var dst decodeTarget
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.ZoneID != "zone.home" || dst.Days != 7 {
					t.Errorf("decoded %+v", dst)
				}
				return
			}
			if types.CodeOf(err) != types.ErrCodeValidationInvalidJSON {
				t.Fatalf("err = %v, want %s", err, types.ErrCodeValidationInvalidJSON)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
