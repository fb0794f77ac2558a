package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zonetime/internal/core"
	"zonetime/internal/types"
)

// ZoneStore persists tracked zone descriptors.
type ZoneStore interface {
	GetByID(ctx context.Context, zoneID string) (*types.ZoneDescriptor, error)
	Upsert(ctx context.Context, z types.ZoneDescriptor) error
	Disable(ctx context.Context, zoneID string) error
}

// StructValidator validates request bodies.
type StructValidator interface {
	ValidateStruct(v any) error
}

// PutZoneRequest is the body of PUT /v1/zones/{zoneID}. The zone ID comes
// from the path.
type PutZoneRequest struct {
	DisplayName     string `json:"display_name" validate:"max=100"`
	BackfillEnabled bool   `json:"backfill_enabled"`
	BackfillDays    int    `json:"backfill_days" validate:"min=0,max=3650"`
	RetentionDays   int    `json:"retention_days" validate:"min=0,max=3650"`
	EnableAverages  bool   `json:"enable_averages"`
}

// zoneIDParam validates the path parameter with the same rule as bodies.
type zoneIDParam struct {
	ZoneID string `validate:"required,zone_id"`
}

// ZoneAdminHandler edits the database-backed zone list. Changes are picked
// up by the next refresh cycle.
type ZoneAdminHandler struct {
	store     ZoneStore
	validator StructValidator
	logger    *slog.Logger
}

// NewZoneAdminHandler creates a ZoneAdminHandler.
func NewZoneAdminHandler(store ZoneStore, v StructValidator, l *slog.Logger) *ZoneAdminHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ZoneAdminHandler{store: store, validator: v, logger: l}
}

// RegisterRoutes mounts the zone admin routes. The caller applies the admin
// middleware.
func (h *ZoneAdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/zones/{zoneID}", h.Get)
	r.Put("/zones/{zoneID}", h.Put)
	r.Delete("/zones/{zoneID}", h.Delete)
}

// Get handles GET /v1/zones/{zoneID}.
func (h *ZoneAdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	zoneID, ok := h.zoneID(w, r)
	if !ok {
		return
	}
	zone, err := h.store.GetByID(r.Context(), zoneID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: zone})
}

// Put handles PUT /v1/zones/{zoneID}: create or replace, re-enabling a
// disabled zone.
func (h *ZoneAdminHandler) Put(w http.ResponseWriter, r *http.Request) {
	zoneID, ok := h.zoneID(w, r)
	if !ok {
		return
	}

	var req PutZoneRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	zone := types.ZoneDescriptor{
		ZoneID:          zoneID,
		DisplayName:     req.DisplayName,
		BackfillEnabled: req.BackfillEnabled,
		BackfillDays:    req.BackfillDays,
		RetentionDays:   req.RetentionDays,
		EnableAverages:  req.EnableAverages,
	}
	if err := h.store.Upsert(r.Context(), zone); err != nil {
		core.Error(w, r, err)
		return
	}

	types.LoggerFromContext(r.Context(), h.logger).InfoContext(r.Context(), "tracked zone saved",
		"zone_id", zoneID,
		"enable_averages", zone.EnableAverages,
		"backfill_days", zone.BackfillDays,
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: zone})
}

// Delete handles DELETE /v1/zones/{zoneID}.
func (h *ZoneAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	zoneID, ok := h.zoneID(w, r)
	if !ok {
		return
	}
	if err := h.store.Disable(r.Context(), zoneID); err != nil {
		core.Error(w, r, err)
		return
	}
	types.LoggerFromContext(r.Context(), h.logger).InfoContext(r.Context(), "tracked zone disabled", "zone_id", zoneID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ZoneAdminHandler) zoneID(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := zoneIDParam{ZoneID: chi.URLParam(r, "zoneID")}
	if err := h.validator.ValidateStruct(p); err != nil {
		core.Error(w, r, err)
		return "", false
	}
	return p.ZoneID, true
}
