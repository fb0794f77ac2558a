// Package handlers contains the HTTP handlers of the zonetime API. Handlers
// depend on small local interfaces and write responses through core.JSON and
// core.Error.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zonetime/internal/core"
	"zonetime/internal/telemetry"
	"zonetime/internal/types"
)

// SnapshotReader returns the most recently published dwell result, or nil
// before the first cycle completes.
type SnapshotReader interface {
	Load() *types.DwellResult
}

// RefreshTrigger runs an out-of-band cycle and reports the zones the last
// cycle used.
type RefreshTrigger interface {
	RefreshNow(ctx context.Context) (*types.DwellResult, error)
	Zones() []types.ZoneDescriptor
}

// DwellHandler serves dwell snapshots, the tracked zone list and the metric
// catalog, and accepts manual refresh requests.
type DwellHandler struct {
	snapshots SnapshotReader
	runner    RefreshTrigger
	entityID  string
	logger    *slog.Logger
}

// NewDwellHandler creates a DwellHandler for the tracked entity.
func NewDwellHandler(snapshots SnapshotReader, runner RefreshTrigger, entityID string, l *slog.Logger) *DwellHandler {
	if l == nil {
		l = slog.Default()
	}
	return &DwellHandler{
		snapshots: snapshots,
		runner:    runner,
		entityID:  entityID,
		logger:    l,
	}
}

// RegisterRoutes mounts the read routes and, behind admin, POST /refresh.
func (h *DwellHandler) RegisterRoutes(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Get("/dwell", h.GetSnapshot)
	r.Get("/dwell/{zoneID}", h.GetZone)
	r.Get("/zones", h.ListZones)
	r.Get("/zones/{zoneID}/metrics", h.GetZoneMetrics)
	r.With(admin).Post("/refresh", h.Refresh)
}

// GetSnapshot handles GET /v1/dwell.
func (h *DwellHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	result, ok := h.current(w, r)
	if !ok {
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result, Meta: meta(result)})
}

// GetZone handles GET /v1/dwell/{zoneID}.
func (h *DwellHandler) GetZone(w http.ResponseWriter, r *http.Request) {
	result, ok := h.current(w, r)
	if !ok {
		return
	}
	zoneID := chi.URLParam(r, "zoneID")
	zone, found := result.Zones[zoneID]
	if !found {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundZone,
			"zone is not in the current snapshot", nil, map[string]any{"zone_id": zoneID}))
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: zone, Meta: meta(result)})
}

// ListZones handles GET /v1/zones: the descriptors the last cycle ran with.
func (h *DwellHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	zones := h.runner.Zones()
	if zones == nil {
		zones = []types.ZoneDescriptor{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: zones})
}

// GetZoneMetrics handles GET /v1/zones/{zoneID}/metrics: the metric
// descriptors the zone publishes, with current values when available.
func (h *DwellHandler) GetZoneMetrics(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")

	var zone *types.ZoneDescriptor
	for _, z := range h.runner.Zones() {
		if z.ZoneID == zoneID {
			zone = &z
			break
		}
	}
	if zone == nil {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundZone,
			"zone is not tracked", nil, map[string]any{"zone_id": zoneID}))
		return
	}

	result := h.snapshots.Load()
	var dwell *types.ZoneDwell
	if result != nil {
		dwell = result.Zones[zoneID]
	}

	catalog := telemetry.Catalog(h.entityID, *zone, dwell != nil && dwell.Backfilled)
	data := make([]metricValue, 0, len(catalog))
	for _, d := range catalog {
		mv := metricValue{MetricDescriptor: d}
		if dwell != nil {
			v := dwell.Hours[d.Window]
			mv.Value = &v
		}
		data = append(data, mv)
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: data, Meta: meta(result)})
}

// Refresh handles POST /v1/refresh. A cycle already in progress answers 409.
func (h *DwellHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := types.LoggerFromContext(r.Context(), h.logger)
	result, err := h.runner.RefreshNow(r.Context())
	if err != nil {
		if types.CodeOf(err) != types.ErrCodeConflictRefreshInProgress {
			logger.ErrorContext(r.Context(), "manual refresh failed", "error", err)
		}
		core.Error(w, r, err)
		return
	}
	logger.InfoContext(r.Context(), "manual refresh completed", "cycle_id", result.CycleID)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result, Meta: meta(result)})
}

func (h *DwellHandler) current(w http.ResponseWriter, r *http.Request) (*types.DwellResult, bool) {
	result := h.snapshots.Load()
	if result == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundSnapshot,
			"no refresh cycle has completed yet", nil))
		return nil, false
	}
	return result, true
}

type metricValue struct {
	telemetry.MetricDescriptor
	Value *float64 `json:"value"`
}

func meta(result *types.DwellResult) *core.ResponseMeta {
	if result == nil {
		return nil
	}
	return &core.ResponseMeta{CycleID: result.CycleID, LastUpdated: result.LastUpdated}
}
