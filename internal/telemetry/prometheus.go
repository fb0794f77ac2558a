package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"zonetime/internal/types"
)

const namespace = "zonetime"

// DwellGauges holds one gauge series per published zone/window metric and
// removes series whose zone or window is no longer published.
type DwellGauges struct {
	vec *prometheus.GaugeVec

	mu     sync.Mutex
	series map[string]prometheus.Labels
}

func newDwellGauges(entityID string) *DwellGauges {
	return &DwellGauges{
		vec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "dwell",
			Name:        "hours",
			Help:        "Hours spent inside a zone over a window, as of the last published cycle.",
			ConstLabels: prometheus.Labels{"entity": entityID},
		}, []string{"zone", "window", "metric_id"}),
		series: make(map[string]prometheus.Labels),
	}
}

// Set updates the series for d.
func (g *DwellGauges) Set(d MetricDescriptor, hours float64) {
	labels := prometheus.Labels{"zone": d.ZoneID, "window": string(d.Window), "metric_id": d.UniqueID}
	g.vec.With(labels).Set(hours)

	g.mu.Lock()
	g.series[d.UniqueID] = labels
	g.mu.Unlock()
}

// Reconcile deletes every series not named in desired and returns the
// removed metric IDs.
func (g *DwellGauges) Reconcile(desired []MetricDescriptor) []string {
	keep := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		keep[d.UniqueID] = struct{}{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	var removed []string
	for id, labels := range g.series {
		if _, ok := keep[id]; ok {
			continue
		}
		g.vec.Delete(labels)
		delete(g.series, id)
		removed = append(removed, id)
	}
	return removed
}

// PrometheusRecorder mirrors each published cycle into Prometheus.
type PrometheusRecorder struct {
	entityID     string
	gauges       *DwellGauges
	cycles       prometheus.Counter
	zoneFailures *prometheus.CounterVec
	duration     prometheus.Histogram
	lastCycle    prometheus.Gauge
	logger       *slog.Logger
}

// NewPrometheusRecorder registers the cycle metrics with reg.
func NewPrometheusRecorder(reg prometheus.Registerer, entityID string, logger *slog.Logger) *PrometheusRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &PrometheusRecorder{
		entityID: entityID,
		gauges:   newDwellGauges(entityID),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycles_total",
			Help:      "Number of published refresh cycles.",
		}),
		zoneFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "zone_failures_total",
			Help:      "Number of zone computations that published zeros, by error code.",
		}, []string{"zone", "error_code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of published refresh cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix timestamp of the most recently published cycle.",
		}),
		logger: logger,
	}
	reg.MustRegister(r.gauges.vec, r.cycles, r.zoneFailures, r.duration, r.lastCycle)
	return r
}

// Gauges exposes the dwell gauge set.
func (r *PrometheusRecorder) Gauges() *DwellGauges {
	return r.gauges
}

// ObserveCycle sets a gauge for every published zone/window and drops the
// series of zones and windows that are gone.
func (r *PrometheusRecorder) ObserveCycle(ctx context.Context, result *types.DwellResult, elapsed time.Duration) {
	desired := make([]MetricDescriptor, 0, len(result.Zones)*len(types.RollingWindows))
	for zoneID, zd := range result.Zones {
		for label, hours := range zd.Hours {
			d := MetricDescriptor{
				UniqueID: MetricID(result.EntityID, zoneID, label),
				ZoneID:   zoneID,
				Window:   label,
			}
			r.gauges.Set(d, hours)
			desired = append(desired, d)
		}
		if zd.Error != "" {
			r.zoneFailures.WithLabelValues(zoneID, string(zd.Error)).Inc()
		}
	}

	if removed := r.gauges.Reconcile(desired); len(removed) > 0 {
		r.logger.InfoContext(ctx, "removed orphaned dwell metrics", "metric_ids", removed)
	}

	r.cycles.Inc()
	r.duration.Observe(elapsed.Seconds())
	r.lastCycle.Set(float64(result.LastUpdated.Unix()))
}
