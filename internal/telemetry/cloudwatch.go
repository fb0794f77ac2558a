package telemetry

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"zonetime/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// maxDatumsPerCall is the PutMetricData limit.
const maxDatumsPerCall = 1000

// CloudWatchRecorder emits cycle metrics to CloudWatch:
//   - RefreshCycle: Dims {Entity}, count 1 per published cycle
//   - RefreshDuration: Dims {Entity}, milliseconds
//   - ZoneFailure: Dims {Entity, Zone, ErrorCode}, per failed zone
//   - DwellHours: Dims {Entity, Zone, Window}, per published value
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchRecorder creates a recorder publishing to types.MetricNamespace.
func NewCloudWatchRecorder(client CloudWatchClient, logger *slog.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// ObserveCycle sends the cycle's datums. Failures are logged only.
func (m *CloudWatchRecorder) ObserveCycle(ctx context.Context, result *types.DwellResult, elapsed time.Duration) {
	ts := aws.Time(result.LastUpdated)
	entity := dim(types.DimEntity, result.EntityID)

	data := []cwtypes.MetricDatum{
		{
			MetricName: aws.String(types.MetricRefreshCycle),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  ts,
			Dimensions: []cwtypes.Dimension{entity},
		},
		{
			MetricName: aws.String(types.MetricRefreshDuration),
			Value:      aws.Float64(float64(elapsed.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Timestamp:  ts,
			Dimensions: []cwtypes.Dimension{entity},
		},
	}

	zoneIDs := make([]string, 0, len(result.Zones))
	for id := range result.Zones {
		zoneIDs = append(zoneIDs, id)
	}
	sort.Strings(zoneIDs)

	for _, zoneID := range zoneIDs {
		zd := result.Zones[zoneID]
		if zd.Error != "" {
			data = append(data, cwtypes.MetricDatum{
				MetricName: aws.String(types.MetricZoneFailure),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  ts,
				Dimensions: []cwtypes.Dimension{entity, dim(types.DimZone, zoneID), dim(types.DimErrorCode, string(zd.Error))},
			})
			continue
		}
		for _, label := range append(append([]types.WindowLabel{}, types.RollingWindows...), types.WeekdayWindows...) {
			hours, ok := zd.Hours[label]
			if !ok {
				continue
			}
			data = append(data, cwtypes.MetricDatum{
				MetricName: aws.String(types.MetricDwellHours),
				Value:      aws.Float64(hours),
				Unit:       cwtypes.StandardUnitNone,
				Timestamp:  ts,
				Dimensions: []cwtypes.Dimension{entity, dim(types.DimZone, zoneID), dim(types.DimWindow, string(label))},
			})
		}
	}

	for start := 0; start < len(data); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(data))
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: data[start:end],
		})
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to record cycle metrics",
				"error", err.Error(),
				"cycle_id", result.CycleID,
				"datums", end-start,
			)
		}
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// Observer receives every published cycle.
type Observer interface {
	ObserveCycle(ctx context.Context, result *types.DwellResult, elapsed time.Duration)
}

// Fanout forwards each cycle to every observer in order.
type Fanout []Observer

// ObserveCycle implements Observer.
func (f Fanout) ObserveCycle(ctx context.Context, result *types.DwellResult, elapsed time.Duration) {
	for _, o := range f {
		o.ObserveCycle(ctx, result, elapsed)
	}
}
