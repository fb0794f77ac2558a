package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonetime/internal/types"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func TestCloudWatchRecorder_ObserveCycle(t *testing.T) {
	cw := &fakeCloudWatch{}
	rec := NewCloudWatchRecorder(cw, discardLogger())

	rec.ObserveCycle(context.Background(), cycleResult(map[string]*types.ZoneDwell{
		"zone.home": {ZoneID: "zone.home", Hours: map[types.WindowLabel]float64{
			types.WindowToday: 3, types.WindowWeek: 11, types.WindowMonth: 11,
		}},
		"zone.gym": {ZoneID: "zone.gym", Error: types.ErrCodeNotFoundZone},
	}), 1500*time.Millisecond)

	require.Len(t, cw.inputs, 1)
	in := cw.inputs[0]
	assert.Equal(t, types.MetricNamespace, aws.ToString(in.Namespace))

	names := map[string]int{}
	for _, d := range in.MetricData {
		names[aws.ToString(d.MetricName)]++
	}
	assert.Equal(t, 1, names[types.MetricRefreshCycle])
	assert.Equal(t, 1, names[types.MetricRefreshDuration])
	assert.Equal(t, 1, names[types.MetricZoneFailure])
	assert.Equal(t, 3, names[types.MetricDwellHours])

	assert.Equal(t, 1500.0, aws.ToFloat64(in.MetricData[1].Value))
	failure := in.MetricData[2]
	require.Len(t, failure.Dimensions, 3)
	assert.Equal(t, "zone.gym", aws.ToString(failure.Dimensions[1].Value))
	assert.Equal(t, string(types.ErrCodeNotFoundZone), aws.ToString(failure.Dimensions[2].Value))
}

func TestCloudWatchRecorder_ErrorIsSwallowed(t *testing.T) {
	cw := &fakeCloudWatch{err: errors.New("throttled")}
	rec := NewCloudWatchRecorder(cw, discardLogger())

	assert.NotPanics(t, func() {
		rec.ObserveCycle(context.Background(), cycleResult(nil), time.Second)
	})
	assert.Len(t, cw.inputs, 1)
}

type countingObserver struct{ n int }

func (c *countingObserver) ObserveCycle(context.Context, *types.DwellResult, time.Duration) { c.n++ }

func TestFanout(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	Fanout{a, b}.ObserveCycle(context.Background(), cycleResult(nil), time.Second)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}
