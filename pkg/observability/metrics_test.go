package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

func setupTreeMetrics(t *testing.T) (*observability.TreeMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tm, err := observability.NewTreeMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return tm, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

// counterValue sums the data points of a counter whose attributes contain all of attrs.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	found := findMetric(rm, name)
	require.NotNil(t, found, "metric %s not recorded", name)

	sum, ok := found.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64

	for _, dp := range sum.DataPoints {
		matches := true

		for _, kv := range attrs {
			got, present := dp.Attributes.Value(kv.Key)
			if !present || got != kv.Value {
				matches = false

				break
			}
		}

		if matches {
			total += dp.Value
		}
	}

	return total
}

func TestTreeMetrics_ObservesMap(t *testing.T) {
	t.Parallel()

	tm, reader := setupTreeMetrics(t)
	m := rbtree.New[int, string](rbtree.WithObserver(tm))

	m.Set(10, "a")
	m.Set(20, "b")
	m.Set(30, "c")
	m.Set(30, "d")
	m.Delete(99)
	m.Delete(10)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(3), counterValue(t, rm, "rbmap.tree.ops.total", attribute.String("result", "inserted")))
	assert.Equal(t, int64(1), counterValue(t, rm, "rbmap.tree.ops.total", attribute.String("result", "updated")))
	assert.Equal(t, int64(1), counterValue(t, rm, "rbmap.tree.ops.total", attribute.String("result", "deleted")))
	assert.Equal(t, int64(1), counterValue(t, rm, "rbmap.tree.ops.total", attribute.String("result", "missing")))
	assert.Equal(t, int64(4), counterValue(t, rm, "rbmap.tree.ops.total", attribute.String("op", "set")))
	assert.Equal(t, m.Stats().Rotations, counterValue(t, rm, "rbmap.tree.rotations.total"))
	assert.Equal(t, m.Stats().InsertFixups,
		counterValue(t, rm, "rbmap.tree.fixups.total", attribute.String("phase", "insert")))
	assert.Equal(t, m.Stats().DeleteFixups,
		counterValue(t, rm, "rbmap.tree.fixups.total", attribute.String("phase", "delete")))
	assert.Equal(t, int64(1), counterValue(t, rm, "rbmap.tree.deficits.total"))
}

func TestTreeMetrics_IdleMapRecordsNothing(t *testing.T) {
	t.Parallel()

	_, reader := setupTreeMetrics(t)

	rm := collectMetrics(t, reader)

	assert.Nil(t, findMetric(rm, "rbmap.tree.rotations.total"))
}
