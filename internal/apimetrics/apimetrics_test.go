package apimetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_SnapshotAggregatesPerEndpoint(t *testing.T) {
	rec := NewRecorder()
	rec.Observe("get_order", 0.010, false)
	rec.Observe("get_order", 0.020, false)
	rec.Observe("get_order", 0.030, true)
	rec.Observe("list_orders", 0.005, false)

	snapshot, err := rec.Snapshot()
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	byEndpoint := make(map[string]EndpointStats, len(snapshot))
	for _, s := range snapshot {
		byEndpoint[s.Endpoint] = s
	}

	order := byEndpoint["get_order"]
	assert.EqualValues(t, 3, order.RequestCount)
	assert.EqualValues(t, 1, order.ErrorCount)
	assert.InDelta(t, 20.0, order.AverageLatency, 0.01)

	list := byEndpoint["list_orders"]
	assert.EqualValues(t, 1, list.RequestCount)
	assert.EqualValues(t, 0, list.ErrorCount)
}

func TestRecorder_SnapshotEmptyBeforeAnyObservation(t *testing.T) {
	rec := NewRecorder()
	snapshot, err := rec.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}
