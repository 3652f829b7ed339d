package soc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestMergeNotReady(t *testing.T) {
	live := []PowerSample{{Time: 10, Value: 1}}

	_, ok := MergeSeries(nil, 100, live, nil, true)
	assert.False(t, ok, "unknown window start defers the merge")

	_, ok = MergeSeries(ptr[int64](0), 100, live, nil, false)
	assert.False(t, ok, "pending history defers the merge")
}

func TestMergeHistoryBeforeLive(t *testing.T) {
	historical := []PowerSample{{Time: 0, Value: 100}, {Time: 3600000, Value: 100}}
	live := []PowerSample{{Time: 7200000, Value: -50}}

	series, ok := MergeSeries(ptr[int64](0), 10800000, live, historical, true)
	require.True(t, ok)
	assert.Equal(t, []PowerSample{{0, 100}, {3600000, 100}, {7200000, -50}}, series)
}

func TestMergeLiveWinsOverlap(t *testing.T) {
	historical := []PowerSample{{Time: 5, Value: 1}, {Time: 10, Value: 2}, {Time: 15, Value: 3}}
	live := []PowerSample{{Time: 10, Value: 20}, {Time: 20, Value: 30}}

	series, ok := MergeSeries(ptr[int64](0), 100, live, historical, true)
	require.True(t, ok)
	assert.Equal(t, []PowerSample{{5, 1}, {10, 20}, {20, 30}}, series)
}

func TestMergeWindowBounds(t *testing.T) {
	historical := []PowerSample{{Time: 1, Value: 1}, {Time: 4, Value: 1}}
	live := []PowerSample{{Time: 3, Value: 2}, {Time: 6, Value: 2}, {Time: 9, Value: 2}, {Time: 12, Value: 2}}

	series, ok := MergeSeries(ptr[int64](5), 9, live, historical, true)
	require.True(t, ok)
	assert.Equal(t, []PowerSample{{6, 2}, {9, 2}}, series, "both edges are inclusive")

	for i := 1; i < len(series); i++ {
		assert.Less(t, series[i-1].Time, series[i].Time)
	}
}

func TestMergeEmptyWindow(t *testing.T) {
	series, ok := MergeSeries(ptr[int64](50), 100, []PowerSample{{Time: 10, Value: 1}}, nil, true)
	require.True(t, ok)
	assert.Empty(t, series)
}
