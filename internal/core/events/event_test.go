package events

import (
	"math"
	"testing"

	"github.com/danieltroger/mpi-15k-controller/internal/core/domain"
	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateToUpdateEvents(t *testing.T) {
	full := int64(1700000000000)
	avg := 81.234
	nan := math.NaN()

	evs := EstimateToUpdateEvents(soc.Estimate{
		LastFull:     &full,
		SOCAverage:   &avg,
		SOCSinceFull: &nan,
	})
	require.Len(t, evs, 7)

	byId := map[string]any{}
	for _, ev := range evs {
		byId[ev.(domain.SensorUpdateEvent).SensorId()] = ev
	}

	f, ok := byId[domain.SENSOR_ID_SOC_AVERAGE].(domain.FloatSensorUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, avg, f.Value)

	_, ok = byId[domain.SENSOR_ID_SOC_SINCE_FULL].(domain.UnknownSensorUpdateEvent)
	assert.True(t, ok, "NaN is published as unknown")

	ts, ok := byId[domain.SENSOR_ID_LAST_FULL].(domain.TimestampSensorUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, full, ts.Value)

	_, ok = byId[domain.SENSOR_ID_LAST_EMPTY].(domain.UnknownSensorUpdateEvent)
	assert.True(t, ok)
}

func TestAssumedParametersToUpdateEvents(t *testing.T) {
	evs := AssumedParametersToUpdateEvents(soc.AssumedParameters{CapacityWh: 14000, ParasiticConsumptionW: 25})
	require.Len(t, evs, 2)
	assert.Equal(t, 14000.0, evs[0].(domain.FloatSensorUpdateEvent).Value)
	assert.Equal(t, 25.0, evs[1].(domain.FloatSensorUpdateEvent).Value)
}
