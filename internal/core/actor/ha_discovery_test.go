package actor

import (
	"testing"

	"github.com/danieltroger/mpi-15k-controller/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverySensors(t *testing.T) {
	sensors := DiscoverySensors("mpi")
	require.NotEmpty(t, sensors)

	assert.Equal(t, domain.SENSOR_ID_BRIDGE_STATE, sensors[0].Id)
	assert.NotEmpty(t, sensors[0].Device.Model)

	battery := domain.BatteryDevice("mpi")
	ids := map[string]bool{}
	for i, s := range sensors[1:] {
		ids[s.Id] = true
		assert.Equal(t, battery.Id, s.Device.Id)
		if i == 0 {
			assert.Equal(t, battery.ViaDevice, s.Device.ViaDevice, "first battery sensor carries the device")
		} else {
			assert.Empty(t, s.Device.Model)
		}
	}
	for _, id := range []string{
		domain.SENSOR_ID_SOC_AVERAGE,
		domain.SENSOR_ID_SOC_SINCE_FULL,
		domain.SENSOR_ID_SOC_SINCE_EMPTY,
		domain.SENSOR_ID_ENERGY_REMOVED_SINCE_FULL,
		domain.SENSOR_ID_ENERGY_ADDED_SINCE_EMPTY,
		domain.SENSOR_ID_LAST_FULL,
		domain.SENSOR_ID_LAST_EMPTY,
		domain.SENSOR_ID_ASSUMED_CAPACITY,
		domain.SENSOR_ID_ASSUMED_PARASITIC,
	} {
		assert.True(t, ids[id], id)
	}
}
