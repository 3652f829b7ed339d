package mqtt

import (
	"testing"
	"time"

	"github.com/danieltroger/mpi-15k-controller/internal/core/domain"
	"github.com/danieltroger/mpi-15k-controller/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *MQTTClient {
	cfg := util.LoadTestConfig()
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)
	c := testClient()

	assert.Equal("mpi/bridge/state", c.BridgeStateTopic())
	assert.Equal("mpi/sensor/soc_average/state", c.SensorStateTopic(domain.SENSOR_ID_SOC_AVERAGE))
}

func TestTelemetryKindForTopic(t *testing.T) {

	assert := assert.New(t)
	c := testClient()

	kind, ok := c.TelemetryKindForTopic("mpi/telemetry/battery_voltage")
	assert.True(ok)
	assert.Equal(domain.TELEMETRY_BATTERY_VOLTAGE, kind)

	kind, ok = c.TelemetryKindForTopic("mpi/telemetry/battery_current")
	assert.True(ok)
	assert.Equal(domain.TELEMETRY_BATTERY_CURRENT, kind)

	_, ok = c.TelemetryKindForTopic("mpi/telemetry/other")
	assert.False(ok)
}

func TestParseTelemetryPayload(t *testing.T) {
	arrival := time.UnixMilli(1700000000000)

	v, ts, err := ParseTelemetryPayload([]byte(`{"value": 532, "time": 1699999999000}`), arrival)
	require.NoError(t, err)
	assert.Equal(t, 532.0, v)
	assert.Equal(t, int64(1699999999000), ts)

	v, ts, err = ParseTelemetryPayload([]byte(`{"value": -120}`), arrival)
	require.NoError(t, err)
	assert.Equal(t, -120.0, v)
	assert.Equal(t, arrival.UnixMilli(), ts)

	v, ts, err = ParseTelemetryPayload([]byte(" 481\n"), arrival)
	require.NoError(t, err)
	assert.Equal(t, 481.0, v)
	assert.Equal(t, arrival.UnixMilli(), ts)
}

func TestParseTelemetryPayloadErrors(t *testing.T) {
	arrival := time.Now()

	_, _, err := ParseTelemetryPayload(nil, arrival)
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, _, err = ParseTelemetryPayload([]byte(`{"time": 1}`), arrival)
	assert.Error(t, err)

	_, _, err = ParseTelemetryPayload([]byte(`{"value":`), arrival)
	assert.Error(t, err)

	_, _, err = ParseTelemetryPayload([]byte("abc"), arrival)
	assert.Error(t, err)
}

func TestHADiscoveryMessage(t *testing.T) {
	c := testClient()
	sensors := domain.BatterySensors(domain.BatteryDevice("mpi"))
	require.NotEmpty(t, sensors)

	msg := GenericSensorToHADiscoveryMessage(c, sensors[0])
	assert.Equal(t, "mpi/sensor/soc_average/state", msg.StateTopic)
	assert.Equal(t, "mpi/bridge/state", msg.AvTopic)
	assert.Equal(t, "%", msg.UnitOfMeasurement)
	assert.Equal(t, "homeassistant/sensor/"+sensors[0].Device.Id+"/soc_average/config", HADiscoverySensorTopic(c, sensors[0]))

	bridge := domain.BridgeSensors(domain.BridgeDevice("mpi"))
	msg = GenericSensorToHADiscoveryMessage(c, bridge[0])
	assert.Equal(t, MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Equal(t, c.BridgeStateTopic(), msg.StateTopic)
}
