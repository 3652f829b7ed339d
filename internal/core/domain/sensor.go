package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE              = "bridge"
	SENSOR_ID_SOC_SINCE_FULL            = "soc_since_full"
	SENSOR_ID_SOC_SINCE_EMPTY           = "soc_since_empty"
	SENSOR_ID_SOC_AVERAGE               = "soc_average"
	SENSOR_ID_ENERGY_REMOVED_SINCE_FULL = "energy_removed_since_full"
	SENSOR_ID_ENERGY_ADDED_SINCE_EMPTY  = "energy_added_since_empty"
	SENSOR_ID_LAST_FULL                 = "last_full"
	SENSOR_ID_LAST_EMPTY                = "last_empty"
	SENSOR_ID_ASSUMED_CAPACITY          = "assumed_capacity"
	SENSOR_ID_ASSUMED_PARASITIC         = "assumed_parasitic_consumption"
	STATE_CLASS_MEASUREMENT             = "measurement"
	STATE_CLASS_TOTAL                   = "total"
	DEVICE_CLASS_BATTERY                = "battery"
	DEVICE_CLASS_ENERGY                 = "energy"
	DEVICE_CLASS_ENERGY_STORAGE         = "energy_storage"
	DEVICE_CLASS_POWER                  = "power"
	DEVICE_CLASS_TIMESTAMP              = "timestamp"
	DEVICE_CLASS_CONNECTIVITY           = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC             = "diagnostic"
	SENSOR_TYPE_SENSOR                  = "sensor"
	SENSOR_TYPE_BINARY                  = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("mpi_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "danieltroger",
		Model:        "MPI 15k controller",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("MPI controller %s", md5HashShort(baseTopic)),
	}
}

func BatteryDevice(baseTopic string) Device {
	return Device{
		Id:        fmt.Sprintf("mpi_battery_%s", md5HashShort(baseTopic)),
		Model:     "Battery estimator",
		Version:   versioninfo.Short(),
		Name:      fmt.Sprintf("MPI battery %s", md5HashShort(baseTopic)),
		ViaDevice: fmt.Sprintf("mpi_bridge_%s", md5HashShort(baseTopic)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func BatterySensors(batteryDevice Device) []GenericSensor {

	var sensors []GenericSensor

	socSensor := func(id, name string, enabled bool) GenericSensor {
		return GenericSensor{
			Device:            batteryDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_BATTERY,
			UnitOfMeasurement: "%",
			EnabledByDefault:  optionalBool(enabled),
			UniqueId:          uniqueId(batteryDevice.Id, id),
		}
	}
	sensors = append(sensors,
		socSensor(SENSOR_ID_SOC_AVERAGE, "State of charge", true),
		socSensor(SENSOR_ID_SOC_SINCE_FULL, "State of charge since full", false),
		socSensor(SENSOR_ID_SOC_SINCE_EMPTY, "State of charge since empty", false),
	)

	// Energy counters
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_ENERGY_REMOVED_SINCE_FULL,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Energy removed since full",
		StateClass:        STATE_CLASS_TOTAL,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "Wh",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_ENERGY_REMOVED_SINCE_FULL),
	})
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_ENERGY_ADDED_SINCE_EMPTY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Energy added since empty",
		StateClass:        STATE_CLASS_TOTAL,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "Wh",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_ENERGY_ADDED_SINCE_EMPTY),
	})

	// Reference points
	sensors = append(sensors, GenericSensor{
		Device:         batteryDevice,
		Id:             SENSOR_ID_LAST_FULL,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Last full",
		DeviceClass:    DEVICE_CLASS_TIMESTAMP,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(batteryDevice.Id, SENSOR_ID_LAST_FULL),
	})
	sensors = append(sensors, GenericSensor{
		Device:         batteryDevice,
		Id:             SENSOR_ID_LAST_EMPTY,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Last empty",
		DeviceClass:    DEVICE_CLASS_TIMESTAMP,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(batteryDevice.Id, SENSOR_ID_LAST_EMPTY),
	})

	// Assumed parameters
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_ASSUMED_CAPACITY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Assumed capacity",
		DeviceClass:       DEVICE_CLASS_ENERGY_STORAGE,
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		UnitOfMeasurement: "Wh",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_ASSUMED_CAPACITY),
	})
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_ASSUMED_PARASITIC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Assumed parasitic consumption",
		DeviceClass:       DEVICE_CLASS_POWER,
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_ASSUMED_PARASITIC),
	})

	return sensors
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
