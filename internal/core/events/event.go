package events

import (
	. "github.com/danieltroger/mpi-15k-controller/internal/core/domain"
	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
)

// EstimateToUpdateEvents maps every output of an estimate to a sensor update.
// Unknown and non-finite values become UnknownSensorUpdateEvent.
func EstimateToUpdateEvents(e soc.Estimate) []any {
	var events []any

	// SoC
	events = append(events, floatOrUnknown(SENSOR_ID_SOC_AVERAGE, e.SOCAverage, 2))
	events = append(events, floatOrUnknown(SENSOR_ID_SOC_SINCE_FULL, e.SOCSinceFull, 2))
	events = append(events, floatOrUnknown(SENSOR_ID_SOC_SINCE_EMPTY, e.SOCSinceEmpty, 2))

	// Energy
	events = append(events, floatOrUnknown(SENSOR_ID_ENERGY_REMOVED_SINCE_FULL, e.RemovedSinceFull, 1))
	events = append(events, floatOrUnknown(SENSOR_ID_ENERGY_ADDED_SINCE_EMPTY, e.AddedSinceEmpty, 1))

	// Reference points
	events = append(events, timestampOrUnknown(SENSOR_ID_LAST_FULL, e.LastFull))
	events = append(events, timestampOrUnknown(SENSOR_ID_LAST_EMPTY, e.LastEmpty))

	return events
}

func AssumedParametersToUpdateEvents(p soc.AssumedParameters) []any {
	var events []any
	events = append(events, floatOrUnknown(SENSOR_ID_ASSUMED_CAPACITY, p.Capacity(), 0))
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_ASSUMED_PARASITIC,
		},
		Value:    p.ParasiticConsumptionW,
		Decimals: 0,
	})
	return events
}

func floatOrUnknown(id string, value *float64, decimals uint) any {
	if value == nil || !soc.IsFinite(*value) {
		return UnknownSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id},
		}
	}
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value:    *value,
		Decimals: decimals,
	}
}

func timestampOrUnknown(id string, value *int64) any {
	if value == nil {
		return UnknownSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id},
		}
	}
	return TimestampSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value: *value,
	}
}
