package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

// UnknownSensorUpdateEvent marks a sensor whose value cannot be computed right now.
type UnknownSensorUpdateEvent struct {
	SensorUpdateEventMixIn
}

type TimestampSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value int64
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
