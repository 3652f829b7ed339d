package domain

import "github.com/danieltroger/mpi-15k-controller/internal/core/soc"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HISTORY      = "history"
	ACTOR_ID_ESTIMATOR    = "estimator"
	ACTOR_ID_SEARCH       = "search"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type TelemetryKind string

const (
	TELEMETRY_BATTERY_VOLTAGE TelemetryKind = "battery_voltage"
	TELEMETRY_BATTERY_CURRENT TelemetryKind = "battery_current"
)

// TelemetryUpdate is one battery reading in tenths of its unit.
type TelemetryUpdate struct {
	Kind  TelemetryKind
	Value float64
	Time  int64
}

type GetReferencePointsRequest struct {
	ActorRequestMixIn
}

type GetReferencePointsResponse struct {
	ActorResponseMixIn
	LastFull  *int64
	LastEmpty *int64
}

type GetHistoricalPowerRequest struct {
	ActorRequestMixIn
	From int64
	To   int64
}

type GetHistoricalPowerResponse struct {
	ActorResponseMixIn
	From    int64
	To      int64
	Samples []soc.PowerSample
}

type GetEstimateRequest struct {
	ActorRequestMixIn
}

type GetEstimateResponse struct {
	ActorResponseMixIn
	Estimate *soc.Estimate
}

// EstimateUpdated is sent by the estimator to its parent after every recomputation.
type EstimateUpdated struct {
	Estimate soc.Estimate
}

// AssumedParametersUpdated carries the result of a successful search round.
type AssumedParametersUpdated struct {
	Params soc.AssumedParameters
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
