package actor

import (
	"testing"
	"time"

	adactor "github.com/danieltroger/mpi-15k-controller/internal/adapter/actor"
	"github.com/danieltroger/mpi-15k-controller/internal/core/domain"
	"github.com/danieltroger/mpi-15k-controller/internal/core/port"
	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
	"github.com/danieltroger/mpi-15k-controller/internal/metrics"
	"github.com/danieltroger/mpi-15k-controller/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hour = int64(3_600_000)

type estimatorFixture struct {
	as        *actor.ActorSystem
	probe     *probe
	estimator *actor.PID
	events    *eventstream.EventStream
}

func spawnEstimator(t *testing.T, client port.HistoryClient, now int64, params soc.AssumedParameters) estimatorFixture {
	cfg := util.LoadTestConfig()
	logger := testLogger()
	as := testActorSystem(t, logger)
	es := &eventstream.EventStream{}

	history := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewHistoryActor(client, cfg.InfluxDB.QueryTimeout(), logger)
	}))
	p, pid := spawnUnderProbe(t, as, actor.PropsFromProducer(func() actor.Actor {
		act := NewEstimatorActor(&cfg, params, history, es, metrics.New(), logger)
		if now > 0 {
			act.now = func() int64 { return now }
		}
		return act
	}))
	return estimatorFixture{as: as, probe: p, estimator: pid, events: es}
}

func (f estimatorFixture) estimate(t *testing.T) (*soc.Estimate, error) {
	res, err := f.as.Root.RequestFuture(f.estimator, domain.GetEstimateRequest{}, time.Second).Result()
	require.NoError(t, err)
	resp := res.(domain.GetEstimateResponse)
	return resp.Estimate, resp.GetResponseError()
}

func (f estimatorFixture) health(t *testing.T) domain.ActorHealthResponse {
	res, err := f.as.Root.RequestFuture(f.estimator, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)
	return res.(domain.ActorHealthResponse)
}

func (f estimatorFixture) telemetry(kind domain.TelemetryKind, value float64, time int64) {
	f.as.Root.Send(f.estimator, domain.TelemetryUpdate{Kind: kind, Value: value, Time: time})
}

func TestEstimatorHistoricalScenario(t *testing.T) {
	// full at T0, empty six hours before; charging 500 W until T0, then
	// discharging 500 W for 6 h and charging 1000 W for 3 h
	t0 := 100 * hour
	now := t0 + 9*hour
	client := &fakeHistory{
		lastFull:  ptr(t0),
		lastEmpty: ptr(t0 - 6*hour),
		samples: []soc.PowerSample{
			{Time: t0 - 6*hour, Value: 500},
			{Time: t0, Value: -500},
			{Time: t0 + 6*hour, Value: 1000},
			{Time: t0 + 9*hour, Value: 1000},
		},
	}
	f := spawnEstimator(t, client, now, soc.AssumedParameters{CapacityWh: 10000})

	require.Eventually(t, func() bool {
		return f.health(t).State == ESTIMATOR_STATE_READY
	}, 3*time.Second, 20*time.Millisecond)

	est, err := f.estimate(t)
	require.NoError(t, err)
	require.NotNil(t, est)
	assert.Equal(t, ptr(t0), est.LastFull)
	assert.Equal(t, ptr(t0-6*hour), est.LastEmpty)
	require.NotNil(t, est.SinceFull)
	assert.InDelta(t, 3000, est.SinceFull.Charged, 1e-9)
	assert.InDelta(t, 3000, est.SinceFull.Discharged, 1e-9)
	assert.InDelta(t, 0, *est.RemovedSinceFull, 1e-9)
	assert.InDelta(t, 100, *est.SOCSinceFull, 1e-9)
	assert.InDelta(t, 3000, *est.AddedSinceEmpty, 1e-9)
	assert.InDelta(t, 30, *est.SOCSinceEmpty, 1e-9)
	assert.InDelta(t, 65, *est.SOCAverage, 1e-9)
	assert.True(t, est.Complete())

	// the history window runs from the oldest reference to process start
	require.Equal(t, 1, client.queryCount())
	assert.Equal(t, [][2]int64{{t0 - 6*hour, now}}, client.queryWindows())

	// every recomputation is reported to the parent
	assert.NotEmpty(t, probeMessages[domain.EstimateUpdated](f.probe))
}

func TestEstimatorLiveOnly(t *testing.T) {
	f := spawnEstimator(t, port.NoHistory{}, 0, soc.AssumedParameters{CapacityWh: 10000, ParasiticConsumptionW: 20})

	require.Eventually(t, func() bool {
		return f.health(t).State == ESTIMATOR_STATE_LIVE_ONLY
	}, 3*time.Second, 20*time.Millisecond)

	// 55.2 V at 3 A latches full; then 50 V at 3 A one hour later
	f.telemetry(domain.TELEMETRY_BATTERY_VOLTAGE, 552, 0)
	f.telemetry(domain.TELEMETRY_BATTERY_CURRENT, 30, 0)
	f.telemetry(domain.TELEMETRY_BATTERY_VOLTAGE, 500, hour)

	require.Eventually(t, func() bool {
		est, err := f.estimate(t)
		return err == nil && est.RemovedSinceFull != nil && est.LastFull != nil
	}, 3*time.Second, 20*time.Millisecond)

	est, err := f.estimate(t)
	require.NoError(t, err)
	assert.Equal(t, ptr(int64(0)), est.LastFull)
	assert.Nil(t, est.LastEmpty)
	// (165.6 W - 20 W) for one hour
	assert.InDelta(t, -145.6, *est.RemovedSinceFull, 1e-6)
	assert.InDelta(t, 101.456, *est.SOCSinceFull, 1e-6)
	assert.Nil(t, est.SOCSinceEmpty)
	assert.Nil(t, est.SOCAverage)
	assert.False(t, est.Complete())
}

func TestEstimatorLiveOnlyIgnoresHistory(t *testing.T) {
	f := spawnEstimator(t, port.NoHistory{}, 0, soc.AssumedParameters{CapacityWh: 10000})

	require.Eventually(t, func() bool {
		return f.health(t).State == ESTIMATOR_STATE_LIVE_ONLY
	}, 3*time.Second, 20*time.Millisecond)

	// late answers of a store that went away must not move the reference points
	f.as.Root.Send(f.estimator, domain.GetReferencePointsResponse{LastFull: ptr(int64(5)), LastEmpty: ptr(int64(1))})
	f.as.Root.Send(f.estimator, domain.GetHistoricalPowerResponse{From: 1, To: 5, Samples: []soc.PowerSample{{Time: 1, Value: 100}}})

	est, err := f.estimate(t)
	require.NoError(t, err)
	assert.Nil(t, est.LastFull)
	assert.Nil(t, est.LastEmpty)
	assert.Equal(t, ESTIMATOR_STATE_LIVE_ONLY, f.health(t).State)
}

func TestEstimatorEstimateAfterStart(t *testing.T) {
	f := spawnEstimator(t, port.NoHistory{}, 0, soc.AssumedParameters{CapacityWh: 10000})
	require.Eventually(t, func() bool {
		_, err := f.estimate(t)
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)
}

func TestEstimatorRetriesReferencePoints(t *testing.T) {
	t0 := 10 * hour
	client := &fakeHistory{
		lastFull:    ptr(t0),
		lastEmpty:   ptr(t0 - hour),
		refFailures: 1,
		samples:     []soc.PowerSample{{Time: t0 - hour, Value: 100}, {Time: t0, Value: 100}},
	}
	f := spawnEstimator(t, client, t0+hour, soc.AssumedParameters{CapacityWh: 1000})

	assert.Equal(t, ESTIMATOR_STATE_LOADING, f.health(t).State)
	require.Eventually(t, func() bool {
		return f.health(t).State == ESTIMATOR_STATE_READY
	}, 5*time.Second, 50*time.Millisecond)

	est, err := f.estimate(t)
	require.NoError(t, err)
	assert.Equal(t, ptr(t0), est.LastFull)
	assert.InDelta(t, 10, *est.SOCSinceEmpty, 1e-9)
}

func TestEstimatorAppliesAssumedParameters(t *testing.T) {
	f := spawnEstimator(t, port.NoHistory{}, 0, soc.AssumedParameters{CapacityWh: 10000})

	params := soc.AssumedParameters{CapacityWh: 12345, ParasiticConsumptionW: 17}
	f.as.Root.Send(f.estimator, domain.AssumedParametersUpdated{Params: params})

	require.Eventually(t, func() bool {
		est, err := f.estimate(t)
		return err == nil && est.Params == params
	}, 3*time.Second, 20*time.Millisecond)
}

func TestEstimatorPublishesSensorEvents(t *testing.T) {
	f := spawnEstimator(t, port.NoHistory{}, 0, soc.AssumedParameters{CapacityWh: 10000})

	seen := make(chan string, 64)
	sub := f.events.Subscribe(func(evt any) {
		if sensor, ok := evt.(domain.SensorUpdateEvent); ok {
			select {
			case seen <- sensor.SensorId():
			default:
			}
		}
	})
	defer f.events.Unsubscribe(sub)

	f.as.Root.Send(f.estimator, domain.AssumedParametersUpdated{Params: soc.AssumedParameters{CapacityWh: 9000}})

	ids := map[string]bool{}
	require.Eventually(t, func() bool {
		for {
			select {
			case id := <-seen:
				ids[id] = true
			default:
				return ids[domain.SENSOR_ID_ASSUMED_CAPACITY] && ids[domain.SENSOR_ID_ASSUMED_PARASITIC]
			}
		}
	}, 2*time.Second, 20*time.Millisecond)
}
