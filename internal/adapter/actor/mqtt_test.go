package actor

import (
	"sync"
	"testing"
	"time"

	"github.com/danieltroger/mpi-15k-controller/internal/core/domain"
	"github.com/danieltroger/mpi-15k-controller/internal/util"
	"github.com/danieltroger/mpi-15k-controller/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// parentProbe spawns one child and records everything the child sends it.
type parentProbe struct {
	child    *actor.Props
	childPID *actor.PID
	mu       *sync.Mutex
	received *[]any
}

func (p *parentProbe) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		p.childPID = ctx.Spawn(p.child)
	case *actor.Stopping, *actor.Stopped, *actor.Terminated:
	case *actor.PID:
		ctx.Respond(p.childPID)
	default:
		p.mu.Lock()
		*p.received = append(*p.received, msg)
		p.mu.Unlock()
	}
}

type probe struct {
	mu       sync.Mutex
	received []any
}

func (p *probe) messages() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.received...)
}

// spawnWithProbe returns the probe parent and the child spawned under it.
func spawnWithProbe(t *testing.T, root *actor.RootContext, child *actor.Props) (*probe, *actor.PID, *actor.PID) {
	p := &probe{}
	parent := root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &parentProbe{child: child, mu: &p.mu, received: &p.received}
	}))
	res, err := root.RequestFuture(parent, &actor.PID{}, time.Second).Result()
	require.NoError(t, err)
	return p, parent, res.(*actor.PID)
}

func TestMQTTActorDummy(t *testing.T) {
	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	es := &eventstream.EventStream{}

	p, parent, pid := spawnWithProbe(t, as.Root, actor.PropsFromProducer(func() actor.Actor {
		return NewTestMQTTActor(&cfg, es, logger)
	}))
	defer as.Root.Stop(parent)

	result, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.ActorHealthResponse)
	require.True(t, ok)
	assert.Equal(t, domain.ACTOR_ID_MQTT, resp.Id)
	assert.True(t, resp.Healthy)

	es.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_SOC_AVERAGE,
		},
		Value:    54.5,
		Decimals: 2,
	})
	es.Publish(domain.UnknownSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_SOC_SINCE_EMPTY,
		},
	})
	// not a sensor event, filtered by the subscription predicate
	es.Publish("noise")

	assert.Eventually(t, func() bool {
		res, err := as.Root.RequestFuture(pid, DummyPublishedCountRequest{}, time.Second).Result()
		if err != nil {
			return false
		}
		return res.(DummyPublishedCountResponse).Count == 2
	}, 2*time.Second, 20*time.Millisecond)

	res, err := as.Root.RequestFuture(pid, DummyPublishedCountRequest{}, time.Second).Result()
	require.NoError(t, err)
	last := res.(DummyPublishedCountResponse).Last
	assert.IsType(t, domain.FloatSensorUpdateEvent{}, last[domain.SENSOR_ID_SOC_AVERAGE])
	assert.IsType(t, domain.UnknownSensorUpdateEvent{}, last[domain.SENSOR_ID_SOC_SINCE_EMPTY])

	// telemetry is routed to the parent
	update := domain.TelemetryUpdate{Kind: domain.TELEMETRY_BATTERY_VOLTAGE, Value: 532, Time: 1000}
	as.Root.Send(pid, update)
	assert.Eventually(t, func() bool {
		msgs := p.messages()
		return len(msgs) == 1 && msgs[0] == update
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMQTTActorEventToMessage(t *testing.T) {
	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	act := NewTestMQTTActor(&cfg, nil, logger)
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return act }))
	defer as.Root.Stop(pid)
	_, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)

	msg := act.event2MQTTMessage(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_SOC_AVERAGE},
		Value:                  54.456,
		Decimals:               2,
	})
	require.NotNil(t, msg)
	assert.Equal(t, "mpi/sensor/soc_average/state", msg.topic)
	assert.Equal(t, "54.46", msg.message)

	msg = act.event2MQTTMessage(domain.TimestampSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_LAST_FULL},
		Value:                  0,
	})
	require.NotNil(t, msg)
	assert.Equal(t, "1970-01-01T00:00:00Z", msg.message)

	msg = act.event2MQTTMessage(domain.UnknownSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_SOC_SINCE_FULL},
	})
	require.NotNil(t, msg)
	assert.Equal(t, "None", msg.message)

	assert.Nil(t, act.event2MQTTMessage("unsupported"))
}
