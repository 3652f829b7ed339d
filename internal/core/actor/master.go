package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/danieltroger/mpi-15k-controller/internal/adapter/actor"
	"github.com/danieltroger/mpi-15k-controller/internal/config"
	"github.com/danieltroger/mpi-15k-controller/internal/core/domain"
	"github.com/danieltroger/mpi-15k-controller/internal/core/port"
	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
	"github.com/danieltroger/mpi-15k-controller/internal/metrics"
	. "github.com/danieltroger/mpi-15k-controller/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type HistoryActorProvider func() *adactor.HistoryActor

type SearchActorProvider func() *SearchCoordinatorActor

// MasterOfPuppetsActor spawns and wires the children: telemetry from the MQTT
// actor feeds the estimator, estimates feed the search coordinator and search
// results go back to the estimator.
type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck   healthCheckResult
	eventStream          *eventstream.EventStream
	mqttActor            *actor.PID
	historyActor         *actor.PID
	estimatorActor       *actor.PID
	searchActor          *actor.PID
	mqttActorProvider    MQTTActorProvider
	historyActorProvider HistoryActorProvider
	searchActorProvider  SearchActorProvider
	store                port.ParameterStore
	params               soc.AssumedParameters
	metrics              *metrics.Metrics
	logger               *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	states         map[string]string
	checksReceived int
	respondTo      *actor.PID
}

var healthCheckedActors = []string{
	domain.ACTOR_ID_MQTT,
	domain.ACTOR_ID_HISTORY,
	domain.ACTOR_ID_ESTIMATOR,
	domain.ACTOR_ID_SEARCH,
}

func NewMasterOfPuppetsActor(config config.Config, mqttActorProvider MQTTActorProvider, historyActorProvider HistoryActorProvider,
	store port.ParameterStore, params soc.AssumedParameters, metrics *metrics.Metrics, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:               config,
		behavior:             actor.NewBehavior(),
		stash:                &Stash{},
		logger:               ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:          &eventstream.EventStream{},
		mqttActorProvider:    mqttActorProvider,
		historyActorProvider: historyActorProvider,
		store:                store,
		params:               params,
		metrics:              metrics,
	}
	act.searchActorProvider = func() *SearchCoordinatorActor {
		return NewSearchCoordinatorActor(&act.config, store, act.metrics, logger)
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

// WithSearchActorProvider replaces how the search coordinator is built.
func (state *MasterOfPuppetsActor) WithSearchActorProvider(provider SearchActorProvider) *MasterOfPuppetsActor {
	state.searchActorProvider = provider
	return state
}

func (state *MasterOfPuppetsActor) EventStream() *eventstream.EventStream {
	return state.eventStream
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start History child
		historyActorPID, err := state.startHistoryActor(ctx)
		if err != nil {
			panic(err)
		}
		state.historyActor = historyActorPID

		// a restarted master must not fall back to the parameters of process start
		state.loadParameters()

		// start Estimator child
		estimatorActorPID, err := state.startEstimatorActor(ctx)
		if err != nil {
			panic(err)
		}
		state.estimatorActor = estimatorActorPID

		// start Search child
		searchActorPID, err := state.startSearchActor(ctx)
		if err != nil {
			panic(err)
		}
		state.searchActor = searchActorPID

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		state.requestHealth(ctx, state.mqttActor, domain.ACTOR_ID_MQTT)
		state.requestHealth(ctx, state.historyActor, domain.ACTOR_ID_HISTORY)
		state.requestHealth(ctx, state.estimatorActor, domain.ACTOR_ID_ESTIMATOR)
		state.requestHealth(ctx, state.searchActor, domain.ACTOR_ID_SEARCH)

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.TelemetryUpdate:
		ctx.Send(state.estimatorActor, msg)
	case domain.EstimateUpdated:
		ctx.Send(state.searchActor, msg)
	case domain.AssumedParametersUpdated:
		state.logger.Info("master@default assumed parameters updated",
			zap.Float64("capacity", msg.Params.CapacityWh), zap.Float64("parasitic", msg.Params.ParasiticConsumptionW))
		state.params = msg.Params
		ctx.Send(state.estimatorActor, msg)
	case domain.GetEstimateRequest:
		ctx.Forward(state.estimatorActor)
	case *actor.Terminated:
		// estimation is unusable without these
		if msg.Who.Equal(state.estimatorActor) || msg.Who.Equal(state.historyActor) {
			state.logger.Error("master@default child terminated", zap.String("who", msg.Who.Id))
			panic(errors.New("estimator child terminated"))
		}
		state.logger.Warn("master@default child terminated", zap.String("who", msg.Who.Id))
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// loadParameters takes the last committed assumed parameters from the store,
// keeping the current ones when the store cannot be read.
func (state *MasterOfPuppetsActor) loadParameters() {
	params, err := state.store.Load()
	if err != nil {
		state.logger.Warn("master@starting loading assumed parameters failed, keeping current", zap.Error(err))
		return
	}
	state.params = params
}

func (state *MasterOfPuppetsActor) requestHealth(ctx actor.Context, pid *actor.PID, id string) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      id,
			Healthy: false,
		}
	})
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		state.currentHealthCheck.states[msg.Id] = msg.State
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startHistoryActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	historyProps := actor.PropsFromProducer(func() actor.Actor {
		return state.historyActorProvider()
	}, actor.WithSupervisor(supervisor))
	historyActorPID, err := ctx.SpawnNamed(historyProps, domain.ACTOR_ID_HISTORY)
	if err != nil {
		return nil, err
	}

	return historyActorPID, nil
}

func (state *MasterOfPuppetsActor) startEstimatorActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	estimatorProps := actor.PropsFromProducer(func() actor.Actor {
		// a restarted estimator starts from the latest committed parameters
		return NewEstimatorActor(&state.config, state.params, state.historyActor, state.eventStream, state.metrics, state.logger)
	}, actor.WithSupervisor(supervisor))
	estimatorActorPID, err := ctx.SpawnNamed(estimatorProps, domain.ACTOR_ID_ESTIMATOR)
	if err != nil {
		return nil, err
	}

	return estimatorActorPID, nil
}

func (state *MasterOfPuppetsActor) startSearchActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	searchProps := actor.PropsFromProducer(func() actor.Actor {
		return state.searchActorProvider()
	}, actor.WithSupervisor(supervisor))
	searchActorPID, err := ctx.SpawnNamed(searchProps, domain.ACTOR_ID_SEARCH)
	if err != nil {
		return nil, err
	}

	return searchActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *healthCheckResult) reset() {
	state.healthy = map[string]bool{}
	state.states = map[string]string{}
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == len(healthCheckedActors)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, id := range healthCheckedActors {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   state.states[domain.ACTOR_ID_ESTIMATOR],
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
