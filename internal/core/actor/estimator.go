package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/danieltroger/mpi-15k-controller/internal/config"
	"github.com/danieltroger/mpi-15k-controller/internal/core/domain"
	"github.com/danieltroger/mpi-15k-controller/internal/core/events"
	"github.com/danieltroger/mpi-15k-controller/internal/core/port"
	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
	"github.com/danieltroger/mpi-15k-controller/internal/metrics"
	. "github.com/danieltroger/mpi-15k-controller/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	ESTIMATOR_STATE_LOADING   = "loading"
	ESTIMATOR_STATE_READY     = "ready"
	ESTIMATOR_STATE_LIVE_ONLY = "live_only"
)

// EstimatorActor owns the estimation engine. Every input change (telemetry,
// history, assumed parameters) triggers one synchronous recomputation; the
// result goes to the parent and, throttled per sensor, to the event stream.
type EstimatorActor struct {
	ActorWithStates
	config       *config.Config
	scheduler    *scheduler.TimerScheduler
	historyActor *actor.PID
	eventStream  *eventstream.EventStream
	metrics      *metrics.Metrics
	engine       *soc.Engine
	now          func() int64

	stateName        string
	startedAt        int64
	voltage          *domain.TelemetryUpdate
	current          *domain.TelemetryUpdate
	referencesLoaded bool
	liveOnly         bool
	historyFrom      *int64
	latest           *soc.Estimate
	lastPublished    map[string]int64

	logger *zap.Logger
}

type retryReferencePoints struct {
}

type retryHistory struct {
}

func NewEstimatorActor(config *config.Config, params soc.AssumedParameters, historyActor *actor.PID,
	eventStream *eventstream.EventStream, metrics *metrics.Metrics, logger *zap.Logger) *EstimatorActor {
	act := &EstimatorActor{
		config:        config,
		historyActor:  historyActor,
		eventStream:   eventStream,
		metrics:       metrics,
		now:           NowMillis,
		lastPublished: map[string]int64{},
		logger:        ActorLogger(domain.ACTOR_ID_ESTIMATOR, logger),
		engine: soc.NewEngine(soc.Thresholds{
			FullVoltage:              config.Battery.FullVoltage,
			StopChargingBelowCurrent: config.Battery.StopChargingBelowCurrent,
			EmptyVoltage:             config.Battery.EmptyAt,
		}, params),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.become(EstimatorLoadingState{
		actor: act,
	})
	return act
}

func (state *EstimatorActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *EstimatorActor) become(s ActorState) {
	state.stateName = s.Name()
	state.Become(s)
}

// settle moves to the state matching what has been loaded so far. A newly
// needed history window takes a ready estimator back to loading.
func (state *EstimatorActor) settle() {
	var next ActorState
	switch {
	case state.liveOnly:
		next = EstimatorLiveOnlyState{actor: state}
	case state.referencesLoaded && state.engine.HistoricalLoaded():
		next = EstimatorReadyState{actor: state}
	default:
		next = EstimatorLoadingState{actor: state}
	}
	if next.Name() != state.stateName {
		state.logger.Info(state.tag("state changed"), zap.String("to", next.Name()))
		state.become(next)
	}
}

func (state *EstimatorActor) tag(event string) string {
	return "estimator@" + state.stateName + " " + event
}

// receiveCommon handles the messages every state accepts the same way and
// reports whether msg was one of them.
func (state *EstimatorActor) receiveCommon(ctx actor.Context) bool {
	switch msg := ctx.Message().(type) {
	case *actor.Stopping:
		state.logger.Debug(state.tag("stopping"))
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_ESTIMATOR,
			Healthy: true,
			State:   state.stateName,
		})
	case domain.TelemetryUpdate:
		state.onTelemetry(ctx, msg)
		state.settle()
	case domain.AssumedParametersUpdated:
		state.logger.Info(state.tag("assumed parameters updated"),
			zap.Float64("capacity", msg.Params.CapacityWh), zap.Float64("parasitic", msg.Params.ParasiticConsumptionW))
		state.engine.SetParameters(msg.Params)
		state.publishParameters()
		state.recompute(ctx)
	case domain.GetEstimateRequest:
		resp := domain.GetEstimateResponse{}
		if state.latest == nil {
			resp.ResponseError = soc.ErrNoData
		} else {
			latest := *state.latest
			resp.Estimate = &latest
		}
		ForRequest(msg).Respond(ctx, resp)
	default:
		return false
	}
	return true
}

// receiveHistory handles historical power responses and their retries.
func (state *EstimatorActor) receiveHistory(ctx actor.Context) bool {
	switch msg := ctx.Message().(type) {
	case domain.GetHistoricalPowerResponse:
		state.onHistoricalPower(ctx, msg)
	case retryHistory:
		state.historyFrom = nil
		state.ensureHistory(ctx)
	default:
		return false
	}
	state.settle()
	return true
}

func (state *EstimatorActor) unhandled(ctx actor.Context) {
	state.logger.Debug(state.tag("unhandled"), zap.String("type", fmt.Sprintf("%T", ctx.Message())))
}

// Loading state: waiting for reference points or for the history window.

type EstimatorLoadingState struct {
	ActorState
	actor *EstimatorActor
}

func (state EstimatorLoadingState) Name() string {
	return ESTIMATOR_STATE_LOADING
}

func (state EstimatorLoadingState) Receive(ctx actor.Context) {
	act := state.actor
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		act.logger.Debug(act.tag("started"))
		act.scheduler = scheduler.NewTimerScheduler(ctx)
		act.startedAt = act.now()
		act.publishParameters()
		act.requestReferencePoints(ctx)
		return
	case domain.GetReferencePointsResponse:
		act.onReferencePoints(ctx, msg)
		act.settle()
		return
	case retryReferencePoints:
		act.requestReferencePoints(ctx)
		return
	}
	if act.receiveCommon(ctx) || act.receiveHistory(ctx) {
		return
	}
	act.unhandled(ctx)
}

// Ready state: reference points and history are loaded.

type EstimatorReadyState struct {
	ActorState
	actor *EstimatorActor
}

func (state EstimatorReadyState) Name() string {
	return ESTIMATOR_STATE_READY
}

func (state EstimatorReadyState) Receive(ctx actor.Context) {
	act := state.actor
	if act.receiveCommon(ctx) || act.receiveHistory(ctx) {
		return
	}
	act.unhandled(ctx)
}

// LiveOnly state: no history store, only in-process observations count.

type EstimatorLiveOnlyState struct {
	ActorState
	actor *EstimatorActor
}

func (state EstimatorLiveOnlyState) Name() string {
	return ESTIMATOR_STATE_LIVE_ONLY
}

func (state EstimatorLiveOnlyState) Receive(ctx actor.Context) {
	act := state.actor
	switch ctx.Message().(type) {
	case domain.GetReferencePointsResponse, domain.GetHistoricalPowerResponse, retryReferencePoints, retryHistory:
		act.logger.Debug(act.tag("history message ignored"))
		return
	}
	if act.receiveCommon(ctx) {
		return
	}
	act.unhandled(ctx)
}

func (state *EstimatorActor) onTelemetry(ctx actor.Context, msg domain.TelemetryUpdate) {
	switch msg.Kind {
	case domain.TELEMETRY_BATTERY_VOLTAGE:
		state.voltage = &msg
	case domain.TELEMETRY_BATTERY_CURRENT:
		state.current = &msg
	default:
		return
	}
	if state.voltage == nil || state.current == nil {
		return
	}

	// telemetry is in tenths of V and A
	volts := state.voltage.Value / 10
	amps := state.current.Value / 10
	t := max(state.voltage.Time, state.current.Time)

	state.engine.ObserveBattery(volts, amps, t)
	if !state.engine.AddPowerSample(soc.PowerSample{Time: t, Value: volts * amps}) {
		state.logger.Debug(state.tag("dropped out of order sample"), zap.Int64("time", t))
	}
	state.ensureHistory(ctx)
	state.recompute(ctx)
}

func (state *EstimatorActor) requestReferencePoints(ctx actor.Context) {
	timeout := 2*state.config.InfluxDB.QueryTimeout() + time.Second
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.historyActor, domain.GetReferencePointsRequest{}, timeout), func(err error) any {
		return domain.GetReferencePointsResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *EstimatorActor) onReferencePoints(ctx actor.Context, msg domain.GetReferencePointsResponse) {
	if msg.HasResponseError() {
		if errors.Is(msg.GetResponseError(), port.ErrHistoryUnavailable) {
			state.logger.Info(state.tag("no history store, running from live telemetry only"))
			state.goLiveOnly(ctx)
			return
		}
		state.logger.Error(state.tag("reference points query failed"), zap.Error(msg.GetResponseError()))
		state.scheduler.RequestOnce(state.config.Estimate.HistoryRetry(), ctx.Self(), retryReferencePoints{})
		return
	}
	state.logger.Debug(state.tag("reference points loaded"), zap.Int64p("last_full", msg.LastFull), zap.Int64p("last_empty", msg.LastEmpty))
	state.engine.SetPersistedReferences(msg.LastFull, msg.LastEmpty)
	state.referencesLoaded = true
	state.ensureHistory(ctx)
	state.recompute(ctx)
}

// ensureHistory makes sure the historical set covers [oldest reference, start].
// References only move forward, so a new query is only needed when the oldest
// one was not known before.
func (state *EstimatorActor) ensureHistory(ctx actor.Context) {
	if state.liveOnly || !state.referencesLoaded {
		return
	}
	oldest := state.engine.OldestReference()
	if oldest == nil || *oldest >= state.startedAt {
		if state.historyFrom == nil && !state.engine.HistoricalLoaded() {
			state.engine.SetHistorical(nil)
		}
		return
	}
	if state.historyFrom != nil && *state.historyFrom <= *oldest {
		return
	}

	from := *oldest
	state.historyFrom = &from
	state.engine.InvalidateHistorical()
	state.logger.Debug(state.tag("requesting history"), zap.Int64("from", from), zap.Int64("to", state.startedAt))

	req := domain.GetHistoricalPowerRequest{From: from, To: state.startedAt}
	timeout := state.config.InfluxDB.QueryTimeout() + time.Second
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.historyActor, req, timeout), func(err error) any {
		return domain.GetHistoricalPowerResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
			From: req.From,
			To:   req.To,
		}
	})
}

func (state *EstimatorActor) onHistoricalPower(ctx actor.Context, msg domain.GetHistoricalPowerResponse) {
	if state.historyFrom == nil || msg.From != *state.historyFrom {
		state.logger.Debug(state.tag("stale history response"), zap.Int64("from", msg.From))
		return
	}
	if msg.HasResponseError() {
		if errors.Is(msg.GetResponseError(), port.ErrHistoryUnavailable) {
			state.logger.Info(state.tag("history store went away, running from live telemetry only"))
			state.goLiveOnly(ctx)
			return
		}
		state.logger.Error(state.tag("history query failed"), zap.Error(msg.GetResponseError()))
		state.scheduler.RequestOnce(state.config.Estimate.HistoryRetry(), ctx.Self(), retryHistory{})
		return
	}
	state.logger.Debug(state.tag("history loaded"), zap.Int("samples", len(msg.Samples)))
	state.engine.SetHistorical(msg.Samples)
	state.recompute(ctx)
}

func (state *EstimatorActor) goLiveOnly(ctx actor.Context) {
	state.liveOnly = true
	state.referencesLoaded = true
	state.historyFrom = nil
	state.engine.SetHistorical(nil)
	state.recompute(ctx)
}

func (state *EstimatorActor) recompute(ctx actor.Context) {
	est := state.engine.Recompute(state.now())
	state.latest = &est
	state.metrics.ObserveEstimate(est, state.engine.LiveLen())
	state.publish(events.EstimateToUpdateEvents(est), false)
	ctx.Send(ctx.Parent(), domain.EstimateUpdated{Estimate: est})
}

func (state *EstimatorActor) publishParameters() {
	p := state.engine.Parameters()
	state.metrics.ObserveParameters(p)
	state.publish(events.AssumedParametersToUpdateEvents(p), true)
}

// publish forwards events to the event stream, at most one per sensor and
// publish interval unless forced.
func (state *EstimatorActor) publish(evs []any, force bool) {
	if state.eventStream == nil {
		return
	}
	now := state.now()
	interval := int64(state.config.Estimate.PublishIntervalMillis)
	for _, ev := range evs {
		sensor, ok := ev.(domain.SensorUpdateEvent)
		if !ok {
			continue
		}
		id := sensor.SensorId()
		if last, seen := state.lastPublished[id]; seen && !force && now-last < interval {
			continue
		}
		state.lastPublished[id] = now
		state.eventStream.Publish(ev)
	}
}
