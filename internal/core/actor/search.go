package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/danieltroger/mpi-15k-controller/internal/config"
	"github.com/danieltroger/mpi-15k-controller/internal/core/domain"
	"github.com/danieltroger/mpi-15k-controller/internal/core/port"
	"github.com/danieltroger/mpi-15k-controller/internal/core/search"
	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
	"github.com/danieltroger/mpi-15k-controller/internal/metrics"
	. "github.com/danieltroger/mpi-15k-controller/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	SEARCH_STATE_IDLE    = "idle"
	SEARCH_STATE_RUNNING = "running"
	SEARCH_STATE_FAILED  = "failed"

	searchTickJobName = "search_tick"
)

// SearchCoordinatorActor runs parameter search rounds, one at a time. A round
// fans the capacity range out to search workers, collects every acceptable
// candidate and commits the median-by-average one to the parameter store and
// the parent.
type SearchCoordinatorActor struct {
	ActorWithStates
	config    *config.Config
	store     port.ParameterStore
	metrics   *metrics.Metrics
	sweep     search.SweepFunc
	scheduler *scheduler.TimerScheduler
	quartz    quartz.Scheduler

	latest  *soc.Estimate
	hasRun  bool
	roundId uint64

	logger *zap.Logger
}

type searchTick struct {
}

type searchCooldownOver struct {
}

type searchWorkerGone struct {
	Round  uint64
	Worker int
}

type searchRound struct {
	id        uint64
	startedAt time.Time
	workers   map[int]*actor.PID
	pending   map[int]bool
	accepted  []search.Candidate
	fallbacks []search.Candidate
	log       *search.ResultLog
}

func NewSearchCoordinatorActor(config *config.Config, store port.ParameterStore, metrics *metrics.Metrics, logger *zap.Logger) *SearchCoordinatorActor {
	act := &SearchCoordinatorActor{
		config:  config,
		store:   store,
		metrics: metrics,
		sweep:   search.Sweep,
		logger:  ActorLogger(domain.ACTOR_ID_SEARCH, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(SearchIdleState{
		actor: act,
	})
	return act
}

// WithSweep replaces the grid sweep run by the workers.
func (state *SearchCoordinatorActor) WithSweep(sweep search.SweepFunc) *SearchCoordinatorActor {
	state.sweep = sweep
	return state
}

func (state *SearchCoordinatorActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *SearchCoordinatorActor) onStarted(ctx actor.Context) {
	state.scheduler = scheduler.NewTimerScheduler(ctx)
	state.quartz = quartz.NewStdScheduler()
	state.quartz.Start(context.Background())
	job := quartz.NewJobDetail(newTickJob(ctx.ActorSystem().Root, ctx.Self(), searchTickJobName, searchTick{}), quartz.NewJobKey(searchTickJobName))
	if err := state.quartz.ScheduleJob(job, quartz.NewSimpleTrigger(state.config.Search.Interval())); err != nil {
		state.logger.Error("search@idle scheduling search tick failed", zap.Error(err))
	}
}

// onStopping stops the tick trigger. A restarted coordinator starts its own.
func (state *SearchCoordinatorActor) onStopping() {
	if state.quartz != nil {
		state.quartz.Stop()
	}
}

func (state *SearchCoordinatorActor) respondHealth(ctx actor.Context, name string) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_SEARCH,
		Healthy: true,
		State:   name,
	})
}

func (state *SearchCoordinatorActor) storeEstimate(msg domain.EstimateUpdated) {
	est := msg.Estimate
	state.latest = &est
}

func (state *SearchCoordinatorActor) task() (search.Task, error) {
	if state.latest == nil || !state.latest.Complete() {
		return search.Task{}, soc.ErrNoData
	}
	e := state.latest
	fromP, toP := state.config.Battery.ParasiticRange()
	return search.Task{
		RawNetSinceFull:  *e.RawNetSinceFull,
		RawNetSinceEmpty: *e.RawNetSinceEmpty,
		Now:              e.Time,
		LastFull:         *e.LastFull,
		LastEmpty:        *e.LastEmpty,
		Parasitic:        search.Range{Start: fromP, End: toP},
		Tolerance:        state.config.Search.Tolerance,
	}, nil
}

// startRound spawns the workers of a new round. On error every worker spawned
// so far is stopped and the caller fails the round.
func (state *SearchCoordinatorActor) startRound(ctx actor.Context, task search.Task) (*searchRound, error) {
	state.roundId++
	round := &searchRound{
		id:        state.roundId,
		startedAt: time.Now(),
		workers:   map[int]*actor.PID{},
		pending:   map[int]bool{},
	}

	fromC, toC := state.config.Battery.CapacityRange()
	parts := search.Partition(search.Range{Start: fromC, End: toC}, state.config.Search.Workers)
	if len(parts) == 0 || task.Parasitic.Len() == 0 {
		return nil, search.ErrEmptyRange
	}

	log, err := search.OpenResultLog(state.config.Search.ResultLogDir, round.startedAt.UnixMilli())
	if err != nil {
		return nil, err
	}
	round.log = log

	supervisor := actor.NewOneForOneStrategy(0, 0, func(reason interface{}) actor.Directive {
		state.logger.Error("search@running worker crashed", zap.Any("reason", reason))
		return actor.StopDirective
	})
	for i, part := range parts {
		workerTask := task
		workerTask.Capacity = part
		index := i
		props := actor.PropsFromProducer(func() actor.Actor {
			return NewSearchWorkerActor(round.id, index, workerTask, state.sweep, state.logger)
		}, actor.WithSupervisor(supervisor))
		pid, err := ctx.SpawnNamed(props, fmt.Sprintf("worker_%d_%d", round.id, index))
		if err != nil {
			state.abortRound(ctx, round)
			return nil, fmt.Errorf("spawning search worker %d: %w", index, err)
		}
		round.workers[index] = pid
		round.pending[index] = true
	}
	state.logger.Info("search@idle round started",
		zap.Uint64("round", round.id), zap.Int("workers", len(parts)),
		zap.Int("capacity_from", fromC), zap.Int("capacity_to", toC),
		zap.Int("parasitic_from", task.Parasitic.Start), zap.Int("parasitic_to", task.Parasitic.End))
	return round, nil
}

func (state *SearchCoordinatorActor) abortRound(ctx actor.Context, round *searchRound) {
	for _, pid := range round.workers {
		ctx.Stop(pid)
	}
	_ = round.log.Close()
}

func (state *SearchCoordinatorActor) tryStartRound(ctx actor.Context) {
	task, err := state.task()
	if err != nil {
		state.logger.Debug("search@idle inputs incomplete, not starting round")
		return
	}
	round, err := state.startRound(ctx, task)
	if err != nil {
		state.failRound(ctx, err, time.Now())
		return
	}
	state.Become(SearchRunningState{
		actor: state,
		round: round,
	})
}

func (state *SearchCoordinatorActor) failRound(ctx actor.Context, err error, startedAt time.Time) {
	state.logger.Error("search@failed round failed", zap.Uint64("round", state.roundId), zap.Error(err))
	state.metrics.RoundFinished(metrics.RoundFailed, time.Since(startedAt))
	state.scheduler.RequestOnce(state.config.Search.Cooldown(), ctx.Self(), searchCooldownOver{})
	state.Become(SearchFailedState{
		actor: state,
	})
}

// finishRound selects the median candidate and commits it. Fallback candidates
// are only used when no worker found an acceptable one.
func (state *SearchCoordinatorActor) finishRound(ctx actor.Context, round *searchRound) {
	if err := round.log.Close(); err != nil {
		state.logger.Error("search@running closing result log failed", zap.Error(err))
	}
	pool := round.accepted
	if len(pool) == 0 {
		pool = round.fallbacks
	}
	state.hasRun = true

	picked, ok := search.SelectMedian(pool)
	if !ok {
		state.logger.Info("search@running round finished without candidates", zap.Uint64("round", round.id))
		state.metrics.RoundFinished(metrics.RoundEmpty, time.Since(round.startedAt))
		state.Become(SearchIdleState{actor: state})
		return
	}

	params := picked.Parameters()
	state.logger.Info("search@running round finished",
		zap.Uint64("round", round.id),
		zap.Int("accepted", len(round.accepted)),
		zap.Int("fallbacks", len(round.fallbacks)),
		zap.Float64("capacity", params.CapacityWh),
		zap.Float64("parasitic", params.ParasiticConsumptionW),
		zap.String("result_log", round.log.Path()))
	if err := state.store.Save(params); err != nil {
		state.logger.Error("search@running saving assumed parameters failed", zap.Error(err))
	}
	ctx.Send(ctx.Parent(), domain.AssumedParametersUpdated{Params: params})
	state.metrics.RoundFinished(metrics.RoundSucceeded, time.Since(round.startedAt))
	state.Become(SearchIdleState{actor: state})
}

// Idle state

type SearchIdleState struct {
	ActorState
	actor *SearchCoordinatorActor
}

func (state SearchIdleState) Name() string {
	return SEARCH_STATE_IDLE
}

func (state SearchIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("search@idle started")
		state.actor.onStarted(ctx)
	case *actor.Stopping, *actor.Restarting:
		state.actor.onStopping()
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name())
	case domain.EstimateUpdated:
		state.actor.storeEstimate(msg)
		if !state.actor.hasRun && msg.Estimate.Complete() {
			state.actor.tryStartRound(ctx)
		}
	case searchTick:
		state.actor.logger.Debug("search@idle tick")
		state.actor.tryStartRound(ctx)
	case searchCandidateFound, searchWorkerDone, searchWorkerGone, *actor.Terminated:
	default:
		state.actor.logger.Debug("search@idle unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Running state

type SearchRunningState struct {
	ActorState
	actor *SearchCoordinatorActor
	round *searchRound
}

func (state SearchRunningState) Name() string {
	return SEARCH_STATE_RUNNING
}

func (state SearchRunningState) Receive(ctx actor.Context) {
	round := state.round
	switch msg := ctx.Message().(type) {
	case *actor.Stopping, *actor.Restarting:
		state.actor.logger.Info("search@running stopping, discarding round", zap.Uint64("round", round.id))
		_ = round.log.Close()
		state.actor.onStopping()
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name())
	case domain.EstimateUpdated:
		state.actor.storeEstimate(msg)
	case searchTick:
		state.actor.logger.Debug("search@running tick ignored, round in flight", zap.Uint64("round", round.id))
	case searchCandidateFound:
		if msg.Round != round.id {
			return
		}
		round.accepted = append(round.accepted, msg.Candidate)
		round.log.Append(msg.Candidate)
		state.actor.metrics.CandidateFound()
	case searchWorkerDone:
		if msg.Round != round.id || !round.pending[msg.Worker] {
			return
		}
		delete(round.pending, msg.Worker)
		if msg.Err != nil {
			state.actor.logger.Error("search@running worker failed", zap.Int("worker", msg.Worker), zap.Error(msg.Err))
			state.actor.metrics.WorkerFailed()
		} else if fb := msg.Result.Fallback(); fb != nil {
			round.fallbacks = append(round.fallbacks, *fb)
		}
		state.checkDone(ctx)
	case *actor.Terminated:
		for index, pid := range round.workers {
			if pid.Equal(msg.Who) && round.pending[index] {
				// its final report may still be queued behind this system message
				ctx.Send(ctx.Self(), searchWorkerGone{Round: round.id, Worker: index})
			}
		}
	case searchWorkerGone:
		if msg.Round != round.id || !round.pending[msg.Worker] {
			return
		}
		delete(round.pending, msg.Worker)
		state.actor.logger.Error("search@running worker terminated without reporting", zap.Int("worker", msg.Worker))
		state.actor.metrics.WorkerFailed()
		state.checkDone(ctx)
	default:
		state.actor.logger.Debug("search@running unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state SearchRunningState) checkDone(ctx actor.Context) {
	if len(state.round.pending) > 0 {
		return
	}
	state.actor.finishRound(ctx, state.round)
}

// Failed state

type SearchFailedState struct {
	ActorState
	actor *SearchCoordinatorActor
}

func (state SearchFailedState) Name() string {
	return SEARCH_STATE_FAILED
}

func (state SearchFailedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Stopping, *actor.Restarting:
		state.actor.onStopping()
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name())
	case domain.EstimateUpdated:
		state.actor.storeEstimate(msg)
	case searchTick:
		state.actor.logger.Debug("search@failed tick ignored, cooling down")
	case searchCooldownOver:
		state.actor.logger.Info("search@failed cooldown over")
		state.actor.Become(SearchIdleState{actor: state.actor})
	case searchCandidateFound, searchWorkerDone, searchWorkerGone, *actor.Terminated:
	default:
		state.actor.logger.Debug("search@failed unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
