package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/danieltroger/mpi-15k-controller/internal/core/domain"
	"github.com/danieltroger/mpi-15k-controller/internal/core/port"
	"github.com/danieltroger/mpi-15k-controller/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HistoryActor serializes blocking history store queries off the estimator's
// mailbox. One query runs at a time, later requests are stashed.
type HistoryActor struct {
	client   port.HistoryClient
	timeout  time.Duration
	behavior actor.Behavior
	stash    *actorutil.Stash
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewHistoryActor(client port.HistoryClient, timeout time.Duration, logger *zap.Logger) *HistoryActor {
	act := &HistoryActor{
		client:   client,
		timeout:  timeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_HISTORY, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *HistoryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HistoryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("history@default started")
	case *actor.Stopping:
		state.client.Close()
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HISTORY,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetReferencePointsRequest:
		state.logger.Debug("history@default GetReferencePointsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getReferencePoints),
			mapTaskResult[domain.GetReferencePointsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetReferencePointsResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingHistory)
	case domain.GetHistoricalPowerRequest:
		state.logger.Debug("history@default GetHistoricalPowerRequest", zap.Int64("from", msg.From), zap.Int64("to", msg.To))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		from, to := msg.From, msg.To

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.GetHistoricalPowerResponse, error) {
			return state.getHistoricalPower(from, to)
		}), mapTaskResult[domain.GetHistoricalPowerResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetHistoricalPowerResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					From: from,
					To:   to,
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingHistory)
	default:
		state.logger.Debug("history@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HistoryActor) WaitingHistory(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("history@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.client.Close()
	default:
		state.logger.Debug("history@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HistoryActor) getReferencePoints() (*domain.GetReferencePointsResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), state.timeout)
	defer cancel()

	lastFull, err := state.client.LastFull(ctx)
	if err != nil {
		return nil, fmt.Errorf("last full query: %w", err)
	}
	lastEmpty, err := state.client.LastEmpty(ctx)
	if err != nil {
		return nil, fmt.Errorf("last empty query: %w", err)
	}
	return &domain.GetReferencePointsResponse{
		LastFull:  lastFull,
		LastEmpty: lastEmpty,
	}, nil
}

func (state *HistoryActor) getHistoricalPower(from, to int64) (*domain.GetHistoricalPowerResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), state.timeout)
	defer cancel()

	samples, err := state.client.PowerSamples(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("power query: %w", err)
	}
	return &domain.GetHistoricalPowerResponse{
		From:    from,
		To:      to,
		Samples: samples,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
