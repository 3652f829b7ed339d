package actor

import (
	"context"
	"fmt"

	"github.com/danieltroger/mpi-15k-controller/internal/core/search"
	. "github.com/danieltroger/mpi-15k-controller/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// SearchWorkerActor sweeps one slice of the parameter grid on its own goroutine.
// It only sees the frozen task it was spawned with. Acceptable candidates are
// streamed to the parent as they are found; a final searchWorkerDone reports
// the summary or the error.
type SearchWorkerActor struct {
	round  uint64
	index  int
	task   search.Task
	sweep  search.SweepFunc
	cancel context.CancelFunc
	logger *zap.Logger
}

type searchCandidateFound struct {
	Round     uint64
	Worker    int
	Candidate search.Candidate
}

type searchWorkerDone struct {
	Round  uint64
	Worker int
	Result search.Result
	Err    error
}

type sweepFinished struct {
	result search.Result
	err    error
}

func NewSearchWorkerActor(round uint64, index int, task search.Task, sweep search.SweepFunc, logger *zap.Logger) *SearchWorkerActor {
	return &SearchWorkerActor{
		round:  round,
		index:  index,
		task:   task,
		sweep:  sweep,
		logger: ActorLogger(fmt.Sprintf("search_worker_%d", index), logger),
	}
}

func (state *SearchWorkerActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("search_worker@running started",
			zap.Uint64("round", state.round), zap.Int("from", state.task.Capacity.Start), zap.Int("to", state.task.Capacity.End))
		sweepCtx, cancel := context.WithCancel(context.Background())
		state.cancel = cancel
		go state.run(sweepCtx, ctx.ActorSystem().Root, ctx.Self(), ctx.Parent())
	case sweepFinished:
		if msg.err != nil {
			state.logger.Error("search_worker@running sweep failed", zap.Uint64("round", state.round), zap.Error(msg.err))
		} else {
			state.logger.Debug("search_worker@running sweep done",
				zap.Uint64("round", state.round), zap.Int("evaluated", msg.result.Evaluated), zap.Int("acceptable", msg.result.Acceptable))
		}
		ctx.Send(ctx.Parent(), searchWorkerDone{
			Round:  state.round,
			Worker: state.index,
			Result: msg.result,
			Err:    msg.err,
		})
		ctx.Stop(ctx.Self())
	case *actor.Stopping:
		if state.cancel != nil {
			state.cancel()
		}
	}
}

func (state *SearchWorkerActor) run(ctx context.Context, root *actor.RootContext, self, parent *actor.PID) {
	var (
		result search.Result
		err    error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
		root.Send(self, sweepFinished{result: result, err: err})
	}()
	result, err = state.sweep(ctx, state.task, func(c search.Candidate) {
		root.Send(parent, searchCandidateFound{
			Round:     state.round,
			Worker:    state.index,
			Candidate: c,
		})
	})
}
