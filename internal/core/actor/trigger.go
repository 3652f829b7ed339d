package actor

import (
	"context"
	"fmt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/quartz"
)

// tickJob is a quartz job that sends a fixed message to an actor each time it fires.
type tickJob struct {
	root *actor.RootContext
	pid  *actor.PID
	msg  any
	name string
}

var _ quartz.Job = (*tickJob)(nil)

func newTickJob(root *actor.RootContext, pid *actor.PID, name string, msg any) *tickJob {
	return &tickJob{
		root: root,
		pid:  pid,
		msg:  msg,
		name: name,
	}
}

func (j *tickJob) Execute(_ context.Context) error {
	j.root.Send(j.pid, j.msg)
	return nil
}

func (j *tickJob) Description() string {
	return fmt.Sprintf("tick %s -> %s", j.name, j.pid.Id)
}
