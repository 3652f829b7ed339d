package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danieltroger/mpi-15k-controller/internal/core/port"
	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
	"github.com/danieltroger/mpi-15k-controller/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	return zap.Must(logCfg.Build())
}

func testActorSystem(t *testing.T, logger *zap.Logger) *actor.ActorSystem {
	as := actorutil.NewActorSystemWithZapLogger(logger)
	t.Cleanup(as.Shutdown)
	return as
}

// probe records every message its child sends to it.
type probe struct {
	mu       sync.Mutex
	received []any
}

func (p *probe) record(msg any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, msg)
}

func (p *probe) messages() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.received...)
}

func probeMessages[T any](p *probe) []T {
	var out []T
	for _, msg := range p.messages() {
		if m, ok := msg.(T); ok {
			out = append(out, m)
		}
	}
	return out
}

type probeParent struct {
	probe *probe
	child *actor.Props
	pid   *actor.PID
}

type getChild struct{}

func (p *probeParent) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		p.pid = ctx.Spawn(p.child)
	case getChild:
		ctx.Respond(p.pid)
	case *actor.Stopping, *actor.Stopped, *actor.Restarting, *actor.Terminated:
	default:
		p.probe.record(msg)
	}
}

// spawnUnderProbe spawns child under a recording parent and returns the child.
func spawnUnderProbe(t *testing.T, as *actor.ActorSystem, child *actor.Props) (*probe, *actor.PID) {
	p := &probe{}
	parent := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &probeParent{probe: p, child: child}
	}))
	res, err := as.Root.RequestFuture(parent, getChild{}, time.Second).Result()
	require.NoError(t, err)
	return p, res.(*actor.PID)
}

type fakeHistory struct {
	mu          sync.Mutex
	lastFull    *int64
	lastEmpty   *int64
	samples     []soc.PowerSample
	refFailures int
	queries     [][2]int64
}

var _ port.HistoryClient = (*fakeHistory)(nil)

func (f *fakeHistory) PowerSamples(_ context.Context, from, to int64) ([]soc.PowerSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, [2]int64{from, to})
	var out []soc.PowerSample
	for _, s := range f.samples {
		if s.Time >= from && s.Time <= to {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeHistory) LastFull(context.Context) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refFailures > 0 {
		f.refFailures--
		return nil, context.DeadlineExceeded
	}
	return f.lastFull, nil
}

func (f *fakeHistory) LastEmpty(context.Context) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastEmpty, nil
}

func (f *fakeHistory) Close() {}

func (f *fakeHistory) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeHistory) queryWindows() [][2]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]int64(nil), f.queries...)
}

type memoryStore struct {
	mu    sync.Mutex
	saved []soc.AssumedParameters
}

var _ port.ParameterStore = (*memoryStore)(nil)

func (s *memoryStore) Load() (soc.AssumedParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return soc.AssumedParameters{}, errors.New("nothing saved yet")
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *memoryStore) Save(p soc.AssumedParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, p)
	return nil
}

func (s *memoryStore) saves() []soc.AssumedParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]soc.AssumedParameters(nil), s.saved...)
}

func ptr[T any](v T) *T {
	return &v
}
