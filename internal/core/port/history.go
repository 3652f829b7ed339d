package port

import (
	"context"
	"errors"

	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
)

// ErrHistoryUnavailable means there is no history store to ask. Callers run
// from live telemetry only instead of retrying.
var ErrHistoryUnavailable = errors.New("history store unavailable")

// HistoryClient reads past battery data. Calls block and must honor ctx.
type HistoryClient interface {
	// PowerSamples returns battery power in W for [from, to], ascending by time.
	PowerSamples(ctx context.Context, from, to int64) ([]soc.PowerSample, error)
	// LastFull returns the latest time the battery was full, nil if never seen.
	LastFull(ctx context.Context) (*int64, error)
	LastEmpty(ctx context.Context) (*int64, error)
	Close()
}

// NoHistory is the HistoryClient used when no store is configured.
type NoHistory struct{}

var _ HistoryClient = NoHistory{}

func (NoHistory) PowerSamples(context.Context, int64, int64) ([]soc.PowerSample, error) {
	return nil, ErrHistoryUnavailable
}

func (NoHistory) LastFull(context.Context) (*int64, error) {
	return nil, ErrHistoryUnavailable
}

func (NoHistory) LastEmpty(context.Context) (*int64, error) {
	return nil, ErrHistoryUnavailable
}

func (NoHistory) Close() {}
