package search

import (
	"context"
	"errors"
	"math"

	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
)

var ErrEmptyRange = errors.New("empty search range")

// Range is an inclusive integer interval.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Task is one worker's slice of the parameter grid. The raw energies are net
// charged minus discharged since each reference point, without parasitic
// correction. Timestamps are epoch milliseconds.
type Task struct {
	RawNetSinceFull  float64 `json:"raw_net_since_full"`
	RawNetSinceEmpty float64 `json:"raw_net_since_empty"`
	Now              int64   `json:"now"`
	LastFull         int64   `json:"last_full"`
	LastEmpty        int64   `json:"last_empty"`
	Capacity         Range   `json:"capacity"`
	Parasitic        Range   `json:"parasitic"`
	Tolerance        float64 `json:"tolerance"`
}

// Candidate is one evaluated capacity / parasitic pair.
type Candidate struct {
	CapacityWh            int     `json:"capacity"`
	ParasiticConsumptionW int     `json:"parasitic_consumption"`
	SOCSinceFull          float64 `json:"soc_since_full"`
	SOCSinceEmpty         float64 `json:"soc_since_empty"`
}

func (c Candidate) Average() float64 {
	return (c.SOCSinceFull + c.SOCSinceEmpty) / 2
}

func (c Candidate) Diff() float64 {
	return math.Abs(c.SOCSinceFull - c.SOCSinceEmpty)
}

func (c Candidate) Finite() bool {
	return soc.IsFinite(c.SOCSinceFull) && soc.IsFinite(c.SOCSinceEmpty)
}

func (c Candidate) Parameters() soc.AssumedParameters {
	return soc.AssumedParameters{
		CapacityWh:            float64(c.CapacityWh),
		ParasiticConsumptionW: float64(c.ParasiticConsumptionW),
	}
}

// Result summarizes a sweep. Best is the candidate with the smallest diff over
// the whole slice, nil if nothing finite was evaluated.
type Result struct {
	Evaluated  int        `json:"evaluated"`
	Acceptable int        `json:"acceptable"`
	Best       *Candidate `json:"best"`
}

// Fallback returns Best when no candidate met the tolerance.
func (r Result) Fallback() *Candidate {
	if r.Acceptable > 0 {
		return nil
	}
	return r.Best
}

type SweepFunc func(ctx context.Context, task Task, emit func(Candidate)) (Result, error)

var _ SweepFunc = Sweep

// Sweep evaluates every pair of the task grid and emits the ones whose two SOC
// estimates agree within tolerance. Non-positive capacities are skipped.
// Cancellation is checked once per capacity row.
func Sweep(ctx context.Context, task Task, emit func(Candidate)) (Result, error) {
	var result Result
	if task.Capacity.Len() == 0 || task.Parasitic.Len() == 0 {
		return result, ErrEmptyRange
	}
	hoursSinceFull := float64(task.Now-task.LastFull) / 3_600_000
	hoursSinceEmpty := float64(task.Now-task.LastEmpty) / 3_600_000
	bestDiff := math.Inf(1)

	for capacity := task.Capacity.Start; capacity <= task.Capacity.End; capacity++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if capacity <= 0 {
			continue
		}
		capWh := float64(capacity)
		for parasitic := task.Parasitic.End; parasitic >= task.Parasitic.Start; parasitic-- {
			p := float64(parasitic)
			energySinceFull := task.RawNetSinceFull - p*hoursSinceFull
			energySinceEmpty := task.RawNetSinceEmpty - p*hoursSinceEmpty

			c := Candidate{
				CapacityWh:            capacity,
				ParasiticConsumptionW: parasitic,
				SOCSinceFull:          soc.SOCFromRemovedSinceFull(-energySinceFull, capWh),
				SOCSinceEmpty:         soc.SOCFromAddedSinceEmpty(energySinceEmpty, capWh),
			}
			result.Evaluated++
			if !c.Finite() {
				continue
			}
			diff := c.Diff()
			if diff < bestDiff {
				bestDiff = diff
				best := c
				result.Best = &best
			}
			if diff < task.Tolerance {
				result.Acceptable++
				emit(c)
			}
		}
	}
	return result, nil
}
