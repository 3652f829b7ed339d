package metrics

import (
	"testing"
	"time"

	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveEstimate(t *testing.T) {
	m := New()
	avg := 55.5
	full := int64(2000)

	m.ObserveEstimate(soc.Estimate{SOCAverage: &avg, LastFull: &full}, 12)

	assert.Equal(t, 55.5, testutil.ToFloat64(m.soc.WithLabelValues("average")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reference.WithLabelValues("full")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.liveSamples))

	m.ObserveEstimate(soc.Estimate{}, 0)
	assert.Equal(t, 0, testutil.CollectAndCount(m.soc))
}

func TestRounds(t *testing.T) {
	m := New()
	m.RoundFinished(RoundSucceeded, time.Second)
	m.RoundFinished(RoundFailed, 0)
	m.WorkerFailed()
	m.CandidateFound()
	m.CandidateFound()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.rounds.WithLabelValues(RoundSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rounds.WithLabelValues(RoundFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workerErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.candidates))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveEstimate(soc.Estimate{}, 0)
	m.ObserveParameters(soc.AssumedParameters{})
	m.RoundFinished(RoundEmpty, 0)
	m.CandidateFound()
	m.WorkerFailed()
}
