package metrics

import (
	"net/http"
	"time"

	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mpi_battery"

const (
	RoundSucceeded = "succeeded"
	RoundFailed    = "failed"
	RoundEmpty     = "empty"
)

// Metrics is safe for concurrent use. All methods accept a nil receiver.
type Metrics struct {
	registry      *prometheus.Registry
	soc           *prometheus.GaugeVec
	energy        *prometheus.GaugeVec
	reference     *prometheus.GaugeVec
	params        *prometheus.GaugeVec
	rounds        *prometheus.CounterVec
	roundDuration prometheus.Histogram
	candidates    prometheus.Counter
	workerErrors  prometheus.Counter
	liveSamples   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		soc: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "soc_percent",
			Help:      "Estimated state of charge, by estimate.",
		}, []string{"estimate"}),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "energy_wh",
			Help:      "Net energy since the last reference point.",
		}, []string{"since"}),
		reference: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reference_timestamp_seconds",
			Help:      "Last time the battery was seen full or empty.",
		}, []string{"point"}),
		params: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assumed_parameter",
			Help:      "Currently assumed capacity (Wh) and parasitic consumption (W).",
		}, []string{"parameter"}),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_rounds_total",
			Help:      "Parameter search rounds by outcome.",
		}, []string{"result"}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_round_duration_seconds",
			Help:      "Wall time of completed search rounds.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_candidates_total",
			Help:      "Acceptable candidates reported by search workers.",
		}),
		workerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_worker_errors_total",
			Help:      "Search workers that failed or died before reporting.",
		}),
		liveSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_samples",
			Help:      "Power samples held in the live buffer.",
		}),
	}
	m.registry.MustRegister(m.soc, m.energy, m.reference, m.params, m.rounds,
		m.roundDuration, m.candidates, m.workerErrors, m.liveSamples)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveEstimate drops the series of values that are currently unknown.
func (m *Metrics) ObserveEstimate(e soc.Estimate, liveSamples int) {
	if m == nil {
		return
	}
	setOrDelete(m.soc, "average", e.SOCAverage)
	setOrDelete(m.soc, "since_full", finite(e.SOCSinceFull))
	setOrDelete(m.soc, "since_empty", finite(e.SOCSinceEmpty))
	setOrDelete(m.energy, "removed_since_full", e.RemovedSinceFull)
	setOrDelete(m.energy, "added_since_empty", e.AddedSinceEmpty)
	setOrDelete(m.reference, "full", seconds(e.LastFull))
	setOrDelete(m.reference, "empty", seconds(e.LastEmpty))
	m.liveSamples.Set(float64(liveSamples))
}

func (m *Metrics) ObserveParameters(p soc.AssumedParameters) {
	if m == nil {
		return
	}
	m.params.WithLabelValues("capacity_wh").Set(p.CapacityWh)
	m.params.WithLabelValues("parasitic_w").Set(p.ParasiticConsumptionW)
}

func (m *Metrics) RoundFinished(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.rounds.WithLabelValues(result).Inc()
	if result != RoundFailed {
		m.roundDuration.Observe(duration.Seconds())
	}
}

func (m *Metrics) CandidateFound() {
	if m == nil {
		return
	}
	m.candidates.Inc()
}

func (m *Metrics) WorkerFailed() {
	if m == nil {
		return
	}
	m.workerErrors.Inc()
}

func setOrDelete(vec *prometheus.GaugeVec, label string, value *float64) {
	if value == nil {
		vec.DeleteLabelValues(label)
		return
	}
	vec.WithLabelValues(label).Set(*value)
}

func finite(v *float64) *float64 {
	if v == nil || !soc.IsFinite(*v) {
		return nil
	}
	return v
}

func seconds(ms *int64) *float64 {
	if ms == nil {
		return nil
	}
	s := float64(*ms) / 1000
	return &s
}
