package soc

import "errors"

// ErrNoData is returned to readers asking for an estimate before the first recomputation.
var ErrNoData = errors.New("no estimate computed yet")

// Estimate is everything the engine knows after one recomputation.
// Unknown values are nil.
type Estimate struct {
	Time      int64  `json:"time"`
	LastFull  *int64 `json:"last_full"`
	LastEmpty *int64 `json:"last_empty"`

	SinceFull  *EnergyTotals `json:"since_full"`
	SinceEmpty *EnergyTotals `json:"since_empty"`

	RemovedSinceFull *float64 `json:"removed_since_full"`
	AddedSinceEmpty  *float64 `json:"added_since_empty"`

	SOCSinceFull  *float64 `json:"soc_since_full"`
	SOCSinceEmpty *float64 `json:"soc_since_empty"`
	SOCAverage    *float64 `json:"soc_average"`

	// Net energy (charged minus discharged) with no parasitic correction.
	// The parameter search subtracts its own parasitic guess from these.
	RawNetSinceFull  *float64 `json:"raw_net_since_full"`
	RawNetSinceEmpty *float64 `json:"raw_net_since_empty"`

	Params AssumedParameters `json:"params"`
}

// Complete reports whether the estimate carries every input a parameter search needs.
func (e Estimate) Complete() bool {
	return e.LastFull != nil && e.LastEmpty != nil && e.RawNetSinceFull != nil && e.RawNetSinceEmpty != nil
}

// Engine owns the live power buffer, the historical set and the reference
// tracker, and turns them into estimates. It is not safe for concurrent use.
type Engine struct {
	tracker *ReferenceTracker
	params  AssumedParameters

	live             []PowerSample
	historical       []PowerSample
	historicalLoaded bool

	fullCorrected  Integrator
	emptyCorrected Integrator
	fullRaw        Integrator
	emptyRaw       Integrator
}

func NewEngine(thresholds Thresholds, params AssumedParameters) *Engine {
	return &Engine{
		tracker: NewReferenceTracker(thresholds),
		params:  params,
	}
}

// AddPowerSample appends a live sample. Samples older than the newest buffered
// one are dropped so the buffer stays sorted.
func (e *Engine) AddPowerSample(s PowerSample) bool {
	if n := len(e.live); n > 0 && s.Time < e.live[n-1].Time {
		return false
	}
	e.live = append(e.live, s)
	return true
}

func (e *Engine) ObserveBattery(voltage, current float64, time int64) {
	e.tracker.Observe(voltage, current, time)
}

func (e *Engine) SetPersistedReferences(lastFull, lastEmpty *int64) {
	e.tracker.SetPersistedFull(lastFull)
	e.tracker.SetPersistedEmpty(lastEmpty)
}

// SetHistorical replaces the historical set and marks it loaded. A nil slice
// means there is no history to merge.
func (e *Engine) SetHistorical(samples []PowerSample) {
	e.historical = samples
	e.historicalLoaded = true
}

// InvalidateHistorical defers all merges until the next SetHistorical.
func (e *Engine) InvalidateHistorical() {
	e.historicalLoaded = false
}

func (e *Engine) HistoricalLoaded() bool {
	return e.historicalLoaded
}

func (e *Engine) SetParameters(p AssumedParameters) {
	e.params = p
}

func (e *Engine) Parameters() AssumedParameters {
	return e.params
}

func (e *Engine) LastFull() *int64 {
	return e.tracker.LastFull()
}

func (e *Engine) LastEmpty() *int64 {
	return e.tracker.LastEmpty()
}

// OldestReference is the earliest known reference point, the start of the
// history the engine still needs.
func (e *Engine) OldestReference() *int64 {
	full, empty := e.tracker.LastFull(), e.tracker.LastEmpty()
	switch {
	case full == nil:
		return empty
	case empty == nil:
		return full
	case *full < *empty:
		return full
	default:
		return empty
	}
}

func (e *Engine) LiveLen() int {
	return len(e.live)
}

// Recompute derives a fresh estimate at now.
func (e *Engine) Recompute(now int64) Estimate {
	est := Estimate{
		Time:      now,
		LastFull:  e.tracker.LastFull(),
		LastEmpty: e.tracker.LastEmpty(),
		Params:    e.params,
	}

	if series, ok := MergeSeries(est.LastFull, now, e.live, e.historical, e.historicalLoaded); ok {
		est.SinceFull = e.fullCorrected.Integrate(series, e.params.ParasiticConsumptionW)
		est.RawNetSinceFull = net(e.fullRaw.Integrate(series, 0))
	}
	if series, ok := MergeSeries(est.LastEmpty, now, e.live, e.historical, e.historicalLoaded); ok {
		est.SinceEmpty = e.emptyCorrected.Integrate(series, e.params.ParasiticConsumptionW)
		est.RawNetSinceEmpty = net(e.emptyRaw.Integrate(series, 0))
	}

	if est.SinceFull != nil {
		v := est.SinceFull.RemovedSinceFull()
		est.RemovedSinceFull = &v
	}
	if est.SinceEmpty != nil {
		v := est.SinceEmpty.AddedSinceEmpty()
		est.AddedSinceEmpty = &v
	}

	capacity := e.params.Capacity()
	est.SOCSinceFull = SOCSinceFull(est.SinceFull, capacity)
	est.SOCSinceEmpty = SOCSinceEmpty(est.SinceEmpty, capacity)
	est.SOCAverage = AverageSOC(est.SOCSinceFull, est.SOCSinceEmpty)

	e.trimLive(est.LastFull, est.LastEmpty)
	return est
}

// trimLive drops buffered samples no window can reach any more.
func (e *Engine) trimLive(lastFull, lastEmpty *int64) {
	if lastFull == nil || lastEmpty == nil {
		return
	}
	oldest := min(*lastFull, *lastEmpty)
	i := 0
	for i < len(e.live) && e.live[i].Time < oldest {
		i++
	}
	if i > 0 {
		e.live = append(e.live[:0:0], e.live[i:]...)
	}
}

func net(t *EnergyTotals) *float64 {
	if t == nil {
		return nil
	}
	v := t.Charged - t.Discharged
	return &v
}
