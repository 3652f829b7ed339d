package soc

const msPerHour = 3_600_000

// EnergyTotals holds the energy that went in and out of the battery over a window, in Wh.
// Both fields are always >= 0.
type EnergyTotals struct {
	Charged    float64 `json:"charged"`
	Discharged float64 `json:"discharged"`
}

// RemovedSinceFull is the net energy taken out since the window start.
// Negative values mean net charging happened.
func (t EnergyTotals) RemovedSinceFull() float64 {
	return t.Discharged - t.Charged
}

// AddedSinceEmpty is the net energy put in since the window start.
func (t EnergyTotals) AddedSinceEmpty() float64 {
	return t.Charged - t.Discharged
}

// Integrate sums the energy of every interval between consecutive samples.
// The value of the earlier sample, minus the parasitic drain, holds for the whole
// interval; zero corrected power counts neither as charge nor as discharge.
func Integrate(series []PowerSample, parasiticW float64) EnergyTotals {
	var totals EnergyTotals
	for i := 0; i+1 < len(series); i++ {
		corrected := series[i].Value - parasiticW
		wh := corrected * float64(series[i+1].Time-series[i].Time) / msPerHour
		if corrected > 0 {
			totals.Charged += wh
		} else if corrected < 0 {
			totals.Discharged -= wh
		}
	}
	return totals
}

// Integrator remembers whether it ever produced totals, so that an empty window
// can be told apart from missing data.
type Integrator struct {
	computed bool
}

// Integrate returns nil until the first series with at least one interval was seen.
// After that, series without intervals yield zero totals.
func (i *Integrator) Integrate(series []PowerSample, parasiticW float64) *EnergyTotals {
	if len(series) < 2 {
		if !i.computed {
			return nil
		}
		return &EnergyTotals{}
	}
	totals := Integrate(series, parasiticW)
	i.computed = true
	return &totals
}
