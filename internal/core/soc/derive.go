package soc

import "math"

// AssumedParameters is the current belief about the battery physics.
// A capacity that is not positive means it is not known yet.
type AssumedParameters struct {
	CapacityWh            float64 `json:"capacity"`
	ParasiticConsumptionW float64 `json:"parasitic_consumption"`
}

func (p AssumedParameters) Capacity() *float64 {
	if !(p.CapacityWh > 0) {
		return nil
	}
	c := p.CapacityWh
	return &c
}

func SOCFromRemovedSinceFull(removedWh, capacityWh float64) float64 {
	return 100 - (removedWh/capacityWh)*100
}

func SOCFromAddedSinceEmpty(addedWh, capacityWh float64) float64 {
	return (addedWh / capacityWh) * 100
}

// SOCSinceFull may return NaN or Inf for degenerate capacities; use AverageSOC
// for anything that leaves the engine.
func SOCSinceFull(totals *EnergyTotals, capacityWh *float64) *float64 {
	if totals == nil || capacityWh == nil {
		return nil
	}
	v := SOCFromRemovedSinceFull(totals.RemovedSinceFull(), *capacityWh)
	return &v
}

func SOCSinceEmpty(totals *EnergyTotals, capacityWh *float64) *float64 {
	if totals == nil || capacityWh == nil {
		return nil
	}
	v := SOCFromAddedSinceEmpty(totals.AddedSinceEmpty(), *capacityWh)
	return &v
}

// AverageSOC is only known when both estimates are finite.
func AverageSOC(sinceFull, sinceEmpty *float64) *float64 {
	if sinceFull == nil || sinceEmpty == nil || !IsFinite(*sinceFull) || !IsFinite(*sinceEmpty) {
		return nil
	}
	v := (*sinceFull + *sinceEmpty) / 2
	return &v
}

func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
